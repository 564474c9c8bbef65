// ABOUTME: Closed order status and action types with the lifecycle graph
// ABOUTME: Each action has exactly one source status and one target status

package orders

import (
	"strings"

	"github.com/2389/storefront-gateway/internal/i18n"
	"github.com/2389/storefront-gateway/internal/store"
)

// Status is a persisted order status.
type Status string

const (
	StatusNew        Status = store.OrderStatusNew
	StatusPreparing  Status = store.OrderStatusPreparing
	StatusDelivering Status = store.OrderStatusDelivering
	StatusDelivered  Status = store.OrderStatusDelivered
	StatusCancelled  Status = store.OrderStatusCancelled
)

// AllStatuses returns every Status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusNew, StatusPreparing, StatusDelivering, StatusDelivered, StatusCancelled}
}

// Action is an operator step on an order.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionDispatch Action = "dispatch"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

type edge struct {
	action Action
	from   Status
	to     Status
}

// edges is the whole lifecycle graph; button order follows this slice.
var edges = []edge{
	{ActionConfirm, StatusNew, StatusPreparing},
	{ActionCancel, StatusNew, StatusCancelled},
	{ActionDispatch, StatusPreparing, StatusDelivering},
	{ActionComplete, StatusDelivering, StatusDelivered},
}

// mainLine ranks the non-cancelled statuses.
var mainLine = map[Status]int{
	StatusNew:        0,
	StatusPreparing:  1,
	StatusDelivering: 2,
	StatusDelivered:  3,
}

func (a Action) edge() (edge, bool) {
	for _, e := range edges {
		if e.action == a {
			return e, true
		}
	}
	return edge{}, false
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	_, ok := a.edge()
	return ok
}

// Next lists the actions legal from s.
func Next(s Status) []Action {
	var out []Action
	for _, e := range edges {
		if e.from == s {
			out = append(out, e.action)
		}
	}
	return out
}

// Terminal reports whether no action leaves s.
func Terminal(s Status) bool {
	return len(Next(s)) == 0
}

// classify explains why an action did not apply to an order now in current.
func classify(current Status, a Action) Outcome {
	e, ok := a.edge()
	if !ok {
		return OutcomeInvalid
	}
	if current == e.to {
		return OutcomeAlreadyApplied
	}
	cur, curOK := mainLine[current]
	target, targetOK := mainLine[e.to]
	if curOK && targetOK && cur > target {
		return OutcomeAlreadyApplied
	}
	return OutcomeInvalid
}

const callbackPrefix = "order:"

// CallbackData encodes a button press as order:<action>:<orderID>.
func CallbackData(a Action, orderID string) string {
	return callbackPrefix + string(a) + ":" + orderID
}

// IsCallback reports whether data belongs to the coordinator.
func IsCallback(data string) bool {
	return strings.HasPrefix(data, callbackPrefix)
}

// ParseCallback decodes CallbackData output.
func ParseCallback(data string) (Action, string, bool) {
	rest, ok := strings.CutPrefix(data, callbackPrefix)
	if !ok {
		return "", "", false
	}
	action, orderID, ok := strings.Cut(rest, ":")
	if !ok || orderID == "" || !Action(action).Valid() {
		return "", "", false
	}
	return Action(action), orderID, true
}

var statusLabels = map[Status]i18n.Key{
	StatusNew:        i18n.StatusNew,
	StatusPreparing:  i18n.StatusPreparing,
	StatusDelivering: i18n.StatusDelivering,
	StatusDelivered:  i18n.StatusDelivered,
	StatusCancelled:  i18n.StatusCancelled,
}

var statusNotices = map[Status]i18n.Key{
	StatusNew:        i18n.NoticeNew,
	StatusPreparing:  i18n.NoticePreparing,
	StatusDelivering: i18n.NoticeDelivering,
	StatusDelivered:  i18n.NoticeDelivered,
	StatusCancelled:  i18n.NoticeCancelled,
}

var statusEmoji = map[Status]string{
	StatusNew:        "🆕",
	StatusPreparing:  "👨‍🍳",
	StatusDelivering: "🚚",
	StatusDelivered:  "✅",
	StatusCancelled:  "❌",
}

var actionButtons = map[Action]i18n.Key{
	ActionConfirm:  i18n.BtnConfirmOrder,
	ActionDispatch: i18n.BtnDispatchOrder,
	ActionComplete: i18n.BtnCompleteOrder,
	ActionCancel:   i18n.BtnCancelOrder,
}

// Label renders a status name in locale.
func Label(texts *i18n.Catalog, locale string, s Status) string {
	if key, ok := statusLabels[s]; ok {
		return texts.Text(locale, key)
	}
	return string(s)
}

// Emoji is the status marker used in order lists.
func Emoji(s Status) string {
	if e, ok := statusEmoji[s]; ok {
		return e
	}
	return "📦"
}
