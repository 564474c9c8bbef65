// ABOUTME: Text rendering for operator announcements and customer notices
// ABOUTME: All user-supplied values are escaped for the transport's HTML mode

package orders

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/2389/storefront-gateway/internal/i18n"
	"github.com/2389/storefront-gateway/internal/richtext"
	"github.com/2389/storefront-gateway/internal/store"
)

// MapURL links to a map pin for the delivery location.
func MapURL(lat, lng float64) string {
	return fmt.Sprintf("https://yandex.ru/maps/?pt=%f,%f&z=17&l=map", lng, lat)
}

func number(order *store.Order) string {
	return strconv.FormatInt(order.Number, 10)
}

func (c *Coordinator) renderAnnouncement(locale string, order *store.Order, customer *store.User) string {
	t := c.texts
	notSpecified := t.Text(locale, i18n.MsgNotSpecified)

	name, phone := notSpecified, notSpecified
	if customer != nil {
		if customer.FullName != "" {
			name = richtext.Escape(customer.FullName)
		}
		if customer.Phone != "" {
			phone = richtext.Escape(customer.Phone)
		}
	}

	address := notSpecified
	if order.Address != "" {
		address = richtext.Escape(order.Address)
	}
	if order.Location != nil {
		label := address
		if order.Address == "" {
			label = t.Text(locale, i18n.MsgOpenMap)
		}
		address = `<a href="` + richtext.Escape(MapURL(order.Location.Lat, order.Location.Lng)) + `">` + label + `</a>`
	}

	var b strings.Builder
	b.WriteString(t.Text(locale, i18n.MsgAnnounceHeader, number(order)))
	b.WriteString("\n\n")
	b.WriteString(t.Text(locale, i18n.MsgAnnounceCustomer, name) + "\n")
	b.WriteString(t.Text(locale, i18n.MsgAnnouncePhone, phone) + "\n")
	b.WriteString(t.Text(locale, i18n.MsgAnnounceAddress, address) + "\n")
	b.WriteString(t.Text(locale, i18n.MsgAnnounceTotal, t.Money(locale, order.Total)))

	if len(order.Items) > 0 {
		b.WriteString("\n\n" + t.Text(locale, i18n.MsgAnnounceItems))
		for i, item := range order.Items {
			fmt.Fprintf(&b, "\n%d. %s × %d = %s", i+1, richtext.Escape(item.Name), item.Quantity, t.Money(locale, item.Subtotal()))
		}
	}
	if order.Comment != "" {
		b.WriteString("\n\n" + t.Text(locale, i18n.MsgAnnounceComment, richtext.Escape(order.Comment)))
	}

	b.WriteString("\n\n" + t.Text(locale, i18n.MsgAnnounceStatus, Emoji(Status(order.Status))+" "+Label(t, locale, Status(order.Status))))
	if order.ProcessedBy != "" {
		b.WriteString("\n" + t.Text(locale, i18n.MsgAnnounceProcessedBy, richtext.Escape(order.ProcessedBy)))
	}
	if Status(order.Status) == StatusCancelled && order.CancelReason != "" {
		b.WriteString("\n" + t.Text(locale, i18n.MsgAnnounceReason, richtext.Escape(order.CancelReason)))
	}
	return b.String()
}

func (c *Coordinator) customerNotice(locale string, order *store.Order) string {
	t := c.texts
	status := Status(order.Status)
	if status == StatusCancelled {
		return t.Text(locale, i18n.MsgCustomerCancelled, number(order), richtext.Escape(order.CancelReason))
	}
	return t.Text(locale, i18n.MsgCustomerStatus,
		t.Text(locale, statusNotices[status]),
		number(order),
		t.Money(locale, order.Total),
		Label(t, locale, status),
	)
}

// SummaryLine renders one row of a customer's order list.
func SummaryLine(texts *i18n.Catalog, locale string, order *store.Order) string {
	status := Status(order.Status)
	return texts.Text(locale, i18n.MsgOrderLine,
		Emoji(status),
		number(order),
		texts.Money(locale, order.Total),
		Label(texts, locale, status),
	)
}
