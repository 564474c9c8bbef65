// ABOUTME: Store interface and data types for storefront-gateway persistence
// ABOUTME: Defines tenants, accounts, orders, broadcasts and the Store contract over them

package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/2389/storefront-gateway/internal/geofence"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a uniqueness constraint
var ErrConflict = errors.New("already exists")

// Tenant is one storefront with its own bot and audience
type Tenant struct {
	ID              string
	Name            string
	BotToken        string
	OperatorChatID  int64 // group chat receiving order announcements
	SupportUsername string
	DeliveryZone    geofence.Polygon
	OpenTime        string // HH:MM, empty means always open
	CloseTime       string
	Timezone        string // IANA name, empty means UTC
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Hours returns the tenant's opening window in its own timezone.
func (t *Tenant) Hours() (geofence.Hours, error) {
	return geofence.NewHours(t.OpenTime, t.CloseTime, t.Timezone)
}

// Location returns the tenant's timezone, falling back to UTC when unset or unknown.
func (t *Tenant) Location() *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// User is a customer account keyed by platform user id
type User struct {
	ID             string
	TelegramID     int64
	Username       string
	FullName       string
	Phone          string
	PasswordHash   string
	Active         bool // false means blocked
	ActiveTenantID string
	LastLocation   *geofence.Point
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Order status values as persisted
const (
	OrderStatusNew        = "new"
	OrderStatusPreparing  = "preparing"
	OrderStatusDelivering = "delivering"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Order is a placed purchase
type Order struct {
	ID                string
	TenantID          string
	UserID            string
	Number            int64 // per-tenant display number
	Status            string
	Total             decimal.Decimal
	Address           string
	Location          *geofence.Point
	Comment           string
	CancelReason      string
	ProcessedBy       string // last operator who changed the status
	AnnounceChatID    int64
	AnnounceMessageID int
	Version           int64
	Items             []OrderItem
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderItem is one line of an order
type OrderItem struct {
	ID       string
	OrderID  string
	Name     string
	Quantity int
	Price    decimal.Decimal
}

// Subtotal is price times quantity
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderTransition is a conditional status change
type OrderTransition struct {
	OrderID string
	From    string
	To      string
	Actor   string
	Comment string
	At      time.Time
}

// OrderStatusEvent is one append-only audit entry for an order
type OrderStatusEvent struct {
	ID        string
	OrderID   string
	Status    string
	Actor     string
	Comment   string
	CreatedAt time.Time
}

// Feedback type values
const (
	FeedbackComplaint  = "complaint"
	FeedbackSuggestion = "suggestion"
	FeedbackQuestion   = "question"
	FeedbackOther      = "other"
)

// Feedback is a free-text message left by a customer
type Feedback struct {
	ID        string
	TenantID  string
	UserID    string
	Type      string
	Message   string
	CreatedAt time.Time
}

// ProfileChange records an edit of a profile field
type ProfileChange struct {
	ID        string
	UserID    string
	Field     string // "full_name" or "phone"
	OldValue  string
	NewValue  string
	CreatedAt time.Time
}

// Recurrence values for scheduled broadcasts
const (
	RecurrenceNone   = "none"
	RecurrenceDaily  = "daily"
	RecurrenceWeekly = "weekly"
	RecurrenceCustom = "custom"
)

// ScheduledBroadcast is a one-off or recurring announcement job
type ScheduledBroadcast struct {
	ID          string
	TenantID    string
	Message     string
	ImageURL    string
	Recurrence  string
	Weekdays    []time.Weekday // custom recurrence only
	ScheduledAt time.Time
	LastRunAt   *time.Time
	Active      bool
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BroadcastHistory is the record of one fan-out run
type BroadcastHistory struct {
	ID          string
	TenantID    string
	BroadcastID string // empty for immediate sends
	Message     string
	ImageURL    string
	SentBy      string
	Recipients  int
	Delivered   int
	Failed      bool
	Retracted   bool
	RetractedAt *time.Time
	CreatedAt   time.Time
}

// SentMessage is one delivered broadcast message, kept for retraction
type SentMessage struct {
	HistoryID string
	ChatID    int64
	MessageID int
}

// Recipient is one member of a tenant's broadcast audience
type Recipient struct {
	UserID string
	ChatID int64
}

// Store defines the persistence contract consumed by the dialogue, orders and broadcast packages
type Store interface {
	// Tenants
	UpsertTenant(ctx context.Context, tenant *Tenant) error
	SyncTenants(ctx context.Context, tenants []*Tenant) error
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	ListTenants(ctx context.Context, activeOnly bool) ([]*Tenant, error)

	// Accounts
	RegisterUser(ctx context.Context, user *User, tenantID string) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	LinkUserTenant(ctx context.Context, userID, tenantID string) error
	SetActiveTenant(ctx context.Context, userID, tenantID string) error
	SetLastLocation(ctx context.Context, userID string, point geofence.Point) error
	UpdateUserName(ctx context.Context, userID, fullName string) error
	UpdateUserPhone(ctx context.Context, userID, phone string) error
	SetPasswordHash(ctx context.Context, userID, hash string) error
	RecordProfileChange(ctx context.Context, change *ProfileChange) error

	// Locale preferences, keyed by platform id so they exist before an account does
	GetLocale(ctx context.Context, telegramID int64) (string, error)
	SetLocale(ctx context.Context, telegramID int64, locale string) error

	// Feedback
	CreateFeedback(ctx context.Context, feedback *Feedback) error

	// Orders
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListUserOrders(ctx context.Context, userID, tenantID string, limit int) ([]*Order, error)
	TransitionOrder(ctx context.Context, tr OrderTransition) (bool, error)
	SetOrderAnnouncement(ctx context.Context, orderID string, chatID int64, messageID int) error
	ListOrderEvents(ctx context.Context, orderID string) ([]*OrderStatusEvent, error)

	// Broadcasts
	CreateScheduledBroadcast(ctx context.Context, b *ScheduledBroadcast) error
	GetScheduledBroadcast(ctx context.Context, id string) (*ScheduledBroadcast, error)
	ListDueBroadcasts(ctx context.Context, now time.Time) ([]*ScheduledBroadcast, error)
	CompleteBroadcastRun(ctx context.Context, id string, ranAt time.Time, next *time.Time) error
	CreateBroadcastHistory(ctx context.Context, h *BroadcastHistory) error
	FinishBroadcastHistory(ctx context.Context, id string, recipients, delivered int, failed bool) error
	GetBroadcastHistory(ctx context.Context, id string) (*BroadcastHistory, error)
	RecordSentMessage(ctx context.Context, msg *SentMessage) error
	ListSentMessages(ctx context.Context, historyID string) ([]*SentMessage, error)
	MarkRetracted(ctx context.Context, historyID string, at time.Time) error
	ListAudience(ctx context.Context, tenantID string) ([]Recipient, error)

	// Admin audit
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
	ListAuditLog(ctx context.Context, f AuditFilter) ([]*AuditEntry, error)

	// Leases
	AcquireLease(ctx context.Context, name, holder string, ttl time.Duration, now time.Time) (bool, error)
	ReleaseLease(ctx context.Context, name, holder string) error

	// Close releases any resources held by the store
	Close() error
}
