// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// Store is the single interface the dialogue, order and broadcast packages
// depend on. SQLiteStore implements it on modernc.org/sqlite (pure Go, no cgo)
// with WAL mode and foreign keys enabled. The schema is created on open and
// column additions are applied by idempotent migrations.
//
// # Data Models
//
//   - Tenant: one storefront, its bot credential, delivery zone and hours
//   - User: a customer account keyed by platform user id
//   - Order, OrderItem, OrderStatusEvent: purchases and their audit trail
//   - Feedback, ProfileChange: customer messages and profile edit history
//   - ScheduledBroadcast, BroadcastHistory, SentMessage: announcement jobs,
//     fan-out runs and the delivered message ids kept for retraction
//   - AuditEntry: admin API actions and who took them
//
// # Concurrency Control
//
// Order status changes go through TransitionOrder, a conditional update
// (WHERE status = expected prior) paired with the audit insert in one
// transaction. Zero affected rows means another request already moved the
// order; the caller decides how to report it. AcquireLease provides a
// time-bounded named lock for work that must run in one process at a time.
//
// # Timestamps
//
// All timestamps are stored as RFC3339 UTC text, so string comparison in SQL
// matches chronological order.
package store
