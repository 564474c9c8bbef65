// ABOUTME: Order persistence with conditional status transitions and an append-only audit trail
// ABOUTME: A transition only applies when the persisted status still matches the expected prior status

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/2389/storefront-gateway/internal/geofence"
)

// CreateOrder inserts an order with its items and the initial audit event.
// A per-tenant display number is assigned when Number is zero.
func (s *SQLiteStore) CreateOrder(ctx context.Context, order *Order) error {
	if order.ID == "" {
		order.ID = newID()
	}
	if order.Status == "" {
		order.Status = OrderStatusNew
	}
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt

	var lat, lng any
	if order.Location != nil {
		lat, lng = order.Location.Lat, order.Location.Lng
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if order.Number == 0 {
			err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(MAX(number), 0) + 1 FROM orders WHERE tenant_id = ?`, order.TenantID,
			).Scan(&order.Number)
			if err != nil {
				return fmt.Errorf("allocating order number: %w", err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, tenant_id, user_id, number, status, total, address, lat, lng,
				comment, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			order.ID,
			order.TenantID,
			order.UserID,
			order.Number,
			order.Status,
			order.Total.String(),
			order.Address,
			lat,
			lng,
			order.Comment,
			formatTime(order.CreatedAt),
			formatTime(order.UpdatedAt),
		)
		if err != nil {
			if isConstraintViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("inserting order: %w", err)
		}

		for i := range order.Items {
			item := &order.Items[i]
			if item.ID == "" {
				item.ID = newID()
			}
			item.OrderID = order.ID
			_, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, name, quantity, price)
				VALUES (?, ?, ?, ?, ?)
			`, item.ID, item.OrderID, item.Name, item.Quantity, item.Price.String())
			if err != nil {
				return fmt.Errorf("inserting order item: %w", err)
			}
		}

		return appendOrderEvent(ctx, tx, &OrderStatusEvent{
			OrderID:   order.ID,
			Status:    order.Status,
			Actor:     "customer",
			CreatedAt: order.CreatedAt,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Debug("created order", "id", order.ID, "tenant_id", order.TenantID, "number", order.Number)
	return nil
}

func appendOrderEvent(ctx context.Context, tx *sql.Tx, evt *OrderStatusEvent) error {
	if evt.ID == "" {
		evt.ID = newID()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_history (id, order_id, status, actor, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, evt.ID, evt.OrderID, evt.Status, evt.Actor, evt.Comment, formatTime(evt.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting order status event: %w", err)
	}
	return nil
}

const orderColumns = `id, tenant_id, user_id, number, status, total, address, lat, lng, comment,
	cancel_reason, processed_by, announce_chat_id, announce_message_id, version, created_at, updated_at`

func scanOrder(scanner interface{ Scan(dest ...any) error }) (*Order, error) {
	var o Order
	var total string
	var lat, lng sql.NullFloat64
	var createdAtStr, updatedAtStr string

	if err := scanner.Scan(
		&o.ID,
		&o.TenantID,
		&o.UserID,
		&o.Number,
		&o.Status,
		&total,
		&o.Address,
		&lat,
		&lng,
		&o.Comment,
		&o.CancelReason,
		&o.ProcessedBy,
		&o.AnnounceChatID,
		&o.AnnounceMessageID,
		&o.Version,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return nil, err
	}

	var err error
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parsing total: %w", err)
	}
	if lat.Valid && lng.Valid {
		o.Location = &geofence.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if o.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if o.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &o, nil
}

// GetOrder retrieves an order and its items by ID.
// Returns ErrNotFound if the order doesn't exist.
func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying order: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, name, quantity, price FROM order_items WHERE order_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("querying order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		var price string
		if err := rows.Scan(&item.ID, &item.OrderID, &item.Name, &item.Quantity, &price); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		if item.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parsing item price: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order items: %w", err)
	}
	return o, nil
}

// ListUserOrders returns a user's most recent orders at one tenant, newest first.
// Items are not loaded.
func (s *SQLiteStore) ListUserOrders(ctx context.Context, userID, tenantID string, limit int) ([]*Order, error) {
	if limit <= 0 {
		limit = 5
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = ? AND tenant_id = ?
		ORDER BY created_at DESC, number DESC
		LIMIT ?
	`, userID, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying user orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return orders, nil
}

// TransitionOrder moves an order from tr.From to tr.To and appends the audit event,
// both in one transaction. It reports false without error when the persisted status
// no longer equals tr.From, so a racing or duplicated request changes nothing.
func (s *SQLiteStore) TransitionOrder(ctx context.Context, tr OrderTransition) (bool, error) {
	if tr.At.IsZero() {
		tr.At = time.Now()
	}

	applied := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status = ?,
				processed_by = ?,
				cancel_reason = CASE WHEN ? = 'cancelled' THEN ? ELSE cancel_reason END,
				version = version + 1,
				updated_at = ?
			WHERE id = ? AND status = ?
		`, tr.To, tr.Actor, tr.To, tr.Comment, formatTime(tr.At), tr.OrderID, tr.From)
		if err != nil {
			return fmt.Errorf("updating order status: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("getting rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return nil
		}

		applied = true
		return appendOrderEvent(ctx, tx, &OrderStatusEvent{
			OrderID:   tr.OrderID,
			Status:    tr.To,
			Actor:     tr.Actor,
			Comment:   tr.Comment,
			CreatedAt: tr.At,
		})
	})
	if err != nil {
		return false, err
	}

	if applied {
		s.logger.Debug("order transitioned", "id", tr.OrderID, "from", tr.From, "to", tr.To, "actor", tr.Actor)
	}
	return applied, nil
}

// SetOrderAnnouncement stores where the operator announcement for an order was posted
func (s *SQLiteStore) SetOrderAnnouncement(ctx context.Context, orderID string, chatID int64, messageID int) error {
	err := s.execAffectingOne(ctx, `
		UPDATE orders SET announce_chat_id = ?, announce_message_id = ?, updated_at = ? WHERE id = ?
	`, chatID, messageID, formatTime(time.Now()), orderID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("setting order announcement: %w", err)
	}
	return err
}

// ListOrderEvents returns an order's audit trail, oldest first
func (s *SQLiteStore) ListOrderEvents(ctx context.Context, orderID string) ([]*OrderStatusEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, status, actor, comment, created_at
		FROM order_status_history
		WHERE order_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("querying order events: %w", err)
	}
	defer rows.Close()

	var events []*OrderStatusEvent
	for rows.Next() {
		var evt OrderStatusEvent
		var createdAtStr string
		if err := rows.Scan(&evt.ID, &evt.OrderID, &evt.Status, &evt.Actor, &evt.Comment, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning order event: %w", err)
		}
		if evt.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		events = append(events, &evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order events: %w", err)
	}
	return events, nil
}
