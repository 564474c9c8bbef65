// ABOUTME: Scheduled broadcast, fan-out history and sent-message persistence
// ABOUTME: Also resolves a tenant's de-duplicated broadcast audience

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

func encodeWeekdays(days []time.Weekday) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(s string) ([]time.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("invalid weekday %q", part)
		}
		days = append(days, time.Weekday(n))
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days, nil
}

// CreateScheduledBroadcast inserts a broadcast job
func (s *SQLiteStore) CreateScheduledBroadcast(ctx context.Context, b *ScheduledBroadcast) error {
	if b.ID == "" {
		b.ID = newID()
	}
	if b.Recurrence == "" {
		b.Recurrence = RecurrenceNone
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now

	var lastRun any
	if b.LastRunAt != nil {
		lastRun = formatTime(*b.LastRunAt)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_broadcasts (id, tenant_id, message, image_url, recurrence, weekdays,
			scheduled_at, last_run_at, is_active, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID,
		b.TenantID,
		b.Message,
		b.ImageURL,
		b.Recurrence,
		encodeWeekdays(b.Weekdays),
		formatTime(b.ScheduledAt),
		lastRun,
		boolInt(b.Active),
		b.CreatedBy,
		formatTime(b.CreatedAt),
		formatTime(b.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting scheduled broadcast: %w", err)
	}
	return nil
}

const broadcastColumns = `id, tenant_id, message, image_url, recurrence, weekdays, scheduled_at,
	last_run_at, is_active, created_by, created_at, updated_at`

func scanBroadcast(scanner interface{ Scan(dest ...any) error }) (*ScheduledBroadcast, error) {
	var b ScheduledBroadcast
	var weekdays, scheduledAtStr, createdAtStr, updatedAtStr string
	var lastRun sql.NullString
	var active int

	if err := scanner.Scan(
		&b.ID,
		&b.TenantID,
		&b.Message,
		&b.ImageURL,
		&b.Recurrence,
		&weekdays,
		&scheduledAtStr,
		&lastRun,
		&active,
		&b.CreatedBy,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return nil, err
	}
	b.Active = active == 1

	var err error
	if b.Weekdays, err = decodeWeekdays(weekdays); err != nil {
		return nil, err
	}
	if b.ScheduledAt, err = parseTime(scheduledAtStr); err != nil {
		return nil, fmt.Errorf("parsing scheduled_at: %w", err)
	}
	if b.LastRunAt, err = parseNullTime(lastRun); err != nil {
		return nil, fmt.Errorf("parsing last_run_at: %w", err)
	}
	if b.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if b.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &b, nil
}

// GetScheduledBroadcast retrieves a broadcast job by ID.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetScheduledBroadcast(ctx context.Context, id string) (*ScheduledBroadcast, error) {
	b, err := scanBroadcast(s.db.QueryRowContext(ctx,
		`SELECT `+broadcastColumns+` FROM scheduled_broadcasts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying scheduled broadcast: %w", err)
	}
	return b, nil
}

// ListDueBroadcasts returns active jobs of active tenants whose due instant has
// passed and has not been run yet.
func (s *SQLiteStore) ListDueBroadcasts(ctx context.Context, now time.Time) ([]*ScheduledBroadcast, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.tenant_id, b.message, b.image_url, b.recurrence, b.weekdays, b.scheduled_at,
			b.last_run_at, b.is_active, b.created_by, b.created_at, b.updated_at
		FROM scheduled_broadcasts b
		JOIN tenants t ON t.id = b.tenant_id
		WHERE b.is_active = 1
			AND t.is_active = 1
			AND b.scheduled_at <= ?
			AND (b.last_run_at IS NULL OR b.last_run_at < b.scheduled_at)
		ORDER BY b.scheduled_at ASC
	`, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("querying due broadcasts: %w", err)
	}
	defer rows.Close()

	var due []*ScheduledBroadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning scheduled broadcast: %w", err)
		}
		due = append(due, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scheduled broadcasts: %w", err)
	}
	return due, nil
}

// CompleteBroadcastRun records a finished run. A nil next deactivates the job,
// otherwise it is rescheduled to *next.
func (s *SQLiteStore) CompleteBroadcastRun(ctx context.Context, id string, ranAt time.Time, next *time.Time) error {
	var err error
	if next != nil {
		err = s.execAffectingOne(ctx, `
			UPDATE scheduled_broadcasts SET last_run_at = ?, scheduled_at = ?, updated_at = ? WHERE id = ?
		`, formatTime(ranAt), formatTime(*next), formatTime(time.Now()), id)
	} else {
		err = s.execAffectingOne(ctx, `
			UPDATE scheduled_broadcasts SET last_run_at = ?, is_active = 0, updated_at = ? WHERE id = ?
		`, formatTime(ranAt), formatTime(time.Now()), id)
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("completing broadcast run: %w", err)
	}
	return err
}

// CreateBroadcastHistory opens the record of one fan-out run
func (s *SQLiteStore) CreateBroadcastHistory(ctx context.Context, h *BroadcastHistory) error {
	if h.ID == "" {
		h.ID = newID()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO broadcast_history (id, tenant_id, broadcast_id, message, image_url, sent_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, h.ID, h.TenantID, nullString(h.BroadcastID), h.Message, h.ImageURL, h.SentBy, formatTime(h.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting broadcast history: %w", err)
	}
	return nil
}

// FinishBroadcastHistory stores the outcome counters of a run
func (s *SQLiteStore) FinishBroadcastHistory(ctx context.Context, id string, recipients, delivered int, failed bool) error {
	err := s.execAffectingOne(ctx, `
		UPDATE broadcast_history SET recipients = ?, delivered = ?, failed = ? WHERE id = ?
	`, recipients, delivered, boolInt(failed), id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("finishing broadcast history: %w", err)
	}
	return err
}

// GetBroadcastHistory retrieves one run record.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetBroadcastHistory(ctx context.Context, id string) (*BroadcastHistory, error) {
	var h BroadcastHistory
	var broadcastID, retractedAt sql.NullString
	var failed int
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, broadcast_id, message, image_url, sent_by, recipients, delivered,
			failed, retracted_at, created_at
		FROM broadcast_history WHERE id = ?
	`, id).Scan(
		&h.ID,
		&h.TenantID,
		&broadcastID,
		&h.Message,
		&h.ImageURL,
		&h.SentBy,
		&h.Recipients,
		&h.Delivered,
		&failed,
		&retractedAt,
		&createdAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying broadcast history: %w", err)
	}

	h.BroadcastID = broadcastID.String
	h.Failed = failed == 1
	if h.RetractedAt, err = parseNullTime(retractedAt); err != nil {
		return nil, fmt.Errorf("parsing retracted_at: %w", err)
	}
	h.Retracted = h.RetractedAt != nil
	if h.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &h, nil
}

// RecordSentMessage stores one delivered message id for later retraction
func (s *SQLiteStore) RecordSentMessage(ctx context.Context, msg *SentMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO broadcast_sent_messages (history_id, chat_id, message_id)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, msg.HistoryID, msg.ChatID, msg.MessageID)
	if err != nil {
		return fmt.Errorf("inserting sent message: %w", err)
	}
	return nil
}

// ListSentMessages returns every message delivered by one run
func (s *SQLiteStore) ListSentMessages(ctx context.Context, historyID string) ([]*SentMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT history_id, chat_id, message_id FROM broadcast_sent_messages
		WHERE history_id = ? ORDER BY rowid
	`, historyID)
	if err != nil {
		return nil, fmt.Errorf("querying sent messages: %w", err)
	}
	defer rows.Close()

	var msgs []*SentMessage
	for rows.Next() {
		var m SentMessage
		if err := rows.Scan(&m.HistoryID, &m.ChatID, &m.MessageID); err != nil {
			return nil, fmt.Errorf("scanning sent message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sent messages: %w", err)
	}
	return msgs, nil
}

// MarkRetracted flags a run as retracted
func (s *SQLiteStore) MarkRetracted(ctx context.Context, historyID string, at time.Time) error {
	err := s.execAffectingOne(ctx,
		`UPDATE broadcast_history SET retracted_at = ? WHERE id = ?`, formatTime(at), historyID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("marking broadcast retracted: %w", err)
	}
	return err
}

// ListAudience returns the active customers of a tenant: those currently shopping
// there, those who ordered there, and those linked to it, each once.
func (s *SQLiteStore) ListAudience(ctx context.Context, tenantID string) ([]Recipient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT u.id, u.telegram_id
		FROM users u
		WHERE u.is_active = 1
			AND (
				u.active_tenant_id = ?
				OR u.id IN (SELECT user_id FROM orders WHERE tenant_id = ?)
				OR u.id IN (SELECT user_id FROM user_tenants WHERE tenant_id = ?)
			)
		ORDER BY u.created_at, u.id
	`, tenantID, tenantID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying audience: %w", err)
	}
	defer rows.Close()

	var audience []Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.UserID, &r.ChatID); err != nil {
			return nil, fmt.Errorf("scanning recipient: %w", err)
		}
		audience = append(audience, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audience: %w", err)
	}
	return audience, nil
}

// AcquireLease takes or renews a named lease for holder until now+ttl.
// It reports false when another holder's lease has not expired yet.
func (s *SQLiteStore) AcquireLease(ctx context.Context, name, holder string, ttl time.Duration, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO leases (name, holder, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE leases.holder = excluded.holder OR leases.expires_at <= ?
	`, name, holder, formatTime(now.Add(ttl)), formatTime(now))
	if err != nil {
		return false, fmt.Errorf("acquiring lease %s: %w", name, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ReleaseLease gives up a lease if holder still owns it
func (s *SQLiteStore) ReleaseLease(ctx context.Context, name, holder string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM leases WHERE name = ? AND holder = ?`, name, holder); err != nil {
		return fmt.Errorf("releasing lease %s: %w", name, err)
	}
	return nil
}
