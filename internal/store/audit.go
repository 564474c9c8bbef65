// ABOUTME: Admin audit log recording operator actions taken through the admin API
// ABOUTME: Keeps who reloaded tenants, moved orders or sent and retracted broadcasts

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction names an auditable admin action.
type AuditAction string

const (
	AuditReloadTenants    AuditAction = "reload_tenants"
	AuditAnnounceOrder    AuditAction = "announce_order"
	AuditTransitionOrder  AuditAction = "transition_order"
	AuditSendBroadcast    AuditAction = "send_broadcast"
	AuditRetractBroadcast AuditAction = "retract_broadcast"
)

// AuditEntry is one admin audit log row.
type AuditEntry struct {
	ID         string
	Actor      string
	Action     AuditAction
	TargetType string // "tenants", "order", "broadcast"
	TargetID   string
	Timestamp  time.Time
	Detail     map[string]any
}

// AuditFilter narrows ListAuditLog. Nil fields match everything.
type AuditFilter struct {
	Since    *time.Time
	Actor    *string
	Action   *AuditAction
	TargetID *string
	Limit    int // default 100, max 1000
}

// AppendAuditLog appends a new entry, filling in ID and Timestamp when unset.
func (s *SQLiteStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var detailJSON *string
	if e.Detail != nil {
		data, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
		str := string(data)
		detailJSON = &str
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, actor, action, target_type, target_id, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Actor,
		string(e.Action),
		e.TargetType,
		e.TargetID,
		formatTime(e.Timestamp),
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit log",
		"id", e.ID,
		"actor", e.Actor,
		"action", e.Action,
		"target", e.TargetType+"/"+e.TargetID,
	)
	return nil
}

func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

func scanAuditEntry(scanner interface{ Scan(dest ...any) error }) (*AuditEntry, error) {
	var e AuditEntry
	var action, ts string
	var detailJSON *string

	if err := scanner.Scan(&e.ID, &e.Actor, &action, &e.TargetType, &e.TargetID, &ts, &detailJSON); err != nil {
		return nil, fmt.Errorf("scanning audit entry: %w", err)
	}

	e.Action = AuditAction(action)
	var err error
	e.Timestamp, err = parseTime(ts)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}

	if detailJSON != nil {
		if err := json.Unmarshal([]byte(*detailJSON), &e.Detail); err != nil {
			return nil, fmt.Errorf("unmarshaling detail: %w", err)
		}
	}
	return &e, nil
}

const auditLogQuery = `
	SELECT id, actor, action, target_type, target_id, ts, detail_json
	FROM audit_log
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR actor = ?)
	  AND (? IS NULL OR action = ?)
	  AND (? IS NULL OR target_id = ?)
	ORDER BY ts DESC, rowid DESC
	LIMIT ?
`

// ListAuditLog returns entries matching the filter, newest first.
func (s *SQLiteStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]*AuditEntry, error) {
	var since, action *string
	if f.Since != nil {
		v := formatTime(*f.Since)
		since = &v
	}
	if f.Action != nil {
		v := string(*f.Action)
		action = &v
	}

	rows, err := s.db.QueryContext(ctx, auditLogQuery,
		since, since,
		f.Actor, f.Actor,
		action, action,
		f.TargetID, f.TargetID,
		normalizeAuditLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []*AuditEntry{}
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}
