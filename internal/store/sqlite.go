// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Opens the database, creates the schema, and persists tenants and accounts

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/2389/storefront-gateway/internal/geofence"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// conditional writes rely on one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tenants (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			bot_token        TEXT NOT NULL DEFAULT '',
			operator_chat_id INTEGER NOT NULL DEFAULT 0,
			support_username TEXT NOT NULL DEFAULT '',
			delivery_zone    TEXT NOT NULL DEFAULT '[]',
			open_time        TEXT NOT NULL DEFAULT '',
			close_time       TEXT NOT NULL DEFAULT '',
			timezone         TEXT NOT NULL DEFAULT '',
			is_active        INTEGER NOT NULL DEFAULT 1,
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS users (
			id               TEXT PRIMARY KEY,
			telegram_id      INTEGER NOT NULL UNIQUE,
			username         TEXT NOT NULL UNIQUE,
			full_name        TEXT NOT NULL DEFAULT '',
			phone            TEXT NOT NULL DEFAULT '',
			password_hash    TEXT NOT NULL DEFAULT '',
			is_active        INTEGER NOT NULL DEFAULT 1,
			active_tenant_id TEXT REFERENCES tenants(id),
			last_lat         REAL,
			last_lng         REAL,
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS locale_preferences (
			telegram_id INTEGER PRIMARY KEY,
			locale      TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS user_tenants (
			user_id    TEXT NOT NULL REFERENCES users(id),
			tenant_id  TEXT NOT NULL REFERENCES tenants(id),
			created_at TEXT NOT NULL,
			PRIMARY KEY (user_id, tenant_id)
		);

		CREATE INDEX IF NOT EXISTS idx_user_tenants_tenant ON user_tenants(tenant_id);

		CREATE TABLE IF NOT EXISTS orders (
			id                  TEXT PRIMARY KEY,
			tenant_id           TEXT NOT NULL REFERENCES tenants(id),
			user_id             TEXT NOT NULL REFERENCES users(id),
			number              INTEGER NOT NULL,
			status              TEXT NOT NULL,
			total               TEXT NOT NULL DEFAULT '0',
			address             TEXT NOT NULL DEFAULT '',
			lat                 REAL,
			lng                 REAL,
			comment             TEXT NOT NULL DEFAULT '',
			cancel_reason       TEXT NOT NULL DEFAULT '',
			processed_by        TEXT NOT NULL DEFAULT '',
			announce_chat_id    INTEGER NOT NULL DEFAULT 0,
			announce_message_id INTEGER NOT NULL DEFAULT 0,
			created_at          TEXT NOT NULL,
			updated_at          TEXT NOT NULL,

			CHECK (status IN ('new', 'preparing', 'delivering', 'delivered', 'cancelled'))
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_tenant_number ON orders(tenant_id, number);
		CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at);

		CREATE TABLE IF NOT EXISTS order_items (
			id       TEXT PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id),
			name     TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);

		CREATE TABLE IF NOT EXISTS order_status_history (
			id         TEXT PRIMARY KEY,
			order_id   TEXT NOT NULL REFERENCES orders(id),
			status     TEXT NOT NULL,
			actor      TEXT NOT NULL,
			comment    TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_order_status_history_order ON order_status_history(order_id, created_at);

		CREATE TABLE IF NOT EXISTS feedback (
			id         TEXT PRIMARY KEY,
			tenant_id  TEXT NOT NULL REFERENCES tenants(id),
			user_id    TEXT NOT NULL REFERENCES users(id),
			type       TEXT NOT NULL,
			message    TEXT NOT NULL,
			created_at TEXT NOT NULL,

			CHECK (type IN ('complaint', 'suggestion', 'question', 'other'))
		);

		CREATE TABLE IF NOT EXISTS profile_changes (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			field      TEXT NOT NULL,
			old_value  TEXT NOT NULL,
			new_value  TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS scheduled_broadcasts (
			id           TEXT PRIMARY KEY,
			tenant_id    TEXT NOT NULL REFERENCES tenants(id),
			message      TEXT NOT NULL,
			image_url    TEXT NOT NULL DEFAULT '',
			recurrence   TEXT NOT NULL DEFAULT 'none',
			weekdays     TEXT NOT NULL DEFAULT '',
			scheduled_at TEXT NOT NULL,
			last_run_at  TEXT,
			is_active    INTEGER NOT NULL DEFAULT 1,
			created_by   TEXT NOT NULL DEFAULT '',
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL,

			CHECK (recurrence IN ('none', 'daily', 'weekly', 'custom'))
		);

		CREATE INDEX IF NOT EXISTS idx_scheduled_broadcasts_due ON scheduled_broadcasts(is_active, scheduled_at);

		CREATE TABLE IF NOT EXISTS broadcast_history (
			id           TEXT PRIMARY KEY,
			tenant_id    TEXT NOT NULL REFERENCES tenants(id),
			broadcast_id TEXT,
			message      TEXT NOT NULL,
			image_url    TEXT NOT NULL DEFAULT '',
			sent_by      TEXT NOT NULL DEFAULT '',
			recipients   INTEGER NOT NULL DEFAULT 0,
			delivered    INTEGER NOT NULL DEFAULT 0,
			failed       INTEGER NOT NULL DEFAULT 0,
			retracted_at TEXT,
			created_at   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS broadcast_sent_messages (
			history_id TEXT NOT NULL REFERENCES broadcast_history(id),
			chat_id    INTEGER NOT NULL,
			message_id INTEGER NOT NULL,
			PRIMARY KEY (history_id, chat_id, message_id)
		);

		CREATE TABLE IF NOT EXISTS leases (
			name       TEXT PRIMARY KEY,
			holder     TEXT NOT NULL,
			expires_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS audit_log (
			id          TEXT PRIMARY KEY,
			actor       TEXT NOT NULL,
			action      TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_id   TEXT NOT NULL,
			ts          TEXT NOT NULL,
			detail_json TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_audit_log_ts ON audit_log(ts);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			table:  "orders",
			column: "version",
			apply:  `ALTER TABLE orders ADD COLUMN version INTEGER NOT NULL DEFAULT 0`,
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking %s.%s: %w", m.table, m.column, err)
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func newID() string {
	return uuid.New().String()
}

// execAffectingOne runs an update and maps zero affected rows to ErrNotFound
func (s *SQLiteStore) execAffectingOne(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// withTx runs fn in a transaction, rolling back when fn fails
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// UpsertTenant creates or replaces a tenant's configuration
func (s *SQLiteStore) UpsertTenant(ctx context.Context, tenant *Tenant) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertTenant(ctx, tx, tenant)
	})
}

func upsertTenant(ctx context.Context, tx *sql.Tx, tenant *Tenant) error {
	if tenant.ID == "" {
		return errors.New("tenant id is required")
	}
	zone, err := json.Marshal(tenant.DeliveryZone.Pairs())
	if err != nil {
		return fmt.Errorf("encoding delivery zone: %w", err)
	}

	now := time.Now()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tenants (id, name, bot_token, operator_chat_id, support_username, delivery_zone,
			open_time, close_time, timezone, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			bot_token = excluded.bot_token,
			operator_chat_id = excluded.operator_chat_id,
			support_username = excluded.support_username,
			delivery_zone = excluded.delivery_zone,
			open_time = excluded.open_time,
			close_time = excluded.close_time,
			timezone = excluded.timezone,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`,
		tenant.ID,
		tenant.Name,
		tenant.BotToken,
		tenant.OperatorChatID,
		tenant.SupportUsername,
		string(zone),
		tenant.OpenTime,
		tenant.CloseTime,
		tenant.Timezone,
		boolInt(tenant.Active),
		formatTime(tenant.CreatedAt),
		formatTime(tenant.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting tenant %s: %w", tenant.ID, err)
	}
	return nil
}

// SyncTenants upserts the given tenants and deactivates every tenant not listed.
func (s *SQLiteStore) SyncTenants(ctx context.Context, tenants []*Tenant) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		keep := make([]any, 0, len(tenants))
		for _, t := range tenants {
			if err := upsertTenant(ctx, tx, t); err != nil {
				return err
			}
			keep = append(keep, t.ID)
		}

		query := `UPDATE tenants SET is_active = 0, updated_at = ? WHERE is_active = 1`
		args := []any{formatTime(time.Now())}
		if len(keep) > 0 {
			query += ` AND id NOT IN (?` + strings.Repeat(", ?", len(keep)-1) + `)`
			args = append(args, keep...)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("deactivating removed tenants: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("synced tenants", "count", len(tenants))
	return nil
}

const tenantColumns = `id, name, bot_token, operator_chat_id, support_username, delivery_zone,
	open_time, close_time, timezone, is_active, created_at, updated_at`

func scanTenant(scanner interface{ Scan(dest ...any) error }) (*Tenant, error) {
	var t Tenant
	var zone, createdAtStr, updatedAtStr string
	var active int

	if err := scanner.Scan(
		&t.ID,
		&t.Name,
		&t.BotToken,
		&t.OperatorChatID,
		&t.SupportUsername,
		&zone,
		&t.OpenTime,
		&t.CloseTime,
		&t.Timezone,
		&active,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return nil, err
	}
	t.Active = active == 1

	var pairs [][]float64
	if err := json.Unmarshal([]byte(zone), &pairs); err != nil {
		return nil, fmt.Errorf("decoding delivery zone: %w", err)
	}
	t.DeliveryZone = geofence.PolygonFromPairs(pairs)

	var err error
	if t.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &t, nil
}

// GetTenant retrieves a tenant by ID.
// Returns ErrNotFound if the tenant doesn't exist.
func (s *SQLiteStore) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id)
	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tenant: %w", err)
	}
	return t, nil
}

// ListTenants returns tenants ordered by id
func (s *SQLiteStore) ListTenants(ctx context.Context, activeOnly bool) ([]*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenants: %w", err)
	}
	return tenants, nil
}
