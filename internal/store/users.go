// ABOUTME: Customer account persistence: registration, profile fields, locale and feedback
// ABOUTME: Registration writes the account and its tenant association in one transaction

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/2389/storefront-gateway/internal/geofence"
)

// RegisterUser creates an account, links it to tenantID and makes that tenant active.
// Returns ErrConflict if an account already exists for the platform id or username.
func (s *SQLiteStore) RegisterUser(ctx context.Context, user *User, tenantID string) error {
	if user.ID == "" {
		user.ID = newID()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.ActiveTenantID = tenantID

	var lat, lng any
	if user.LastLocation != nil {
		lat, lng = user.LastLocation.Lat, user.LastLocation.Lng
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, telegram_id, username, full_name, phone, password_hash, is_active,
				active_tenant_id, last_lat, last_lng, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			user.ID,
			user.TelegramID,
			user.Username,
			user.FullName,
			user.Phone,
			user.PasswordHash,
			boolInt(user.Active),
			nullString(tenantID),
			lat,
			lng,
			formatTime(now),
			formatTime(now),
		)
		if err != nil {
			if isConstraintViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("inserting user: %w", err)
		}
		return linkUserTenant(ctx, tx, user.ID, tenantID)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("registered user", "id", user.ID, "tenant_id", tenantID)
	return nil
}

const userColumns = `id, telegram_id, username, full_name, phone, password_hash, is_active,
	active_tenant_id, last_lat, last_lng, created_at, updated_at`

func scanUser(scanner interface{ Scan(dest ...any) error }) (*User, error) {
	var u User
	var active int
	var activeTenant sql.NullString
	var lat, lng sql.NullFloat64
	var createdAtStr, updatedAtStr string

	if err := scanner.Scan(
		&u.ID,
		&u.TelegramID,
		&u.Username,
		&u.FullName,
		&u.Phone,
		&u.PasswordHash,
		&active,
		&activeTenant,
		&lat,
		&lng,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return nil, err
	}
	u.Active = active == 1
	u.ActiveTenantID = activeTenant.String
	if lat.Valid && lng.Valid {
		u.LastLocation = &geofence.Point{Lat: lat.Float64, Lng: lng.Float64}
	}

	var err error
	if u.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if u.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &u, nil
}

// GetUser retrieves an account by ID.
// Returns ErrNotFound if the account doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// GetUserByTelegramID retrieves an account by platform user id.
// Returns ErrNotFound if the person has not registered.
func (s *SQLiteStore) GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = ?`, telegramID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by telegram id: %w", err)
	}
	return u, nil
}

// LinkUserTenant records that a user has interacted with a tenant. Linking twice is a no-op.
func (s *SQLiteStore) LinkUserTenant(ctx context.Context, userID, tenantID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return linkUserTenant(ctx, tx, userID, tenantID)
	})
}

func linkUserTenant(ctx context.Context, tx *sql.Tx, userID, tenantID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_tenants (user_id, tenant_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, tenant_id) DO NOTHING
	`, userID, tenantID, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("linking user to tenant: %w", err)
	}
	return nil
}

// SetActiveTenant changes which tenant the user is currently shopping at
func (s *SQLiteStore) SetActiveTenant(ctx context.Context, userID, tenantID string) error {
	err := s.execAffectingOne(ctx,
		`UPDATE users SET active_tenant_id = ?, updated_at = ? WHERE id = ?`,
		tenantID, formatTime(time.Now()), userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("setting active tenant: %w", err)
	}
	return err
}

// SetLastLocation stores the user's most recently shared location
func (s *SQLiteStore) SetLastLocation(ctx context.Context, userID string, point geofence.Point) error {
	err := s.execAffectingOne(ctx,
		`UPDATE users SET last_lat = ?, last_lng = ?, updated_at = ? WHERE id = ?`,
		point.Lat, point.Lng, formatTime(time.Now()), userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("setting last location: %w", err)
	}
	return err
}

// UpdateUserName replaces the account's display name
func (s *SQLiteStore) UpdateUserName(ctx context.Context, userID, fullName string) error {
	err := s.execAffectingOne(ctx,
		`UPDATE users SET full_name = ?, updated_at = ? WHERE id = ?`,
		fullName, formatTime(time.Now()), userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("updating name: %w", err)
	}
	return err
}

// UpdateUserPhone replaces the account's phone number
func (s *SQLiteStore) UpdateUserPhone(ctx context.Context, userID, phone string) error {
	err := s.execAffectingOne(ctx,
		`UPDATE users SET phone = ?, updated_at = ? WHERE id = ?`,
		phone, formatTime(time.Now()), userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("updating phone: %w", err)
	}
	return err
}

// SetPasswordHash replaces the stored credential hash, invalidating the previous one
func (s *SQLiteStore) SetPasswordHash(ctx context.Context, userID, hash string) error {
	err := s.execAffectingOne(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, formatTime(time.Now()), userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("setting password hash: %w", err)
	}
	return err
}

// RecordProfileChange appends an audit entry for a profile edit
func (s *SQLiteStore) RecordProfileChange(ctx context.Context, change *ProfileChange) error {
	if change.ID == "" {
		change.ID = newID()
	}
	if change.CreatedAt.IsZero() {
		change.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile_changes (id, user_id, field, old_value, new_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, change.ID, change.UserID, change.Field, change.OldValue, change.NewValue, formatTime(change.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting profile change: %w", err)
	}
	return nil
}

// GetLocale returns the stored locale for a platform user, or "" if none was chosen
func (s *SQLiteStore) GetLocale(ctx context.Context, telegramID int64) (string, error) {
	var locale string
	err := s.db.QueryRowContext(ctx,
		`SELECT locale FROM locale_preferences WHERE telegram_id = ?`, telegramID).Scan(&locale)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying locale: %w", err)
	}
	return locale, nil
}

// SetLocale stores a platform user's locale choice
func (s *SQLiteStore) SetLocale(ctx context.Context, telegramID int64, locale string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locale_preferences (telegram_id, locale, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET locale = excluded.locale, updated_at = excluded.updated_at
	`, telegramID, locale, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("saving locale: %w", err)
	}
	return nil
}

// CreateFeedback persists one feedback message
func (s *SQLiteStore) CreateFeedback(ctx context.Context, feedback *Feedback) error {
	if feedback.ID == "" {
		feedback.ID = newID()
	}
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, tenant_id, user_id, type, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, feedback.ID, feedback.TenantID, feedback.UserID, feedback.Type, feedback.Message, formatTime(feedback.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting feedback: %w", err)
	}
	s.logger.Debug("saved feedback", "id", feedback.ID, "tenant_id", feedback.TenantID, "type", feedback.Type)
	return nil
}
