// ABOUTME: Tests for SQLite store setup, tenants and customer accounts
// ABOUTME: Each test runs against a fresh database file in a temp directory

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/storefront-gateway/internal/geofence"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedTenant(t *testing.T, s *SQLiteStore, id string) *Tenant {
	t.Helper()

	tenant := &Tenant{
		ID:             id,
		Name:           "Tenant " + id,
		BotToken:       "token-" + id,
		OperatorChatID: -100,
		OpenTime:       "09:00",
		CloseTime:      "22:00",
		Timezone:       "Asia/Tashkent",
		Active:         true,
		DeliveryZone: geofence.Polygon{
			{Lat: 41.0, Lng: 69.0},
			{Lat: 41.0, Lng: 70.0},
			{Lat: 42.0, Lng: 70.0},
		},
	}
	require.NoError(t, s.UpsertTenant(context.Background(), tenant))
	return tenant
}

func seedUser(t *testing.T, s *SQLiteStore, telegramID int64, tenantID string) *User {
	t.Helper()

	user := &User{
		TelegramID: telegramID,
		Username:   fmt.Sprintf("user_%d", telegramID),
		FullName:   "Customer",
		Phone:      "+998900000000",
		Active:     true,
	}
	require.NoError(t, s.RegisterUser(context.Background(), user, tenantID))
	return user
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestNewSQLiteStore_ReopenRunsMigrationsIdempotently(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestUpsertAndGetTenant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seeded := seedTenant(t, s, "pizza")

	got, err := s.GetTenant(ctx, "pizza")
	require.NoError(t, err)
	assert.Equal(t, seeded.Name, got.Name)
	assert.Equal(t, int64(-100), got.OperatorChatID)
	assert.Equal(t, seeded.DeliveryZone, got.DeliveryZone)
	assert.True(t, got.Active)
	assert.Equal(t, "Asia/Tashkent", got.Location().String())

	got.Name = "Renamed"
	require.NoError(t, s.UpsertTenant(ctx, got))

	again, err := s.GetTenant(ctx, "pizza")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", again.Name)
}

func TestGetTenant_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetTenant(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncTenants_DeactivatesRemoved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedTenant(t, s, "a")
	seedTenant(t, s, "b")

	require.NoError(t, s.SyncTenants(ctx, []*Tenant{{ID: "a", Name: "A", Active: true}}))

	active, err := s.ListTenants(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].ID)

	all, err := s.ListTenants(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSyncTenants_EmptyDeactivatesAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedTenant(t, s, "a")
	require.NoError(t, s.SyncTenants(ctx, nil))

	active, err := s.ListTenants(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestTenant_LocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, "UTC", (&Tenant{}).Location().String())
	assert.Equal(t, "UTC", (&Tenant{Timezone: "Nowhere/City"}).Location().String())
}

func TestRegisterUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTenant(t, s, "pizza")

	user := &User{
		TelegramID:   42,
		Username:     "alice",
		FullName:     "Alice",
		Phone:        "+998901112233",
		PasswordHash: "hash",
		Active:       true,
		LastLocation: &geofence.Point{Lat: 41.3, Lng: 69.2},
	}
	require.NoError(t, s.RegisterUser(ctx, user, "pizza"))
	assert.NotEmpty(t, user.ID)

	got, err := s.GetUserByTelegramID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "pizza", got.ActiveTenantID)
	require.NotNil(t, got.LastLocation)
	assert.InDelta(t, 41.3, got.LastLocation.Lat, 1e-9)

	audience, err := s.ListAudience(ctx, "pizza")
	require.NoError(t, err)
	assert.Equal(t, []Recipient{{UserID: user.ID, ChatID: 42}}, audience)
}

func TestRegisterUser_DuplicateTelegramID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTenant(t, s, "pizza")

	require.NoError(t, s.RegisterUser(ctx, &User{TelegramID: 1, Username: "one", Active: true}, "pizza"))
	err := s.RegisterUser(ctx, &User{TelegramID: 1, Username: "other", Active: true}, "pizza")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegisterUser_RollsBackOnBadTenant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.RegisterUser(ctx, &User{TelegramID: 5, Username: "five", Active: true}, "missing")
	require.Error(t, err)

	_, err = s.GetUserByTelegramID(ctx, 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserProfileUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTenant(t, s, "pizza")
	seedTenant(t, s, "sushi")
	user := seedUser(t, s, 7, "pizza")

	require.NoError(t, s.UpdateUserName(ctx, user.ID, "New Name"))
	require.NoError(t, s.UpdateUserPhone(ctx, user.ID, "+998907654321"))
	require.NoError(t, s.SetPasswordHash(ctx, user.ID, "new-hash"))
	require.NoError(t, s.SetActiveTenant(ctx, user.ID, "sushi"))
	require.NoError(t, s.SetLastLocation(ctx, user.ID, geofence.Point{Lat: 1, Lng: 2}))
	require.NoError(t, s.RecordProfileChange(ctx, &ProfileChange{
		UserID: user.ID, Field: "full_name", OldValue: "Customer", NewValue: "New Name",
	}))

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.FullName)
	assert.Equal(t, "+998907654321", got.Phone)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Equal(t, "sushi", got.ActiveTenantID)
	assert.Equal(t, &geofence.Point{Lat: 1, Lng: 2}, got.LastLocation)

	assert.ErrorIs(t, s.UpdateUserName(ctx, "nobody", "x"), ErrNotFound)
}

func TestLocalePreferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	locale, err := s.GetLocale(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, locale)

	require.NoError(t, s.SetLocale(ctx, 99, "ru"))
	require.NoError(t, s.SetLocale(ctx, 99, "uz"))

	locale, err = s.GetLocale(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, "uz", locale)
}

func TestCreateFeedback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTenant(t, s, "pizza")
	user := seedUser(t, s, 7, "pizza")

	fb := &Feedback{TenantID: "pizza", UserID: user.ID, Type: FeedbackComplaint, Message: "cold"}
	require.NoError(t, s.CreateFeedback(ctx, fb))
	assert.NotEmpty(t, fb.ID)

	err := s.CreateFeedback(ctx, &Feedback{TenantID: "pizza", UserID: user.ID, Type: "rant", Message: "x"})
	assert.Error(t, err, "unknown feedback types are rejected")
}

func TestLeases(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := mustTime(t, "2025-03-01T10:00:00Z")

	ok, err := s.AcquireLease(ctx, "broadcast", "a", time.Minute, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AcquireLease(ctx, "broadcast", "b", time.Minute, now.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, ok, "lease held by a")

	ok, err = s.AcquireLease(ctx, "broadcast", "a", time.Minute, now.Add(30*time.Second))
	require.NoError(t, err)
	assert.True(t, ok, "holder renews")

	ok, err = s.AcquireLease(ctx, "broadcast", "b", time.Minute, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok, "expired lease is taken over")

	require.NoError(t, s.ReleaseLease(ctx, "broadcast", "b"))
	ok, err = s.AcquireLease(ctx, "broadcast", "a", time.Minute, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}
