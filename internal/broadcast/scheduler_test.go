// ABOUTME: Tests for the broadcast scheduler against a real SQLite store and fake transport
// ABOUTME: Covers single firing per due instant, rescheduling, guards, immediate sends and retraction

package broadcast

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/2389/storefront-gateway/internal/store"
	"github.com/2389/storefront-gateway/internal/telegram"
)

type fakeSessions struct {
	clients map[string]*telegram.FakeClient
}

func (f *fakeSessions) Client(tenantID string) (telegram.Client, error) {
	c, ok := f.clients[tenantID]
	if !ok {
		return nil, errors.New("no session")
	}
	return c, nil
}

type fixture struct {
	store     *store.SQLiteStore
	client    *telegram.FakeClient
	sessions  *fakeSessions
	scheduler *Scheduler
	tenant    *store.Tenant
	now       time.Time
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "broadcast.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tenant := &store.Tenant{ID: "plov", Name: "Plov & Co", BotToken: "token-plov", Active: true}
	require.NoError(t, st.UpsertTenant(ctx, tenant))

	for i, active := range []bool{true, true, false} {
		user := &store.User{
			TelegramID: int64(1001 + i),
			Username:   "customer" + string(rune('a'+i)),
			Active:     active,
		}
		require.NoError(t, st.RegisterUser(ctx, user, tenant.ID))
	}

	f := &fixture{
		store:    st,
		client:   telegram.NewFakeClient(),
		tenant:   tenant,
		now:      time.Date(2026, 3, 16, 9, 0, 30, 0, time.UTC),
		sessions: &fakeSessions{clients: map[string]*telegram.FakeClient{}},
	}
	f.sessions.clients[tenant.ID] = f.client
	f.scheduler = NewScheduler(cfg, st, f.sessions, nil,
		WithClock(func() time.Time { return f.now }),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
	)
	return f
}

func (f *fixture) schedule(t *testing.T, recurrence string, at time.Time) *store.ScheduledBroadcast {
	t.Helper()
	b := &store.ScheduledBroadcast{
		TenantID:    f.tenant.ID,
		Message:     "**Sale** today",
		Recurrence:  recurrence,
		ScheduledAt: at,
		Active:      true,
		CreatedBy:   "admin",
	}
	require.NoError(t, f.store.CreateScheduledBroadcast(context.Background(), b))
	return b
}

func (f *fixture) reload(t *testing.T, id string) *store.ScheduledBroadcast {
	t.Helper()
	b, err := f.store.GetScheduledBroadcast(context.Background(), id)
	require.NoError(t, err)
	return b
}

func TestRender(t *testing.T) {
	assert.Equal(t, "📢 <b>Plov &amp; Co</b>\n\n<b>Sale</b> today", Render("Plov & Co", "**Sale** today"))
}

func TestRunOnce_FiresOnceAndReschedulesDaily(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	at := time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)
	b := f.schedule(t, store.RecurrenceDaily, at)

	fired, err := f.scheduler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	sent := f.client.Messages()
	require.Len(t, sent, 2, "blocked customers are skipped")
	assert.Equal(t, "📢 <b>Plov &amp; Co</b>\n\n<b>Sale</b> today", sent[0].Text)

	got := f.reload(t, b.ID)
	assert.True(t, got.Active)
	assert.True(t, at.AddDate(0, 0, 1).Equal(got.ScheduledAt), got.ScheduledAt.String())
	require.NotNil(t, got.LastRunAt)

	fired, err = f.scheduler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Len(t, f.client.Messages(), 2)
}

func TestRunOnce_OneOffDeactivates(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	b := f.schedule(t, store.RecurrenceNone, f.now.Add(-time.Minute))

	fired, err := f.scheduler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.False(t, f.reload(t, b.ID).Active)

	f.now = f.now.Add(time.Hour)
	fired, err = f.scheduler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)
}

func TestRunOnce_NotDueYet(t *testing.T) {
	f := newFixture(t, Config{})
	f.schedule(t, store.RecurrenceDaily, f.now.Add(time.Hour))

	fired, err := f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Empty(t, f.client.Messages())
}

func TestRunOnce_RecipientFailureStillReschedules(t *testing.T) {
	f := newFixture(t, Config{})
	f.client.FailChats[1001] = telegram.ErrFakeForbidden
	b := f.schedule(t, store.RecurrenceWeekly, f.now.Add(-time.Minute))

	fired, err := f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Len(t, f.client.Messages(), 1)
	assert.True(t, f.reload(t, b.ID).ScheduledAt.After(f.now))
}

func TestRunOnce_NoSessionKeepsJobDue(t *testing.T) {
	f := newFixture(t, Config{})
	delete(f.sessions.clients, f.tenant.ID)
	b := f.schedule(t, store.RecurrenceDaily, f.now.Add(-time.Minute))

	fired, err := f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fired)

	got := f.reload(t, b.ID)
	assert.Nil(t, got.LastRunAt)
	assert.True(t, got.Active)
}

func TestRunOnce_SkipsWhileRunning(t *testing.T) {
	f := newFixture(t, Config{})
	f.schedule(t, store.RecurrenceNone, f.now.Add(-time.Minute))

	f.scheduler.running.Store(true)
	fired, err := f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Empty(t, f.client.Messages())

	f.scheduler.running.Store(false)
	fired, err = f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestRunOnce_LeaseHeldElsewhere(t *testing.T) {
	f := newFixture(t, Config{UseLease: true, Holder: "node-a"})
	ctx := context.Background()
	f.schedule(t, store.RecurrenceNone, f.now.Add(-time.Minute))

	held, err := f.store.AcquireLease(ctx, leaseName, "node-b", time.Minute, f.now)
	require.NoError(t, err)
	require.True(t, held)

	fired, err := f.scheduler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)

	f.now = f.now.Add(2 * time.Minute)
	fired, err = f.scheduler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestSendNow(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	history, err := f.scheduler.SendNow(ctx, f.tenant.ID, "New _menu_", "https://cdn.example/p.jpg", "ops")
	require.NoError(t, err)
	assert.Equal(t, 2, history.Recipients)
	assert.Equal(t, 2, history.Delivered)
	assert.False(t, history.Failed)

	stored, err := f.store.GetBroadcastHistory(ctx, history.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Delivered)
	assert.Equal(t, "ops", stored.SentBy)

	sent := f.client.Messages()
	require.Len(t, sent, 2)
	assert.Equal(t, "https://cdn.example/p.jpg", sent[0].PhotoURL)
	assert.Contains(t, sent[0].Text, "New <i>menu</i>")

	_, err = f.scheduler.SendNow(ctx, f.tenant.ID, "   ", "", "ops")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	delete(f.sessions.clients, f.tenant.ID)
	_, err = f.scheduler.SendNow(ctx, f.tenant.ID, "hello", "", "ops")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRetract(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	history, err := f.scheduler.SendNow(ctx, f.tenant.ID, "oops", "", "ops")
	require.NoError(t, err)

	f.client.FailChats[1002] = errors.New("message can't be deleted")
	deleted, err := f.scheduler.Retract(ctx, history.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	require.Len(t, f.client.DeletedList(), 1)
	assert.Equal(t, int64(1001), f.client.DeletedList()[0].ChatID)

	stored, err := f.store.GetBroadcastHistory(ctx, history.ID)
	require.NoError(t, err)
	assert.True(t, stored.Retracted)

	_, err = f.scheduler.Retract(ctx, history.ID)
	assert.ErrorIs(t, err, ErrAlreadyRetracted)

	_, err = f.scheduler.Retract(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t, Config{PollInterval: 10 * time.Millisecond})
	f.schedule(t, store.RecurrenceNone, f.now.Add(-time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.scheduler.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(f.client.Messages()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Len(t, f.client.Messages(), 2)
}
