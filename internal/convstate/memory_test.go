// ABOUTME: Tests for the in-memory conversation state store and cooldowns
// ABOUTME: Uses an injected clock to cover TTL expiry and size-bound eviction

package convstate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour, 10, 0)
	defer s.Close()

	key := DialogueKey("t1", 100, 7)
	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, key, NewState(TagAwaitingName).With("phone", "+998901234567")))

	got, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TagAwaitingName, got.Tag)
	assert.Equal(t, "+998901234567", got.Value("phone"))

	require.NoError(t, s.Delete(ctx, key))
	_, ok, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting twice is fine
	require.NoError(t, s.Delete(ctx, key))
}

func TestMemoryStore_NamespacesAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour, 10, 0)
	defer s.Close()

	require.NoError(t, s.Put(ctx, DialogueKey("t1", 1, 1), NewState(TagAwaitingContact)))
	require.NoError(t, s.Put(ctx, LanguageKey("t1", 1, 1), NewState(TagAwaitingLanguage)))

	d, ok, _ := s.Get(ctx, DialogueKey("t1", 1, 1))
	require.True(t, ok)
	l, ok, _ := s.Get(ctx, LanguageKey("t1", 1, 1))
	require.True(t, ok)
	assert.Equal(t, TagAwaitingContact, d.Tag)
	assert.Equal(t, TagAwaitingLanguage, l.Tag)

	_, ok, _ = s.Get(ctx, DialogueKey("t2", 1, 1))
	assert.False(t, ok, "tenants must not share state")
}

func TestMemoryStore_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryStore(10*time.Minute, 10, 0, WithClock(clock.Now))
	defer s.Close()

	key := DialogueKey("t1", 1, 1)
	require.NoError(t, s.Put(ctx, key, NewState(TagAwaitingName)))

	clock.Advance(9 * time.Minute)
	_, ok, _ := s.Get(ctx, key)
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok, _ = s.Get(ctx, key)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_PutRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryStore(10*time.Minute, 10, 0, WithClock(clock.Now))
	defer s.Close()

	key := DialogueKey("t1", 1, 1)
	require.NoError(t, s.Put(ctx, key, NewState(TagAwaitingContact)))
	clock.Advance(8 * time.Minute)
	require.NoError(t, s.Put(ctx, key, NewState(TagAwaitingName)))
	clock.Advance(8 * time.Minute)

	got, ok, _ := s.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, TagAwaitingName, got.Tag)
}

func TestMemoryStore_EvictsOldestWhenFull(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryStore(time.Hour, 2, 0, WithClock(clock.Now))
	defer s.Close()

	require.NoError(t, s.Put(ctx, DialogueKey("t", 1, 1), NewState(TagAwaitingName)))
	clock.Advance(time.Second)
	require.NoError(t, s.Put(ctx, DialogueKey("t", 2, 2), NewState(TagAwaitingName)))
	clock.Advance(time.Second)
	// rewrite the first so the second becomes oldest
	require.NoError(t, s.Put(ctx, DialogueKey("t", 1, 1), NewState(TagAwaitingLocation)))
	require.NoError(t, s.Put(ctx, DialogueKey("t", 3, 3), NewState(TagAwaitingName)))

	assert.Equal(t, 2, s.Len())
	_, ok, _ := s.Get(ctx, DialogueKey("t", 2, 2))
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, DialogueKey("t", 1, 1))
	assert.True(t, ok)
	_, ok, _ = s.Get(ctx, DialogueKey("t", 3, 3))
	assert.True(t, ok)
}

func TestMemoryStore_SweepDropsExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryStore(time.Minute, 10, 0, WithClock(clock.Now))
	defer s.Close()

	require.NoError(t, s.Put(ctx, DialogueKey("t", 1, 1), NewState(TagAwaitingName)))
	clock.Advance(30 * time.Second)
	require.NoError(t, s.Put(ctx, DialogueKey("t", 2, 2), NewState(TagAwaitingName)))
	clock.Advance(40 * time.Second)

	s.sweep()
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	s := NewMemoryStore(time.Minute, 10, time.Millisecond)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestState_WithDoesNotMutateOriginal(t *testing.T) {
	base := NewState(TagAwaitingName).With("a", "1")
	next := base.With("b", "2")

	assert.Equal(t, "", base.Value("b"))
	assert.Equal(t, "2", next.Value("b"))
	assert.Equal(t, "1", next.Value("a"))
}

func TestTag_Valid(t *testing.T) {
	for _, tag := range AllTags() {
		assert.True(t, tag.Valid(), tag)
	}
	assert.False(t, Tag("awaiting_something").Valid())
}

func TestMemoryCooldowns(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryCooldowns(clock.Now)

	left, err := c.Remaining(ctx, "reset:t1:7")
	require.NoError(t, err)
	assert.Zero(t, left)

	require.NoError(t, c.Start(ctx, "reset:t1:7", 5*time.Minute))
	clock.Advance(2 * time.Minute)

	left, err = c.Remaining(ctx, "reset:t1:7")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Minute, left)

	other, _ := c.Remaining(ctx, "reset:t2:7")
	assert.Zero(t, other, "windows are per key")

	clock.Advance(3 * time.Minute)
	left, _ = c.Remaining(ctx, "reset:t1:7")
	assert.Zero(t, left)
}

func TestMemoryCooldowns_PrunesFinishedWindows(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryCooldowns(clock.Now)

	require.NoError(t, c.Start(ctx, "a", time.Minute))
	require.NoError(t, c.Start(ctx, "b", time.Minute))
	clock.Advance(2 * time.Minute)
	require.NoError(t, c.Start(ctx, "c", time.Minute))

	assert.Equal(t, 1, c.Len())
}
