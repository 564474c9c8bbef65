// ABOUTME: Process-local conversation state store with idle TTL and size bound
// ABOUTME: Oldest-touched entries are evicted first; a background sweep drops stale ones

package convstate

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memEntry struct {
	key   Key
	state State
}

// MemoryStore keeps states in memory. A state not touched within ttl is gone.
type MemoryStore struct {
	mu      sync.Mutex
	index   map[Key]*list.Element
	order   *list.List // *memEntry, least recently written at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates a store. sweepEvery <= 0 disables the background sweeper.
func NewMemoryStore(ttl time.Duration, maxSize int, sweepEvery time.Duration, opts ...MemoryOption) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 1
	}
	s := &MemoryStore{
		index:   make(map[Key]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if sweepEvery > 0 {
		go s.sweepLoop(sweepEvery)
	}
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key Key) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.index[key]
	if !ok {
		return State{}, false, nil
	}
	e := el.Value.(*memEntry)
	if s.expired(e.state) {
		s.removeLocked(el)
		return State{}, false, nil
	}
	return e.state, true, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, key Key, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.UpdatedAt = s.now()
	if el, ok := s.index[key]; ok {
		el.Value.(*memEntry).state = state
		s.order.MoveToBack(el)
		return nil
	}
	for len(s.index) >= s.maxSize {
		s.removeLocked(s.order.Front())
	}
	s.index[key] = s.order.PushBack(&memEntry{key: key, state: state})
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.index[key]; ok {
		s.removeLocked(el)
	}
	return nil
}

// Len returns the number of entries, including not-yet-swept expired ones.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

func (s *MemoryStore) expired(state State) bool {
	return s.ttl > 0 && s.now().Sub(state.UpdatedAt) >= s.ttl
}

func (s *MemoryStore) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	s.order.Remove(el)
	delete(s.index, el.Value.(*memEntry).key)
}

func (s *MemoryStore) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for el := s.order.Front(); el != nil; {
		if !s.expired(el.Value.(*memEntry).state) {
			return
		}
		next := el.Next()
		s.removeLocked(el)
		el = next
	}
}

// Close stops the sweeper. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.done)
		s.closed = true
	}
	return nil
}

// MemoryCooldowns is a process-local Cooldowns.
type MemoryCooldowns struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

// NewMemoryCooldowns creates an empty limiter. now may be nil.
func NewMemoryCooldowns(now func() time.Time) *MemoryCooldowns {
	if now == nil {
		now = time.Now
	}
	return &MemoryCooldowns{until: make(map[string]time.Time), now: now}
}

// Remaining implements Cooldowns.
func (c *MemoryCooldowns) Remaining(_ context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	until, ok := c.until[key]
	if !ok {
		return 0, nil
	}
	left := until.Sub(c.now())
	if left <= 0 {
		delete(c.until, key)
		return 0, nil
	}
	return left, nil
}

// Start implements Cooldowns. Finished windows are pruned on every call.
func (c *MemoryCooldowns) Start(_ context.Context, key string, window time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, until := range c.until {
		if !until.After(now) {
			delete(c.until, k)
		}
	}
	c.until[key] = now.Add(window)
	return nil
}

// Len returns the number of tracked windows.
func (c *MemoryCooldowns) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.until)
}
