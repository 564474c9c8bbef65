// ABOUTME: Thread-safe TTL cache that drops redelivered transport updates
// ABOUTME: Keys are tenant-scoped update ids; size-bounded with oldest-first eviction

package dedupe

import (
	"container/list"
	"strconv"
	"sync"
	"time"
)

type entry struct {
	key    string
	seenAt time.Time
}

// Cache is a TTL and size-bounded set of update keys.
type Cache struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List // *entry, oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a cache and starts its background sweeper.
func New(ttl time.Duration, maxSize int) *Cache {
	c := newCache(ttl, maxSize, time.Now)
	go c.sweepLoop(time.Minute)
	return c
}

func newCache(ttl time.Duration, maxSize int, now func() time.Time) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Cache{
		index:   make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
		done:    make(chan struct{}),
	}
}

// Key builds the cache key for one tenant's update.
func Key(tenantID string, updateID int) string {
	return tenantID + "/" + strconv.Itoa(updateID)
}

// Seen atomically reports whether the update was already processed and marks
// it if not. Only the first caller for a given update gets false.
func (c *Cache) Seen(tenantID string, updateID int) bool {
	return c.CheckAndMark(Key(tenantID, updateID))
}

// CheckAndMark returns true for a live duplicate, otherwise records key and returns false.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.index[key]; ok {
		e := el.Value.(*entry)
		if now.Sub(e.seenAt) < c.ttl {
			return true
		}
		// expired: treat as new and refresh position
		e.seenAt = now
		c.order.MoveToBack(el)
		return false
	}

	for len(c.index) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.index[key] = c.order.PushBack(&entry{key: key, seenAt: now})
	return false
}

// Len returns the number of tracked keys, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	c.order.Remove(front)
	delete(c.index, front.Value.(*entry).key)
}

func (c *Cache) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep drops expired entries. Insertion order is also expiry order, so it
// stops at the first live entry.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for el := c.order.Front(); el != nil; {
		e := el.Value.(*entry)
		if now.Sub(e.seenAt) < c.ttl {
			return
		}
		next := el.Next()
		c.order.Remove(el)
		delete(c.index, e.key)
		el = next
	}
}

// Close stops the sweeper. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
