package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 10000

// memoryEntry is a single cached value with its expiry.
type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// memoryCache is an in-process LRU cache with TTL expiry. Eviction happens
// on write when the entry cap is exceeded; expired entries are also swept
// by a background loop so an idle cache does not pin memory.
type memoryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int

	stopCh   chan struct{}
	stopOnce sync.Once
}

var _ Cache = (*memoryCache)(nil)

// NewMemory creates an in-process cache holding at most maxEntries values.
// A non-positive maxEntries selects the default cap.
func NewMemory(maxEntries int) Cache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	c := &memoryCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}

	go c.sweepLoop()

	return c
}

// Get retrieves a value, treating expired entries as absent.
func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}

	entry := elem.Value.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeLocked(elem)
		return nil, ErrCacheMiss
	}

	c.order.MoveToFront(elem)

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set stores a value, evicting the least recently used entry when full.
func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = stored
		entry.expiresAt = time.Now().Add(ttl)
		c.order.MoveToFront(elem)
		return nil
	}

	elem := c.order.PushFront(&memoryEntry{
		key:       key,
		value:     stored,
		expiresAt: time.Now().Add(ttl),
	})
	c.entries[key] = elem

	for len(c.entries) > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}

	return nil
}

// Delete removes a key.
func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
	return nil
}

// Close stops the background sweeper.
func (c *memoryCache) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	return nil
}

func (c *memoryCache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	delete(c.entries, entry.key)
	c.order.Remove(elem)
}

// sweepLoop periodically drops expired entries.
func (c *memoryCache) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *memoryCache) sweep() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if entry := elem.Value.(*memoryEntry); now.After(entry.expiresAt) {
			c.removeLocked(elem)
		}
		elem = prev
	}
}
