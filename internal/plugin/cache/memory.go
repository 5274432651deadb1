package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with TTL support.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]memoryItem
	config StoreConfig
	now    func() time.Time
	cancel context.CancelFunc
}

type memoryItem struct {
	value      []byte
	expiration time.Time
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// NewMemoryStore creates a memory store that sweeps expired items every
// sweep interval. A non-positive interval disables sweeping; expired items
// are still never returned.
func NewMemoryStore(config StoreConfig, sweep time.Duration) *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())
	m := &MemoryStore{
		items:  make(map[string]memoryItem),
		config: config,
		now:    time.Now,
		cancel: cancel,
	}
	if sweep > 0 {
		go m.sweep(ctx, sweep)
	}
	return m
}

func (m *MemoryStore) key(key string) string {
	return m.config.Prefix + key
}

// Get implements Store
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	item, ok := m.items[m.key(key)]
	m.mu.RUnlock()

	if !ok || item.expired(m.now()) {
		return nil, fmt.Errorf("%w: %s", ErrMiss, key)
	}
	return item.value, nil
}

// Set implements Store
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiration = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.items[m.key(key)] = item
	m.mu.Unlock()
	return nil
}

// Delete implements Store
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.items, m.key(key))
	m.mu.Unlock()
	return nil
}

// Clear implements Store
func (m *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.items {
		if strings.HasPrefix(k, m.config.Prefix) {
			delete(m.items, k)
		}
	}
	return nil
}

// Exists implements Store
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.RLock()
	item, ok := m.items[m.key(key)]
	m.mu.RUnlock()

	return ok && !item.expired(m.now()), nil
}

// Len returns the number of stored items, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close stops the sweeper.
func (m *MemoryStore) Close() error {
	m.cancel()
	return nil
}

func (m *MemoryStore) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.removeExpired()
		}
	}
}

func (m *MemoryStore) removeExpired() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, item := range m.items {
		if item.expired(now) {
			delete(m.items, k)
		}
	}
}
