package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// MemoryCache is a process-local Cache used when no redis is configured and in tests.
// Values are stored encoded so callers get the same copy semantics as with redis.
type MemoryCache struct {
	mutex sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	item := memoryItem{data: data}
	if expiration > 0 {
		item.expiresAt = m.now().Add(expiration)
	}

	m.mutex.Lock()
	m.items[key] = item
	m.mutex.Unlock()
	return nil
}

func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mutex.RLock()
	item, ok := m.items[key]
	m.mutex.RUnlock()

	if !ok || m.expired(item) {
		return ErrCacheMiss
	}
	return json.Unmarshal(item.data, dest)
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mutex.Lock()
	delete(m.items, key)
	m.mutex.Unlock()
	return nil
}

func (m *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	m.mutex.RLock()
	item, ok := m.items[key]
	m.mutex.RUnlock()
	return ok && !m.expired(item), nil
}

func (m *MemoryCache) DeleteMultiple(_ context.Context, keys []string) error {
	m.mutex.Lock()
	for _, key := range keys {
		delete(m.items, key)
	}
	m.mutex.Unlock()
	return nil
}

func (m *MemoryCache) InvalidatePrefix(_ context.Context, prefix string) error {
	m.mutex.Lock()
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	m.mutex.Unlock()
	return nil
}

func (m *MemoryCache) Ping(context.Context) error {
	return nil
}

func (m *MemoryCache) expired(item memoryItem) bool {
	return !item.expiresAt.IsZero() && m.now().After(item.expiresAt)
}
