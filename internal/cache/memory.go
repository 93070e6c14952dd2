package cache

import (
	"sync"
)

// MemoryCache is a concurrency-safe in-memory store. Entries are only ever
// added or replaced, which makes it an add-only memo.
type MemoryCache[K comparable, V any] struct {
	cache map[K]V
	mu    sync.RWMutex
}

// NewMemo creates an empty memo
func NewMemo[K comparable, V any]() *MemoryCache[K, V] {
	return &MemoryCache[K, V]{
		cache: make(map[K]V),
	}
}

// Get retrieves a value if present
func (m *MemoryCache[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, exists := m.cache[key]
	return v, exists
}

// Set stores a value. The last write for a key wins.
func (m *MemoryCache[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache[key] = value
}

// Size returns the number of entries
func (m *MemoryCache[K, V]) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.cache)
}
