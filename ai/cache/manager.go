package cache

import (
	"sync"
	"time"
)

// Store is the view of a cache the manager needs for administration.
// Every LRU instantiation satisfies it regardless of its value type.
type Store interface {
	Len() int
	Capacity() int
	TTL() time.Duration
	Clear() int
}

// Stats describes one cache for operational visibility.
type Stats struct {
	Size       int     `json:"size"`
	MaxSize    int     `json:"max_size"`
	TTLSeconds float64 `json:"ttl_seconds,omitempty"`
}

// Manager aggregates the process's caches under stable names so the
// administrative surface can report and clear them in one place.
type Manager struct {
	mu     sync.RWMutex
	names  []string
	stores map[string]Store
}

// NewManager creates an empty cache manager.
func NewManager() *Manager {
	return &Manager{stores: make(map[string]Store)}
}

// Register adds a cache under the given name. Registering the same name
// twice replaces the previous store.
func (m *Manager) Register(name string, s Store) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stores[name]; !ok {
		m.names = append(m.names, name)
	}
	m.stores[name] = s
}

// Stats returns per-cache statistics keyed by cache name.
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]Stats, len(m.stores))
	for name, s := range m.stores {
		stats[name] = Stats{
			Size:       s.Len(),
			MaxSize:    s.Capacity(),
			TTLSeconds: s.TTL().Seconds(),
		}
	}
	return stats
}

// Clear empties every registered cache and returns the number of entries
// cleared per cache.
func (m *Manager) Clear() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cleared := make(map[string]int, len(m.stores))
	for name, s := range m.stores {
		cleared[name] = s.Clear()
	}
	return cleared
}
