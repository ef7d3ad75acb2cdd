package cache

import "sync"

// Memory is an in-process cache of string lists, keyed by an exact lookup
// key and grouped for bounded growth: each group keeps at most cap entries,
// evicting the oldest key first. All mutation happens under one lock; the
// cache is shared across request goroutines.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]string
	order   map[string][]string // group -> keys in insertion order
	cap     int
}

// NewMemory creates a Memory cache keeping at most cap entries per group.
// cap <= 0 means unbounded.
func NewMemory(cap int) *Memory {
	return &Memory{
		entries: make(map[string][]string),
		order:   make(map[string][]string),
		cap:     cap,
	}
}

// Get returns the cached values for key and whether the entry exists.
// The returned slice is a copy; callers may mutate it freely.
func (m *Memory) Get(key string) ([]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	out := make([]string, len(v))
	copy(out, v)
	return out, true
}

// Set stores values under key within the given eviction group.
func (m *Memory) Set(group, key string, values []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists {
		m.order[group] = append(m.order[group], key)
		if m.cap > 0 && len(m.order[group]) > m.cap {
			oldest := m.order[group][0]
			m.order[group] = m.order[group][1:]
			delete(m.entries, oldest)
		}
	}
	m.entries[key] = values
}

// Len returns the total number of cached entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
