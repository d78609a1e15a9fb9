package cache

import (
	"sort"
	"sync"
	"time"

	"stockdbv1/internal/frame"
	"stockdbv1/internal/model"
)

const defaultMaxItems = 1000

type memEntry struct {
	meta  model.CacheMeta
	frame *frame.Frame
}

// Memory is the in-process cache tier. It stores decoded frames so hits
// skip JSON decoding entirely. When the item cap is reached, the oldest
// entries are evicted in a batch to keep insertions cheap.
type Memory struct {
	mu       sync.RWMutex
	items    map[string]memEntry
	maxItems int
}

// NewMemory creates a memory tier holding at most maxItems entries
// (defaultMaxItems when maxItems <= 0).
func NewMemory(maxItems int) *Memory {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	return &Memory{
		items:    make(map[string]memEntry),
		maxItems: maxItems,
	}
}

// Get returns the cached frame for key, or ok=false on miss or expiry.
// Expired entries are removed on access.
func (m *Memory) Get(key string, now time.Time) (*frame.Frame, model.CacheMeta, bool) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, model.CacheMeta{}, false
	}
	if !now.Before(e.meta.ExpiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, model.CacheMeta{}, false
	}
	return e.frame, e.meta, true
}

// Set stores a frame, evicting the oldest batch first when full.
func (m *Memory) Set(meta model.CacheMeta, f *frame.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[meta.Key]; !exists && len(m.items) >= m.maxItems {
		// Evict a tenth of the cap at once so a full cache does not pay
		// the sort on every insert.
		batch := m.maxItems / 10
		if batch < 1 {
			batch = 1
		}
		m.evictOldest(batch)
	}
	m.items[meta.Key] = memEntry{meta: meta, frame: f}
}

// evictOldest drops the n entries with the earliest creation times.
// Caller holds the write lock.
func (m *Memory) evictOldest(n int) {
	type aged struct {
		key     string
		created time.Time
	}
	all := make([]aged, 0, len(m.items))
	for k, e := range m.items {
		all = append(all, aged{key: k, created: e.meta.CreatedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].created.Before(all[j].created) })
	if n > len(all) {
		n = len(all)
	}
	for _, a := range all[:n] {
		delete(m.items, a.key)
	}
}

// Delete removes a single entry.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

// Purge removes entries expired as of now and returns how many.
func (m *Memory) Purge(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, e := range m.items {
		if !now.Before(e.meta.ExpiresAt) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.mu.Lock()
	m.items = make(map[string]memEntry)
	m.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
