package cache

import (
	"context"
	"maps"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	tags      []string
	expiresAt time.Time
}

// Memory is an in-process Cache. Expired entries are dropped lazily on
// read and swept when Invalidate runs.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	// byTag maps a tag to the set of keys carrying it.
	byTag map[string]map[string]struct{}

	// now is replaceable for tests.
	now func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		byTag:   make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

// GetOrLoad implements Cache.
//
// The lock is not held across load: concurrent misses on the same key
// may each call load and the last store wins. Loaders are idempotent
// reads, so duplicate work is acceptable and avoids holding the whole
// cache hostage to one slow query.
func (m *Memory) GetOrLoad(ctx context.Context, key string, ttl time.Duration, tags []string, load LoadFunc) ([]byte, error) {
	m.mu.Lock()
	if e, ok := m.entries[key]; ok {
		if m.now().Before(e.expiresAt) {
			m.mu.Unlock()
			return e.value, nil
		}
		m.removeLocked(key)
	}
	m.mu.Unlock()

	value, err := load(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{
		value:     value,
		tags:      tags,
		expiresAt: m.now().Add(ttl),
	}
	for _, tag := range tags {
		keys, ok := m.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			m.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return value, nil
}

// Invalidate implements Cache.
func (m *Memory) Invalidate(_ context.Context, tags ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tag := range tags {
		for key := range maps.Keys(m.byTag[tag]) {
			m.removeLocked(key)
		}
	}
	return nil
}

// removeLocked drops key and its tag index entries. Caller holds mu.
func (m *Memory) removeLocked(key string) {
	e, ok := m.entries[key]
	if !ok {
		return
	}
	delete(m.entries, key)
	for _, tag := range e.tags {
		keys := m.byTag[tag]
		delete(keys, key)
		if len(keys) == 0 {
			delete(m.byTag, tag)
		}
	}
}
