// Package cache holds the read-side leaderboard cache. Entries are keyed
// under a generation number; Invalidate bumps the generation so every
// earlier entry becomes unreachable at once.
//
// Readers take the generation before loading from the database and write
// back under that same generation, so a load that overlaps an Invalidate
// never becomes visible.
package cache

import (
	"context"
	"sync"
	"time"
)

type Store interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen int64, key string) ([]byte, bool, error)
	Set(ctx context.Context, gen int64, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type memEntry struct {
	generation int64
	value      []byte
	expires    time.Time
}

// Memory is an in-process Store used when no Redis address is configured.
type Memory struct {
	mu         sync.Mutex
	generation int64
	entries    map[string]memEntry
	now        func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memEntry), now: time.Now}
}

func (m *Memory) Generation(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation, nil
}

func (m *Memory) Get(_ context.Context, gen int64, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return nil, false, nil
	}
	e, ok := m.entries[key]
	if !ok || e.generation != m.generation || (!e.expires.IsZero() && m.now().After(e.expires)) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set is a no-op when gen is no longer current.
func (m *Memory) Set(_ context.Context, gen int64, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return nil
	}
	e := memEntry{generation: gen, value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.entries = make(map[string]memEntry)
	return nil
}
