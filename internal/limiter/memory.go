package limiter

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	count int
	first time.Time
}

// Memory is a process-local Store for single-instance deployments.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*bucket
	now     func() time.Time
}

// NewMemory constructs an in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*bucket), now: time.Now}
}

// Hit implements Store. Entries older than window are purged on every call.
func (m *Memory) Hit(_ context.Context, key string, limit int, win time.Duration) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, w := range m.entries {
		if now.Sub(w.first) >= win {
			delete(m.entries, k)
		}
	}

	w, ok := m.entries[key]
	if !ok {
		m.entries[key] = &bucket{count: 1, first: now}
		return Decision{Allowed: true}, nil
	}
	if w.count >= limit {
		return Decision{RetryAfter: win - now.Sub(w.first)}, nil
	}
	w.count++
	return Decision{Allowed: true}, nil
}

// Len reports tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
