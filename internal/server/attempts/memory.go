package attempts

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count   int
	expires time.Time
}

// Memory is an in-process Counter. Expired entries are ignored on read and
// removed by Sweep.
type Memory struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

func NewMemory(cfg Config) *Memory {
	return &Memory{cfg: cfg, now: time.Now, entries: make(map[string]*entry)}
}

// WithClock replaces the time source; used by tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// live returns the unexpired entry for key. Callers hold mu.
func (m *Memory) live(key string, now time.Time) *entry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if !now.Before(e.expires) {
		delete(m.entries, key)
		return nil
	}
	return e
}

func (m *Memory) RecordFailure(_ context.Context, key string) (int, error) {
	key = NormalizeKey(key)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(key, now)
	if e == nil {
		e = &entry{expires: now.Add(m.cfg.LockoutTime)}
		m.entries[key] = e
	}
	e.count++
	return e.count, nil
}

func (m *Memory) Reserve(ctx context.Context, key string) (bool, int, error) {
	n, err := m.RecordFailure(ctx, key)
	return n <= m.cfg.MaxFailedAttempts, n, err
}

func (m *Memory) IsLocked(_ context.Context, key string) (bool, error) {
	key = NormalizeKey(key)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(key, now)
	return e != nil && e.count >= m.cfg.MaxFailedAttempts, nil
}

func (m *Memory) Clear(_ context.Context, key string) error {
	key = NormalizeKey(key)

	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Memory) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}
