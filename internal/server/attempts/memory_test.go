package attempts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newMemory() (*Memory, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemory(DefaultConfig).WithClock(clock.Now), clock
}

func TestMemory_LocksAfterThreshold(t *testing.T) {
	m, _ := newMemory()
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		n, err := m.RecordFailure(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, i, n)

		locked, err := m.IsLocked(ctx, "bob")
		require.NoError(t, err)
		assert.False(t, locked, "not locked after %d failures", i)
	}

	n, err := m.RecordFailure(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	locked, err := m.IsLocked(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestMemory_KeysAreNormalized(t *testing.T) {
	m, _ := newMemory()
	ctx := context.Background()

	_, _ = m.RecordFailure(ctx, " Bob ")
	n, err := m.RecordFailure(ctx, "BOB")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemory_ClearResets(t *testing.T) {
	m, _ := newMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = m.RecordFailure(ctx, "bob")
	}
	require.NoError(t, m.Clear(ctx, "Bob"))

	locked, err := m.IsLocked(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, locked)

	n, err := m.RecordFailure(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemory_ExpiryUnlocks(t *testing.T) {
	m, clock := newMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = m.RecordFailure(ctx, "bob")
		clock.Advance(time.Minute)
	}

	locked, _ := m.IsLocked(ctx, "bob")
	require.True(t, locked)

	// window is anchored at the first failure, not extended by later ones
	clock.Advance(10*time.Minute - time.Second)
	locked, _ = m.IsLocked(ctx, "bob")
	assert.True(t, locked)

	clock.Advance(time.Second)
	locked, _ = m.IsLocked(ctx, "bob")
	assert.False(t, locked)

	n, err := m.RecordFailure(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "fresh window after expiry")
}

func TestMemory_Sweep(t *testing.T) {
	m, clock := newMemory()
	ctx := context.Background()

	_, _ = m.RecordFailure(ctx, "a")
	clock.Advance(10 * time.Minute)
	_, _ = m.RecordFailure(ctx, "b")
	clock.Advance(6 * time.Minute)

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 0, m.Sweep())

	n, _ := m.RecordFailure(ctx, "b")
	assert.Equal(t, 2, n)
}

func TestMemory_RunSweeperStops(t *testing.T) {
	m, _ := newMemory()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestMemory_ConcurrentIncrements(t *testing.T) {
	m, _ := newMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.RecordFailure(ctx, "bob")
		}()
	}
	wg.Wait()

	n, err := m.RecordFailure(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 51, n)
}

func TestMemory_ReserveAdmitsOnlyThreshold(t *testing.T) {
	m, _ := newMemory()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := m.Reserve(ctx, "bob")
			if err == nil && ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, DefaultConfig.MaxFailedAttempts, allowed)

	locked, err := m.IsLocked(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestMemory_ReserveAfterClear(t *testing.T) {
	m, clock := newMemory()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		ok, n, err := m.Reserve(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, i, n)
	}
	ok, _, err := m.Reserve(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	clock.Advance(15 * time.Minute)
	ok, n, err := m.Reserve(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, n)

	require.NoError(t, m.Clear(ctx, "bob"))
	ok, n, err = m.Reserve(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, n)
}
