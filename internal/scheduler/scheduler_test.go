package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for deterministic due-order tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	return id
}

// receiveDue fails the test if no ID arrives in time.
func receiveDue(t *testing.T, s *Scheduler) uuid.UUID {
	t.Helper()
	select {
	case id := <-s.Due():
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a due task")
		return uuid.Nil
	}
}

// assertNothingDue verifies that no ID arrives within the given window.
func assertNothingDue(t *testing.T, s *Scheduler, window time.Duration) {
	t.Helper()
	select {
	case id := <-s.Due():
		t.Fatalf("unexpected due task %s", id)
	case <-time.After(window):
	}
}

func TestSchedulerYieldsInDueOrder(t *testing.T) {
	base := time.Date(2026, 1, 30, 15, 30, 0, 0, time.UTC)
	clock := newFakeClock(base)
	s := New(clock, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	late := newTestID(t)
	early := newTestID(t)
	middle := newTestID(t)

	_, err := s.Schedule(late, base.Add(30*time.Minute))
	require.NoError(t, err)
	_, err = s.Schedule(early, base.Add(10*time.Minute))
	require.NoError(t, err)
	_, err = s.Schedule(middle, base.Add(20*time.Minute))
	require.NoError(t, err)

	// Nothing is due while the simulated clock sits at base.
	assertNothingDue(t, s, 50*time.Millisecond)
	assert.Equal(t, 3, s.PendingCount())

	// Jump past every deadline; entries must come out in due order.
	clock.Advance(time.Hour)
	s.notify()

	assert.Equal(t, early, receiveDue(t, s))
	assert.Equal(t, middle, receiveDue(t, s))
	assert.Equal(t, late, receiveDue(t, s))
	assert.Equal(t, 0, s.PendingCount())
}

func TestSchedulerBreaksTiesByInsertionOrder(t *testing.T) {
	base := time.Date(2026, 1, 30, 15, 30, 0, 0, time.UTC)
	clock := newFakeClock(base)
	s := New(clock, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	at := base.Add(time.Minute)
	first := newTestID(t)
	second := newTestID(t)
	third := newTestID(t)
	for _, id := range []uuid.UUID{first, second, third} {
		_, err := s.Schedule(id, at)
		require.NoError(t, err)
	}

	clock.Advance(2 * time.Minute)
	s.notify()

	assert.Equal(t, first, receiveDue(t, s))
	assert.Equal(t, second, receiveDue(t, s))
	assert.Equal(t, third, receiveDue(t, s))
}

func TestSchedulerRetargetsOnEarlierInsert(t *testing.T) {
	s := New(RealClock{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	now := time.Now()
	slow := newTestID(t)
	fast := newTestID(t)

	// The loop is already waiting on the slow entry when the fast one
	// arrives; the wait must re-target without dropping either.
	_, err := s.Schedule(slow, now.Add(500*time.Millisecond))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = s.Schedule(fast, now.Add(100*time.Millisecond))
	require.NoError(t, err)

	assert.Equal(t, fast, receiveDue(t, s))
	assert.Equal(t, slow, receiveDue(t, s))
}

func TestSchedulerCancel(t *testing.T) {
	base := time.Date(2026, 1, 30, 15, 30, 0, 0, time.UTC)
	clock := newFakeClock(base)
	s := New(clock, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	id := newTestID(t)
	entry, err := s.Schedule(id, base.Add(time.Minute))
	require.NoError(t, err)

	assert.True(t, s.Cancel(entry), "first cancel must succeed")
	assert.False(t, s.Cancel(entry), "second cancel must report already removed")
	assert.Equal(t, 0, s.PendingCount())

	// A cancelled entry never fires, even once its deadline passes.
	clock.Advance(time.Hour)
	s.notify()
	assertNothingDue(t, s, 50*time.Millisecond)
}

func TestSchedulerCancelAfterFire(t *testing.T) {
	base := time.Date(2026, 1, 30, 15, 30, 0, 0, time.UTC)
	clock := newFakeClock(base)
	s := New(clock, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	id := newTestID(t)
	entry, err := s.Schedule(id, base.Add(time.Second))
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	s.notify()
	assert.Equal(t, id, receiveDue(t, s))

	assert.False(t, s.Cancel(entry), "cancel after fire must report false")
}

func TestSchedulerRejectsDuplicateID(t *testing.T) {
	base := time.Date(2026, 1, 30, 15, 30, 0, 0, time.UTC)
	s := New(newFakeClock(base), testLogger())

	id := newTestID(t)
	_, err := s.Schedule(id, base.Add(time.Minute))
	require.NoError(t, err)

	_, err = s.Schedule(id, base.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrAlreadyScheduled)
}

func TestSchedulerLookup(t *testing.T) {
	base := time.Date(2026, 1, 30, 15, 30, 0, 0, time.UTC)
	s := New(newFakeClock(base), testLogger())

	id := newTestID(t)
	entry, err := s.Schedule(id, base.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, entry, s.Lookup(id))
	assert.Nil(t, s.Lookup(newTestID(t)))

	s.Cancel(entry)
	assert.Nil(t, s.Lookup(id))
}

func TestSchedulerConcurrentScheduleAndCancel(t *testing.T) {
	s := New(RealClock{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	const n = 50
	at := time.Now().Add(50 * time.Millisecond)

	entries := make([]*Entry, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := s.Schedule(newTestID(t), at)
			if err != nil {
				t.Error(err)
				return
			}
			entries[i] = entry
		}(i)
	}
	wg.Wait()

	// Cancel half concurrently while the deadline approaches.
	cancelled := 0
	var mu sync.Mutex
	for i := 0; i < n; i += 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if s.Cancel(entries[i]) {
				mu.Lock()
				cancelled++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	received := 0
	for {
		select {
		case <-s.Due():
			received++
		case <-time.After(time.Second):
			assert.Equal(t, n, received+cancelled,
				"every entry must either fire or be cancelled, never both or neither")
			return
		}
	}
}
