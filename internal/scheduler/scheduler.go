package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyScheduled is returned when an entry for the given task ID is
// already pending. Callers guarantee ID uniqueness, so hitting this is a
// programming error, not an expected runtime condition.
var ErrAlreadyScheduled = errors.New("task is already scheduled")

// Entry is the cancellation handle returned by Schedule. It stays valid
// after the entry fires or is cancelled; Cancel on a spent handle simply
// reports false.
type Entry struct {
	id  uuid.UUID
	at  time.Time
	seq uint64

	// index is the entry's position in the heap, -1 once popped or
	// cancelled. Guarded by the Scheduler mutex.
	index int
}

// ID returns the task ID this entry waits for.
func (e *Entry) ID() uuid.UUID {
	return e.id
}

// At returns the time the entry becomes due.
func (e *Entry) At() time.Time {
	return e.at
}

// Scheduler is the process-wide delay structure. Construct it once at
// startup, feed it through Recovery, then run its timer loop for the
// lifetime of the process.
type Scheduler struct {
	mu      sync.Mutex
	entries entryHeap
	pending map[uuid.UUID]*Entry
	seq     uint64

	// wake nudges the timer loop after a mutation so it re-targets the
	// earliest deadline. Buffered size 1: one pending nudge is enough,
	// the loop recomputes everything it needs under the lock.
	wake chan struct{}

	// due is the hand-off channel; sends block until a consumer is
	// ready, so due tasks queue in the heap rather than in the channel.
	due chan uuid.UUID

	clock  Clock
	logger *slog.Logger
}

// New creates an empty scheduler. Pass RealClock{} outside of tests.
func New(clock Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		entries: entryHeap{},
		pending: make(map[uuid.UUID]*Entry),
		wake:    make(chan struct{}, 1),
		due:     make(chan uuid.UUID),
		clock:   clock,
		logger:  logger,
	}
}

// Schedule inserts a wait entry for the given task ID and returns its
// cancellation handle. O(log n). Scheduling an ID that is already
// pending returns ErrAlreadyScheduled.
func (s *Scheduler) Schedule(id uuid.UUID, at time.Time) (*Entry, error) {
	s.mu.Lock()
	if _, exists := s.pending[id]; exists {
		s.mu.Unlock()
		return nil, ErrAlreadyScheduled
	}

	s.seq++
	entry := &Entry{id: id, at: at, seq: s.seq}
	heap.Push(&s.entries, entry)
	s.pending[id] = entry
	s.mu.Unlock()

	s.logger.Debug("scheduled task",
		"task_id", id,
		"execution_time", at)

	s.notify()
	return entry, nil
}

// Cancel removes the entry if it is still pending and reports whether
// removal occurred. False means the entry already fired or was cancelled
// before. Safe to call concurrently with the timer loop.
func (s *Scheduler) Cancel(entry *Entry) bool {
	if entry == nil {
		return false
	}

	s.mu.Lock()
	if entry.index < 0 {
		s.mu.Unlock()
		return false
	}
	heap.Remove(&s.entries, entry.index)
	delete(s.pending, entry.id)
	s.mu.Unlock()

	s.logger.Debug("cancelled scheduled task", "task_id", entry.id)

	s.notify()
	return true
}

// Lookup returns the pending entry for the given task ID, or nil if no
// entry is pending. The deletion path uses it to cancel the wait entry
// belonging to a removed task.
func (s *Scheduler) Lookup(id uuid.UUID) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[id]
}

// Due returns the channel on which due task IDs are delivered, in
// non-decreasing execution-time order with FIFO among equal timestamps.
// Multiple consumers may receive from it concurrently.
func (s *Scheduler) Due() <-chan uuid.UUID {
	return s.due
}

// PendingCount returns the number of entries waiting to fire.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Run drives the timer loop until the context is cancelled. It sleeps
// until the earliest deadline, wakes early when a mutation changes that
// deadline, and hands each due entry to a consumer before popping the
// next one. The mutex is never held across a channel send or a sleep.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Debug("scheduler timer loop started")
	defer s.logger.Debug("scheduler timer loop stopped")

	for {
		s.mu.Lock()
		var (
			fired   *Entry
			wait    time.Duration
			hasNext bool
		)
		if s.entries.Len() > 0 {
			next := s.entries[0]
			if d := next.at.Sub(s.clock.Now()); d > 0 {
				wait = d
				hasNext = true
			} else {
				fired = heap.Pop(&s.entries).(*Entry)
				delete(s.pending, fired.id)
			}
		}
		s.mu.Unlock()

		if fired != nil {
			select {
			case s.due <- fired.id:
			case <-ctx.Done():
				return
			}
			continue
		}

		if !hasNext {
			// Nothing pending; sleep until the next mutation.
			select {
			case <-s.wake:
			case <-ctx.Done():
				return
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.wake:
			// Earliest deadline may have changed; recompute.
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// notify nudges the timer loop without blocking. A dropped send is fine:
// a nudge is already pending and the loop recomputes from scratch.
func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// entryHeap is a min-heap of entries ordered by execution time, ties
// broken by insertion sequence for deterministic FIFO behavior.
type entryHeap []*Entry

func (h entryHeap) Len() int {
	return len(h)
}

func (h entryHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	entry := x.(*Entry)
	entry.index = len(*h)
	*h = append(*h, entry)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*h = old[:n-1]
	return entry
}
