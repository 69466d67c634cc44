// Package queue holds the participants waiting to be paired. The queue is
// the single in-process copy of waiting state; every mutation goes through
// one mutex so a participant id can never appear twice.
package queue

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rouletka/roulette/internal/clock"
	"github.com/rouletka/roulette/internal/participant"
)

// ErrAlreadyQueued is returned when a participant enqueues twice.
var ErrAlreadyQueued = errors.New("queue: participant already queued")

// Entry is one waiting participant with their match preferences.
type Entry struct {
	ParticipantID string
	Filters       participant.Filters
	Priority      int
	EnqueuedAt    time.Time
}

// Queue is the in-memory waiting queue.
type Queue struct {
	mu      sync.Mutex
	entries map[string]Entry
	clk     clock.Clock
}

// New creates an empty queue using the given clock for enqueue timestamps.
func New(clk clock.Clock) *Queue {
	return &Queue{
		entries: make(map[string]Entry),
		clk:     clk,
	}
}

// Enqueue adds a participant to the queue. Fails with ErrAlreadyQueued if
// the id is already present; session-membership conflicts are checked by
// the caller before enqueueing.
func (q *Queue) Enqueue(id string, filters participant.Filters, priority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.entries[id]; ok {
		return ErrAlreadyQueued
	}
	q.entries[id] = Entry{
		ParticipantID: id,
		Filters:       filters,
		Priority:      priority,
		EnqueuedAt:    q.clk.Now(),
	}
	return nil
}

// Remove takes a participant out of the queue. Returns false if the id was
// not queued. Removing a matched entry implicitly cancels its wait timeout.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.entries[id]; !ok {
		return false
	}
	delete(q.entries, id)
	return true
}

// RemovePair removes both participants only if the stored entries are still
// the snapshotted ones, compared by enqueue time. This is the commit-time
// eligibility check: a participant who cancelled, timed out, was banned, or
// cancelled and re-enqueued with different filters between snapshot and
// commit makes the whole pair removal fail, leaving the other entry
// untouched so the fresh entry is rescored next pass.
func (q *Queue) RemovePair(a, b Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	cur, ok := q.entries[a.ParticipantID]
	if !ok || !cur.EnqueuedAt.Equal(a.EnqueuedAt) {
		return false
	}
	cur, ok = q.entries[b.ParticipantID]
	if !ok || !cur.EnqueuedAt.Equal(b.EnqueuedAt) {
		return false
	}
	delete(q.entries, a.ParticipantID)
	delete(q.entries, b.ParticipantID)
	return true
}

// Restore re-inserts an entry with its original enqueue time, used to roll
// back a pair removal when session creation is refused.
func (q *Queue) Restore(e Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[e.ParticipantID]; !ok {
		q.entries[e.ParticipantID] = e
	}
}

// Contains reports whether the participant is currently queued.
func (q *Queue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[id]
	return ok
}

// Len returns the number of waiting participants.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns a copy of all entries ordered for scanning:
// priority descending, then enqueue time ascending, then id for a stable
// order when timestamps collide.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	entries := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		entries = append(entries, e)
	}
	q.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		if !entries[i].EnqueuedAt.Equal(entries[j].EnqueuedAt) {
			return entries[i].EnqueuedAt.Before(entries[j].EnqueuedAt)
		}
		return entries[i].ParticipantID < entries[j].ParticipantID
	})
	return entries
}

// TakeExpired removes and returns every entry that has waited longer than
// timeout. Called on each engine tick; the removed participants get a
// "no match" notification from the caller.
func (q *Queue) TakeExpired(timeout time.Duration) []Entry {
	now := q.clk.Now()

	q.mu.Lock()
	defer q.mu.Unlock()

	var expired []Entry
	for id, e := range q.entries {
		if now.Sub(e.EnqueuedAt) >= timeout {
			expired = append(expired, e)
			delete(q.entries, id)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ParticipantID < expired[j].ParticipantID
	})
	return expired
}
