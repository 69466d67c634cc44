package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreActiveIndex(t *testing.T) {
	store := NewMemoryStore()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store.Put(Session{ID: "s1", ParticipantA: "a", ParticipantB: "b", StartedAt: start, Status: StatusActive})
	assert.Equal(t, 1, store.ActiveCount())

	s, ok := store.ActiveFor("b")
	require.True(t, ok)
	assert.Equal(t, "s1", s.ID)

	// Ending the session drops both participants from the active index.
	s.Status = StatusEnded
	s.EndedAt = start.Add(time.Minute)
	store.Put(s)

	_, ok = store.ActiveFor("a")
	assert.False(t, ok)
	assert.Equal(t, 0, store.ActiveCount())

	// The ended session stays readable as history.
	got, ok := store.Get("s1")
	require.True(t, ok)
	assert.Equal(t, StatusEnded, got.Status)
}

func TestMemoryStoreRecentPair(t *testing.T) {
	store := NewMemoryStore()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.Put(Session{ID: "s1", ParticipantA: "a", ParticipantB: "b", StartedAt: start, Status: StatusEnded})

	tests := []struct {
		name  string
		a, b  string
		since time.Time
		want  bool
	}{
		{"inside window", "a", "b", start.Add(-time.Hour), true},
		{"reversed pair", "b", "a", start.Add(-time.Hour), true},
		{"outside window", "a", "b", start.Add(time.Hour), false},
		{"different pair", "a", "c", start.Add(-time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.RecentPair(tt.a, tt.b, tt.since))
		})
	}
}

func TestMemoryStoreRatingsReceived(t *testing.T) {
	store := NewMemoryStore()
	store.Put(Session{ID: "s1", ParticipantA: "a", ParticipantB: "b", Status: StatusEnded, RatingA: 5, RatingB: 3})
	store.Put(Session{ID: "s2", ParticipantA: "b", ParticipantB: "a", Status: StatusEnded, RatingA: 4})

	// b was rated 5 by a (s1) and nothing in s2 (RatingB zero = skip).
	assert.ElementsMatch(t, []int{5}, store.RatingsReceived("b"))
	// a was rated 3 by b (s1) and 4 by b (s2).
	assert.ElementsMatch(t, []int{3, 4}, store.RatingsReceived("a"))
	assert.Empty(t, store.RatingsReceived("stranger"))
}

func TestMemoryStoreCopies(t *testing.T) {
	store := NewMemoryStore()
	store.Put(Session{ID: "s1", ParticipantA: "a", ParticipantB: "b", Status: StatusActive})

	s, ok := store.Get("s1")
	require.True(t, ok)
	s.MessageCount = 99

	fresh, _ := store.Get("s1")
	assert.Equal(t, 0, fresh.MessageCount)
}
