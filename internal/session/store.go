package session

import (
	"sync"
	"time"
)

// Store is the session registry and history. The registry is the single
// in-process owner of session state; implementations return copies so
// callers can only mutate through Put.
type Store interface {
	Put(s Session)
	Get(id string) (Session, bool)
	ActiveFor(participantID string) (Session, bool)
	ActiveCount() int

	// RecentPair reports whether a and b shared a session started after
	// the given instant. Backs the "no repeat" match filter.
	RecentPair(a, b string, since time.Time) bool

	// RatingsReceived returns all non-zero ratings the participant has
	// received across their session history.
	RatingsReceived(participantID string) []int
}

// MemoryStore is the in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	active   map[string]string // participant id -> active session id
}

// NewMemoryStore creates an empty session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		active:   make(map[string]string),
	}
}

// Put inserts or updates a session and maintains the active index.
func (m *MemoryStore) Put(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.ID] = s
	if s.Status == StatusActive {
		m.active[s.ParticipantA] = s.ID
		m.active[s.ParticipantB] = s.ID
		return
	}
	// Only clear the index if it still points at this session; a newer
	// active session must not lose its entry.
	if m.active[s.ParticipantA] == s.ID {
		delete(m.active, s.ParticipantA)
	}
	if m.active[s.ParticipantB] == s.ID {
		delete(m.active, s.ParticipantB)
	}
}

// Get returns a copy of the session.
func (m *MemoryStore) Get(id string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// ActiveFor returns the participant's active session, if any.
func (m *MemoryStore) ActiveFor(participantID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.active[participantID]
	if !ok {
		return Session{}, false
	}
	s, ok := m.sessions[id]
	return s, ok
}

// ActiveCount returns the number of active sessions.
func (m *MemoryStore) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active) / 2
}

// RecentPair scans history for a shared session after since.
func (m *MemoryStore) RecentPair(a, b string, since time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.StartedAt.Before(since) {
			continue
		}
		if (s.ParticipantA == a && s.ParticipantB == b) ||
			(s.ParticipantA == b && s.ParticipantB == a) {
			return true
		}
	}
	return false
}

// RatingsReceived collects the non-zero ratings given to the participant
// by their partners.
func (m *MemoryStore) RatingsReceived(participantID string) []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ratings []int
	for _, s := range m.sessions {
		switch participantID {
		case s.ParticipantA:
			if s.RatingB > 0 {
				ratings = append(ratings, s.RatingB)
			}
		case s.ParticipantB:
			if s.RatingA > 0 {
				ratings = append(ratings, s.RatingA)
			}
		}
	}
	return ratings
}
