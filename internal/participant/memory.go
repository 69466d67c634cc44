package participant

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepository is an in-memory Repository for single-owner deployments
// and tests. All operations are goroutine-safe.
type MemoryRepository struct {
	mu        sync.RWMutex
	profiles  map[string]*Participant
	blacklist map[string]map[string]bool // id -> set of blocked ids
}

// NewMemoryRepository creates an empty in-memory profile store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		profiles:  make(map[string]*Participant),
		blacklist: make(map[string]map[string]bool),
	}
}

// Put inserts or replaces a profile. Intended for seeding.
func (r *MemoryRepository) Put(p *Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	if cp.Status == "" {
		cp.Status = StatusIdle
	}
	r.profiles[cp.ID] = &cp
}

// Get returns a copy of the stored profile.
func (r *MemoryRepository) Get(ctx context.Context, id string) (*Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	cp.Interests = append([]string(nil), p.Interests...)
	return &cp, nil
}

// Update applies a partial update to the stored profile.
func (r *MemoryRepository) Update(ctx context.Context, id string, fields Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return ErrNotFound
	}
	if fields.Status != nil {
		p.Status = *fields.Status
	}
	if fields.Reputation != nil {
		p.Reputation = *fields.Reputation
	}
	return nil
}

// IncrementCounter atomically bumps one of the rolling counters.
func (r *MemoryRepository) IncrementCounter(ctx context.Context, id, field string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return ErrNotFound
	}
	switch field {
	case CounterTotalChats:
		p.TotalChats++
	case CounterTotalMessages:
		p.TotalMessages++
	case CounterLikesReceived:
		p.LikesReceived++
	default:
		return fmt.Errorf("participant: unknown counter %q", field)
	}
	return nil
}

// AddExperience adds experience and recomputes the level.
func (r *MemoryRepository) AddExperience(ctx context.Context, id string, amount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return ErrNotFound
	}
	p.Experience += amount
	p.Level = LevelFor(p.Experience)
	return nil
}

// IsBlacklisted reports whether either participant has blocked the other.
func (r *MemoryRepository) IsBlacklisted(ctx context.Context, a, b string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.blacklist[a][b] || r.blacklist[b][a], nil
}

// AddToBlacklist records that id no longer wants to be paired with blockedID.
func (r *MemoryRepository) AddToBlacklist(ctx context.Context, id, blockedID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.blacklist[id] == nil {
		r.blacklist[id] = make(map[string]bool)
	}
	r.blacklist[id][blockedID] = true
	return nil
}

// RemoveFromBlacklist lifts a block.
func (r *MemoryRepository) RemoveFromBlacklist(ctx context.Context, id, blockedID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blacklist[id], blockedID)
	return nil
}
