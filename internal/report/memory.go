package report

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory report store for single-owner deployments
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	reports []Report
}

// NewMemoryStore creates an empty in-memory report store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Add appends the report.
func (m *MemoryStore) Add(ctx context.Context, r Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

// CountSince counts reports filed against reportedID at or after since.
func (m *MemoryStore) CountSince(ctx context.Context, reportedID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, r := range m.reports {
		if r.ReportedID == reportedID && !r.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// All returns a copy of every stored report, oldest first.
func (m *MemoryStore) All() []Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Report(nil), m.reports...)
}
