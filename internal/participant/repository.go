package participant

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a participant id has no profile record.
var ErrNotFound = errors.New("participant: not found")

// Update carries the optional fields of a partial profile update.
// Nil pointers leave the stored value untouched.
type Update struct {
	Status     *Status
	Reputation *float64
}

// Repository is the profile store boundary. The production store lives
// outside this core; implementations here cover Postgres, an in-memory
// single-owner store, and a Redis read-through cache decorator.
//
// IncrementCounter and AddExperience must be atomic per participant.
type Repository interface {
	Get(ctx context.Context, id string) (*Participant, error)
	Update(ctx context.Context, id string, fields Update) error
	IncrementCounter(ctx context.Context, id, field string) error
	AddExperience(ctx context.Context, id string, amount int) error

	IsBlacklisted(ctx context.Context, a, b string) (bool, error)
	AddToBlacklist(ctx context.Context, id, blockedID string) error
	RemoveFromBlacklist(ctx context.Context, id, blockedID string) error
}
