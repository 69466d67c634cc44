package participant

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// cachePrefix is the Redis key prefix for cached profiles.
	cachePrefix = "profile:"

	// cacheTTL bounds how stale a cached profile may get. Writes through
	// this decorator invalidate the key immediately.
	cacheTTL = 5 * time.Minute
)

// CachedRepository is a Redis read-through cache over another Repository.
// Cache failures fall back to the underlying store, never block a call.
type CachedRepository struct {
	next Repository
	rdb  *redis.Client
}

// NewCachedRepository wraps next with a Redis profile cache.
func NewCachedRepository(next Repository, rdb *redis.Client) *CachedRepository {
	return &CachedRepository{next: next, rdb: rdb}
}

// Get returns the cached profile when present, otherwise loads and caches it.
func (r *CachedRepository) Get(ctx context.Context, id string) (*Participant, error) {
	key := cachePrefix + id

	data, err := r.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var p Participant
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		r.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("[profile-cache] get %s: %v (bypassing cache)", id, err)
	}

	p, err := r.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := r.rdb.Set(ctx, key, data, cacheTTL).Err(); err != nil {
			log.Printf("[profile-cache] set %s: %v", id, err)
		}
	}
	return p, nil
}

// Update writes through and invalidates the cached profile.
func (r *CachedRepository) Update(ctx context.Context, id string, fields Update) error {
	if err := r.next.Update(ctx, id, fields); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// IncrementCounter writes through and invalidates the cached profile.
func (r *CachedRepository) IncrementCounter(ctx context.Context, id, field string) error {
	if err := r.next.IncrementCounter(ctx, id, field); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// AddExperience writes through and invalidates the cached profile.
func (r *CachedRepository) AddExperience(ctx context.Context, id string, amount int) error {
	if err := r.next.AddExperience(ctx, id, amount); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// IsBlacklisted is not cached; block checks must be current.
func (r *CachedRepository) IsBlacklisted(ctx context.Context, a, b string) (bool, error) {
	return r.next.IsBlacklisted(ctx, a, b)
}

// AddToBlacklist passes through.
func (r *CachedRepository) AddToBlacklist(ctx context.Context, id, blockedID string) error {
	return r.next.AddToBlacklist(ctx, id, blockedID)
}

// RemoveFromBlacklist passes through.
func (r *CachedRepository) RemoveFromBlacklist(ctx context.Context, id, blockedID string) error {
	return r.next.RemoveFromBlacklist(ctx, id, blockedID)
}

func (r *CachedRepository) invalidate(ctx context.Context, id string) {
	if err := r.rdb.Del(ctx, cachePrefix+id).Err(); err != nil {
		log.Printf("[profile-cache] invalidate %s: %v", id, err)
	}
}
