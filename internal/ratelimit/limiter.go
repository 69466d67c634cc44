// Package ratelimit provides Redis-backed throttling using the INCR + EXPIRE
// fixed-window algorithm. Every check is fail-open: a Redis outage must
// never block legitimate traffic.
package ratelimit

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule defines one throttling policy: the Redis key prefix, the maximum
// count in the window, and the window duration.
type Rule struct {
	Key    string
	Limit  int
	Window time.Duration
}

// MessageRule builds the per-sender message flood rule from configuration.
func MessageRule(limit int, window time.Duration) Rule {
	return Rule{Key: "rl:msg:", Limit: limit, Window: window}
}

// Limiter performs rate limiting checks against Redis.
type Limiter struct {
	client *redis.Client
}

// NewLimiter creates a Limiter backed by the given Redis client.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Allow increments the identifier's counter and reports whether it is still
// within the rule's limit. The expiry is set on the first increment, so the
// window is fixed rather than sliding.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	key := rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("[ratelimit] redis INCR key=%s: %v (failing open)", key, err)
		return true, err
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			log.Printf("[ratelimit] redis EXPIRE key=%s: %v (failing open)", key, err)
			// Without a TTL the key would throttle the identifier forever.
			l.client.Del(ctx, key)
			return true, err
		}
	}

	return int(count) <= rule.Limit, nil
}

// FloodGuard adapts a Limiter and a fixed rule to the session manager's
// per-sender flood check.
type FloodGuard struct {
	limiter *Limiter
	rule    Rule
}

// NewFloodGuard binds a limiter to the message rule.
func NewFloodGuard(limiter *Limiter, rule Rule) *FloodGuard {
	return &FloodGuard{limiter: limiter, rule: rule}
}

// Allow reports whether the sender may submit another message.
func (g *FloodGuard) Allow(ctx context.Context, participantID string) (bool, error) {
	return g.limiter.Allow(ctx, participantID, g.rule)
}
