// Package match pairs waiting participants. A periodic tick snapshots the
// queue in priority order, scores candidate pairs through the compatibility
// filters, and commits each match by atomically removing both entries and
// opening a session. Nothing in here blocks on the queue lock while scoring.
package match

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/rouletka/roulette/internal/clock"
	"github.com/rouletka/roulette/internal/config"
	"github.com/rouletka/roulette/internal/gateway"
	"github.com/rouletka/roulette/internal/metrics"
	"github.com/rouletka/roulette/internal/participant"
	"github.com/rouletka/roulette/internal/queue"
	"github.com/rouletka/roulette/internal/session"
)

// Engine runs the pairing loop.
type Engine struct {
	cfg      config.Matching
	queue    *queue.Queue
	scorer   *Scorer
	sessions *session.Manager
	repo     participant.Repository
	gw       gateway.Gateway
	clk      clock.Clock

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine wires a pairing engine over the queue and session manager.
func NewEngine(
	cfg config.Matching,
	q *queue.Queue,
	scorer *Scorer,
	sessions *session.Manager,
	repo participant.Repository,
	gw gateway.Gateway,
	clk clock.Clock,
) *Engine {
	return &Engine{
		cfg:      cfg,
		queue:    q,
		scorer:   scorer,
		sessions: sessions,
		repo:     repo,
		gw:       gw,
		clk:      clk,
	}
}

// Start launches the tick loop. Stop cancels it and waits for the loop
// to drain.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.cfg.TickInterval)
		defer ticker.Stop()

		log.Printf("[matcher] started, tick interval %s", e.cfg.TickInterval)
		for {
			select {
			case <-ctx.Done():
				log.Printf("[matcher] stopped")
				return
			case <-ticker.C:
				e.Tick(ctx)
			}
		}
	}()
}

// Stop shuts the loop down and blocks until it exits.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

// Tick performs one matching pass: expire stale waiters, then walk the
// priority-ordered snapshot greedily pairing compatible candidates.
// Exported so tests drive passes deterministically without the ticker.
func (e *Engine) Tick(ctx context.Context) {
	e.expire(ctx)

	entries := e.queue.Snapshot()
	metrics.QueueSize.Set(float64(len(entries)))
	if len(entries) < 2 {
		return
	}

	profiles := make(map[string]*participant.Participant, len(entries))
	for _, entry := range entries {
		p, err := e.repo.Get(ctx, entry.ParticipantID)
		if err != nil {
			// Only a confirmed missing profile evicts. A transient store
			// error just skips the entry this pass; the next tick retries.
			if errors.Is(err, participant.ErrNotFound) {
				log.Printf("[matcher] no profile for %s, evicting", entry.ParticipantID)
				e.queue.Remove(entry.ParticipantID)
				if err := e.gw.Notify(ctx, entry.ParticipantID, gateway.Event{Type: gateway.EventNoMatch}); err != nil {
					log.Printf("[matcher] notify %s: %v", entry.ParticipantID, err)
				}
			} else {
				log.Printf("[matcher] load %s: %v (skipping this pass)", entry.ParticipantID, err)
			}
			continue
		}
		profiles[entry.ParticipantID] = p
	}

	matched := make(map[string]bool, len(entries))
	for i, ea := range entries {
		if matched[ea.ParticipantID] {
			continue
		}
		pa, ok := profiles[ea.ParticipantID]
		if !ok {
			continue
		}

		best := -1
		bestScore := 0
		for j := i + 1; j < len(entries); j++ {
			eb := entries[j]
			if matched[eb.ParticipantID] {
				continue
			}
			pb, ok := profiles[eb.ParticipantID]
			if !ok {
				continue
			}
			score, viable := e.scorer.Score(ctx, ea, eb, pa, pb)
			if !viable {
				continue
			}
			if !e.cfg.BestFit {
				best, bestScore = j, score
				break
			}
			if best < 0 || score > bestScore {
				best, bestScore = j, score
			}
		}
		if best < 0 {
			continue
		}

		eb := entries[best]
		if e.commit(ctx, ea, eb) {
			matched[ea.ParticipantID] = true
			matched[eb.ParticipantID] = true
		}
	}
}

// commit atomically claims both queue entries, then opens the session.
// Either side may have left or been matched since the snapshot; a failed
// claim or refused session rolls the surviving entries back.
func (e *Engine) commit(ctx context.Context, ea, eb queue.Entry) bool {
	if !e.queue.RemovePair(ea, eb) {
		return false
	}

	if _, err := e.sessions.Create(ctx, ea.ParticipantID, eb.ParticipantID); err != nil {
		if !errors.Is(err, session.ErrParticipantBusy) {
			log.Printf("[matcher] create session %s/%s: %v", ea.ParticipantID, eb.ParticipantID, err)
		}
		e.queue.Restore(ea)
		e.queue.Restore(eb)
		return false
	}

	now := e.clk.Now()
	metrics.MatchesTotal.Inc()
	metrics.MatchWaitSeconds.Observe(now.Sub(ea.EnqueuedAt).Seconds())
	metrics.MatchWaitSeconds.Observe(now.Sub(eb.EnqueuedAt).Seconds())
	return true
}

// expire sweeps waiters past the wait timeout, notifies them, and resets
// their status.
func (e *Engine) expire(ctx context.Context) {
	for _, entry := range e.queue.TakeExpired(e.cfg.WaitTimeout) {
		id := entry.ParticipantID
		log.Printf("[matcher] wait timeout for %s after %s", id, e.cfg.WaitTimeout)

		idle := participant.StatusIdle
		p, err := e.repo.Get(ctx, id)
		if err != nil {
			log.Printf("[matcher] load %s on timeout: %v", id, err)
		} else if p.Status == participant.StatusQueued {
			if err := e.repo.Update(ctx, id, participant.Update{Status: &idle}); err != nil {
				log.Printf("[matcher] reset status %s: %v", id, err)
			}
		}
		if err := e.gw.Notify(ctx, id, gateway.Event{Type: gateway.EventNoMatch}); err != nil {
			log.Printf("[matcher] notify %s: %v", id, err)
		}
	}
}
