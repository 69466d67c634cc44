// Package service is the operation surface of the pairing engine. It owns
// the wiring between the queue, match engine, session manager, and report
// ledger, and exposes the commands transports call: request or cancel a
// pairing, send a message, end, rate, report, block.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/rouletka/roulette/internal/clock"
	"github.com/rouletka/roulette/internal/config"
	"github.com/rouletka/roulette/internal/gateway"
	"github.com/rouletka/roulette/internal/match"
	"github.com/rouletka/roulette/internal/metrics"
	"github.com/rouletka/roulette/internal/moderation"
	"github.com/rouletka/roulette/internal/participant"
	"github.com/rouletka/roulette/internal/queue"
	"github.com/rouletka/roulette/internal/report"
	"github.com/rouletka/roulette/internal/session"
)

// Errors surfaced to transports.
var (
	ErrBanned    = errors.New("service: participant is banned")
	ErrInSession = errors.New("service: participant already in a session")
)

// Roulette binds the core components behind the public operations.
type Roulette struct {
	cfg      config.Config
	repo     participant.Repository
	queue    *queue.Queue
	engine   *match.Engine
	sessions *session.Manager
	ledger   *report.Ledger
	gw       gateway.Gateway
	clk      clock.Clock
}

// New assembles the service over externally constructed stores and the
// gateway. limiter may be nil to disable flood control.
func New(
	cfg config.Config,
	repo participant.Repository,
	sessionStore session.Store,
	reportStore report.Store,
	gw gateway.Gateway,
	pipeline *moderation.Pipeline,
	limiter session.FloodLimiter,
	clk clock.Clock,
) *Roulette {
	q := queue.New(clk)
	sessions := session.NewManager(cfg.Session, cfg.Enforcement.ShadowDropRate, sessionStore, repo, pipeline, gw, limiter, clk)
	scorer := match.NewScorer(cfg.Matching, repo, sessionStore, clk)
	engine := match.NewEngine(cfg.Matching, q, scorer, sessions, repo, gw, clk)
	ledger := report.NewLedger(cfg.Enforcement, reportStore, sessions, repo, q, gw, clk)

	return &Roulette{
		cfg:      cfg,
		repo:     repo,
		queue:    q,
		engine:   engine,
		sessions: sessions,
		ledger:   ledger,
		gw:       gw,
		clk:      clk,
	}
}

// Start launches the match engine. Stop shuts it down.
func (r *Roulette) Start(ctx context.Context) { r.engine.Start(ctx) }
func (r *Roulette) Stop()                     { r.engine.Stop() }

// Engine exposes the match engine for deterministic test ticks.
func (r *Roulette) Engine() *match.Engine { return r.engine }

// Sessions exposes the session manager.
func (r *Roulette) Sessions() *session.Manager { return r.sessions }

// RequestPairing puts a participant into the waiting queue. Banned
// participants are refused; a participant with an active session must end
// it first. Shadow-banned participants queue normally.
func (r *Roulette) RequestPairing(ctx context.Context, participantID string, filters participant.Filters) error {
	p, err := r.repo.Get(ctx, participantID)
	if err != nil {
		return fmt.Errorf("service: load %s: %w", participantID, err)
	}
	if p.Status == participant.StatusBanned {
		return ErrBanned
	}
	if _, busy := r.sessions.Store().ActiveFor(participantID); busy {
		return ErrInSession
	}

	prio := participant.Priority(p.PremiumTier, r.cfg.Matching.FreePriority, r.cfg.Matching.PremiumPriority)
	if err := r.queue.Enqueue(participantID, filters, prio); err != nil {
		return err
	}
	metrics.QueueSize.Set(float64(r.queue.Len()))

	if p.Status == participant.StatusIdle {
		queued := participant.StatusQueued
		if err := r.repo.Update(ctx, participantID, participant.Update{Status: &queued}); err != nil {
			log.Printf("[service] set queued status for %s: %v", participantID, err)
		}
	}
	return nil
}

// CancelPairing removes a waiting participant from the queue. Cancelling
// when not queued is a no-op.
func (r *Roulette) CancelPairing(ctx context.Context, participantID string) error {
	if !r.queue.Remove(participantID) {
		return nil
	}
	metrics.QueueSize.Set(float64(r.queue.Len()))

	p, err := r.repo.Get(ctx, participantID)
	if err != nil {
		return fmt.Errorf("service: load %s: %w", participantID, err)
	}
	if p.Status == participant.StatusQueued {
		idle := participant.StatusIdle
		if err := r.repo.Update(ctx, participantID, participant.Update{Status: &idle}); err != nil {
			log.Printf("[service] reset status for %s: %v", participantID, err)
		}
	}
	return nil
}

// SendMessage relays a message within a session. A warned outcome also
// pushes a warning event to the sender.
func (r *Roulette) SendMessage(ctx context.Context, sessionID, senderID, text string) (session.RelayResult, error) {
	result, err := r.sessions.Relay(ctx, sessionID, senderID, text)
	if err != nil {
		return result, err
	}
	if result.Outcome == session.OutcomeWarned {
		event := gateway.Event{Type: gateway.EventWarning, SessionID: sessionID}
		if err := r.gw.Notify(ctx, senderID, event); err != nil {
			log.Printf("[service] notify warning to %s: %v", senderID, err)
		}
	}
	return result, nil
}

// EndSession ends a session on behalf of one of its participants.
func (r *Roulette) EndSession(ctx context.Context, sessionID, participantID string) error {
	s, ok := r.sessions.Store().Get(sessionID)
	if !ok {
		return session.ErrNotFound
	}
	if !s.IsParticipant(participantID) {
		return session.ErrNotParticipant
	}
	return r.sessions.End(ctx, sessionID, participantID, session.ReasonUser)
}

// Rate records a post-session rating (0 skips).
func (r *Roulette) Rate(ctx context.Context, sessionID, raterID string, rating int) error {
	return r.sessions.Rate(ctx, sessionID, raterID, rating)
}

// FileReport files an abuse report and returns the sanction applied.
func (r *Roulette) FileReport(ctx context.Context, sessionID, reporterID, reportedID, reason string) (report.Action, error) {
	return r.ledger.File(ctx, sessionID, reporterID, reportedID, reason)
}

// BlockPartner blacklists the partner of an existing session so the pair
// can never be matched again.
func (r *Roulette) BlockPartner(ctx context.Context, sessionID, participantID string) error {
	s, ok := r.sessions.Store().Get(sessionID)
	if !ok {
		return session.ErrNotFound
	}
	partner := s.Partner(participantID)
	if partner == "" {
		return session.ErrNotParticipant
	}
	return r.repo.AddToBlacklist(ctx, participantID, partner)
}
