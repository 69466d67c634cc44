package report

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/rouletka/roulette/internal/clock"
	"github.com/rouletka/roulette/internal/config"
	"github.com/rouletka/roulette/internal/gateway"
	"github.com/rouletka/roulette/internal/metrics"
	"github.com/rouletka/roulette/internal/participant"
	"github.com/rouletka/roulette/internal/queue"
	"github.com/rouletka/roulette/internal/session"
)

// Action is the sanction applied as a consequence of a filed report.
type Action string

const (
	ActionNone      Action = "none"
	ActionShadowBan Action = "shadow_ban"
	ActionBan       Action = "ban"
)

// Ledger files reports and applies the window-based sanctions. Thresholds
// are evaluated on every filing against the sliding window, so expiring
// old reports requires no background job.
type Ledger struct {
	cfg      config.Enforcement
	store    Store
	sessions *session.Manager
	repo     participant.Repository
	queue    *queue.Queue
	gw       gateway.Gateway
	clk      clock.Clock
}

// NewLedger wires a report ledger.
func NewLedger(
	cfg config.Enforcement,
	store Store,
	sessions *session.Manager,
	repo participant.Repository,
	q *queue.Queue,
	gw gateway.Gateway,
	clk clock.Clock,
) *Ledger {
	return &Ledger{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		repo:     repo,
		queue:    q,
		gw:       gw,
		clk:      clk,
	}
}

// File records a report by reporterID against reportedID over sessionID and
// returns the sanction that resulted. The reporter must be a member of the
// session and the reported participant must be their partner. Filing is
// unconditional once validated; sanctions depend only on the window count.
func (l *Ledger) File(ctx context.Context, sessionID, reporterID, reportedID, reason string) (Action, error) {
	if !ValidReason(reason) {
		return ActionNone, fmt.Errorf("%w: %q", ErrInvalidReason, reason)
	}
	if reporterID == reportedID {
		return ActionNone, ErrSelfReport
	}

	s, ok := l.sessions.Store().Get(sessionID)
	if !ok {
		return ActionNone, session.ErrNotFound
	}
	if !s.IsParticipant(reporterID) || s.Partner(reporterID) != reportedID {
		return ActionNone, ErrNotParticipant
	}

	now := l.clk.Now()
	r := Report{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		ReporterID: reporterID,
		ReportedID: reportedID,
		Reason:     reason,
		Messages:   l.sessions.RecentMessages(sessionID),
		CreatedAt:  now,
	}
	if err := l.store.Add(ctx, r); err != nil {
		return ActionNone, fmt.Errorf("report: file: %w", err)
	}

	action := l.enforce(ctx, reportedID)
	metrics.ReportsTotal.WithLabelValues(string(action)).Inc()
	log.Printf("[ledger] report %s: %s -> %s reason=%s action=%s", r.ID, reporterID, reportedID, reason, action)
	return action, nil
}

// enforce applies the window thresholds. A failed count leaves the
// participant unsanctioned until the next report.
func (l *Ledger) enforce(ctx context.Context, reportedID string) Action {
	since := l.clk.Now().Add(-l.cfg.ReportWindow)
	count, err := l.store.CountSince(ctx, reportedID, since)
	if err != nil {
		log.Printf("[ledger] count reports for %s: %v", reportedID, err)
		return ActionNone
	}

	switch {
	case count >= l.cfg.BanThreshold:
		l.ban(ctx, reportedID)
		return ActionBan
	case count >= l.cfg.ShadowThreshold:
		if l.shadowBan(ctx, reportedID) {
			return ActionShadowBan
		}
		return ActionNone
	}
	return ActionNone
}

// ban makes the sanction permanent. The status flips before the session
// ends so the end path cannot reset the participant back to idle.
func (l *Ledger) ban(ctx context.Context, id string) {
	banned := participant.StatusBanned
	if err := l.repo.Update(ctx, id, participant.Update{Status: &banned}); err != nil {
		log.Printf("[ledger] ban %s: %v", id, err)
	}
	l.queue.Remove(id)

	if s, ok := l.sessions.Store().ActiveFor(id); ok {
		if err := l.sessions.End(ctx, s.ID, id, session.ReasonAbuse); err != nil {
			log.Printf("[ledger] end session %s for banned %s: %v", s.ID, id, err)
		}
	}

	if err := l.gw.Notify(ctx, id, gateway.Event{Type: gateway.EventBanned}); err != nil {
		log.Printf("[ledger] notify ban to %s: %v", id, err)
	}
}

// shadowBan degrades the participant without telling them. An existing
// permanent ban is never downgraded; returns whether the status changed.
func (l *Ledger) shadowBan(ctx context.Context, id string) bool {
	p, err := l.repo.Get(ctx, id)
	if err != nil {
		log.Printf("[ledger] load %s for shadow-ban: %v", id, err)
		return false
	}
	if p.Status == participant.StatusBanned || p.Status == participant.StatusShadowBanned {
		return p.Status == participant.StatusShadowBanned
	}

	shadow := participant.StatusShadowBanned
	if err := l.repo.Update(ctx, id, participant.Update{Status: &shadow}); err != nil {
		log.Printf("[ledger] shadow-ban %s: %v", id, err)
		return false
	}
	return true
}
