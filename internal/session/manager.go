package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"

	"github.com/google/uuid"

	"github.com/rouletka/roulette/internal/clock"
	"github.com/rouletka/roulette/internal/config"
	"github.com/rouletka/roulette/internal/gateway"
	"github.com/rouletka/roulette/internal/metrics"
	"github.com/rouletka/roulette/internal/moderation"
	"github.com/rouletka/roulette/internal/participant"
)

// Sentinel errors surfaced by the manager. ErrParticipantBusy is a conflict
// the caller decides about; the rest are validation failures.
var (
	ErrNotFound        = errors.New("session: not found")
	ErrNotActive       = errors.New("session: not active")
	ErrNotEnded        = errors.New("session: not ended")
	ErrNotParticipant  = errors.New("session: not a participant")
	ErrParticipantBusy = errors.New("session: participant already in a session")
	ErrInvalidRating   = errors.New("session: invalid rating")
)

// Outcome of a relay attempt.
type Outcome string

const (
	OutcomeRelayed Outcome = "relayed"
	OutcomeWarned  Outcome = "warned"
	OutcomeBlocked Outcome = "blocked"
)

// Block reasons reported to the caller.
const (
	BlockSpam        = "spam"
	BlockToxic       = "toxic"
	BlockFlood       = "flood"
	BlockBanned      = "banned"
	BlockUnreachable = "partner_unreachable"
)

// RelayResult describes what happened to a message handed to Relay.
type RelayResult struct {
	Outcome Outcome
	Reason  string // set when Outcome is OutcomeBlocked
	Verdict moderation.Verdict
}

// FloodLimiter throttles message submission per sender. Implementations
// fail open: an infrastructure error must not block legitimate traffic.
type FloodLimiter interface {
	Allow(ctx context.Context, participantID string) (bool, error)
}

// Manager owns the session state machine. All membership transitions for a
// participant are serialized through per-id striped locks; moderation and
// gateway delivery happen outside every critical section.
type Manager struct {
	cfg      config.Session
	dropRate float64

	store    Store
	repo     participant.Repository
	pipeline *moderation.Pipeline
	gw       gateway.Gateway
	limiter  FloodLimiter
	clk      clock.Clock
	rand     func() float64

	log   *MessageLog
	locks stripedLock
}

// NewManager wires a session manager. limiter may be nil to disable flood
// control.
func NewManager(
	cfg config.Session,
	dropRate float64,
	store Store,
	repo participant.Repository,
	pipeline *moderation.Pipeline,
	gw gateway.Gateway,
	limiter FloodLimiter,
	clk clock.Clock,
) *Manager {
	return &Manager{
		cfg:      cfg,
		dropRate: dropRate,
		store:    store,
		repo:     repo,
		pipeline: pipeline,
		gw:       gw,
		limiter:  limiter,
		clk:      clk,
		rand:     rand.Float64,
		log:      NewMessageLog(),
	}
}

// SetRand replaces the RNG used for shadow-ban drops. Tests inject a
// deterministic source.
func (m *Manager) SetRand(f func() float64) { m.rand = f }

// Store exposes the session registry to collaborators (scorer, ledger).
func (m *Manager) Store() Store { return m.store }

// RecentMessages returns the session's buffered messages for report
// snapshots.
func (m *Manager) RecentMessages(sessionID string) []LoggedMessage {
	return m.log.Recent(sessionID)
}

// Create commits a matched pair into a new active session. Neither
// participant may have another active session; the caller has already
// removed both from the queue. On success both statuses become InSession
// and a match-found event is sent to each side.
func (m *Manager) Create(ctx context.Context, a, b string) (Session, error) {
	if a == b {
		return Session{}, fmt.Errorf("session: cannot pair %s with itself", a)
	}

	unlock := m.locks.LockPair(a, b)
	if _, busy := m.store.ActiveFor(a); busy {
		unlock()
		return Session{}, fmt.Errorf("%w: %s", ErrParticipantBusy, a)
	}
	if _, busy := m.store.ActiveFor(b); busy {
		unlock()
		return Session{}, fmt.Errorf("%w: %s", ErrParticipantBusy, b)
	}

	s := Session{
		ID:           uuid.New().String(),
		ParticipantA: a,
		ParticipantB: b,
		StartedAt:    m.clk.Now(),
		Status:       StatusActive,
	}
	m.store.Put(s)
	unlock()

	inSession := participant.StatusInSession
	for _, id := range []string{a, b} {
		p, err := m.repo.Get(ctx, id)
		if err != nil {
			log.Printf("[session] load %s on create: %v", id, err)
			continue
		}
		// Sanction statuses survive the lifecycle; a shadow-banned
		// participant keeps matching without the status being reset.
		if p.Status == participant.StatusBanned || p.Status == participant.StatusShadowBanned {
			continue
		}
		if err := m.repo.Update(ctx, id, participant.Update{Status: &inSession}); err != nil {
			log.Printf("[session] set status for %s: %v", id, err)
		}
	}

	metrics.ActiveSessions.Inc()
	log.Printf("[session] created %s: %s <-> %s", s.ID, a, b)

	// Delivery after state is committed; a failed notify is not fatal,
	// the first failed Deliver will end the session.
	for _, id := range []string{a, b} {
		event := gateway.Event{
			Type:      gateway.EventMatchFound,
			SessionID: s.ID,
			PartnerID: s.Partner(id),
		}
		if err := m.gw.Notify(ctx, id, event); err != nil {
			log.Printf("[session] notify match to %s: %v", id, err)
		}
	}

	return s, nil
}

// Relay passes one message from sender to their partner, subject to
// validation, flood control, shadow-ban drops, and the moderation pipeline.
// The moderation call and the gateway delivery run outside all locks.
func (m *Manager) Relay(ctx context.Context, sessionID, senderID, text string) (RelayResult, error) {
	s, ok := m.store.Get(sessionID)
	if !ok {
		return RelayResult{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if s.Status != StatusActive {
		return RelayResult{}, fmt.Errorf("%w: %s", ErrNotActive, sessionID)
	}
	if !s.IsParticipant(senderID) {
		return RelayResult{}, fmt.Errorf("%w: %s in %s", ErrNotParticipant, senderID, sessionID)
	}

	if err := ValidateText(text, m.cfg.MaxMessageBytes, m.cfg.MaxMessageChars); err != nil {
		return RelayResult{}, fmt.Errorf("session: invalid message: %w", err)
	}

	sender, err := m.repo.Get(ctx, senderID)
	if err != nil {
		return RelayResult{}, fmt.Errorf("session: load sender %s: %w", senderID, err)
	}

	if sender.Status == participant.StatusBanned {
		return RelayResult{Outcome: OutcomeBlocked, Reason: BlockBanned}, nil
	}

	if m.limiter != nil {
		allowed, err := m.limiter.Allow(ctx, senderID)
		if err != nil {
			log.Printf("[session] flood limiter for %s: %v (failing open)", senderID, err)
		} else if !allowed {
			metrics.MessagesTotal.WithLabelValues("blocked").Inc()
			return RelayResult{Outcome: OutcomeBlocked, Reason: BlockFlood}, nil
		}
	}

	// Shadow-banned senders lose messages silently: the caller sees a
	// normal relay, the partner receives nothing.
	if sender.Status == participant.StatusShadowBanned && m.rand() < m.dropRate {
		metrics.MessagesTotal.WithLabelValues("dropped").Inc()
		return RelayResult{Outcome: OutcomeRelayed}, nil
	}

	verdict := m.pipeline.Evaluate(ctx, text, sender.Language)
	if m.pipeline.Blocks(verdict) {
		reason := BlockToxic
		if verdict.IsSpam {
			reason = BlockSpam
		}
		metrics.MessagesTotal.WithLabelValues("blocked").Inc()
		return RelayResult{Outcome: OutcomeBlocked, Reason: reason, Verdict: verdict}, nil
	}

	// Commit the message against the session under the pair lock; the
	// session may have ended while moderation ran.
	unlock := m.locks.LockPair(s.ParticipantA, s.ParticipantB)
	current, ok := m.store.Get(sessionID)
	if !ok || current.Status != StatusActive {
		unlock()
		return RelayResult{}, fmt.Errorf("%w: %s", ErrNotActive, sessionID)
	}
	current.MessageCount++
	m.store.Put(current)
	unlock()

	m.log.Add(sessionID, LoggedMessage{
		From:    senderID,
		Text:    text,
		Flagged: verdict.Toxicity > moderation.LevelNone,
		Ts:      m.clk.Now().Unix(),
	})

	if err := m.repo.IncrementCounter(ctx, senderID, participant.CounterTotalMessages); err != nil {
		log.Printf("[session] increment messages for %s: %v", senderID, err)
	}

	partner := s.Partner(senderID)
	if err := m.gw.Deliver(ctx, partner, text); err != nil {
		log.Printf("[session] deliver to %s failed: %v, ending %s", partner, err, sessionID)
		if endErr := m.End(ctx, sessionID, senderID, ReasonDeliveryFailure); endErr != nil {
			log.Printf("[session] end after delivery failure: %v", endErr)
		}
		return RelayResult{Outcome: OutcomeBlocked, Reason: BlockUnreachable, Verdict: verdict}, nil
	}

	metrics.MessagesTotal.WithLabelValues("relayed").Inc()
	if m.pipeline.Warns(verdict) {
		metrics.MessagesTotal.WithLabelValues("warned").Inc()
		return RelayResult{Outcome: OutcomeWarned, Verdict: verdict}, nil
	}
	return RelayResult{Outcome: OutcomeRelayed, Verdict: verdict}, nil
}

// End terminates a session. Idempotent: ending an already-ended session is
// a successful no-op, so the explicit end, report enforcement, and delivery
// failure paths can all race on the same session.
func (m *Manager) End(ctx context.Context, sessionID, endedBy, reason string) error {
	s, ok := m.store.Get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	unlock := m.locks.LockPair(s.ParticipantA, s.ParticipantB)
	current, ok := m.store.Get(sessionID)
	if !ok {
		unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if current.Status == StatusEnded {
		unlock()
		return nil // already ended elsewhere
	}
	current.Status = StatusEnded
	current.EndedAt = m.clk.Now()
	current.EndedBy = endedBy
	current.EndReason = reason
	m.store.Put(current)
	unlock()

	metrics.ActiveSessions.Dec()
	log.Printf("[session] ended %s by %s (%s) after %s",
		sessionID, endedBy, reason, current.Duration())

	idle := participant.StatusIdle
	for _, id := range []string{current.ParticipantA, current.ParticipantB} {
		p, err := m.repo.Get(ctx, id)
		if err != nil {
			log.Printf("[session] load %s on end: %v", id, err)
			continue
		}
		// A ban applied during the session must survive its end.
		if p.Status == participant.StatusInSession {
			if err := m.repo.Update(ctx, id, participant.Update{Status: &idle}); err != nil {
				log.Printf("[session] reset status for %s: %v", id, err)
			}
		}
		if err := m.repo.IncrementCounter(ctx, id, participant.CounterTotalChats); err != nil {
			log.Printf("[session] increment chats for %s: %v", id, err)
		}
		if err := m.repo.AddExperience(ctx, id, m.cfg.ChatExperience); err != nil {
			log.Printf("[session] add experience for %s: %v", id, err)
		}
	}

	for _, id := range []string{current.ParticipantA, current.ParticipantB} {
		event := gateway.Event{
			Type:      gateway.EventSessionEnded,
			SessionID: sessionID,
			Reason:    reason,
		}
		if err := m.gw.Notify(ctx, id, event); err != nil {
			log.Printf("[session] notify end to %s: %v", id, err)
		}
	}

	return nil
}

// Rate records a 1-5 rating (or 0 for skip) on the rater's side of an ended
// session and recomputes the partner's reputation as the mean of all
// non-skip ratings they have received, scaled x20 onto 0-100 so it is
// comparable against the matcher's reputation cutoff.
func (m *Manager) Rate(ctx context.Context, sessionID, raterID string, rating int) error {
	if rating < 0 || rating > 5 {
		return fmt.Errorf("%w: %d", ErrInvalidRating, rating)
	}

	s, ok := m.store.Get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if s.Status != StatusEnded {
		return fmt.Errorf("%w: %s", ErrNotEnded, sessionID)
	}
	if !s.IsParticipant(raterID) {
		return fmt.Errorf("%w: %s in %s", ErrNotParticipant, raterID, sessionID)
	}

	unlock := m.locks.LockPair(s.ParticipantA, s.ParticipantB)
	current, _ := m.store.Get(sessionID)
	if raterID == current.ParticipantA {
		current.RatingA = rating
	} else {
		current.RatingB = rating
	}
	m.store.Put(current)
	unlock()

	if rating == 0 {
		return nil // skip: stored as absent, excluded from reputation
	}

	partner := s.Partner(raterID)
	ratings := m.store.RatingsReceived(partner)
	if len(ratings) > 0 {
		sum := 0
		for _, r := range ratings {
			sum += r
		}
		mean := float64(sum) / float64(len(ratings)) * 20 // 1-5 scale to 0-100
		if err := m.repo.Update(ctx, partner, participant.Update{Reputation: &mean}); err != nil {
			return fmt.Errorf("session: update reputation for %s: %w", partner, err)
		}
	}

	if rating >= 4 {
		if err := m.repo.IncrementCounter(ctx, partner, participant.CounterLikesReceived); err != nil {
			log.Printf("[session] increment likes for %s: %v", partner, err)
		}
	}
	return nil
}
