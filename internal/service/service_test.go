package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rouletka/roulette/internal/clock"
	"github.com/rouletka/roulette/internal/config"
	"github.com/rouletka/roulette/internal/gateway"
	"github.com/rouletka/roulette/internal/moderation"
	"github.com/rouletka/roulette/internal/participant"
	"github.com/rouletka/roulette/internal/report"
	"github.com/rouletka/roulette/internal/session"
)

type fakeGateway struct {
	mu        sync.Mutex
	delivered map[string][]string
	events    map[string][]gateway.Event
	failFor   map[string]bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		delivered: make(map[string][]string),
		events:    make(map[string][]gateway.Event),
		failFor:   make(map[string]bool),
	}
}

func (g *fakeGateway) Deliver(ctx context.Context, id, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failFor[id] {
		return context.DeadlineExceeded
	}
	g.delivered[id] = append(g.delivered[id], text)
	return nil
}

func (g *fakeGateway) Notify(ctx context.Context, id string, e gateway.Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events[id] = append(g.events[id], e)
	return nil
}

func (g *fakeGateway) texts(id string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.delivered[id]...)
}

func (g *fakeGateway) lastEvent(id string) (gateway.Event, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	events := g.events[id]
	if len(events) == 0 {
		return gateway.Event{}, false
	}
	return events[len(events)-1], true
}

type world struct {
	cfg  config.Config
	clk  *clock.Fake
	gw   *fakeGateway
	repo *participant.MemoryRepository
	svc  *Roulette
}

func newWorld(t *testing.T) *world {
	t.Helper()

	cfg := config.Default()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	gw := newFakeGateway()
	repo := participant.NewMemoryRepository()
	pipeline := moderation.NewPipeline(cfg.Moderation, nil)

	svc := New(cfg, repo, session.NewMemoryStore(), report.NewMemoryStore(), gw, pipeline, nil, clk)
	return &world{cfg: cfg, clk: clk, gw: gw, repo: repo, svc: svc}
}

func (w *world) seed(ids ...string) {
	for _, id := range ids {
		w.repo.Put(&participant.Participant{ID: id, Language: "en", Reputation: 80})
	}
}

// pair queues both participants, runs a tick, and returns the session id.
func (w *world) pair(t *testing.T, a, b string) string {
	t.Helper()
	require.NoError(t, w.svc.RequestPairing(context.Background(), a, participant.Filters{}))
	require.NoError(t, w.svc.RequestPairing(context.Background(), b, participant.Filters{}))
	w.svc.Engine().Tick(context.Background())

	s, ok := w.svc.Sessions().Store().ActiveFor(a)
	require.True(t, ok, "expected %s and %s to be paired", a, b)
	require.Equal(t, b, s.Partner(a))
	return s.ID
}

func TestPairingLifecycle(t *testing.T) {
	w := newWorld(t)
	w.seed("alice", "bob")
	ctx := context.Background()

	id := w.pair(t, "alice", "bob")

	// Both sides learned about the match.
	e, ok := w.gw.lastEvent("alice")
	require.True(t, ok)
	assert.Equal(t, gateway.EventMatchFound, e.Type)
	assert.Equal(t, "bob", e.PartnerID)

	// Queueing again while the session is active is refused.
	err := w.svc.RequestPairing(ctx, "alice", participant.Filters{})
	assert.ErrorIs(t, err, ErrInSession)

	result, err := w.svc.SendMessage(ctx, id, "alice", "hi bob")
	require.NoError(t, err)
	assert.Equal(t, session.OutcomeRelayed, result.Outcome)
	assert.Equal(t, []string{"hi bob"}, w.gw.texts("bob"))

	require.NoError(t, w.svc.EndSession(ctx, id, "bob"))

	p, err := w.repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, participant.StatusIdle, p.Status)
	assert.Equal(t, 1, p.TotalChats)

	// The session is terminal.
	_, err = w.svc.SendMessage(ctx, id, "alice", "still there?")
	assert.ErrorIs(t, err, session.ErrNotActive)
}

func TestCancelPairing(t *testing.T) {
	w := newWorld(t)
	w.seed("alice")
	ctx := context.Background()

	require.NoError(t, w.svc.RequestPairing(ctx, "alice", participant.Filters{}))
	p, _ := w.repo.Get(ctx, "alice")
	assert.Equal(t, participant.StatusQueued, p.Status)

	require.NoError(t, w.svc.CancelPairing(ctx, "alice"))
	p, _ = w.repo.Get(ctx, "alice")
	assert.Equal(t, participant.StatusIdle, p.Status)

	// Cancelling when not queued is a no-op.
	require.NoError(t, w.svc.CancelPairing(ctx, "alice"))
}

func TestBannedParticipantCannotQueue(t *testing.T) {
	w := newWorld(t)
	w.repo.Put(&participant.Participant{ID: "outlaw", Status: participant.StatusBanned})

	err := w.svc.RequestPairing(context.Background(), "outlaw", participant.Filters{})
	assert.ErrorIs(t, err, ErrBanned)
}

func TestSpamMessageIsBlocked(t *testing.T) {
	w := newWorld(t)
	w.seed("alice", "bob")
	id := w.pair(t, "alice", "bob")

	result, err := w.svc.SendMessage(context.Background(), id, "alice", "buy now https://spam.example dot com")
	require.NoError(t, err)
	assert.Equal(t, session.OutcomeBlocked, result.Outcome)
	assert.Equal(t, session.BlockSpam, result.Reason)
	assert.Empty(t, w.gw.texts("bob"))
}

func TestWarnedMessageNotifiesSender(t *testing.T) {
	w := newWorld(t)
	w.seed("alice", "bob")
	id := w.pair(t, "alice", "bob")

	// One lexicon hit: low toxicity, relayed with a warning.
	result, err := w.svc.SendMessage(context.Background(), id, "alice", "you are being stupid about this")
	require.NoError(t, err)
	assert.Equal(t, session.OutcomeWarned, result.Outcome)
	assert.Equal(t, []string{"you are being stupid about this"}, w.gw.texts("bob"))

	e, ok := w.gw.lastEvent("alice")
	require.True(t, ok)
	assert.Equal(t, gateway.EventWarning, e.Type)
}

func TestDeliveryFailureEndsSession(t *testing.T) {
	w := newWorld(t)
	w.seed("alice", "bob")
	id := w.pair(t, "alice", "bob")
	w.gw.failFor["bob"] = true

	result, err := w.svc.SendMessage(context.Background(), id, "alice", "hello?")
	require.NoError(t, err)
	assert.Equal(t, session.OutcomeBlocked, result.Outcome)
	assert.Equal(t, session.BlockUnreachable, result.Reason)

	s, ok := w.svc.Sessions().Store().Get(id)
	require.True(t, ok)
	assert.Equal(t, session.StatusEnded, s.Status)
	assert.Equal(t, session.ReasonDeliveryFailure, s.EndReason)
}

func TestRatingUpdatesReputation(t *testing.T) {
	w := newWorld(t)
	w.seed("alice", "bob")
	ctx := context.Background()
	id := w.pair(t, "alice", "bob")

	// Rating an active session fails.
	assert.ErrorIs(t, w.svc.Rate(ctx, id, "alice", 5), session.ErrNotEnded)

	require.NoError(t, w.svc.EndSession(ctx, id, "alice"))
	require.NoError(t, w.svc.Rate(ctx, id, "alice", 5))

	p, err := w.repo.Get(ctx, "bob")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, p.Reputation, 0.001)
	assert.Equal(t, 1, p.LikesReceived)

	// Skip leaves the partner's reputation untouched.
	require.NoError(t, w.svc.Rate(ctx, id, "bob", 0))
	p, err = w.repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.InDelta(t, 80.0, p.Reputation, 0.001)
}

func TestReportEscalationEndsWithBan(t *testing.T) {
	w := newWorld(t)
	w.seed("target")
	ctx := context.Background()

	reporters := []string{"r1", "r2", "r3", "r4", "r5"}
	w.seed(reporters...)

	var action report.Action
	for _, reporter := range reporters {
		id := w.pair(t, reporter, "target")
		var err error
		action, err = w.svc.FileReport(ctx, id, reporter, "target", report.ReasonHarassment)
		require.NoError(t, err)
		if s, ok := w.svc.Sessions().Store().Get(id); ok && s.Status == session.StatusActive {
			require.NoError(t, w.svc.EndSession(ctx, id, reporter))
		}
	}
	assert.Equal(t, report.ActionBan, action)

	p, err := w.repo.Get(ctx, "target")
	require.NoError(t, err)
	assert.Equal(t, participant.StatusBanned, p.Status)

	assert.ErrorIs(t, w.svc.RequestPairing(ctx, "target", participant.Filters{}), ErrBanned)
}

func TestShadowBannedKeepsChattingWithDrops(t *testing.T) {
	w := newWorld(t)
	w.seed("ghost", "mark")
	ctx := context.Background()

	shadow := participant.StatusShadowBanned
	require.NoError(t, w.repo.Update(ctx, "ghost", participant.Update{Status: &shadow}))

	// Shadow-banned participants still queue and match.
	id := w.pair(t, "ghost", "mark")

	// Force the drop branch: every roll is below the drop rate.
	w.svc.Sessions().SetRand(func() float64 { return 0 })

	result, err := w.svc.SendMessage(ctx, id, "ghost", "anyone there?")
	require.NoError(t, err)
	assert.Equal(t, session.OutcomeRelayed, result.Outcome)
	assert.Empty(t, w.gw.texts("mark"), "dropped message must not reach the partner")

	// With rolls above the drop rate the message goes through.
	w.svc.Sessions().SetRand(func() float64 { return 0.99 })
	_, err = w.svc.SendMessage(ctx, id, "ghost", "hello again")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello again"}, w.gw.texts("mark"))

	// The shadow status survived matching and messaging.
	p, err := w.repo.Get(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, participant.StatusShadowBanned, p.Status)
}

func TestBlockPartnerPreventsRematch(t *testing.T) {
	w := newWorld(t)
	w.seed("alice", "bob")
	ctx := context.Background()

	id := w.pair(t, "alice", "bob")
	require.NoError(t, w.svc.EndSession(ctx, id, "alice"))
	require.NoError(t, w.svc.BlockPartner(ctx, id, "alice"))

	require.NoError(t, w.svc.RequestPairing(ctx, "alice", participant.Filters{}))
	require.NoError(t, w.svc.RequestPairing(ctx, "bob", participant.Filters{}))
	w.svc.Engine().Tick(ctx)

	_, ok := w.svc.Sessions().Store().ActiveFor("alice")
	assert.False(t, ok, "blacklisted pair must not be rematched")
}
