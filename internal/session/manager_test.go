package session

import (
	"context"
	"errors"
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
)

type stubGateway struct {
	mu        sync.Mutex
	delivered map[string][]string
	events    map[string][]gateway.Event
	failIDs   map[string]bool
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		delivered: make(map[string][]string),
		events:    make(map[string][]gateway.Event),
		failIDs:   make(map[string]bool),
	}
}

func (g *stubGateway) Deliver(ctx context.Context, id, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failIDs[id] {
		return errors.New("unreachable")
	}
	g.delivered[id] = append(g.delivered[id], text)
	return nil
}

func (g *stubGateway) Notify(ctx context.Context, id string, e gateway.Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events[id] = append(g.events[id], e)
	return nil
}

type denyLimiter struct{ allow bool }

func (d denyLimiter) Allow(ctx context.Context, id string) (bool, error) { return d.allow, nil }

type failingLimiter struct{}

func (failingLimiter) Allow(ctx context.Context, id string) (bool, error) {
	return false, errors.New("redis down")
}

func newTestManager(t *testing.T, limiter FloodLimiter) (*Manager, *participant.MemoryRepository, *stubGateway, *clock.Fake) {
	t.Helper()
	cfg := config.Default()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := participant.NewMemoryRepository()
	gw := newStubGateway()
	pipeline := moderation.NewPipeline(cfg.Moderation, nil)
	m := NewManager(cfg.Session, cfg.Enforcement.ShadowDropRate, NewMemoryStore(), repo, pipeline, gw, limiter, clk)
	return m, repo, gw, clk
}

func seed(repo *participant.MemoryRepository, ids ...string) {
	for _, id := range ids {
		repo.Put(&participant.Participant{ID: id, Language: "en"})
	}
}

func TestCreateRefusesBusyParticipants(t *testing.T) {
	m, repo, _, _ := newTestManager(t, nil)
	seed(repo, "a", "b", "c")
	ctx := context.Background()

	_, err := m.Create(ctx, "a", "b")
	require.NoError(t, err)

	_, err = m.Create(ctx, "a", "c")
	assert.ErrorIs(t, err, ErrParticipantBusy)

	_, err = m.Create(ctx, "a", "a")
	assert.Error(t, err)
}

func TestCreateSetsStatusAndNotifies(t *testing.T) {
	m, repo, gw, _ := newTestManager(t, nil)
	seed(repo, "a", "b")
	ctx := context.Background()

	s, err := m.Create(ctx, "a", "b")
	require.NoError(t, err)

	p, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, participant.StatusInSession, p.Status)

	require.Len(t, gw.events["b"], 1)
	assert.Equal(t, gateway.EventMatchFound, gw.events["b"][0].Type)
	assert.Equal(t, "a", gw.events["b"][0].PartnerID)
	assert.Equal(t, s.ID, gw.events["b"][0].SessionID)
}

func TestRelayValidatesMembershipAndText(t *testing.T) {
	m, repo, _, _ := newTestManager(t, nil)
	seed(repo, "a", "b", "outsider")
	ctx := context.Background()
	s, err := m.Create(ctx, "a", "b")
	require.NoError(t, err)

	_, err = m.Relay(ctx, "nope", "a", "hello")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Relay(ctx, s.ID, "outsider", "hello")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = m.Relay(ctx, s.ID, "a", "")
	assert.Error(t, err)
}

func TestRelayCountsAndBuffers(t *testing.T) {
	m, repo, gw, _ := newTestManager(t, nil)
	seed(repo, "a", "b")
	ctx := context.Background()
	s, err := m.Create(ctx, "a", "b")
	require.NoError(t, err)

	for _, text := range []string{"hello how are you", "i love music and movies"} {
		result, err := m.Relay(ctx, s.ID, "a", text)
		require.NoError(t, err)
		assert.Equal(t, OutcomeRelayed, result.Outcome)
	}

	current, ok := m.store.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, 2, current.MessageCount)
	assert.Len(t, gw.delivered["b"], 2)

	recent := m.RecentMessages(s.ID)
	require.Len(t, recent, 2)
	assert.Equal(t, "a", recent[0].From)
	assert.Equal(t, "hello how are you", recent[0].Text)

	p, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, p.TotalMessages)
}

func TestRelayBlocksFloodedSender(t *testing.T) {
	m, repo, _, _ := newTestManager(t, denyLimiter{allow: false})
	seed(repo, "a", "b")
	ctx := context.Background()
	s, err := m.Create(ctx, "a", "b")
	require.NoError(t, err)

	result, err := m.Relay(ctx, s.ID, "a", "hello")
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, result.Outcome)
	assert.Equal(t, BlockFlood, result.Reason)
}

func TestRelayFailsOpenOnLimiterError(t *testing.T) {
	m, repo, gw, _ := newTestManager(t, failingLimiter{})
	seed(repo, "a", "b")
	ctx := context.Background()
	s, err := m.Create(ctx, "a", "b")
	require.NoError(t, err)

	result, err := m.Relay(ctx, s.ID, "a", "hello")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRelayed, result.Outcome)
	assert.Len(t, gw.delivered["b"], 1)
}

func TestRelayBlocksBannedSender(t *testing.T) {
	m, repo, gw, _ := newTestManager(t, nil)
	seed(repo, "a", "b")
	ctx := context.Background()
	s, err := m.Create(ctx, "a", "b")
	require.NoError(t, err)

	banned := participant.StatusBanned
	require.NoError(t, repo.Update(ctx, "a", participant.Update{Status: &banned}))

	result, err := m.Relay(ctx, s.ID, "a", "hello")
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, result.Outcome)
	assert.Equal(t, BlockBanned, result.Reason)
	assert.Empty(t, gw.delivered["b"])
}

func TestShadowDropIsSilent(t *testing.T) {
	m, repo, gw, _ := newTestManager(t, nil)
	seed(repo, "a", "b")
	ctx := context.Background()
	s, err := m.Create(ctx, "a", "b")
	require.NoError(t, err)

	shadow := participant.StatusShadowBanned
	require.NoError(t, repo.Update(ctx, "a", participant.Update{Status: &shadow}))

	m.SetRand(func() float64 { return 0 })
	result, err := m.Relay(ctx, s.ID, "a", "hello")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRelayed, result.Outcome)
	assert.Empty(t, gw.delivered["b"])

	// Dropped messages leave no trace in the session either.
	current, _ := m.store.Get(s.ID)
	assert.Equal(t, 0, current.MessageCount)
	assert.Empty(t, m.RecentMessages(s.ID))
}

func TestEndIsIdempotent(t *testing.T) {
	m, repo, _, clk := newTestManager(t, nil)
	seed(repo, "a", "b")
	ctx := context.Background()
	s, err := m.Create(ctx, "a", "b")
	require.NoError(t, err)

	clk.Advance(3 * time.Minute)
	require.NoError(t, m.End(ctx, s.ID, "a", ReasonUser))
	require.NoError(t, m.End(ctx, s.ID, "b", ReasonUser))

	current, ok := m.store.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, StatusEnded, current.Status)
	assert.Equal(t, "a", current.EndedBy)
	assert.Equal(t, ReasonUser, current.EndReason)
	assert.Equal(t, 3*time.Minute, current.Duration())

	// One chat and one experience grant each, despite the double End.
	p, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalChats)
}

func TestEndPreservesBans(t *testing.T) {
	m, repo, _, _ := newTestManager(t, nil)
	seed(repo, "a", "b")
	ctx := context.Background()
	s, err := m.Create(ctx, "a", "b")
	require.NoError(t, err)

	banned := participant.StatusBanned
	require.NoError(t, repo.Update(ctx, "b", participant.Update{Status: &banned}))
	require.NoError(t, m.End(ctx, s.ID, "a", ReasonAbuse))

	pa, _ := repo.Get(ctx, "a")
	pb, _ := repo.Get(ctx, "b")
	assert.Equal(t, participant.StatusIdle, pa.Status)
	assert.Equal(t, participant.StatusBanned, pb.Status)
}

func TestRateValidation(t *testing.T) {
	m, repo, _, _ := newTestManager(t, nil)
	seed(repo, "a", "b")
	ctx := context.Background()
	s, err := m.Create(ctx, "a", "b")
	require.NoError(t, err)

	assert.ErrorIs(t, m.Rate(ctx, s.ID, "a", 5), ErrNotEnded)
	require.NoError(t, m.End(ctx, s.ID, "a", ReasonUser))

	assert.ErrorIs(t, m.Rate(ctx, s.ID, "a", 6), ErrInvalidRating)
	assert.ErrorIs(t, m.Rate(ctx, s.ID, "a", -1), ErrInvalidRating)
	assert.ErrorIs(t, m.Rate(ctx, s.ID, "outsider", 4), ErrNotParticipant)
}

func TestRateComputesMeanReputation(t *testing.T) {
	m, repo, _, _ := newTestManager(t, nil)
	seed(repo, "a", "b", "c")
	ctx := context.Background()

	first, err := m.Create(ctx, "a", "b")
	require.NoError(t, err)
	require.NoError(t, m.End(ctx, first.ID, "a", ReasonUser))
	require.NoError(t, m.Rate(ctx, first.ID, "a", 5))

	second, err := m.Create(ctx, "b", "c")
	require.NoError(t, err)
	require.NoError(t, m.End(ctx, second.ID, "b", ReasonUser))
	require.NoError(t, m.Rate(ctx, second.ID, "c", 2))

	// b received 5 and 2: mean 3.5 on the 1-5 scale, 70 on the 0-100 scale.
	p, err := repo.Get(ctx, "b")
	require.NoError(t, err)
	assert.InDelta(t, 70.0, p.Reputation, 0.001)

	// Only the 5 counted as a like.
	assert.Equal(t, 1, p.LikesReceived)
}
