package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rouletka/roulette/internal/clock"
	"github.com/rouletka/roulette/internal/config"
	"github.com/rouletka/roulette/internal/gateway"
	"github.com/rouletka/roulette/internal/moderation"
	"github.com/rouletka/roulette/internal/participant"
	"github.com/rouletka/roulette/internal/queue"
	"github.com/rouletka/roulette/internal/session"
)

type nullGateway struct {
	notified []gateway.Event
}

func (g *nullGateway) Deliver(ctx context.Context, id, text string) error { return nil }

func (g *nullGateway) Notify(ctx context.Context, id string, e gateway.Event) error {
	g.notified = append(g.notified, e)
	return nil
}

type fixture struct {
	cfg      config.Config
	clk      *clock.Fake
	repo     *participant.MemoryRepository
	store    *MemoryStore
	sessions *session.Manager
	gw       *nullGateway
	ledger   *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Default()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := participant.NewMemoryRepository()
	store := NewMemoryStore()
	gw := &nullGateway{}
	q := queue.New(clk)

	pipeline := moderation.NewPipeline(cfg.Moderation, nil)
	sessions := session.NewManager(cfg.Session, 0, session.NewMemoryStore(), repo, pipeline, gw, nil, clk)
	ledger := NewLedger(cfg.Enforcement, store, sessions, repo, q, gw, clk)

	return &fixture{cfg: cfg, clk: clk, repo: repo, store: store, sessions: sessions, gw: gw, ledger: ledger}
}

// openSession seeds any missing profiles and an active session between the
// two participants. Existing profiles keep their status.
func (f *fixture) openSession(t *testing.T, a, b string) string {
	t.Helper()
	for _, id := range []string{a, b} {
		if _, err := f.repo.Get(context.Background(), id); err != nil {
			f.repo.Put(&participant.Participant{ID: id})
		}
	}
	s, err := f.sessions.Create(context.Background(), a, b)
	require.NoError(t, err)
	return s.ID
}

// file reports "target" from a fresh reporter each time, each over its own
// session, so every call counts toward the target's window.
func (f *fixture) file(t *testing.T, target string, n int) Action {
	t.Helper()
	var action Action
	for i := 0; i < n; i++ {
		reporter := "reporter-" + string(rune('a'+i))
		id := f.openSession(t, reporter, target)
		var err error
		action, err = f.ledger.File(context.Background(), id, reporter, target, ReasonHarassment)
		require.NoError(t, err)
		require.NoError(t, f.sessions.End(context.Background(), id, reporter, session.ReasonUser))
	}
	return action
}

func TestFileRejectsInvalidReason(t *testing.T) {
	f := newFixture(t)
	id := f.openSession(t, "a", "b")

	_, err := f.ledger.File(context.Background(), id, "a", "b", "grumpy")
	assert.ErrorIs(t, err, ErrInvalidReason)
}

func TestFileRejectsOutsiders(t *testing.T) {
	f := newFixture(t)
	id := f.openSession(t, "a", "b")
	f.repo.Put(&participant.Participant{ID: "c"})

	_, err := f.ledger.File(context.Background(), id, "c", "b", ReasonSpam)
	assert.ErrorIs(t, err, ErrNotParticipant)

	// Reported must be the reporter's partner.
	_, err = f.ledger.File(context.Background(), id, "a", "c", ReasonSpam)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = f.ledger.File(context.Background(), id, "a", "a", ReasonSpam)
	assert.ErrorIs(t, err, ErrSelfReport)
}

func TestFileBelowThresholdTakesNoAction(t *testing.T) {
	f := newFixture(t)
	action := f.file(t, "target", f.cfg.Enforcement.ShadowThreshold-1)
	assert.Equal(t, ActionNone, action)

	p, err := f.repo.Get(context.Background(), "target")
	require.NoError(t, err)
	assert.Equal(t, participant.StatusIdle, p.Status)
}

func TestThresholdTriggersShadowBan(t *testing.T) {
	f := newFixture(t)
	action := f.file(t, "target", f.cfg.Enforcement.ShadowThreshold)
	assert.Equal(t, ActionShadowBan, action)

	p, err := f.repo.Get(context.Background(), "target")
	require.NoError(t, err)
	assert.Equal(t, participant.StatusShadowBanned, p.Status)

	// Nothing is pushed to the shadow-banned participant.
	for _, e := range f.gw.notified {
		assert.NotEqual(t, gateway.EventBanned, e.Type)
	}
}

func TestThresholdTriggersBanAndEndsSession(t *testing.T) {
	f := newFixture(t)
	f.file(t, "target", f.cfg.Enforcement.BanThreshold-1)

	// Final report arrives while the target holds an active session.
	id := f.openSession(t, "last-reporter", "target")
	action, err := f.ledger.File(context.Background(), id, "last-reporter", "target", ReasonHarassment)
	require.NoError(t, err)
	assert.Equal(t, ActionBan, action)

	p, err := f.repo.Get(context.Background(), "target")
	require.NoError(t, err)
	assert.Equal(t, participant.StatusBanned, p.Status)

	s, ok := f.sessions.Store().Get(id)
	require.True(t, ok)
	assert.Equal(t, session.StatusEnded, s.Status)
	assert.Equal(t, session.ReasonAbuse, s.EndReason)

	banned := false
	for _, e := range f.gw.notified {
		if e.Type == gateway.EventBanned {
			banned = true
		}
	}
	assert.True(t, banned)
}

func TestOldReportsFallOutOfWindow(t *testing.T) {
	f := newFixture(t)
	f.file(t, "target", f.cfg.Enforcement.ShadowThreshold-1)

	// The earlier reports expire; one more inside a fresh window is not
	// enough for a sanction.
	f.clk.Advance(f.cfg.Enforcement.ReportWindow + time.Minute)
	action := f.file(t, "target", 1)
	assert.Equal(t, ActionNone, action)

	p, err := f.repo.Get(context.Background(), "target")
	require.NoError(t, err)
	assert.Equal(t, participant.StatusIdle, p.Status)
}

func TestShadowBanNeverDowngradesBan(t *testing.T) {
	f := newFixture(t)
	banned := participant.StatusBanned
	f.repo.Put(&participant.Participant{ID: "target", Status: banned})

	// Window count lands between the two thresholds.
	f.file(t, "target", f.cfg.Enforcement.ShadowThreshold)

	p, err := f.repo.Get(context.Background(), "target")
	require.NoError(t, err)
	assert.Equal(t, participant.StatusBanned, p.Status)
}

func TestReportCapturesMessageSnapshot(t *testing.T) {
	f := newFixture(t)
	id := f.openSession(t, "a", "b")

	_, err := f.sessions.Relay(context.Background(), id, "b", "hello there")
	require.NoError(t, err)

	action, err := f.ledger.File(context.Background(), id, "a", "b", ReasonExplicit)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, action)

	reports := f.store.All()
	require.Len(t, reports, 1)
	require.Len(t, reports[0].Messages, 1)
	assert.Equal(t, "hello there", reports[0].Messages[0].Text)
	assert.Equal(t, "b", reports[0].Messages[0].From)
}
