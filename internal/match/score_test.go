package match

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rouletka/roulette/internal/clock"
	"github.com/rouletka/roulette/internal/config"
	"github.com/rouletka/roulette/internal/participant"
	"github.com/rouletka/roulette/internal/queue"
	"github.com/rouletka/roulette/internal/session"
)

func newTestScorer(t *testing.T) (*Scorer, *participant.MemoryRepository, *session.MemoryStore, *clock.Fake) {
	t.Helper()
	cfg := config.Default()
	repo := participant.NewMemoryRepository()
	store := session.NewMemoryStore()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewScorer(cfg.Matching, repo, store, clk), repo, store, clk
}

func entry(id string, f participant.Filters) queue.Entry {
	return queue.Entry{ParticipantID: id, Filters: f}
}

func TestScoreHardFilters(t *testing.T) {
	scorer, repo, _, _ := newTestScorer(t)
	ctx := context.Background()

	pa := &participant.Participant{ID: "a", Language: "en", AgeGroup: "18-25"}
	pb := &participant.Participant{ID: "b", Language: "ru", AgeGroup: "26-35"}
	repo.Put(pa)
	repo.Put(pb)

	tests := []struct {
		name string
		fa   participant.Filters
		fb   participant.Filters
		want bool
	}{
		{"no filters", participant.Filters{}, participant.Filters{}, true},
		{"language pin excludes partner", participant.Filters{Language: "en"}, participant.Filters{}, false},
		{"language pin satisfied", participant.Filters{Language: "ru"}, participant.Filters{}, true},
		{"partner side language pin", participant.Filters{}, participant.Filters{Language: "de"}, false},
		{"age pin excludes partner", participant.Filters{AgeGroups: []string{"18-25"}}, participant.Filters{}, false},
		{"age pin satisfied", participant.Filters{AgeGroups: []string{"26-35", "36-45"}}, participant.Filters{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, viable := scorer.Score(ctx, entry("a", tt.fa), entry("b", tt.fb), pa, pb)
			assert.Equal(t, tt.want, viable)
		})
	}
}

func TestScoreBlacklistRejects(t *testing.T) {
	scorer, repo, _, _ := newTestScorer(t)
	ctx := context.Background()

	pa := &participant.Participant{ID: "a"}
	pb := &participant.Participant{ID: "b"}
	repo.Put(pa)
	repo.Put(pb)
	require.NoError(t, repo.AddToBlacklist(ctx, "b", "a"))

	_, viable := scorer.Score(ctx, entry("a", participant.Filters{}), entry("b", participant.Filters{}), pa, pb)
	assert.False(t, viable)
}

func TestScoreOnlyNewRejectsRecentPair(t *testing.T) {
	scorer, repo, store, clk := newTestScorer(t)
	ctx := context.Background()

	pa := &participant.Participant{ID: "a"}
	pb := &participant.Participant{ID: "b"}
	repo.Put(pa)
	repo.Put(pb)
	store.Put(session.Session{
		ID: "old", ParticipantA: "a", ParticipantB: "b",
		StartedAt: clk.Now().Add(-2 * time.Hour), Status: session.StatusEnded,
	})

	_, viable := scorer.Score(ctx, entry("a", participant.Filters{OnlyNew: true}), entry("b", participant.Filters{}), pa, pb)
	assert.False(t, viable)

	// Without the flag the history is ignored.
	_, viable = scorer.Score(ctx, entry("a", participant.Filters{}), entry("b", participant.Filters{}), pa, pb)
	assert.True(t, viable)
}

func TestScoreBonuses(t *testing.T) {
	scorer, repo, _, _ := newTestScorer(t)
	cfg := config.Default().Matching
	ctx := context.Background()

	tests := []struct {
		name string
		pa   participant.Participant
		pb   participant.Participant
		fa   participant.Filters
		fb   participant.Filters
		want int
	}{
		{
			name: "bare base score",
			pa:   participant.Participant{ID: "a", Language: "en"},
			pb:   participant.Participant{ID: "b", Language: "ru"},
			want: cfg.BaseScore,
		},
		{
			name: "natural language match",
			pa:   participant.Participant{ID: "a", Language: "en"},
			pb:   participant.Participant{ID: "b", Language: "en"},
			want: cfg.BaseScore + cfg.LanguageNaturalBonus,
		},
		{
			name: "mutual language pins",
			pa:   participant.Participant{ID: "a", Language: "en"},
			pb:   participant.Participant{ID: "b", Language: "en"},
			fa:   participant.Filters{Language: "en"},
			fb:   participant.Filters{Language: "en"},
			want: cfg.BaseScore + cfg.LanguageFilterBonus,
		},
		{
			// Each pin targets the other's language, so the hard checks
			// pass but no language bonus applies.
			name: "cross language pins",
			pa:   participant.Participant{ID: "a", Language: "en"},
			pb:   participant.Participant{ID: "b", Language: "ru"},
			fa:   participant.Filters{Language: "ru"},
			fb:   participant.Filters{Language: "en"},
			want: cfg.BaseScore,
		},
		{
			name: "shared interests",
			pa:   participant.Participant{ID: "a", Language: "en", Interests: []string{"music", "film", "chess"}},
			pb:   participant.Participant{ID: "b", Language: "ru", Interests: []string{"chess", "music"}},
			want: cfg.BaseScore + 2*cfg.InterestBonus,
		},
		{
			name: "country match and premium",
			pa:   participant.Participant{ID: "a", Language: "en", Country: "de", PremiumTier: participant.TierPro},
			pb:   participant.Participant{ID: "b", Language: "ru", Country: "de"},
			want: cfg.BaseScore + cfg.CountryNaturalBonus + cfg.PremiumBonus,
		},
		{
			name: "high mutual reputation",
			pa:   participant.Participant{ID: "a", Language: "en", Reputation: 90},
			pb:   participant.Participant{ID: "b", Language: "ru", Reputation: 40},
			want: cfg.BaseScore + cfg.ReputationBonus,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo.Put(&tt.pa)
			repo.Put(&tt.pb)
			score, viable := scorer.Score(ctx, entry("a", tt.fa), entry("b", tt.fb), &tt.pa, &tt.pb)
			require.True(t, viable)
			assert.Equal(t, tt.want, score)
		})
	}
}
