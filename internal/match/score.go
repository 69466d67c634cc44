package match

import (
	"context"
	"log"
	"time"

	"github.com/rouletka/roulette/internal/clock"
	"github.com/rouletka/roulette/internal/config"
	"github.com/rouletka/roulette/internal/participant"
	"github.com/rouletka/roulette/internal/queue"
)

// History is the slice of session history the scorer needs for the
// "no repeat" filter.
type History interface {
	RecentPair(a, b string, since time.Time) bool
}

// Scorer computes the compatibility score for a candidate pair. Hard
// filters reject outright; bonuses only rank viable candidates against
// each other.
type Scorer struct {
	cfg     config.Matching
	repo    participant.Repository
	history History
	clk     clock.Clock
}

// NewScorer creates a scorer with the given weights.
func NewScorer(cfg config.Matching, repo participant.Repository, history History, clk clock.Clock) *Scorer {
	return &Scorer{cfg: cfg, repo: repo, history: history, clk: clk}
}

// Score evaluates a candidate pair. Returns (score, true) when every hard
// filter passes and the score reaches the match threshold. A blacklist
// lookup failure rejects the pair; the next tick retries.
func (s *Scorer) Score(ctx context.Context, ea, eb queue.Entry, pa, pb *participant.Participant) (int, bool) {
	blocked, err := s.repo.IsBlacklisted(ctx, pa.ID, pb.ID)
	if err != nil {
		log.Printf("[matcher] blacklist check %s/%s: %v (skipping pair)", pa.ID, pb.ID, err)
		return 0, false
	}
	if blocked {
		return 0, false
	}

	fa, fb := ea.Filters, eb.Filters

	// Strict filters apply to the partner's attributes: a pinned language
	// or age group set by either side excludes partners outside it.
	if fa.Language != "" && fa.Language != pb.Language {
		return 0, false
	}
	if fb.Language != "" && fb.Language != pa.Language {
		return 0, false
	}
	if len(fa.AgeGroups) > 0 && !contains(fa.AgeGroups, pb.AgeGroup) {
		return 0, false
	}
	if len(fb.AgeGroups) > 0 && !contains(fb.AgeGroups, pa.AgeGroup) {
		return 0, false
	}

	if fa.OnlyNew || fb.OnlyNew {
		since := s.clk.Now().Add(-s.cfg.RepeatWindow)
		if s.history.RecentPair(pa.ID, pb.ID, since) {
			return 0, false
		}
	}

	score := s.cfg.BaseScore

	// The filter bonus needs both sides pinned to the same language;
	// cross-language pins over cross-language profiles pass the hard
	// checks but earn nothing.
	switch {
	case fa.Language != "" && fa.Language == fb.Language:
		score += s.cfg.LanguageFilterBonus
	case fa.Language == "" && fb.Language == "" && pa.Language == pb.Language:
		score += s.cfg.LanguageNaturalBonus
	}

	if len(fa.AgeGroups) > 0 && len(fb.AgeGroups) > 0 && intersects(fa.AgeGroups, fb.AgeGroups) {
		score += s.cfg.AgeGroupBonus
	}

	if len(fa.Countries) > 0 && len(fb.Countries) > 0 {
		if intersects(fa.Countries, fb.Countries) {
			score += s.cfg.CountryFilterBonus
		}
	} else if pa.Country != "" && pa.Country == pb.Country {
		score += s.cfg.CountryNaturalBonus
	}

	score += len(participant.SharedInterests(pa.Interests, pb.Interests)) * s.cfg.InterestBonus

	if (pa.Reputation+pb.Reputation)/2 > s.cfg.ReputationCutoff {
		score += s.cfg.ReputationBonus
	}

	if pa.IsPaying() || pb.IsPaying() {
		score += s.cfg.PremiumBonus
	}

	return score, score >= s.cfg.MatchThreshold
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if set[v] {
			return true
		}
	}
	return false
}
