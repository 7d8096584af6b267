// Package scorer ranks market candidates by how interesting an article about
// them would be. The score is deterministic: same inputs, same ranking.
package scorer

import (
	"sort"
	"strings"
	"time"

	"oddspress/internal/types"
)

// Scorer filters and ranks candidates.
type Scorer struct {
	excludedPrefixes []string
}

// New creates a Scorer that drops tickers matching any of the given prefixes
// (e.g. sports markets that are out of editorial scope).
func New(excludedPrefixes []string) *Scorer {
	return &Scorer{excludedPrefixes: excludedPrefixes}
}

// Filter removes candidates whose ticker matches an excluded prefix.
func (s *Scorer) Filter(cands []types.Candidate) []types.Candidate {
	if len(s.excludedPrefixes) == 0 {
		return cands
	}

	kept := make([]types.Candidate, 0, len(cands))
	for _, c := range cands {
		if s.excluded(c.Ticker) {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func (s *Scorer) excluded(ticker string) bool {
	for _, prefix := range s.excludedPrefixes {
		if strings.HasPrefix(ticker, prefix) {
			return true
		}
	}
	return false
}

// Score computes the interest score for one candidate. Each term is capped
// before summing; the whole sum is then decayed when the market closes soon
// (too little time left to write about).
func Score(c types.Candidate, now time.Time) float64 {
	score := capped(float64(c.Volume)/1000, 50) +
		capped(float64(c.Volume24h)/100, 30) +
		bandBonus(c.Price()) +
		capped(float64(c.OpenInterest)/500, 20)

	return score * timeDecay(c.CloseTime, now)
}

func capped(v, cap float64) float64 {
	if v > cap {
		return cap
	}
	return v
}

// bandBonus rewards uncertain outcomes: near-even odds make for better
// articles than foregone conclusions.
func bandBonus(price float64) float64 {
	switch {
	case price >= 20 && price <= 80:
		return 20
	case price >= 10 && price < 90:
		return 10
	default:
		return 0
	}
}

func timeDecay(closeTime, now time.Time) float64 {
	if closeTime.IsZero() {
		return 1
	}
	hoursUntilClose := closeTime.Sub(now).Hours()
	switch {
	case hoursUntilClose < 2:
		return 0.3
	case hoursUntilClose < 24:
		return 0.7
	default:
		return 1
	}
}

// Rank annotates candidates with scores, sorts them descending, and keeps
// the top limit with positive scores. Empty input yields an empty slice, not
// an error.
func (s *Scorer) Rank(cands []types.Candidate, limit int, now time.Time) []types.Candidate {
	return s.rank(cands, limit, now, false)
}

// RankWithFloor is Rank for callers that want a guaranteed non-empty pool
// after exclusion filtering: candidates scoring non-positive are kept with a
// floor score of 1 instead of dropped.
func (s *Scorer) RankWithFloor(cands []types.Candidate, limit int, now time.Time) []types.Candidate {
	return s.rank(cands, limit, now, true)
}

func (s *Scorer) rank(cands []types.Candidate, limit int, now time.Time, floor bool) []types.Candidate {
	scored := make([]types.Candidate, 0, len(cands))
	for _, c := range cands {
		c.Score = Score(c, now)
		if c.Score <= 0 {
			if !floor {
				continue
			}
			c.Score = 1
		}
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
