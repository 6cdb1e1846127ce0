// Package matcher ranks exercise catalog entries against free-text exercise
// names and assigns confidence tiers.
package matcher

import (
	"context"
	"fmt"
	"sort"

	"github.com/meltforce/allworkouts/internal/catalog"
	"github.com/meltforce/allworkouts/internal/models"
)

// DefaultTopN is the number of ranked candidates considered per match.
const DefaultTopN = 5

// Thresholds are the minimum scores for each confidence tier.
type Thresholds struct {
	High   float64
	Medium float64
	Low    float64
}

// DefaultThresholds returns the standard tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.90, Medium: 0.80, Low: 0.70}
}

// Validate checks 0 < Low <= Medium <= High <= 1.
func (t Thresholds) Validate() error {
	if t.Low <= 0 {
		return fmt.Errorf("low threshold must be > 0, got %v", t.Low)
	}
	if t.Low > t.Medium || t.Medium > t.High {
		return fmt.Errorf("thresholds must satisfy low <= medium <= high, got %v/%v/%v", t.Low, t.Medium, t.High)
	}
	if t.High > 1 {
		return fmt.Errorf("high threshold must be <= 1, got %v", t.High)
	}
	return nil
}

// Tier returns the confidence tier for score, or false if it falls below Low.
func (t Thresholds) Tier(score float64) (models.ConfidenceLevel, bool) {
	switch {
	case score >= t.High:
		return models.ConfidenceHigh, true
	case score >= t.Medium:
		return models.ConfidenceMedium, true
	case score >= t.Low:
		return models.ConfidenceLow, true
	}
	return "", false
}

// Candidate is a catalog entry scored against a free-text name.
type Candidate struct {
	Exercise models.Exercise
	Score    float64
	Tier     models.ConfidenceLevel
}

// Result holds the best candidate, if any cleared the Low threshold, and the
// remaining qualifying candidates in descending score order.
type Result struct {
	Best         *Candidate
	Alternatives []Candidate
}

// Matcher matches free text against the exercise catalog.
type Matcher struct {
	catalog    catalog.Accessor
	thresholds Thresholds
}

// New creates a Matcher reading from the given catalog accessor.
func New(c catalog.Accessor, t Thresholds) *Matcher {
	return &Matcher{catalog: c, thresholds: t}
}

// Thresholds returns the matcher's tier boundaries.
func (m *Matcher) Thresholds() Thresholds {
	return m.thresholds
}

// Match loads the catalog and matches text against it.
func (m *Matcher) Match(ctx context.Context, text string, topN int) (Result, error) {
	snap, err := catalog.Load(ctx, m.catalog)
	if err != nil {
		return Result{}, err
	}
	return m.MatchIn(snap, text, topN), nil
}

// MatchIn matches text against a catalog snapshot. It is deterministic:
// candidates are ranked by score descending, ties broken by name ascending,
// and the top topN (DefaultTopN when topN <= 0) are considered.
func (m *Matcher) MatchIn(snap *catalog.Snapshot, text string, topN int) Result {
	if topN <= 0 {
		topN = DefaultTopN
	}
	entries := snap.Entries()
	if len(entries) == 0 {
		return Result{Alternatives: []Candidate{}}
	}

	scored := make([]Candidate, len(entries))
	for i, e := range entries {
		scored[i] = Candidate{Exercise: e, Score: Similarity(text, e.Name)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Exercise.Name < scored[j].Exercise.Name
	})
	if len(scored) > topN {
		scored = scored[:topN]
	}

	res := Result{Alternatives: []Candidate{}}
	for i, c := range scored {
		tier, ok := m.thresholds.Tier(c.Score)
		if !ok {
			// Ranked descending, nothing after this qualifies.
			break
		}
		c.Tier = tier
		if i == 0 {
			best := c
			res.Best = &best
			continue
		}
		res.Alternatives = append(res.Alternatives, c)
	}
	return res
}
