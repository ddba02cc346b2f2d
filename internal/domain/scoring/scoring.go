// Package scoring turns model predictions into karma-weighted, ranked
// recommendations.
package scoring

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
)

// Option applies a configuration option to the KarmaScorer.
type Option func(*KarmaScorer)

// WithSkipImpossible drops predictions the model flagged as baseline guesses.
func WithSkipImpossible(skip bool) Option {
	return func(s *KarmaScorer) {
		s.skipImpossible = skip
	}
}

// Input holds everything needed to rank one user's candidates.
type Input struct {
	UserID      string
	KarmaLevel  float64
	Predictions []model.Prediction // in candidate order
	N           int                // result size; <= 0 returns every candidate
}

// Scorer ranks predictions for a user.
type Scorer interface {
	// Score weights and ranks, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) ([]model.ScoredItem, error)
}

// KarmaScorer multiplies every estimate by the user's karma level and sorts
// by the weighted score, highest first. Equal scores keep candidate order.
type KarmaScorer struct {
	skipImpossible bool
}

// NewKarmaScorer creates a scorer with configuration options.
func NewKarmaScorer(opts ...Option) *KarmaScorer {
	s := &KarmaScorer{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes the top-N weighted items.
func (s *KarmaScorer) Score(ctx context.Context, in Input) ([]model.ScoredItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if math.IsNaN(in.KarmaLevel) || math.IsInf(in.KarmaLevel, 0) {
		return nil, fmt.Errorf("karma level %v is not finite", in.KarmaLevel)
	}

	items := make([]model.ScoredItem, 0, len(in.Predictions))
	for _, p := range in.Predictions {
		if s.skipImpossible && p.Impossible {
			continue
		}
		items = append(items, model.ScoredItem{ItemID: p.ItemID, Score: p.Estimate * in.KarmaLevel})
	}

	Rank(items)

	if in.N > 0 && len(items) > in.N {
		items = items[:in.N]
	}
	return items, nil
}

// Rank sorts items by score, highest first, keeping the input order of equal
// scores.
func Rank(items []model.ScoredItem) {
	slices.SortStableFunc(items, func(a, b model.ScoredItem) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
}
