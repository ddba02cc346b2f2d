package ratingmodel

import (
	"context"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
)

// Similarity measures between two users.
const (
	SimilarityMSD    = "msd"
	SimilarityCosine = "cosine"
)

// KNNConfig parameterizes the user-based neighborhood model.
type KNNConfig struct {
	K          int    // maximum neighbors per prediction
	MinK       int    // fewer usable neighbors yields a baseline
	Similarity string // msd or cosine
	MinSupport int    // common items needed for a non-zero similarity
}

// DefaultKNNConfig returns k=40, min_k=1, msd.
func DefaultKNNConfig() KNNConfig {
	return KNNConfig{K: 40, MinK: 1, Similarity: SimilarityMSD, MinSupport: 1}
}

// KNNModel predicts a rating as the similarity-weighted mean rating of the
// k most similar users who rated the item.
type KNNModel struct {
	cfg  KNNConfig
	ts   *Trainset
	sims [][]float64 // user x user
}

// NewKNN validates cfg and returns an unfitted model.
func NewKNN(cfg KNNConfig) (*KNNModel, error) {
	if cfg.K <= 0 || cfg.MinK < 0 || cfg.MinK > cfg.K || cfg.MinSupport < 0 {
		return nil, fmt.Errorf("%w: knn k=%d min_k=%d min_support=%d", ErrInvalidParams, cfg.K, cfg.MinK, cfg.MinSupport)
	}
	if cfg.Similarity != SimilarityMSD && cfg.Similarity != SimilarityCosine {
		return nil, fmt.Errorf("%w: knn similarity %q", ErrInvalidParams, cfg.Similarity)
	}
	return &KNNModel{cfg: cfg}, nil
}

// Algorithm returns KNN.
func (m *KNNModel) Algorithm() Algorithm { return KNN }

// Trainset returns the fitted snapshot.
func (m *KNNModel) Trainset() *Trainset { return m.ts }

// Fit computes the user-user similarity matrix.
func (m *KNNModel) Fit(ctx context.Context, ts *Trainset) error {
	if ts == nil || ts.NumRatings() == 0 {
		return ErrEmptyTrainset
	}
	n := ts.NumUsers()

	// Pairwise sums over co-rated items build up in sims at [low][high]: the
	// squared differences for msd, the rating products for cosine. Cosine also
	// keeps each side's squares in sq, the low user's at [low][high] and the
	// high user's at [high][low].
	cosine := m.cfg.Similarity == SimilarityCosine
	support := make([][]int, n)
	sims := make([][]float64, n)
	var sq [][]float64
	if cosine {
		sq = make([][]float64, n)
	}
	for u := range n {
		support[u] = make([]int, n)
		sims[u] = make([]float64, n)
		if cosine {
			sq[u] = make([]float64, n)
		}
	}

	step := 0
	for _, raters := range ts.byItem {
		for a, ea := range raters {
			step++
			if err := checkCtx(ctx, step); err != nil {
				return err
			}
			for _, eb := range raters[a+1:] {
				u, v, ru, rv := ea.idx, eb.idx, ea.rating, eb.rating
				if u > v {
					u, v, ru, rv = v, u, rv, ru
				}
				support[u][v]++
				if cosine {
					sims[u][v] += ru * rv
					sq[u][v] += ru * ru
					sq[v][u] += rv * rv
					continue
				}
				d := ru - rv
				sims[u][v] += d * d
			}
		}
	}

	for u := range n {
		sims[u][u] = 1
		for v := u + 1; v < n; v++ {
			sum := sims[u][v]
			var sim float64
			if s := support[u][v]; s > 0 && s >= m.cfg.MinSupport {
				if cosine {
					if den := math.Sqrt(sq[u][v] * sq[v][u]); den > 0 {
						sim = sum / den
					}
				} else {
					sim = 1 / (sum/float64(s) + 1)
				}
			}
			sims[u][v] = sim
			sims[v][u] = sim
		}
	}

	m.ts = ts
	m.sims = sims
	return nil
}

// Predict estimates a rating from the k nearest users who rated item.
func (m *KNNModel) Predict(user, item string) model.Prediction {
	if m.ts == nil {
		return model.Prediction{UserID: user, ItemID: item, Impossible: true}
	}
	u, uok := m.ts.userIndex[user]
	i, iok := m.ts.itemIndex[item]
	if !uok || !iok {
		return baseline(m.ts, user, item)
	}

	type neighbor struct {
		sim, rating float64
	}
	raters := m.ts.byItem[i]
	neighbors := make([]neighbor, 0, len(raters))
	for _, e := range raters {
		if e.idx == u {
			continue
		}
		neighbors = append(neighbors, neighbor{sim: m.sims[u][e.idx], rating: e.rating})
	}
	slices.SortStableFunc(neighbors, func(a, b neighbor) int {
		switch {
		case a.sim > b.sim:
			return -1
		case a.sim < b.sim:
			return 1
		default:
			return 0
		}
	})
	if len(neighbors) > m.cfg.K {
		neighbors = neighbors[:m.cfg.K]
	}

	weights := make([]float64, 0, len(neighbors))
	ratings := make([]float64, 0, len(neighbors))
	for _, nb := range neighbors {
		if nb.sim > 0 {
			weights = append(weights, nb.sim)
			ratings = append(ratings, nb.rating)
		}
	}
	if len(weights) < m.cfg.MinK || len(weights) == 0 {
		return baseline(m.ts, user, item)
	}
	est := floats.Dot(weights, ratings) / floats.Sum(weights)
	return model.Prediction{UserID: user, ItemID: item, Estimate: m.ts.scale.Clip(est)}
}
