package ratingmodel

import (
	"context"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
)

// SVDConfig parameterizes biased matrix factorization.
type SVDConfig struct {
	Factors      int
	Epochs       int
	LearningRate float64
	Reg          float64
	InitMean     float64
	InitStdDev   float64
	Seed         int64
}

// DefaultSVDConfig returns 100 factors, 20 epochs, lr 0.005, reg 0.02.
func DefaultSVDConfig() SVDConfig {
	return SVDConfig{
		Factors:      100,
		Epochs:       20,
		LearningRate: 0.005,
		Reg:          0.02,
		InitStdDev:   0.1,
		Seed:         42,
	}
}

// SVDModel predicts mu + b_u + b_i + p_u·q_i, trained by stochastic
// gradient descent.
type SVDModel struct {
	cfg SVDConfig
	ts  *Trainset
	bu  []float64
	bi  []float64
	pu  [][]float64
	qi  [][]float64
}

// NewSVD validates cfg and returns an unfitted model.
func NewSVD(cfg SVDConfig) (*SVDModel, error) {
	if cfg.Factors <= 0 || cfg.Epochs < 0 || cfg.LearningRate <= 0 || cfg.Reg < 0 || cfg.InitStdDev < 0 {
		return nil, fmt.Errorf("%w: svd factors=%d epochs=%d lr=%v reg=%v",
			ErrInvalidParams, cfg.Factors, cfg.Epochs, cfg.LearningRate, cfg.Reg)
	}
	return &SVDModel{cfg: cfg}, nil
}

// Algorithm returns SVD.
func (m *SVDModel) Algorithm() Algorithm { return SVD }

// Trainset returns the fitted snapshot.
func (m *SVDModel) Trainset() *Trainset { return m.ts }

// Fit runs cfg.Epochs passes of SGD over the ratings in snapshot order.
// The same seed and snapshot always give the same model.
func (m *SVDModel) Fit(ctx context.Context, ts *Trainset) error {
	if ts == nil || ts.NumRatings() == 0 {
		return ErrEmptyTrainset
	}
	rng := rand.New(rand.NewSource(m.cfg.Seed)) //nolint:gosec // deterministic seed for reproducible models
	factors := func(n int) [][]float64 {
		out := make([][]float64, n)
		for i := range out {
			out[i] = make([]float64, m.cfg.Factors)
			for f := range out[i] {
				out[i][f] = m.cfg.InitMean + rng.NormFloat64()*m.cfg.InitStdDev
			}
		}
		return out
	}

	bu := make([]float64, ts.NumUsers())
	bi := make([]float64, ts.NumItems())
	pu := factors(ts.NumUsers())
	qi := factors(ts.NumItems())
	lr, reg, mu := m.cfg.LearningRate, m.cfg.Reg, ts.globalMean
	prev := make([]float64, m.cfg.Factors)

	step := 0
	for range m.cfg.Epochs {
		for _, t := range ts.ratings {
			step++
			if err := checkCtx(ctx, step); err != nil {
				return err
			}
			u, i := t.u, t.i
			err := t.r - (mu + bu[u] + bi[i] + floats.Dot(pu[u], qi[i]))

			bu[u] += lr * (err - reg*bu[u])
			bi[i] += lr * (err - reg*bi[i])

			copy(prev, pu[u])
			floats.Scale(1-lr*reg, pu[u])
			floats.AddScaled(pu[u], lr*err, qi[i])
			floats.Scale(1-lr*reg, qi[i])
			floats.AddScaled(qi[i], lr*err, prev)
		}
	}

	m.ts, m.bu, m.bi, m.pu, m.qi = ts, bu, bi, pu, qi
	return nil
}

// Predict adds whichever terms are known. The prediction is flagged
// Impossible unless both user and item were seen in training.
func (m *SVDModel) Predict(user, item string) model.Prediction {
	if m.ts == nil {
		return model.Prediction{UserID: user, ItemID: item, Impossible: true}
	}
	u, uok := m.ts.userIndex[user]
	i, iok := m.ts.itemIndex[item]

	est := m.ts.globalMean
	if uok {
		est += m.bu[u]
	}
	if iok {
		est += m.bi[i]
	}
	if uok && iok {
		est += floats.Dot(m.pu[u], m.qi[i])
	}
	return model.Prediction{
		UserID:     user,
		ItemID:     item,
		Estimate:   m.ts.scale.Clip(est),
		Impossible: !uok || !iok,
	}
}
