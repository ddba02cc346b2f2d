// Package ratingmodel provides the collaborative-filtering rating-prediction
// models: user-based KNN and biased SVD.
package ratingmodel

import (
	"context"
	"fmt"
	"strings"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
)

// Algorithm names a model variant.
type Algorithm string

// Supported algorithms.
const (
	KNN Algorithm = "KNN"
	SVD Algorithm = "SVD"
)

// ParseAlgorithm accepts a variant name in any case.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToUpper(strings.TrimSpace(name))) {
	case KNN:
		return KNN, nil
	case SVD:
		return SVD, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// Model predicts ratings after being fitted to a trainset.
type Model interface {
	// Algorithm returns the variant name.
	Algorithm() Algorithm
	// Fit trains on ts, honoring ctx for cancellation. A model is fitted once.
	Fit(ctx context.Context, ts *Trainset) error
	// Predict estimates the rating of item by user, clipped to the scale.
	Predict(user, item string) model.Prediction
	// Trainset returns the snapshot the model was fitted on.
	Trainset() *Trainset
}

// Config holds the parameters of every variant.
type Config struct {
	KNN KNNConfig
	SVD SVDConfig
}

// DefaultConfig returns the default parameters of every variant.
func DefaultConfig() Config {
	return Config{KNN: DefaultKNNConfig(), SVD: DefaultSVDConfig()}
}

// New returns an unfitted model of the given variant.
func New(algo Algorithm, cfg Config) (Model, error) {
	switch algo {
	case KNN:
		return NewKNN(cfg.KNN)
	case SVD:
		return NewSVD(cfg.SVD)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
	}
}

// baseline is the estimate used when a model cannot predict.
func baseline(ts *Trainset, user, item string) model.Prediction {
	return model.Prediction{
		UserID:     user,
		ItemID:     item,
		Estimate:   ts.scale.Clip(ts.globalMean),
		Impossible: true,
	}
}

// checkCtx polls ctx on the first step and every 1024 steps after it.
func checkCtx(ctx context.Context, step int) error {
	if (step-1)&1023 != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("fit cancelled: %w", err)
	}
	return nil
}
