// Package recommend produces karma-weighted top-N item recommendations.
package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/modelcache"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/errs"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/ratingmodel"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/scoring"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/metrics"
)

// KarmaCalculator returns a user's karma level.
type KarmaCalculator interface {
	CalculateForUser(ctx context.Context, userID string) (model.KarmaResult, error)
}

// ModelProvider returns a fitted model for the requested columns and algorithm.
type ModelProvider interface {
	EnsureFresh(ctx context.Context, key modelcache.Key) (ratingmodel.Model, error)
}

// Request asks for the top N items for a user.
type Request struct {
	UserID       string
	UserColumn   string
	ItemColumn   string
	RatingColumn string
	N            int
	// Algorithm is "KNN" or "SVD"; empty selects the engine default.
	Algorithm string
}

// Columns returns the requested column triple.
func (r Request) Columns() model.Columns {
	return model.Columns{User: r.UserColumn, Item: r.ItemColumn, Rating: r.RatingColumn}
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithScorer replaces the default karma scorer.
func WithScorer(s scoring.Scorer) Option {
	return func(e *Engine) {
		if s != nil {
			e.scorer = s
		}
	}
}

// WithDefaultAlgorithm sets the algorithm used when a request names none.
func WithDefaultAlgorithm(a ratingmodel.Algorithm) Option {
	return func(e *Engine) {
		if a != "" {
			e.defaultAlgo = a
		}
	}
}

// WithMaxN caps the response size; zero means no cap.
func WithMaxN(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxN = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine combines the karma level with model predictions.
type Engine struct {
	karma       KarmaCalculator
	models      ModelProvider
	scorer      scoring.Scorer
	defaultAlgo ratingmodel.Algorithm
	maxN        int
	log         logger.Logger
}

// New creates an engine.
func New(k KarmaCalculator, m ModelProvider, opts ...Option) *Engine {
	e := &Engine{
		karma:       k,
		models:      m,
		scorer:      scoring.NewKarmaScorer(),
		defaultAlgo: ratingmodel.KNN,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) validate(req Request) (ratingmodel.Algorithm, error) {
	fields := [...]struct{ name, value string }{
		{"user_id", req.UserID},
		{"user_column_name", req.UserColumn},
		{"item_column_name", req.ItemColumn},
		{"rating_column_name", req.RatingColumn},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return "", fmt.Errorf("%w: %s", ErrEmptyField, f.name)
		}
	}
	if req.N <= 0 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidSize, req.N)
	}
	if e.maxN > 0 && req.N > e.maxN {
		return "", fmt.Errorf("%w: %d > %d", ErrSizeTooLarge, req.N, e.maxN)
	}
	if strings.TrimSpace(req.Algorithm) == "" {
		return e.defaultAlgo, nil
	}
	return ratingmodel.ParseAlgorithm(req.Algorithm)
}

// GetRecommendations returns at most req.N items the user has not rated,
// ordered by karma-weighted predicted rating. Invalid requests fail with
// errs.ErrInvalidArgument; every later failure is wrapped in
// errs.ErrRecommendationUnavailable.
func (e *Engine) GetRecommendations(ctx context.Context, req Request) ([]model.ScoredItem, error) {
	const op = "recommend.GetRecommendations"
	start := time.Now()

	algo, err := e.validate(req)
	if err != nil {
		metrics.RecordRecommendation("unknown", "invalid", msSince(start))
		return nil, errs.New(op, errs.ErrInvalidArgument, err).WithUser(req.UserID)
	}

	items, err := e.recommend(ctx, req, algo)
	if err != nil {
		metrics.RecordRecommendation(string(algo), "error", msSince(start))
		metrics.RecordErrorByComponent("recommend", errs.Name(err))
		e.log.Warn(ctx, "recommendation failed",
			logger.String("user_id", req.UserID),
			logger.String("algorithm", string(algo)),
			logger.Error(err),
		)
		return nil, errs.New(op, errs.ErrRecommendationUnavailable, err).WithUser(req.UserID)
	}

	metrics.RecordRecommendation(string(algo), "ok", msSince(start))
	e.log.Debug(ctx, "recommendations served",
		logger.String("user_id", req.UserID),
		logger.String("algorithm", string(algo)),
		logger.Int("returned", len(items)),
		logger.Duration("took", time.Since(start)),
	)
	return items, nil
}

func (e *Engine) recommend(ctx context.Context, req Request, algo ratingmodel.Algorithm) ([]model.ScoredItem, error) {
	k, err := e.karma.CalculateForUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	m, err := e.models.EnsureFresh(ctx, modelcache.Key{Columns: req.Columns(), Algorithm: algo})
	if err != nil {
		return nil, err
	}
	ts := m.Trainset()
	if ts == nil {
		return nil, errs.New("recommend.model", errs.ErrModelUnavailable, ratingmodel.ErrNotFitted)
	}

	candidates := ts.Candidates(req.UserID)
	metrics.RecordCandidates(len(candidates))

	preds := make([]model.Prediction, 0, len(candidates))
	for _, item := range candidates {
		preds = append(preds, m.Predict(req.UserID, item))
	}

	return e.scorer.Score(ctx, scoring.Input{
		UserID:      req.UserID,
		KarmaLevel:  k.KarmaLevel,
		Predictions: preds,
		N:           req.N,
	})
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
