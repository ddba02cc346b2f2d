// Package modelcache owns the trained rating-prediction model and rebuilds it
// when it goes stale.
package modelcache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/errs"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/ratingmodel"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/metrics"
)

// RatingSource returns the complete current rating dataset.
type RatingSource interface {
	Load(ctx context.Context, cols model.Columns) ([]model.Rating, error)
}

// Factory returns an unfitted model.
type Factory func(algo ratingmodel.Algorithm, cfg ratingmodel.Config) (ratingmodel.Model, error)

// Key identifies what a cached model was built for.
type Key struct {
	Columns   model.Columns
	Algorithm ratingmodel.Algorithm
}

// Entry is a built model and its provenance.
type Entry struct {
	Model   ratingmodel.Model
	BuiltAt time.Time
	Key     Key
}

// Info describes a cached entry.
type Info struct {
	Algorithm string              `json:"algorithm"`
	Columns   string              `json:"columns"`
	BuiltAt   time.Time           `json:"built_at"`
	AgeMs     int64               `json:"age_ms"`
	Stale     bool                `json:"stale"`
	Trainset  ratingmodel.Summary `json:"trainset"`
}

const sharedSlot = ""

// Cache holds the trained model(s). Every check-rebuild-replace runs inside
// one critical section, so at most one rebuild is in flight and callers that
// arrive meanwhile wait for it and see its result.
type Cache struct {
	source       RatingSource
	ttl          time.Duration
	perAlgorithm bool
	scale        model.Scale
	modelCfg     ratingmodel.Config
	factory      Factory
	now          func() time.Time
	log          logger.Logger

	sem *semaphore.Weighted // size 1; guards rebuilds

	mu      sync.RWMutex // guards entries for readers outside sem
	entries map[string]*Entry
}

// New creates a cache reading from source.
func New(source RatingSource, opts ...Option) *Cache {
	c := &Cache{
		source:   source,
		ttl:      10 * time.Minute,
		scale:    model.DefaultScale,
		modelCfg: ratingmodel.DefaultConfig(),
		factory:  ratingmodel.New,
		now:      time.Now,
		log:      logger.Nop(),
		sem:      semaphore.NewWeighted(1),
		entries:  make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

func (c *Cache) slot(algo ratingmodel.Algorithm) string {
	if c.perAlgorithm {
		return string(algo)
	}
	return sharedSlot
}

func (c *Cache) stale(e *Entry, now time.Time) bool {
	return now.Sub(e.BuiltAt) > c.ttl
}

// EnsureFresh returns a model built for key, rebuilding it when there is
// none, it is older than the TTL, or it was built for a different key. A
// failed rebuild leaves the previous model in place and returns
// errs.ErrModelUnavailable.
func (c *Cache) EnsureFresh(ctx context.Context, key Key) (ratingmodel.Model, error) {
	const op = "modelcache.EnsureFresh"
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, errs.New(op, errs.ErrModelUnavailable, fmt.Errorf("waiting for rebuild: %w", err))
	}
	defer c.sem.Release(1)

	slot := c.slot(key.Algorithm)
	c.mu.RLock()
	cur := c.entries[slot]
	c.mu.RUnlock()

	if cur != nil && cur.Key == key && !c.stale(cur, c.now()) {
		metrics.RecordModelCacheHit()
		return cur.Model, nil
	}

	entry, err := c.build(ctx, key)
	if err != nil {
		metrics.RecordModelRebuildError()
		c.log.Error(ctx, "model rebuild failed",
			logger.String("algorithm", string(key.Algorithm)),
			logger.String("columns", key.Columns.String()),
			logger.Bool("previous_kept", cur != nil),
			logger.Error(err),
		)
		return nil, errs.New(op, errs.ErrModelUnavailable, err)
	}

	c.mu.Lock()
	c.entries[slot] = entry
	c.mu.Unlock()
	return entry.Model, nil
}

func (c *Cache) build(ctx context.Context, key Key) (*Entry, error) {
	start := time.Now()

	ratings, err := c.source.Load(ctx, key.Columns)
	if err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}
	ts, err := ratingmodel.NewTrainset(ratings, c.scale)
	if err != nil {
		return nil, fmt.Errorf("build trainset: %w", err)
	}
	if sum := ts.Summary(); sum.Clipped > 0 || sum.Skipped > 0 {
		metrics.RecordRatingsAdjusted("clipped", sum.Clipped)
		metrics.RecordRatingsAdjusted("skipped", sum.Skipped)
		c.log.Warn(ctx, "training ratings adjusted",
			logger.String("columns", key.Columns.String()),
			logger.Int("clipped", sum.Clipped),
			logger.Int("skipped", sum.Skipped),
			logger.String("scale", fmt.Sprintf("[%v, %v]", c.scale.Min, c.scale.Max)),
		)
	}
	m, err := c.factory(key.Algorithm, c.modelCfg)
	if err != nil {
		return nil, fmt.Errorf("new %s model: %w", key.Algorithm, err)
	}
	if err := m.Fit(ctx, ts); err != nil {
		return nil, fmt.Errorf("fit %s: %w", key.Algorithm, err)
	}

	builtAt := c.now()
	took := time.Since(start)
	metrics.RecordModelRebuild(string(key.Algorithm), float64(took.Milliseconds()), ts.NumRatings(), builtAt.Unix())
	c.log.Info(ctx, "model rebuilt",
		logger.String("algorithm", string(key.Algorithm)),
		logger.String("columns", key.Columns.String()),
		logger.Int("ratings", ts.NumRatings()),
		logger.Int("users", ts.NumUsers()),
		logger.Int("items", ts.NumItems()),
		logger.Duration("took", took),
	)
	return &Entry{Model: m, BuiltAt: builtAt, Key: key}, nil
}

// Entries describes the cached models, sorted by algorithm.
func (c *Cache) Entries() []Info {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Info, 0, len(c.entries))
	for _, e := range c.entries {
		info := Info{
			Algorithm: string(e.Key.Algorithm),
			Columns:   e.Key.Columns.String(),
			BuiltAt:   e.BuiltAt,
			AgeMs:     now.Sub(e.BuiltAt).Milliseconds(),
			Stale:     c.stale(e, now),
		}
		if ts := e.Model.Trainset(); ts != nil {
			info.Trainset = ts.Summary()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Algorithm < out[j].Algorithm })
	return out
}
