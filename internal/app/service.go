// Package service wires the karma pipeline, the model cache, the
// recommendation engine and the karma refresh workers behind the
// operations the HTTP API needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/modelcache"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/mq/queue"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/mq/worker"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/app/karma"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/app/recommend"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/dedupe"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/errs"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/types"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/metrics"
)

// Service implements the API dependencies.
type Service struct {
	mu sync.RWMutex

	// Core components
	karma  *karma.Orchestrator
	cache  *modelcache.Cache
	engine *recommend.Engine

	// Refresh pipeline, created by Start
	deduper    dedupe.Deduper
	queue      *queue.InMemoryQueue
	workerPool *worker.Pool
	publisher  worker.Publisher

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	jobTimeout  time.Duration
	karmaOpts   []karma.Option
	cacheOpts   []modelcache.Option
	engineOpts  []recommend.Option

	// State
	started   bool
	startedAt time.Time
	cancel    context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending refresh jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many in-flight user ids are tracked.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithJobTimeout bounds a single refresh job.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// WithPublisher delivers refreshed karma values downstream.
func WithPublisher(p worker.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithKarmaOptions configures the karma orchestrator.
func WithKarmaOptions(opts ...karma.Option) Option {
	return func(s *Service) {
		s.karmaOpts = append(s.karmaOpts, opts...)
	}
}

// WithCacheOptions configures the model cache.
func WithCacheOptions(opts ...modelcache.Option) Option {
	return func(s *Service) {
		s.cacheOpts = append(s.cacheOpts, opts...)
	}
}

// WithRecommendOptions configures the recommendation engine.
func WithRecommendOptions(opts ...recommend.Option) Option {
	return func(s *Service) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service reading formula parameters from provider and
// ratings from source.
func New(provider karma.Provider, source modelcache.RatingSource, opts ...Option) *Service {
	s := &Service{
		workerCount: 4,
		queueSize:   1024,
		dedupeSize:  50000,
		jobTimeout:  30 * time.Second,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.karma = karma.New(provider,
		append([]karma.Option{karma.WithLogger(s.logger.Named("karma"))}, s.karmaOpts...)...)
	s.cache = modelcache.New(source,
		append([]modelcache.Option{modelcache.WithLogger(s.logger.Named("modelcache"))}, s.cacheOpts...)...)
	s.engine = recommend.New(s.karma, s.cache,
		append([]recommend.Option{recommend.WithLogger(s.logger.Named("recommend"))}, s.engineOpts...)...)
	return s
}

// Start creates the refresh queue and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting recommendation service...")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	wopts := []worker.Option{
		worker.WithDeduper(s.deduper),
		worker.WithJobTimeout(s.jobTimeout),
		worker.WithLogger(s.logger.Named("refresh")),
	}
	if s.publisher != nil {
		wopts = append(wopts, worker.WithPublisher(s.publisher))
	}
	s.workerPool = worker.NewPool(s.workerCount, s.queue, s.karma, wopts...)

	// Workers outlive the caller's context; Stop ends them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.workerPool.Start(runCtx)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "recommendation service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Bool("publishing", s.publisher != nil),
	)
	return nil
}

// Stop drains the refresh queue, waiting at most until ctx is done.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping recommendation service...")
	err := s.workerPool.Shutdown(ctx)
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "recommendation service stopped", logger.Int("unprocessed", s.queue.Len()))
	return err
}

// GetRecommendations returns karma-weighted top-N items for a user.
func (s *Service) GetRecommendations(ctx context.Context, req recommend.Request) ([]model.ScoredItem, error) {
	return s.engine.GetRecommendations(ctx, req)
}

// CalculateForUser runs the karma pipeline for a user.
func (s *Service) CalculateForUser(ctx context.Context, userID string) (model.KarmaResult, error) {
	return s.karma.CalculateForUser(ctx, userID)
}

// EnqueueRefresh queues a karma recalculation for every user id. Users
// already queued or being processed are reported as duplicates. When the
// queue fills up the ids accepted so far stay queued and ErrQueueFull is
// returned alongside them.
func (s *Service) EnqueueRefresh(ctx context.Context, userIDs []string) (types.RefreshResponse, error) {
	const op = "service.EnqueueRefresh"
	res := types.RefreshResponse{Accepted: []types.RefreshAccepted{}, Duplicates: []string{}}

	for _, id := range userIDs {
		if strings.TrimSpace(id) == "" {
			return res, errs.New(op, errs.ErrInvalidArgument, errors.New("user id is empty"))
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return res, ErrNotStarted
	}

	for _, id := range userIDs {
		if s.deduper.SeenAndRecord(ctx, id) {
			metrics.RecordRefreshDuplicate()
			res.Duplicates = append(res.Duplicates, id)
			continue
		}

		job := model.RefreshJob{JobID: uuid.NewString(), UserID: id, EnqueuedAt: time.Now()}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			s.deduper.Unrecord(ctx, id)
			if errors.Is(err, queue.ErrFull) {
				s.logger.Warn(ctx, "refresh queue full",
					logger.Int("accepted", len(res.Accepted)),
					logger.Int("requested", len(userIDs)),
				)
				return res, fmt.Errorf("%w: %w", ErrQueueFull, err)
			}
			return res, fmt.Errorf("enqueue refresh for %s: %w", id, err)
		}
		res.Accepted = append(res.Accepted, types.RefreshAccepted{JobID: job.JobID, UserID: id})
	}

	s.logger.Debug(ctx, "refresh jobs queued",
		logger.Int("accepted", len(res.Accepted)),
		logger.Int("duplicates", len(res.Duplicates)),
	)
	return res, nil
}

// Stats is a snapshot of service state for monitoring.
type Stats struct {
	Started       bool              `json:"started"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	QueueLength   int               `json:"queue_length"`
	QueueCapacity int               `json:"queue_capacity"`
	InFlight      int64             `json:"in_flight"`
	Workers       worker.Stats      `json:"workers"`
	ModelTTL      string            `json:"model_ttl"`
	Models        []modelcache.Info `json:"models"`
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Started:       s.started,
		QueueCapacity: s.queueSize,
		ModelTTL:      s.cache.TTL().String(),
		Models:        s.cache.Entries(),
	}
	if s.started {
		st.UptimeSeconds = int64(time.Since(s.startedAt).Seconds())
	}
	if s.queue != nil {
		st.QueueLength = s.queue.Len()
		metrics.UpdateQueueSize(st.QueueLength, s.queueSize)
	}
	if s.deduper != nil {
		st.InFlight = s.deduper.Size()
	}
	if s.workerPool != nil {
		st.Workers = s.workerPool.Stats()
	}
	return st
}
