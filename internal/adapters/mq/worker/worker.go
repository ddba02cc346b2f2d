package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/mq/queue"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/errs"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/types"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount = 4
	defaultJobTimeout  = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Calculator computes a user's karma.
type Calculator interface {
	CalculateForUser(ctx context.Context, userID string) (model.KarmaResult, error)
}

// Publisher delivers a computed karma downstream.
type Publisher interface {
	Publish(ctx context.Context, upd types.KarmaUpdate) error
}

// Deduper forgets a user id once its refresh is done.
type Deduper interface {
	Unrecord(ctx context.Context, id string)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes refresh jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue      Queue
	calc       Calculator
	publisher  Publisher
	deduper    Deduper
	name       string
	jobTimeout time.Duration

	processed atomic.Int64
	failed    atomic.Int64

	shutdown chan struct{}
	stopped  atomic.Bool
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, calc Calculator, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		calc:       calc,
		name:       "worker",
		jobTimeout: defaultJobTimeout,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, j); err != nil {
				w.logger.Error(ctx, "refresh job failed",
					logger.String("job_id", j.JobID),
					logger.String("user_id", j.UserID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker and waits for its loop to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	if w.stopped.CompareAndSwap(false, true) {
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// processJob recalculates one user's karma and publishes it.
func (w *InMemoryWorker) processJob(ctx context.Context, j Job) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(logger.WithRequestID(ctx, j.JobID), w.jobTimeout)
	defer cancel()

	if w.deduper != nil {
		// Unrecord with a fresh context so a cancelled job still frees its slot.
		defer w.deduper.Unrecord(context.WithoutCancel(ctx), j.UserID)
	}

	err := w.refresh(ctx, j)
	ms := float64(time.Since(start).Milliseconds())
	if err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerJob("error", ms)
		metrics.RecordErrorByComponent("worker", errs.Name(err))
		return err
	}

	w.processed.Add(1)
	metrics.RecordWorkerJob("ok", ms)
	return nil
}

func (w *InMemoryWorker) refresh(ctx context.Context, j Job) error {
	res, err := w.calc.CalculateForUser(ctx, j.UserID)
	if err != nil {
		return fmt.Errorf("calculate karma for %s: %w", j.UserID, err)
	}

	w.logger.Info(ctx, "karma refreshed",
		logger.String("user_id", j.UserID),
		logger.Float64("karma", res.Karma),
		logger.Float64("karma_level", res.KarmaLevel),
		logger.Duration("queued_for", time.Since(j.EnqueuedAt)),
	)

	if w.publisher == nil {
		return nil
	}
	err = w.publisher.Publish(ctx, types.KarmaUpdate{
		KarmaValue:      res.Karma,
		KarmaLevelValue: res.KarmaLevel,
		UserID:          j.UserID,
	})
	if err != nil {
		return fmt.Errorf("publish karma for %s: %w", j.UserID, err)
	}
	return nil
}

// Stats summarises pool throughput.
type Stats struct {
	Workers   int   `json:"workers"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Pool manages multiple workers reading the same queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	started atomic.Bool
	logger  logger.Logger
}

// NewPool creates workerCount workers; a count below one selects a default
// scaled to the CPU count. opts apply to every worker.
func NewPool(workerCount int, q Queue, calc Calculator, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = max(defaultWorkerCount, runtime.NumCPU())
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}
	for i := range p.workers {
		wopts := append(append([]Option(nil), opts...), WithName("worker-"+strconv.Itoa(i)))
		p.workers[i] = NewInMemoryWorker(q, calc, wopts...)
	}
	p.logger = p.workers[0].logger

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stats returns the number of finished jobs across the pool.
func (p *Pool) Stats() Stats {
	s := Stats{Workers: len(p.workers)}
	for _, w := range p.workers {
		s.Processed += w.processed.Load()
		s.Failed += w.failed.Load()
	}
	return s
}

// Shutdown closes the queue and lets workers drain it. Workers still busy
// when ctx expires are stopped after their current job.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	if !p.started.Load() {
		return nil
	}

	var errList []error
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker did not drain in time", logger.Int("worker_id", i))
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			if err := w.Shutdown(stopCtx); err != nil {
				errList = append(errList, err)
			}
			cancel()
		}
	}
	metrics.UpdateWorkerCount(0)
	return errors.Join(errList...)
}
