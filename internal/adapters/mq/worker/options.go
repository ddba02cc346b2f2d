// Package worker recalculates and publishes karma for queued refresh jobs.
package worker

import (
	"time"

	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithPublisher pushes every computed karma to p.
func WithPublisher(p Publisher) Option {
	return func(w *InMemoryWorker) {
		w.publisher = p
	}
}

// WithDeduper releases each job's user id from d once the job finishes.
func WithDeduper(d Deduper) Option {
	return func(w *InMemoryWorker) {
		w.deduper = d
	}
}

// WithJobTimeout bounds the time spent on a single job.
func WithJobTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.jobTimeout = d
		}
	}
}
