// Package dedupe suppresses duplicate work for ids that are already being
// processed.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper tracks in-flight ids.
type Deduper interface {
	// SeenAndRecord atomically checks if id is in flight and records it if not.
	// Returns true if id was already in flight, false if it was newly recorded
	// or the tracker is full.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord releases id once its work finished or could not be scheduled.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inFlight implements Deduper with a mutex-guarded set.
type inFlight struct {
	mu      sync.Mutex
	ids     map[string]struct{}
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates an in-flight tracker with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inFlight{
		maxSize: 50000, // default max size
	}
	for _, opt := range opts {
		opt(d)
	}
	d.ids = make(map[string]struct{})
	return d
}

// SeenAndRecord implements Deduper.
func (d *inFlight) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.ids[id]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.ids) >= d.maxSize {
		return false
	}
	d.ids[id] = struct{}{}
	d.size.Add(1)
	return false
}

// Unrecord implements Deduper.
func (d *inFlight) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.ids[id]; ok {
		delete(d.ids, id)
		d.size.Add(-1)
	}
}

// Size returns the number of ids in flight.
func (d *inFlight) Size() int64 {
	return d.size.Load()
}
