// Package dedupe defines the interface for idempotency tracking.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen submission IDs so retried dose logs are dropped
// before they reach the store.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen list, allowing it to be retried.
	// Used when a submission was marked as seen but failed to persist.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper implements Deduper with two generational maps. When the
// current generation fills up it becomes the previous generation and a
// fresh map takes its place, so the memory bound is 2x maxSize and
// eviction is O(1) amortized with no per-entry bookkeeping.
//
// maxSize <= 0 disables rotation and the current map grows unbounded.
type inMemoryDeduper struct {
	mu       sync.Mutex
	current  map[string]struct{}
	previous map[string]struct{}
	maxSize  int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000, // default max size
	}

	for _, opt := range opts {
		opt(d)
	}

	d.current = make(map[string]struct{})

	return d
}

// SeenAndRecord atomically checks if id was seen and records it if not.
// Returns true if id was already seen, false if it was newly recorded.
func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.current[id]; ok {
		return true
	}
	if _, ok := d.previous[id]; ok {
		return true
	}

	if d.maxSize > 0 && len(d.current) >= d.maxSize {
		d.previous = d.current
		d.current = make(map[string]struct{}, d.maxSize)
	}
	d.current[id] = struct{}{}
	return false
}

// Unrecord removes an ID from the seen list, allowing it to be retried.
func (d *inMemoryDeduper) Unrecord(ctx context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.current, id)
	delete(d.previous, id)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return int64(len(d.current) + len(d.previous))
}
