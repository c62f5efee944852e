// Package level aggregates per-dose kinetics into the instantaneous
// blood-caffeine level and its projections.
package level

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/kdawg1232/jitter/internal/domain/kinetics"
	"github.com/kdawg1232/jitter/internal/domain/model"
)

// Default sampling constants.
const (
	defaultPeakStepMinutes = 5
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithKinetics sets the per-dose contribution model.
func WithKinetics(k *kinetics.Model) Option {
	return func(a *Aggregator) {
		if k != nil {
			a.kin = k
		}
	}
}

// WithPeakStep sets the backward-scan resolution for peak detection.
func WithPeakStep(minutes int) Option {
	return func(a *Aggregator) {
		if minutes > 0 {
			a.peakStepMinutes = minutes
		}
	}
}

// WithWorkers bounds the concurrency of curve sampling.
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

// Aggregator sums dose contributions. Pure and order-independent in the
// dose list; safe for concurrent use.
type Aggregator struct {
	kin             *kinetics.Model
	peakStepMinutes int
	workers         int
}

// New creates an Aggregator with default configuration.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		kin:             kinetics.New(),
		peakStepMinutes: defaultPeakStepMinutes,
		workers:         runtime.NumCPU(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Kinetics exposes the underlying contribution model.
func (a *Aggregator) Kinetics() *kinetics.Model { return a.kin }

// LevelAt returns the total blood-caffeine level in mg at the given instant.
func (a *Aggregator) LevelAt(doses []model.DoseEvent, halfLifeHours float64, at time.Time) float64 {
	var total float64
	for _, d := range doses {
		total += a.kin.Contribution(d, halfLifeHours, at)
	}
	return math.Max(0, total)
}

// PeakInWindow scans backward from at over the window at a fixed resolution
// and returns the maximum level seen. Used as the crash-detection baseline.
func (a *Aggregator) PeakInWindow(doses []model.DoseEvent, halfLifeHours float64, at time.Time, windowHours float64) float64 {
	if windowHours < 0 {
		windowHours = 0
	}

	peak := a.LevelAt(doses, halfLifeHours, at)
	step := time.Duration(a.peakStepMinutes) * time.Minute
	window := time.Duration(windowHours * float64(time.Hour))

	for back := step; back <= window; back += step {
		if lvl := a.LevelAt(doses, halfLifeHours, at.Add(-back)); lvl > peak {
			peak = lvl
		}
	}
	return peak
}

// Curve samples the level forward from the reference time. Samples are
// independent, so they are computed across a bounded worker pool.
func (a *Aggregator) Curve(ctx context.Context, doses []model.DoseEvent, halfLifeHours float64, from time.Time, hoursAhead float64, interval time.Duration) ([]model.LevelSample, error) {
	if hoursAhead < 0 {
		hoursAhead = 0
	}
	if interval <= 0 {
		interval = time.Duration(defaultPeakStepMinutes) * time.Minute
	}

	n := int(time.Duration(hoursAhead*float64(time.Hour))/interval) + 1
	samples := make([]model.LevelSample, n)

	workers := a.workers
	if workers > n {
		workers = n
	}

	indices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				at := from.Add(time.Duration(i) * interval)
				samples[i] = model.LevelSample{
					At:      at,
					LevelMg: a.LevelAt(doses, halfLifeHours, at),
				}
			}
		}()
	}

feed:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			break feed
		case indices <- i:
		}
	}
	close(indices)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("curve sampling cancelled: %w", err)
	}
	return samples, nil
}
