// Package focus computes the 0-100 CaffScore expressing how useful the
// current stimulation level is right now.
package focus

import (
	"math"
	"time"

	"github.com/kdawg1232/jitter/internal/domain/level"
	"github.com/kdawg1232/jitter/internal/domain/model"
	"github.com/kdawg1232/jitter/internal/domain/personalization"
)

// Default optimal-band constants, scaled by body weight. Placeholder tuning
// values; override via options.
const (
	defaultBandLowMgPerKg  = 0.8
	defaultBandHighMgPerKg = 3.0

	maxScoreValue = 100
	bandEntryScore = 50 // score at the lower band edge; the band occupies the upper half
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithPersonalization sets the half-life model.
func WithPersonalization(m *personalization.Model) Option {
	return func(s *Scorer) {
		if m != nil {
			s.pers = m
		}
	}
}

// WithAggregator sets the level aggregator.
func WithAggregator(a *level.Aggregator) Option {
	return func(s *Scorer) {
		if a != nil {
			s.agg = a
		}
	}
}

// WithBand sets the optimal band in mg per kg of body weight.
func WithBand(lowMgPerKg, highMgPerKg float64) Option {
	return func(s *Scorer) {
		if lowMgPerKg > 0 && highMgPerKg > lowMgPerKg {
			s.bandLowMgPerKg = lowMgPerKg
			s.bandHighMgPerKg = highMgPerKg
		}
	}
}

// WithZoneBoundaries sets the qualitative zone edges.
func WithZoneBoundaries(b model.ZoneBoundaries) Option {
	return func(s *Scorer) {
		s.zones = b
	}
}

// Scorer computes CaffScores. Stateless between calls.
type Scorer struct {
	pers *personalization.Model
	agg  *level.Aggregator

	bandLowMgPerKg  float64
	bandHighMgPerKg float64
	zones           model.ZoneBoundaries
}

// New creates a Scorer with default configuration.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		pers:            personalization.New(),
		agg:             level.New(),
		bandLowMgPerKg:  defaultBandLowMgPerKg,
		bandHighMgPerKg: defaultBandHighMgPerKg,
		zones:           model.DefaultZoneBoundaries(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Score computes the CaffScore at the reference time. Inputs failing sanity
// validation return an error wrapping model.ErrInvalidInput; everything
// below this entry point is total.
//
// The score is the occupancy of a personalized optimal band: zero caffeine
// scores exactly 0, the climb to the lower band edge covers the bottom half
// of the scale, the band itself covers the top half, and levels beyond the
// band cap at 100.
func (s *Scorer) Score(profile model.UserProfile, doses []model.DoseEvent, at time.Time) (model.FocusResult, error) {
	if err := profile.Validate(); err != nil {
		return model.FocusResult{}, err
	}
	for _, d := range doses {
		if err := d.Validate(); err != nil {
			return model.FocusResult{}, err
		}
	}

	halfLife := s.pers.HalfLife(profile)
	current := s.agg.LevelAt(doses, halfLife, at)
	low := s.bandLowMgPerKg * profile.WeightKg
	high := s.bandHighMgPerKg * profile.WeightKg

	score := occupancy(current, low, high)

	return model.FocusResult{
		Score:          score,
		Zone:           s.zones.ZoneFor(score),
		CurrentLevelMg: current,
		OptimalLowMg:   low,
		OptimalHighMg:  high,
		HalfLifeHours:  halfLife,
		CalculatedAt:   at,
	}, nil
}

// occupancy maps a level onto the 0-100 scale, piecewise linear and
// continuous across the band edges.
func occupancy(current, low, high float64) float64 {
	switch {
	case current <= 0:
		return 0
	case current >= high:
		return maxScoreValue
	case current < low:
		return round1(bandEntryScore * current / low)
	default:
		inBand := (current - low) / (high - low)
		return round1(bandEntryScore + (maxScoreValue-bandEntryScore)*inBand)
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
