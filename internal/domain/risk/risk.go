// Package risk computes the 0-100 crash-risk score and its forward
// projections from the blood-caffeine curve and side signals.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/kdawg1232/jitter/internal/domain/level"
	"github.com/kdawg1232/jitter/internal/domain/model"
	"github.com/kdawg1232/jitter/internal/domain/personalization"
)

// Default risk formula constants. The exponents weight each normalized
// factor's influence on the combined score.
const (
	defaultBaselineSleepHours = 7.5
	defaultMaxSleepDebtHours  = 3.0
	defaultModerateMgPerKg    = 5.0
	defaultPeakWindowHours    = 6.0
	defaultValidityWindow     = 15 * time.Minute
	profileMaturityDays       = 7

	defaultDeltaExponent     = 0.6
	defaultSleepExponent     = 0.4
	defaultToleranceExponent = 0.3
	defaultCircadianExponent = 0.2

	maxScoreValue = 100
	peakEpsilon   = 1e-6
)

// Default circadian sensitivity weights by time-of-day period.
const (
	defaultCircadianNight        = 1.0 // 22:00-06:00
	defaultCircadianEarlyMorning = 0.6 // 06:00-11:00
	defaultCircadianMidday       = 0.4 // 11:00-17:00
	defaultCircadianEvening      = 0.7 // 17:00-22:00
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

// WithSleepNormalizers sets the baseline sleep hours and the debt ceiling.
func WithSleepNormalizers(baselineHours, maxDebtHours float64) Option {
	return func(s *Scorer) {
		if baselineHours > 0 && maxDebtHours > 0 {
			s.baselineSleepHours = baselineHours
			s.maxSleepDebtHours = maxDebtHours
		}
	}
}

// WithModerateMgPerKg sets the habitual-intake normalizer for tolerance.
func WithModerateMgPerKg(mgPerKg float64) Option {
	return func(s *Scorer) {
		if mgPerKg > 0 {
			s.moderateMgPerKg = mgPerKg
		}
	}
}

// WithPeakWindow sets the backward window for peak detection in hours.
func WithPeakWindow(hours float64) Option {
	return func(s *Scorer) {
		if hours > 0 {
			s.peakWindowHours = hours
		}
	}
}

// WithExponents sets the weighting exponents applied to the delta, sleep
// debt, tolerance, and circadian factors.
func WithExponents(delta, sleep, tolerance, circadian float64) Option {
	return func(s *Scorer) {
		if delta > 0 && sleep > 0 && tolerance > 0 && circadian > 0 {
			s.deltaExponent = delta
			s.sleepExponent = sleep
			s.toleranceExponent = tolerance
			s.circadianExponent = circadian
		}
	}
}

// WithCircadianWeights sets the per-period crash sensitivity weights:
// night (22:00-06:00), early morning (06:00-11:00), midday (11:00-17:00),
// evening (17:00-22:00).
func WithCircadianWeights(night, earlyMorning, midday, evening float64) Option {
	return func(s *Scorer) {
		if night > 0 && earlyMorning > 0 && midday > 0 && evening > 0 {
			s.circadianNight = night
			s.circadianEarlyMorning = earlyMorning
			s.circadianMidday = midday
			s.circadianEvening = evening
		}
	}
}

// WithValidityWindow sets how long a RiskResult is advertised as valid.
func WithValidityWindow(d time.Duration) Option {
	return func(s *Scorer) {
		if d > 0 {
			s.validityWindow = d
		}
	}
}

// Scorer combines level-derived delta, sleep debt, tolerance, metabolic and
// circadian factors into a crash-risk score. Stateless between calls.
type Scorer struct {
	pers *personalization.Model
	agg  *level.Aggregator

	baselineSleepHours float64
	maxSleepDebtHours  float64
	moderateMgPerKg    float64
	peakWindowHours    float64
	validityWindow     time.Duration

	deltaExponent     float64
	sleepExponent     float64
	toleranceExponent float64
	circadianExponent float64

	circadianNight        float64
	circadianEarlyMorning float64
	circadianMidday       float64
	circadianEvening      float64
}

// New creates a Scorer with default configuration.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		pers:               personalization.New(),
		agg:                level.New(),
		baselineSleepHours: defaultBaselineSleepHours,
		maxSleepDebtHours:  defaultMaxSleepDebtHours,
		moderateMgPerKg:    defaultModerateMgPerKg,
		peakWindowHours:    defaultPeakWindowHours,
		validityWindow:     defaultValidityWindow,

		deltaExponent:     defaultDeltaExponent,
		sleepExponent:     defaultSleepExponent,
		toleranceExponent: defaultToleranceExponent,
		circadianExponent: defaultCircadianExponent,

		circadianNight:        defaultCircadianNight,
		circadianEarlyMorning: defaultCircadianEarlyMorning,
		circadianMidday:       defaultCircadianMidday,
		circadianEvening:      defaultCircadianEvening,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Score computes the crash-risk result at the reference time. It is the
// package's only hard failure point: inputs failing sanity validation
// return an error wrapping model.ErrInvalidInput.
func (s *Scorer) Score(profile model.UserProfile, doses []model.DoseEvent, lastNightSleepHours float64, at time.Time) (model.RiskResult, error) {
	if err := validate(profile, doses, lastNightSleepHours); err != nil {
		return model.RiskResult{}, err
	}

	halfLife := s.pers.HalfLife(profile)
	current := s.agg.LevelAt(doses, halfLife, at)
	peak := s.agg.PeakInWindow(doses, halfLife, at, s.peakWindowHours)

	factors := model.RiskFactors{
		Delta:     delta(current, peak),
		SleepDebt: s.sleepDebt(profile, lastNightSleepHours, at),
		Tolerance: s.tolerance(profile),
		Metabolic: s.pers.MetabolicFactor(profile),
		Circadian: s.circadianSensitivity(at),
	}

	raw := maxScoreValue *
		math.Pow(factors.Delta, s.deltaExponent) *
		math.Pow(factors.SleepDebt, s.sleepExponent) *
		math.Pow(1-factors.Tolerance, s.toleranceExponent) *
		factors.Metabolic *
		math.Pow(factors.Circadian, s.circadianExponent)

	return model.RiskResult{
		Score:          clamp(round1(raw), 0, maxScoreValue),
		Factors:        factors,
		HalfLifeHours:  halfLife,
		CurrentLevelMg: current,
		PeakLevelMg:    peak,
		ValidFrom:      at,
		ValidUntil:     at.Add(s.validityWindow),
		CalculatedAt:   at,
	}, nil
}

// ProjectFutureRisk re-runs the scoring formula with a hypothetical clock.
func (s *Scorer) ProjectFutureRisk(profile model.UserProfile, doses []model.DoseEvent, lastNightSleepHours float64, futureTime time.Time) (model.RiskResult, error) {
	return s.Score(profile, doses, lastNightSleepHours, futureTime)
}

// GenerateRiskCurve samples ProjectFutureRisk forward from the reference
// time. A per-sample failure carries the previous sample's value forward
// rather than aborting the curve; carried samples are counted via the
// returned carry count. Inputs are validated once up front.
func (s *Scorer) GenerateRiskCurve(profile model.UserProfile, doses []model.DoseEvent, lastNightSleepHours float64, from time.Time, hoursAhead float64, interval time.Duration) ([]model.RiskSample, int, error) {
	if err := validate(profile, doses, lastNightSleepHours); err != nil {
		return nil, 0, err
	}
	if hoursAhead < 0 {
		hoursAhead = 0
	}
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	n := int(time.Duration(hoursAhead*float64(time.Hour))/interval) + 1
	samples := make([]model.RiskSample, 0, n)

	var carried int
	var lastScore float64
	for i := 0; i < n; i++ {
		at := from.Add(time.Duration(i) * interval)
		res, err := s.ProjectFutureRisk(profile, doses, lastNightSleepHours, at)
		if err != nil {
			// Recover locally: reuse the last good value.
			carried++
			samples = append(samples, model.RiskSample{At: at, Score: lastScore})
			continue
		}
		lastScore = res.Score
		samples = append(samples, model.RiskSample{At: at, Score: res.Score})
	}

	return samples, carried, nil
}

// delta is the fractional drop from the recent peak, in [0,1]. A flat or
// empty curve yields 0, never NaN.
func delta(current, peak float64) float64 {
	if peak <= peakEpsilon {
		return 0
	}
	return clamp((peak-current)/peak, 0, 1)
}

// sleepDebt normalizes missing sleep against the debt ceiling. Mature
// profiles (older than a week) use the trailing average; younger ones use
// the single most recent night.
func (s *Scorer) sleepDebt(profile model.UserProfile, lastNightSleepHours float64, at time.Time) float64 {
	effective := lastNightSleepHours
	if !profile.CreatedAt.IsZero() && at.Sub(profile.CreatedAt) >= profileMaturityDays*24*time.Hour {
		effective = profile.AvgSleepHours7d
	}
	return clamp((s.baselineSleepHours-effective)/s.maxSleepDebtHours, 0, 1)
}

// tolerance normalizes habitual intake against a moderate per-kg dose.
func (s *Scorer) tolerance(profile model.UserProfile) float64 {
	return clamp(profile.MeanDailyCaffeineMg/(s.moderateMgPerKg*profile.WeightKg), 0, 1)
}

// circadianSensitivity maps the hour of day onto crash sensitivity:
// highest at night, moderate in the early morning, lowest midday, elevated
// in the evening.
func (s *Scorer) circadianSensitivity(at time.Time) float64 {
	switch hour := at.Hour(); {
	case hour >= 22 || hour < 6:
		return s.circadianNight
	case hour < 11:
		return s.circadianEarlyMorning
	case hour < 17:
		return s.circadianMidday
	default:
		return s.circadianEvening
	}
}

func validate(profile model.UserProfile, doses []model.DoseEvent, lastNightSleepHours float64) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	for _, d := range doses {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	if math.IsNaN(lastNightSleepHours) || math.IsInf(lastNightSleepHours, 0) || lastNightSleepHours < 0 || lastNightSleepHours > 24 {
		return fmt.Errorf("%w: last night sleep hours must be within 0..24, got %v", model.ErrInvalidInput, lastNightSleepHours)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
