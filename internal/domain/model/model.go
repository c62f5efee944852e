// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"time"
)

// Sex is the biological sex recorded on a profile. It feeds the metabolic
// factor and the oral-contraceptive adjustment.
type Sex string

// Recognized Sex values.
const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
	SexOther  Sex = "other"
)

// UserProfile is the caller-owned physiological record. The engine never
// mutates it; every calculation takes it by value.
type UserProfile struct {
	WeightKg            float64   `json:"weight_kg"`
	Age                 int       `json:"age"`
	Sex                 Sex       `json:"sex"`
	Smoker              bool      `json:"smoker"`
	Pregnant            bool      `json:"pregnant"`
	OralContraceptives  bool      `json:"oral_contraceptives"`
	AvgSleepHours7d     float64   `json:"avg_sleep_hours_7d"`
	MeanDailyCaffeineMg float64   `json:"mean_daily_caffeine_mg"`
	CreatedAt           time.Time `json:"created_at"`
}

// Validate applies the basic physical-sanity checks. It is the gate behind
// the scorers' InvalidInput failure mode.
func (p UserProfile) Validate() error {
	switch {
	case !isFinite(p.WeightKg) || p.WeightKg <= 0:
		return fmt.Errorf("%w: weight must be a positive number, got %v", ErrInvalidInput, p.WeightKg)
	case p.Age <= 0:
		return fmt.Errorf("%w: age must be positive, got %d", ErrInvalidInput, p.Age)
	case !isFinite(p.AvgSleepHours7d) || p.AvgSleepHours7d < 0:
		return fmt.Errorf("%w: average sleep hours must be a non-negative number, got %v", ErrInvalidInput, p.AvgSleepHours7d)
	case !isFinite(p.MeanDailyCaffeineMg) || p.MeanDailyCaffeineMg < 0:
		return fmt.Errorf("%w: mean daily caffeine must be a non-negative number, got %v", ErrInvalidInput, p.MeanDailyCaffeineMg)
	}
	return nil
}

// DoseEvent is a single caffeine consumption record.
type DoseEvent struct {
	ID         string        `json:"id"`
	CaffeineMg float64       `json:"caffeine_mg"`
	ConsumedAt time.Time     `json:"consumed_at"`
	Duration   time.Duration `json:"-"`
}

// Validate rejects physically impossible dose events.
func (d DoseEvent) Validate() error {
	switch {
	case !isFinite(d.CaffeineMg) || d.CaffeineMg < 0:
		return fmt.Errorf("%w: caffeine content must be a non-negative number, got %v", ErrInvalidInput, d.CaffeineMg)
	case d.Duration < 0:
		return fmt.Errorf("%w: consumption duration must not be negative, got %s", ErrInvalidInput, d.Duration)
	case d.ConsumedAt.IsZero():
		return fmt.Errorf("%w: consumption timestamp is required", ErrInvalidInput)
	}
	return nil
}

// LevelSample is one point on the blood-caffeine curve.
type LevelSample struct {
	At      time.Time `json:"at"`
	LevelMg float64   `json:"level_mg"`
}

// RiskFactors are the normalized components behind a crash-risk score.
type RiskFactors struct {
	Delta     float64 `json:"delta"`
	SleepDebt float64 `json:"sleep_debt"`
	Tolerance float64 `json:"tolerance"`
	Metabolic float64 `json:"metabolic"`
	Circadian float64 `json:"circadian"`
}

// RiskResult is the immutable value object returned per risk invocation.
type RiskResult struct {
	Score          float64     `json:"score"`
	Factors        RiskFactors `json:"factors"`
	HalfLifeHours  float64     `json:"half_life_hours"`
	CurrentLevelMg float64     `json:"current_level_mg"`
	PeakLevelMg    float64     `json:"peak_level_mg"`
	ValidFrom      time.Time   `json:"valid_from"`
	ValidUntil     time.Time   `json:"valid_until"`
	CalculatedAt   time.Time   `json:"calculated_at"`
}

// RiskSample is one point on a forward risk projection.
type RiskSample struct {
	At    time.Time `json:"at"`
	Score float64   `json:"score"`
}

// FocusZone buckets a CaffScore into one of four qualitative bands.
type FocusZone string

// Focus zones, boundaries aligned with the risk zones so the two scores
// are visually comparable.
const (
	ZonePeak     FocusZone = "peak"     // 80-100
	ZoneModerate FocusZone = "moderate" // 50-79
	ZoneLow      FocusZone = "low"      // 25-49
	ZoneMinimal  FocusZone = "minimal"  // 0-24
)

// ZoneBoundaries holds the lower bounds of the non-minimal zones.
type ZoneBoundaries struct {
	Peak     float64
	Moderate float64
	Low      float64
}

// DefaultZoneBoundaries mirror the risk-side band edges.
func DefaultZoneBoundaries() ZoneBoundaries {
	return ZoneBoundaries{Peak: 80, Moderate: 50, Low: 25}
}

// ZoneFor buckets a score using the configured boundaries.
func (b ZoneBoundaries) ZoneFor(score float64) FocusZone {
	switch {
	case score >= b.Peak:
		return ZonePeak
	case score >= b.Moderate:
		return ZoneModerate
	case score >= b.Low:
		return ZoneLow
	default:
		return ZoneMinimal
	}
}

// FocusResult is the immutable value object returned per focus invocation.
type FocusResult struct {
	Score          float64   `json:"score"`
	Zone           FocusZone `json:"zone"`
	CurrentLevelMg float64   `json:"current_level_mg"`
	OptimalLowMg   float64   `json:"optimal_low_mg"`
	OptimalHighMg  float64   `json:"optimal_high_mg"`
	HalfLifeHours  float64   `json:"half_life_hours"`
	CalculatedAt   time.Time `json:"calculated_at"`
}

// FocusSession is a user-declared time block requiring sustained alertness.
type FocusSession struct {
	Name       string    `json:"name"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Importance int       `json:"importance"` // 1 (lowest) .. 3 (highest)
}

// Validate rejects sessions with inverted spans or out-of-range importance.
func (s FocusSession) Validate() error {
	switch {
	case s.Start.IsZero() || s.End.IsZero():
		return fmt.Errorf("%w: session start and end are required", ErrInvalidInput)
	case !s.End.After(s.Start):
		return fmt.Errorf("%w: session end must be after start", ErrInvalidInput)
	case s.Importance < 1 || s.Importance > 3:
		return fmt.Errorf("%w: session importance must be between 1 and 3, got %d", ErrInvalidInput, s.Importance)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
