// Package personalization derives a user-specific elimination half-life
// from profile attributes.
package personalization

import (
	"math"

	"github.com/kdawg1232/jitter/internal/domain/model"
)

// Default half-life adjustment constants. Placeholder tuning values, not
// clinically validated; override via options when sweeping.
const (
	defaultBaseHours           = 5.0
	defaultMinHours            = 1.5
	defaultMaxHours            = 8.0
	defaultAgeOnsetYears       = 30
	defaultAgeSlowdownPerYear  = 0.02
	defaultAgeMaxSlowdown      = 0.80
	defaultSmokerFactor        = 0.6
	defaultPregnancyFactor     = 2.5
	defaultContraceptiveFactor = 1.4

	defaultMetabolicMale   = 0.95
	defaultMetabolicFemale = 1.05
	metabolicFloor         = 0.8
	metabolicCeiling       = 1.2
)

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithBaseHours sets the species-typical base half-life.
func WithBaseHours(hours float64) Option {
	return func(m *Model) {
		if hours > 0 {
			m.baseHours = hours
		}
	}
}

// WithBounds sets the realistic physiological clamp band.
func WithBounds(minHours, maxHours float64) Option {
	return func(m *Model) {
		if minHours > 0 && maxHours > minHours {
			m.minHours = minHours
			m.maxHours = maxHours
		}
	}
}

// WithAgeAdjustment sets the onset age, per-year slowdown, and cap.
func WithAgeAdjustment(onsetYears int, perYear, maxSlowdown float64) Option {
	return func(m *Model) {
		if onsetYears > 0 && perYear > 0 && maxSlowdown > 0 {
			m.ageOnsetYears = onsetYears
			m.ageSlowdownPerYear = perYear
			m.ageMaxSlowdown = maxSlowdown
		}
	}
}

// WithSmokerFactor sets the clearance multiplier for smokers.
func WithSmokerFactor(f float64) Option {
	return func(m *Model) {
		if f > 0 {
			m.smokerFactor = f
		}
	}
}

// WithPregnancyFactor sets the clearance multiplier during pregnancy.
func WithPregnancyFactor(f float64) Option {
	return func(m *Model) {
		if f > 0 {
			m.pregnancyFactor = f
		}
	}
}

// WithContraceptiveFactor sets the clearance multiplier for oral
// contraceptive use.
func WithContraceptiveFactor(f float64) Option {
	return func(m *Model) {
		if f > 0 {
			m.contraceptiveFactor = f
		}
	}
}

// WithMetabolicFactors sets the sex-based multipliers used by the risk
// formula.
func WithMetabolicFactors(male, female float64) Option {
	return func(m *Model) {
		if male > 0 && female > 0 {
			m.metabolicMale = male
			m.metabolicFemale = female
		}
	}
}

// Model computes personalized half-lives. Safe for concurrent use; it holds
// only tuning constants.
type Model struct {
	baseHours           float64
	minHours            float64
	maxHours            float64
	ageOnsetYears       int
	ageSlowdownPerYear  float64
	ageMaxSlowdown      float64
	smokerFactor        float64
	pregnancyFactor     float64
	contraceptiveFactor float64
	metabolicMale       float64
	metabolicFemale     float64
}

// New creates a Model with default tuning.
func New(opts ...Option) *Model {
	m := &Model{
		baseHours:           defaultBaseHours,
		minHours:            defaultMinHours,
		maxHours:            defaultMaxHours,
		ageOnsetYears:       defaultAgeOnsetYears,
		ageSlowdownPerYear:  defaultAgeSlowdownPerYear,
		ageMaxSlowdown:      defaultAgeMaxSlowdown,
		smokerFactor:        defaultSmokerFactor,
		pregnancyFactor:     defaultPregnancyFactor,
		contraceptiveFactor: defaultContraceptiveFactor,
		metabolicMale:       defaultMetabolicMale,
		metabolicFemale:     defaultMetabolicFemale,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// HalfLife returns the personalized elimination half-life in hours. It is
// total: any well-formed profile yields a finite, positive number inside
// the configured band.
//
// Adjustments apply in order: age, smoking, pregnancy, oral contraceptives.
// Pregnancy and smoking combine multiplicatively when both are present.
func (m *Model) HalfLife(profile model.UserProfile) float64 {
	hours := m.baseHours

	// Age slows clearance past the onset year, capped so extreme ages
	// cannot compound without bound.
	if profile.Age > m.ageOnsetYears {
		slowdown := float64(profile.Age-m.ageOnsetYears) * m.ageSlowdownPerYear
		slowdown = math.Min(slowdown, m.ageMaxSlowdown)
		hours *= 1 + slowdown
	}

	if profile.Smoker {
		hours *= m.smokerFactor
	}

	if profile.Pregnant {
		hours *= m.pregnancyFactor
	}

	if profile.OralContraceptives && profile.Sex == model.SexFemale {
		hours *= m.contraceptiveFactor
	}

	return clamp(hours, m.minHours, m.maxHours)
}

// BaseHours exposes the configured base half-life.
func (m *Model) BaseHours() float64 { return m.baseHours }

// MetabolicFactor is a small sex-based multiplier used by the risk formula,
// clamped to [0.8, 1.2].
func (m *Model) MetabolicFactor(profile model.UserProfile) float64 {
	f := m.metabolicMale
	if profile.Sex == model.SexFemale {
		f = m.metabolicFemale
	}
	return clamp(f, metabolicFloor, metabolicCeiling)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
