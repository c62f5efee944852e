// Package kinetics models how a single caffeine dose enters and leaves the
// bloodstream. Every function here is total: bad inputs saturate or clamp,
// they never error.
package kinetics

import (
	"math"
	"time"

	"github.com/kdawg1232/jitter/internal/domain/model"
)

// Default absorption tuning constants. Placeholder values consistent with
// observed behavior, not clinically validated; override via options.
const (
	defaultAlpha            = 2.0
	defaultBeta             = 3.0
	defaultDelayMinutes     = 30
	defaultMinWindowMinutes = 30
	defaultBolusThreshold   = time.Minute

	minutesPerHour = 60.0
)

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithShape sets the beta-distribution shape parameters of the
// absorption-rate curve.
func WithShape(alpha, beta float64) Option {
	return func(m *Model) {
		if alpha > 0 && beta > 0 {
			m.alpha = alpha
			m.beta = beta
			m.peak = betaPeak(alpha, beta)
		}
	}
}

// WithAbsorptionDelay sets the delay over which a micro-dose ramps from
// zero to fully absorbed.
func WithAbsorptionDelay(minutes int) Option {
	return func(m *Model) {
		if minutes > 0 {
			m.delayMinutes = minutes
		}
	}
}

// WithMinWindow sets the floor on the absorption window used to normalize
// micro-dose positions.
func WithMinWindow(minutes int) Option {
	return func(m *Model) {
		if minutes > 0 {
			m.minWindowMinutes = minutes
		}
	}
}

// WithBolusThreshold sets the consumption duration at or below which a dose
// is treated as an instantaneous bolus.
func WithBolusThreshold(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.bolusThreshold = d
		}
	}
}

// Model holds the absorption tuning. Safe for concurrent use.
type Model struct {
	alpha            float64
	beta             float64
	peak             float64 // max of the raw beta pdf, for normalization
	delayMinutes     int
	minWindowMinutes int
	bolusThreshold   time.Duration
}

// New creates a Model with default tuning.
func New(opts ...Option) *Model {
	m := &Model{
		alpha:            defaultAlpha,
		beta:             defaultBeta,
		peak:             betaPeak(defaultAlpha, defaultBeta),
		delayMinutes:     defaultDelayMinutes,
		minWindowMinutes: defaultMinWindowMinutes,
		bolusThreshold:   defaultBolusThreshold,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Contribution returns the mg of the original dose still pharmacologically
// present in blood at the given instant.
//
// Doses consumed in at most the bolus threshold follow the pure first-order
// elimination law. Longer drinks are integrated as one micro-dose per minute
// of the consumption window, each with its own absorption ramp; elimination
// acts only on time elapsed after a micro-dose has finished absorbing. The
// result is continuous, non-negative, and peaks noticeably later than the
// ingestion instant for slow sips.
func (m *Model) Contribution(dose model.DoseEvent, halfLifeHours float64, at time.Time) float64 {
	if at.Before(dose.ConsumedAt) || dose.CaffeineMg <= 0 {
		return 0
	}
	if halfLifeHours <= 0 || math.IsNaN(halfLifeHours) {
		// Degenerate half-life means instant elimination.
		return 0
	}

	if dose.Duration <= m.bolusThreshold {
		hoursElapsed := at.Sub(dose.ConsumedAt).Hours()
		return math.Max(0, dose.CaffeineMg*decay(hoursElapsed, halfLifeHours))
	}

	durationMinutes := int(math.Ceil(dose.Duration.Minutes()))
	windowMinutes := durationMinutes
	if windowMinutes < m.minWindowMinutes {
		windowMinutes = m.minWindowMinutes
	}
	perMinuteMg := dose.CaffeineMg / float64(durationMinutes)

	var total float64
	for minute := 0; minute < durationMinutes; minute++ {
		sipAt := dose.ConsumedAt.Add(time.Duration(minute) * time.Minute)
		minutesSince := at.Sub(sipAt).Minutes()
		if minutesSince < 0 {
			continue // not sipped yet
		}

		// Absorption-rate weight from the normalized position in the window.
		pos := float64(minute) / float64(windowMinutes)
		weight := m.absorptionWeight(pos)

		// Absorbed fraction ramps linearly over the delay, then saturates.
		absorbed := math.Min(minutesSince/float64(m.delayMinutes), 1)

		// Elimination starts once the micro-dose has finished absorbing.
		postDelayHours := math.Max(minutesSince-float64(m.delayMinutes), 0) / minutesPerHour

		total += perMinuteMg * weight * absorbed * decay(postDelayHours, halfLifeHours)
	}

	return math.Max(0, total)
}

// PeakOffset returns how long after consumption starts a dose's modeled
// contribution peaks. The planner uses it to land peaks on session starts.
func (m *Model) PeakOffset(duration time.Duration) time.Duration {
	if duration <= m.bolusThreshold {
		// A bolus still needs its absorption delay to take full effect.
		return time.Duration(m.delayMinutes) * time.Minute
	}
	// For sipped drinks the last micro-dose lands at the end of the drink,
	// so the curve crests roughly one delay past the midpoint of the sip.
	return duration/2 + time.Duration(m.delayMinutes)*time.Minute
}

// AbsorptionDelay exposes the configured ramp duration.
func (m *Model) AbsorptionDelay() time.Duration {
	return time.Duration(m.delayMinutes) * time.Minute
}

// absorptionWeight evaluates the beta-shaped rate curve at normalized
// position t, scaled so the curve's maximum is 1.
func (m *Model) absorptionWeight(t float64) float64 {
	if t <= 0 || t >= 1 {
		return 0
	}
	return betaPDF(t, m.alpha, m.beta) / m.peak
}

// decay is the first-order elimination law 2^(-hours/halfLife).
func decay(hours, halfLifeHours float64) float64 {
	if hours <= 0 {
		return 1
	}
	return math.Pow(2, -hours/halfLifeHours)
}

// betaPDF is the unnormalized beta density t^(a-1) * (1-t)^(b-1).
func betaPDF(t, alpha, beta float64) float64 {
	return math.Pow(t, alpha-1) * math.Pow(1-t, beta-1)
}

// betaPeak finds the maximum of the unnormalized density. For alpha,beta > 1
// the mode is (alpha-1)/(alpha+beta-2); otherwise fall back to a coarse scan.
func betaPeak(alpha, beta float64) float64 {
	if alpha > 1 && beta > 1 {
		mode := (alpha - 1) / (alpha + beta - 2)
		return betaPDF(mode, alpha, beta)
	}
	peak := 0.0
	for t := 0.01; t < 1; t += 0.01 {
		if v := betaPDF(t, alpha, beta); v > peak {
			peak = v
		}
	}
	if peak <= 0 {
		return 1
	}
	return peak
}
