// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import "runtime"

// Config contains process configuration. Every pharmacokinetic and scheduling
// tunable lives here so it can be swept without touching the formulas.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ShardCount configures the number of shards in the day store.
	ShardCount int `koanf:"shard_count"`

	// Background plan-refresh pipeline sizing.
	WorkerCount      int `koanf:"worker_count"`
	RefreshQueueSize int `koanf:"refresh_queue_size"`
	DedupeSize       int `koanf:"dedupe_size"`

	// Half-life personalization band (hours).
	HalfLifeBaseHours float64 `koanf:"half_life_base_hours"`
	HalfLifeMinHours  float64 `koanf:"half_life_min_hours"`
	HalfLifeMaxHours  float64 `koanf:"half_life_max_hours"`

	// Absorption curve shape and timing.
	AbsorptionAlpha            float64 `koanf:"absorption_alpha"`
	AbsorptionBeta             float64 `koanf:"absorption_beta"`
	AbsorptionDelayMinutes     int     `koanf:"absorption_delay_minutes"`
	AbsorptionMinWindowMinutes int     `koanf:"absorption_min_window_minutes"`

	// Peak scan and projection sampling.
	PeakWindowHours      float64 `koanf:"peak_window_hours"`
	PeakStepMinutes      int     `koanf:"peak_step_minutes"`
	CurveHoursAhead      float64 `koanf:"curve_hours_ahead"`
	CurveIntervalMinutes int     `koanf:"curve_interval_minutes"`

	// CurveWorkers bounds concurrent curve sample computation.
	CurveWorkers int `koanf:"curve_workers"`

	// Risk formula normalizers.
	BaselineSleepHours float64 `koanf:"baseline_sleep_hours"`
	MaxSleepDebtHours  float64 `koanf:"max_sleep_debt_hours"`
	ModerateMgPerKg    float64 `koanf:"moderate_mg_per_kg"`

	// Focus optimal band, scaled by body weight.
	FocusBandLowMgPerKg  float64 `koanf:"focus_band_low_mg_per_kg"`
	FocusBandHighMgPerKg float64 `koanf:"focus_band_high_mg_per_kg"`

	// Planner defaults, used when a request supplies no preferences.
	MaxDailyCaffeineMg   float64 `koanf:"max_daily_caffeine_mg"`
	MinDoseGapMinutes    int     `koanf:"min_dose_gap_minutes"`
	EarliestDoseHour     int     `koanf:"earliest_dose_hour"`
	LatestDoseHour       int     `koanf:"latest_dose_hour"`
	BedtimeCeilingMg     float64 `koanf:"bedtime_ceiling_mg"`
	FocusFloorMg         float64 `koanf:"focus_floor_mg"`
	MinDoseMg            float64 `koanf:"min_dose_mg"`
	MaxDoseMg            float64 `koanf:"max_dose_mg"`
	SippingWindowMinutes int     `koanf:"sipping_window_minutes"`
}

// New creates a Config populated with defaults.
func New() *Config {
	c := &Config{
		LogLevel:   "info",
		Addr:       ":9080",
		ShardCount: 8,

		WorkerCount:      runtime.NumCPU(),
		RefreshQueueSize: 10000,
		DedupeSize:       100000,

		HalfLifeBaseHours: 5.0,
		HalfLifeMinHours:  1.5,
		HalfLifeMaxHours:  8.0,

		AbsorptionAlpha:            2.0,
		AbsorptionBeta:             3.0,
		AbsorptionDelayMinutes:     30,
		AbsorptionMinWindowMinutes: 30,

		PeakWindowHours:      6.0,
		PeakStepMinutes:      5,
		CurveHoursAhead:      6.0,
		CurveIntervalMinutes: 30,
		CurveWorkers:         runtime.NumCPU(),

		BaselineSleepHours: 7.5,
		MaxSleepDebtHours:  3.0,
		ModerateMgPerKg:    5.0,

		FocusBandLowMgPerKg:  0.8,
		FocusBandHighMgPerKg: 3.0,

		MaxDailyCaffeineMg:   400,
		MinDoseGapMinutes:    60,
		EarliestDoseHour:     6,
		LatestDoseHour:       20,
		BedtimeCeilingMg:     50,
		FocusFloorMg:         30,
		MinDoseMg:            40,
		MaxDoseMg:            200,
		SippingWindowMinutes: 15,
	}
	return c
}
