package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if JITTER_CONFIG is set
//  3. env (prefix JITTER_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("JITTER_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: JITTER_ADDR, JITTER_HALF_LIFE_BASE_HOURS, ...
	// Map env keys like JITTER_MAX_DAILY_CAFFEINE_MG -> max_daily_caffeine_mg
	// (flat keys). Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("JITTER_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "jitter_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations that the engine cannot run with.
func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.HalfLifeMinHours <= 0 || c.HalfLifeMaxHours <= c.HalfLifeMinHours:
		return fmt.Errorf("%w: half-life band must satisfy 0 < min < max", ErrInvalidConfig)
	case c.HalfLifeBaseHours < c.HalfLifeMinHours || c.HalfLifeBaseHours > c.HalfLifeMaxHours:
		return fmt.Errorf("%w: base half-life must sit inside the band", ErrInvalidConfig)
	case c.AbsorptionAlpha <= 0 || c.AbsorptionBeta <= 0:
		return fmt.Errorf("%w: absorption shape parameters must be positive", ErrInvalidConfig)
	case c.AbsorptionDelayMinutes <= 0 || c.AbsorptionMinWindowMinutes <= 0:
		return fmt.Errorf("%w: absorption timing must be positive", ErrInvalidConfig)
	case c.PeakStepMinutes <= 0 || c.CurveIntervalMinutes <= 0:
		return fmt.Errorf("%w: sampling resolution must be positive", ErrInvalidConfig)
	case c.FocusBandHighMgPerKg <= c.FocusBandLowMgPerKg || c.FocusBandLowMgPerKg <= 0:
		return fmt.Errorf("%w: focus band must satisfy 0 < low < high", ErrInvalidConfig)
	case c.MaxDailyCaffeineMg <= 0:
		return fmt.Errorf("%w: daily caffeine cap must be positive", ErrInvalidConfig)
	case c.EarliestDoseHour < 0 || c.LatestDoseHour > 23 || c.LatestDoseHour < c.EarliestDoseHour:
		return fmt.Errorf("%w: dosing hours must be an ordered pair within 0..23", ErrInvalidConfig)
	}
	return nil
}
