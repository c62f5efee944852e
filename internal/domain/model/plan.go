package model

import "time"

// PlanningPreferences carry the caller's safety limits for a planning run.
// The planner treats the hard caps as constraints, not suggestions.
type PlanningPreferences struct {
	Bedtime            time.Time     `json:"bedtime"`
	MaxDailyCaffeineMg float64       `json:"max_daily_caffeine_mg"`
	MinDoseGap         time.Duration `json:"-"`
	EarliestDoseHour   int           `json:"earliest_dose_hour"`
	LatestDoseHour     int           `json:"latest_dose_hour"`
	BedtimeCeilingMg   float64       `json:"bedtime_ceiling_mg"`
	FocusFloorMg       float64       `json:"focus_floor_mg"`
}

// RecommendationStatus tracks what the user did with a recommendation.
// The engine only ever emits StatusPending; the rest are set externally.
type RecommendationStatus string

// Recommendation statuses.
const (
	StatusPending  RecommendationStatus = "pending"
	StatusConsumed RecommendationStatus = "consumed"
	StatusAdjusted RecommendationStatus = "adjusted"
	StatusSkipped  RecommendationStatus = "skipped"
)

// DoseRecommendation is one proposed dose in a caffeine plan.
type DoseRecommendation struct {
	ID                   string               `json:"id"`
	RecommendedTime      time.Time            `json:"recommended_time"`
	DoseMg               float64              `json:"dose_mg"`
	SippingWindowMinutes int                  `json:"sipping_window_minutes"`
	Confidence           float64              `json:"confidence"` // 0..1; <0.8 marks a degraded recommendation
	Status               RecommendationStatus `json:"status"`
	Reasoning            string               `json:"reasoning"`
}

// CaffeinePlan is the atomic output of one planning run. A new run fully
// replaces the prior plan.
type CaffeinePlan struct {
	PlanDate               time.Time            `json:"plan_date"`
	Recommendations        []DoseRecommendation `json:"recommendations"`
	TotalPlannedCaffeineMg float64              `json:"total_planned_caffeine_mg"`
	LatestSafeCaffeineTime time.Time            `json:"latest_safe_caffeine_time"`
	Bedtime                time.Time            `json:"bedtime"`
	Warnings               []string             `json:"warnings,omitempty"`
	Suggestion             string               `json:"suggestion,omitempty"`
}

// Degraded reports whether any recommendation carries reduced confidence
// or the plan carries warnings.
func (p CaffeinePlan) Degraded() bool {
	if len(p.Warnings) > 0 || p.Suggestion != "" {
		return true
	}
	for _, rec := range p.Recommendations {
		if rec.Confidence < 0.8 {
			return true
		}
	}
	return false
}
