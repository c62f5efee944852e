// Package simulate drives a running jitter service with synthetic users,
// doses, and focus sessions, then checks the scores and plans it hands back.
package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL      string        // Base URL of the service
	NumUsers     int           // Number of synthetic users to generate
	DosesPerUser int           // Doses logged per user across the day
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	OutputFile   string        // Output file for generated users
	LogFile      string        // Log file for simulation output
	Verbose      bool          // Enable verbose logging
}

// User is one synthetic user with everything the engine needs.
type User struct {
	ID       string         `json:"id"`
	Profile  Profile        `json:"profile"`
	Doses    []Dose         `json:"doses"`
	Sessions []FocusSession `json:"sessions"`
	Prefs    Preferences    `json:"preferences"`
}

// Profile mirrors the profile wire format.
type Profile struct {
	WeightKg            float64 `json:"weight_kg"`
	Age                 int     `json:"age"`
	Sex                 string  `json:"sex"`
	Smoker              bool    `json:"smoker"`
	Pregnant            bool    `json:"pregnant"`
	OralContraceptives  bool    `json:"oral_contraceptives"`
	AvgSleepHours7d     float64 `json:"avg_sleep_hours_7d"`
	MeanDailyCaffeineMg float64 `json:"mean_daily_caffeine_mg"`
}

// Dose mirrors the dose wire format.
type Dose struct {
	ID                  string  `json:"id"`
	CaffeineMg          float64 `json:"caffeine_mg"`
	ConsumedAt          string  `json:"consumed_at"`
	ConsumptionDuration string  `json:"consumption_duration,omitempty"`
}

// FocusSession mirrors the session wire format.
type FocusSession struct {
	Name       string `json:"name"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Importance int    `json:"importance"`
}

// Preferences mirrors the planning preferences wire format.
type Preferences struct {
	Bedtime            string  `json:"bedtime"`
	MaxDailyCaffeineMg float64 `json:"max_daily_caffeine_mg"`
	MinDoseGapMinutes  int     `json:"min_dose_gap_minutes"`
	EarliestDoseHour   int     `json:"earliest_dose_hour"`
	LatestDoseHour     int     `json:"latest_dose_hour"`
	BedtimeCeilingMg   float64 `json:"bedtime_ceiling_mg"`
	FocusFloorMg       float64 `json:"focus_floor_mg"`
}

// AckResponse represents the response from dose submission.
type AckResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

// RiskResponse carries the fields the simulator verifies.
type RiskResponse struct {
	Score          float64 `json:"score"`
	HalfLifeHours  float64 `json:"half_life_hours"`
	CurrentLevelMg float64 `json:"current_level_mg"`
}

// FocusResponse carries the fields the simulator verifies.
type FocusResponse struct {
	Score float64 `json:"score"`
	Zone  string  `json:"zone"`
}

// PlanResponse carries the fields the simulator verifies.
type PlanResponse struct {
	Recommendations []struct {
		RecommendedTime time.Time `json:"recommended_time"`
		DoseMg          float64   `json:"dose_mg"`
		Confidence      float64   `json:"confidence"`
	} `json:"recommendations"`
	TotalPlannedCaffeineMg float64   `json:"total_planned_caffeine_mg"`
	Bedtime                time.Time `json:"bedtime"`
	Warnings               []string  `json:"warnings"`
}

// Stats holds simulation statistics.
type Stats struct {
	UsersGenerated    int
	DosesSubmitted    int
	DosesSuccessful   int
	DosesDuplicate    int
	DosesFailed       int
	RiskScoresFetched int
	FocusFetched      int
	PlansGenerated    int
	PlansDegraded     int
	PlanViolations    int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
