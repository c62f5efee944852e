package model

import "time"

// RefreshTrigger names what caused a plan refresh job.
type RefreshTrigger string

const (
	TriggerDoseLogged      RefreshTrigger = "dose_logged"
	TriggerSessionsChanged RefreshTrigger = "sessions_changed"
	TriggerPrefsChanged    RefreshTrigger = "prefs_changed"
)

// RefreshJob asks the background pipeline to regenerate a user's plan.
type RefreshJob struct {
	UserID     string
	Trigger    RefreshTrigger
	EnqueuedAt time.Time
}
