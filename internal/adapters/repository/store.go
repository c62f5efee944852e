// Package repository defines the per-user state store interface and errors.
package repository

import (
	"context"
	"time"

	"github.com/kdawg1232/jitter/internal/domain/model"
)

// Store provides read/write access to per-user tracking state.
type Store interface {
	// PutProfile creates or replaces a user's physiological profile.
	PutProfile(ctx context.Context, userID string, profile model.UserProfile) error
	// Profile returns a user's profile.
	// Returns ErrUserNotFound if the user is unknown.
	Profile(ctx context.Context, userID string) (model.UserProfile, error)

	// LogDose records a consumed dose. Logging is idempotent by dose ID:
	// a dose already recorded is ignored and reported as false.
	LogDose(ctx context.Context, userID string, dose model.DoseEvent) (bool, error)
	// Doses returns a user's doses consumed in [from, to), ordered by
	// consumption time. Zero bounds are open-ended.
	Doses(ctx context.Context, userID string, from, to time.Time) ([]model.DoseEvent, error)

	// PutSessions replaces a user's planned focus sessions.
	PutSessions(ctx context.Context, userID string, sessions []model.FocusSession) error
	// Sessions returns a user's planned focus sessions.
	Sessions(ctx context.Context, userID string) ([]model.FocusSession, error)

	// PutPreferences replaces a user's planning preferences.
	PutPreferences(ctx context.Context, userID string, prefs model.PlanningPreferences) error
	// Preferences returns a user's planning preferences.
	// Returns ErrPreferencesNotSet when the user never stored any.
	Preferences(ctx context.Context, userID string) (model.PlanningPreferences, error)

	// PutPlan stores the user's most recent caffeine plan.
	PutPlan(ctx context.Context, userID string, plan model.CaffeinePlan) error
	// Plan returns the user's most recent caffeine plan.
	// Returns ErrPlanNotFound when none has been generated.
	Plan(ctx context.Context, userID string) (model.CaffeinePlan, error)

	// Count returns the number of users tracked.
	Count(ctx context.Context) int
}
