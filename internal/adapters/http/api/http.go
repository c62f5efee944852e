// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	repository "github.com/kdawg1232/jitter/internal/adapters/repository"
	"github.com/kdawg1232/jitter/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	UpsertProfile(ctx context.Context, userID string, profile model.UserProfile) error
	Profile(ctx context.Context, userID string) (model.UserProfile, error)

	LogDose(ctx context.Context, userID string, dose model.DoseEvent) (model.DoseEvent, bool, error)
	Doses(ctx context.Context, userID string, from, to time.Time) ([]model.DoseEvent, error)

	SetSessions(ctx context.Context, userID string, sessions []model.FocusSession) error
	Sessions(ctx context.Context, userID string) ([]model.FocusSession, error)
	SetPreferences(ctx context.Context, userID string, prefs model.PlanningPreferences) error
	Preferences(ctx context.Context, userID string) (model.PlanningPreferences, error)

	Risk(ctx context.Context, userID string, lastNightSleepHours float64, at time.Time) (model.RiskResult, error)
	Focus(ctx context.Context, userID string, at time.Time) (model.FocusResult, error)
	RiskCurve(ctx context.Context, userID string, lastNightSleepHours float64, from time.Time, hoursAhead float64, interval time.Duration) ([]model.RiskSample, error)
	LevelCurve(ctx context.Context, userID string, from time.Time, hoursAhead float64, interval time.Duration) ([]model.LevelSample, error)

	GeneratePlan(ctx context.Context, userID string, now time.Time) (model.CaffeinePlan, error)
	LatestPlan(ctx context.Context, userID string) (model.CaffeinePlan, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	usersHandler     *UsersHandler
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	dashboardHandler *dashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		usersHandler:     NewUsersHandler(deps),
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		dashboardHandler: newdashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/users/", MetricsMiddleware(s.usersHandler.HandleUsers, "users"))
}

type ackResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates sentinel errors from lower layers into
// status codes: invalid input maps to 422, unknown entities to 404.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, "invalid_input", err)
	case errors.Is(err, repository.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err)
	case errors.Is(err, repository.ErrPlanNotFound):
		writeError(w, http.StatusNotFound, "plan_not_found", err)
	case errors.Is(err, repository.ErrPreferencesNotSet):
		writeError(w, http.StatusNotFound, "preferences_not_set", err)
	case errors.Is(err, repository.ErrInvalidUserID):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// parseTimeParam reads an RFC3339 query parameter, defaulting to now when
// absent or malformed. Projections are anchored to the present, so a bad
// timestamp degrades to the safe default instead of failing the request.
func parseTimeParam(r *http.Request, name string, now time.Time) time.Time {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return now
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return now
	}
	return t
}
