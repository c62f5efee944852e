package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kdawg1232/jitter/internal/domain/model"
)

// UsersHandler serves everything under /users/{id}/.
type UsersHandler struct {
	deps Dependencies
}

// NewUsersHandler creates a handler for the per-user API surface.
func NewUsersHandler(deps Dependencies) *UsersHandler {
	return &UsersHandler{deps: deps}
}

// flexTime is a lenient RFC 3339 timestamp. A string that fails to parse
// decodes to the zero time instead of failing the whole request; callers
// substitute a sensible default. Non-string JSON is still rejected.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t.Time = time.Time{}
		return nil
	}
	t.Time = parsed
	return nil
}

// sessionPayload is the wire form of a focus session. Timestamps decode
// leniently so one garbled field does not reject the whole submission.
type sessionPayload struct {
	Name       string   `json:"name"`
	Start      flexTime `json:"start"`
	End        flexTime `json:"end"`
	Importance int      `json:"importance"`
}

// toModel repairs timestamps that did not survive parsing: a missing start
// falls back to midday on the current date, a missing end to an hour after
// the start.
func (p sessionPayload) toModel(now time.Time) model.FocusSession {
	start := p.Start.Time
	if start.IsZero() {
		start = time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, now.Location())
	}
	end := p.End.Time
	if end.IsZero() {
		end = start.Add(time.Hour)
	}
	return model.FocusSession{
		Name:       p.Name,
		Start:      start,
		End:        end,
		Importance: p.Importance,
	}
}

// dosePayload is the wire form of a dose event. The consumption duration
// travels as HH:MM:SS rather than nanoseconds.
type dosePayload struct {
	ID                  string    `json:"id,omitempty"`
	CaffeineMg          float64   `json:"caffeine_mg"`
	ConsumedAt          time.Time `json:"consumed_at"`
	ConsumptionDuration string    `json:"consumption_duration,omitempty"`
}

func (p dosePayload) toModel() model.DoseEvent {
	return model.DoseEvent{
		ID:         p.ID,
		CaffeineMg: p.CaffeineMg,
		ConsumedAt: p.ConsumedAt,
		Duration:   model.ParseConsumptionDuration(p.ConsumptionDuration),
	}
}

func doseFromModel(d model.DoseEvent) dosePayload {
	return dosePayload{
		ID:                  d.ID,
		CaffeineMg:          d.CaffeineMg,
		ConsumedAt:          d.ConsumedAt,
		ConsumptionDuration: model.FormatConsumptionDuration(d.Duration),
	}
}

// prefsPayload is the wire form of planning preferences. The dose gap is a
// minute count on the wire, and a garbled bedtime decodes to zero so the
// planner's default bedtime applies.
type prefsPayload struct {
	Bedtime            flexTime `json:"bedtime"`
	MaxDailyCaffeineMg float64  `json:"max_daily_caffeine_mg"`
	MinDoseGapMinutes  int      `json:"min_dose_gap_minutes"`
	EarliestDoseHour   int      `json:"earliest_dose_hour"`
	LatestDoseHour     int      `json:"latest_dose_hour"`
	BedtimeCeilingMg   float64  `json:"bedtime_ceiling_mg"`
	FocusFloorMg       float64  `json:"focus_floor_mg"`
}

func (p prefsPayload) toModel() model.PlanningPreferences {
	return model.PlanningPreferences{
		Bedtime:            p.Bedtime.Time,
		MaxDailyCaffeineMg: p.MaxDailyCaffeineMg,
		MinDoseGap:         time.Duration(p.MinDoseGapMinutes) * time.Minute,
		EarliestDoseHour:   p.EarliestDoseHour,
		LatestDoseHour:     p.LatestDoseHour,
		BedtimeCeilingMg:   p.BedtimeCeilingMg,
		FocusFloorMg:       p.FocusFloorMg,
	}
}

func prefsFromModel(prefs model.PlanningPreferences) prefsPayload {
	return prefsPayload{
		Bedtime:            flexTime{Time: prefs.Bedtime},
		MaxDailyCaffeineMg: prefs.MaxDailyCaffeineMg,
		MinDoseGapMinutes:  int(prefs.MinDoseGap / time.Minute),
		EarliestDoseHour:   prefs.EarliestDoseHour,
		LatestDoseHour:     prefs.LatestDoseHour,
		BedtimeCeilingMg:   prefs.BedtimeCeilingMg,
		FocusFloorMg:       prefs.FocusFloorMg,
	}
}

// HandleUsers dispatches /users/{id}/{resource} to the matching operation.
func (h *UsersHandler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/users/")
	userID, resource, _ := strings.Cut(rest, "/")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingUserID)
		return
	}

	switch resource {
	case "profile":
		h.handleProfile(w, r, userID)
	case "doses":
		h.handleDoses(w, r, userID)
	case "sessions":
		h.handleSessions(w, r, userID)
	case "preferences":
		h.handlePreferences(w, r, userID)
	case "risk":
		h.requireGet(w, r, func() { h.handleRisk(w, r, userID) })
	case "focus":
		h.requireGet(w, r, func() { h.handleFocus(w, r, userID) })
	case "risk-curve":
		h.requireGet(w, r, func() { h.handleRiskCurve(w, r, userID) })
	case "level-curve":
		h.requireGet(w, r, func() { h.handleLevelCurve(w, r, userID) })
	case "plan":
		h.handlePlan(w, r, userID)
	default:
		writeError(w, http.StatusNotFound, "not_found", ErrUnknownResource)
	}
}

func (h *UsersHandler) requireGet(w http.ResponseWriter, r *http.Request, next func()) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	next()
}

func (h *UsersHandler) handleProfile(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodPut:
		var profile model.UserProfile
		if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrMalformedBody)
			return
		}
		if err := h.deps.UpsertProfile(r.Context(), userID, profile); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ackResponse{Status: "stored"})
	case http.MethodGet:
		profile, err := h.deps.Profile(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	}
}

func (h *UsersHandler) handleDoses(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodPost:
		var payload dosePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrMalformedBody)
			return
		}
		dose, logged, err := h.deps.LogDose(r.Context(), userID, payload.toModel())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if !logged {
			writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", ID: dose.ID, Duplicate: true})
			return
		}
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", ID: dose.ID})
	case http.MethodGet:
		from := parseTimeParam(r, "from", time.Time{})
		to := parseTimeParam(r, "to", time.Time{})
		doses, err := h.deps.Doses(r.Context(), userID, from, to)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		payloads := make([]dosePayload, 0, len(doses))
		for _, d := range doses {
			payloads = append(payloads, doseFromModel(d))
		}
		writeJSON(w, http.StatusOK, payloads)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	}
}

func (h *UsersHandler) handleSessions(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodPut:
		var payloads []sessionPayload
		if err := json.NewDecoder(r.Body).Decode(&payloads); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrMalformedBody)
			return
		}
		now := time.Now().UTC()
		sessions := make([]model.FocusSession, 0, len(payloads))
		for _, p := range payloads {
			sessions = append(sessions, p.toModel(now))
		}
		if err := h.deps.SetSessions(r.Context(), userID, sessions); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ackResponse{Status: "stored"})
	case http.MethodGet:
		sessions, err := h.deps.Sessions(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessions)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	}
}

func (h *UsersHandler) handlePreferences(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodPut:
		var payload prefsPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrMalformedBody)
			return
		}
		if err := h.deps.SetPreferences(r.Context(), userID, payload.toModel()); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ackResponse{Status: "stored"})
	case http.MethodGet:
		prefs, err := h.deps.Preferences(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, prefsFromModel(prefs))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	}
}

// sleepHoursParam reads the optional sleep_hours override. Zero means the
// profile's seven-day average applies.
func sleepHoursParam(r *http.Request) float64 {
	raw := strings.TrimSpace(r.URL.Query().Get("sleep_hours"))
	if raw == "" {
		return 0
	}
	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil || hours < 0 {
		return 0
	}
	return hours
}

func (h *UsersHandler) handleRisk(w http.ResponseWriter, r *http.Request, userID string) {
	at := parseTimeParam(r, "at", time.Now().UTC())
	result, err := h.deps.Risk(r.Context(), userID, sleepHoursParam(r), at)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *UsersHandler) handleFocus(w http.ResponseWriter, r *http.Request, userID string) {
	at := parseTimeParam(r, "at", time.Now().UTC())
	result, err := h.deps.Focus(r.Context(), userID, at)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// curveSpanParams reads the optional hours horizon and interval (minutes)
// for the projection curves. Zero means the configured defaults apply.
func curveSpanParams(r *http.Request) (float64, time.Duration) {
	var hours float64
	if raw := strings.TrimSpace(r.URL.Query().Get("hours")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			hours = v
		}
	}
	var interval time.Duration
	if raw := strings.TrimSpace(r.URL.Query().Get("interval")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			interval = time.Duration(v) * time.Minute
		}
	}
	return hours, interval
}

func (h *UsersHandler) handleRiskCurve(w http.ResponseWriter, r *http.Request, userID string) {
	from := parseTimeParam(r, "from", time.Now().UTC())
	hours, interval := curveSpanParams(r)
	samples, err := h.deps.RiskCurve(r.Context(), userID, sleepHoursParam(r), from, hours, interval)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

func (h *UsersHandler) handleLevelCurve(w http.ResponseWriter, r *http.Request, userID string) {
	from := parseTimeParam(r, "from", time.Now().UTC())
	hours, interval := curveSpanParams(r)
	samples, err := h.deps.LevelCurve(r.Context(), userID, from, hours, interval)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

func (h *UsersHandler) handlePlan(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodPost:
		now := parseTimeParam(r, "now", time.Now().UTC())
		plan, err := h.deps.GeneratePlan(r.Context(), userID, now)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	case http.MethodGet:
		plan, err := h.deps.LatestPlan(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	}
}
