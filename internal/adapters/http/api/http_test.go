package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	repository "github.com/kdawg1232/jitter/internal/adapters/repository"
	"github.com/kdawg1232/jitter/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing
type mockDependencies struct {
	profiles map[string]model.UserProfile
	doses    map[string][]model.DoseEvent
	sessions map[string][]model.FocusSession
	prefs    map[string]model.PlanningPreferences
	plans    map[string]model.CaffeinePlan

	curveHours    float64
	curveInterval time.Duration
}

func newMockDependencies() *mockDependencies {
	return &mockDependencies{
		profiles: make(map[string]model.UserProfile),
		doses:    make(map[string][]model.DoseEvent),
		sessions: make(map[string][]model.FocusSession),
		prefs:    make(map[string]model.PlanningPreferences),
		plans:    make(map[string]model.CaffeinePlan),
	}
}

func (m *mockDependencies) UpsertProfile(ctx context.Context, userID string, profile model.UserProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	m.profiles[userID] = profile
	return nil
}

func (m *mockDependencies) Profile(ctx context.Context, userID string) (model.UserProfile, error) {
	profile, ok := m.profiles[userID]
	if !ok {
		return model.UserProfile{}, fmt.Errorf("%w: %s", repository.ErrUserNotFound, userID)
	}
	return profile, nil
}

func (m *mockDependencies) LogDose(ctx context.Context, userID string, dose model.DoseEvent) (model.DoseEvent, bool, error) {
	if err := dose.Validate(); err != nil {
		return model.DoseEvent{}, false, err
	}
	if dose.ID == "" {
		dose.ID = fmt.Sprintf("dose-%d", len(m.doses[userID])+1)
	}
	for _, existing := range m.doses[userID] {
		if existing.ID == dose.ID {
			return existing, false, nil
		}
	}
	m.doses[userID] = append(m.doses[userID], dose)
	return dose, true, nil
}

func (m *mockDependencies) Doses(ctx context.Context, userID string, from, to time.Time) ([]model.DoseEvent, error) {
	return m.doses[userID], nil
}

func (m *mockDependencies) SetSessions(ctx context.Context, userID string, sessions []model.FocusSession) error {
	for _, s := range sessions {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	m.sessions[userID] = sessions
	return nil
}

func (m *mockDependencies) Sessions(ctx context.Context, userID string) ([]model.FocusSession, error) {
	return m.sessions[userID], nil
}

func (m *mockDependencies) SetPreferences(ctx context.Context, userID string, prefs model.PlanningPreferences) error {
	m.prefs[userID] = prefs
	return nil
}

func (m *mockDependencies) Preferences(ctx context.Context, userID string) (model.PlanningPreferences, error) {
	prefs, ok := m.prefs[userID]
	if !ok {
		return model.PlanningPreferences{}, fmt.Errorf("%w: %s", repository.ErrPreferencesNotSet, userID)
	}
	return prefs, nil
}

func (m *mockDependencies) Risk(ctx context.Context, userID string, lastNightSleepHours float64, at time.Time) (model.RiskResult, error) {
	if _, ok := m.profiles[userID]; !ok {
		return model.RiskResult{}, fmt.Errorf("%w: %s", repository.ErrUserNotFound, userID)
	}
	return model.RiskResult{Score: 42, CalculatedAt: at}, nil
}

func (m *mockDependencies) Focus(ctx context.Context, userID string, at time.Time) (model.FocusResult, error) {
	if _, ok := m.profiles[userID]; !ok {
		return model.FocusResult{}, fmt.Errorf("%w: %s", repository.ErrUserNotFound, userID)
	}
	return model.FocusResult{Score: 63, Zone: model.ZoneModerate, CalculatedAt: at}, nil
}

func (m *mockDependencies) RiskCurve(ctx context.Context, userID string, lastNightSleepHours float64, from time.Time, hoursAhead float64, interval time.Duration) ([]model.RiskSample, error) {
	m.curveHours = hoursAhead
	m.curveInterval = interval
	return []model.RiskSample{{At: from, Score: 42}}, nil
}

func (m *mockDependencies) LevelCurve(ctx context.Context, userID string, from time.Time, hoursAhead float64, interval time.Duration) ([]model.LevelSample, error) {
	m.curveHours = hoursAhead
	m.curveInterval = interval
	return []model.LevelSample{{At: from, LevelMg: 80}}, nil
}

func (m *mockDependencies) GeneratePlan(ctx context.Context, userID string, now time.Time) (model.CaffeinePlan, error) {
	if _, ok := m.profiles[userID]; !ok {
		return model.CaffeinePlan{}, fmt.Errorf("%w: %s", repository.ErrUserNotFound, userID)
	}
	plan := model.CaffeinePlan{PlanDate: now, Bedtime: now.Add(14 * time.Hour)}
	m.plans[userID] = plan
	return plan, nil
}

func (m *mockDependencies) LatestPlan(ctx context.Context, userID string) (model.CaffeinePlan, error) {
	plan, ok := m.plans[userID]
	if !ok {
		return model.CaffeinePlan{}, fmt.Errorf("%w: %s", repository.ErrPlanNotFound, userID)
	}
	return plan, nil
}

type mockStatsProvider struct{}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func registeredMux(deps Dependencies) *http.ServeMux {
	server := NewServer(deps, &mockStatsProvider{})
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		deps := newMockDependencies()
		mux := registeredMux(deps)

		Convey("Then health endpoint should be accessible", func() {
			req := httptest.NewRequest("GET", "/healthz", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("And stats endpoint should be accessible", func() {
			req := httptest.NewRequest("GET", "/stats", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "started")
		})

		Convey("And dashboard endpoint should serve HTML", func() {
			req := httptest.NewRequest("GET", "/dashboard", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "Jitter")
		})

		Convey("And a users path without an id should be rejected", func() {
			req := httptest.NewRequest("GET", "/users/", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("And an unknown user resource should be not found", func() {
			req := httptest.NewRequest("GET", "/users/u1/espresso", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestClassifyFailure(t *testing.T) {
	Convey("Given the failure classifier", t, func() {
		Convey("Then each failure mode maps to its own bucket", func() {
			cases := []struct {
				status   int
				failure  string
				severity string
			}{
				{http.StatusInternalServerError, "server_fault", "high"},
				{http.StatusUnprocessableEntity, "invalid_input", "medium"},
				{http.StatusNotFound, "not_found", "low"},
				{http.StatusMethodNotAllowed, "method_not_allowed", "low"},
				{http.StatusBadRequest, "bad_request", "medium"},
			}
			for _, c := range cases {
				failure, severity := classifyFailure(c.status)
				So(failure, ShouldEqual, c.failure)
				So(severity, ShouldEqual, c.severity)
			}
		})
	})
}

func TestUsersHandler_Profile(t *testing.T) {
	Convey("Given a users handler", t, func() {
		deps := newMockDependencies()
		mux := registeredMux(deps)

		profileJSON := `{"weight_kg":70,"age":30,"sex":"male","avg_sleep_hours_7d":7.5}`

		Convey("When storing a valid profile", func() {
			req := httptest.NewRequest("PUT", "/users/u1/profile", strings.NewReader(profileJSON))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should be stored and readable", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				getReq := httptest.NewRequest("GET", "/users/u1/profile", nil)
				getW := httptest.NewRecorder()
				mux.ServeHTTP(getW, getReq)
				So(getW.Code, ShouldEqual, http.StatusOK)

				var profile model.UserProfile
				So(json.NewDecoder(getW.Body).Decode(&profile), ShouldBeNil)
				So(profile.WeightKg, ShouldEqual, 70)
			})
		})

		Convey("When storing an invalid profile", func() {
			req := httptest.NewRequest("PUT", "/users/u1/profile",
				strings.NewReader(`{"weight_kg":-1,"age":30}`))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should be rejected as unprocessable", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			})
		})

		Convey("When reading a missing profile", func() {
			req := httptest.NewRequest("GET", "/users/nobody/profile", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should be not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When using an unsupported method", func() {
			req := httptest.NewRequest("DELETE", "/users/u1/profile", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should be method not allowed", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestUsersHandler_Doses(t *testing.T) {
	Convey("Given a users handler", t, func() {
		deps := newMockDependencies()
		mux := registeredMux(deps)

		doseJSON := `{
			"id": "dose-123",
			"caffeine_mg": 150,
			"consumed_at": "2026-03-10T08:00:00Z",
			"consumption_duration": "00:15:00"
		}`

		Convey("When logging a valid dose", func() {
			req := httptest.NewRequest("POST", "/users/u1/doses", strings.NewReader(doseJSON))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should return accepted status", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)

				var response ackResponse
				So(json.NewDecoder(w.Body).Decode(&response), ShouldBeNil)
				So(response.Status, ShouldEqual, "accepted")
				So(response.ID, ShouldEqual, "dose-123")
				So(response.Duplicate, ShouldBeFalse)
			})

			Convey("And resubmitting the same dose should report a duplicate", func() {
				req2 := httptest.NewRequest("POST", "/users/u1/doses", strings.NewReader(doseJSON))
				w2 := httptest.NewRecorder()
				mux.ServeHTTP(w2, req2)
				So(w2.Code, ShouldEqual, http.StatusOK)

				var response ackResponse
				So(json.NewDecoder(w2.Body).Decode(&response), ShouldBeNil)
				So(response.Status, ShouldEqual, "duplicate")
				So(response.Duplicate, ShouldBeTrue)
			})

			Convey("And listing doses should include the consumption duration", func() {
				listReq := httptest.NewRequest("GET", "/users/u1/doses", nil)
				listW := httptest.NewRecorder()
				mux.ServeHTTP(listW, listReq)
				So(listW.Code, ShouldEqual, http.StatusOK)

				var payloads []dosePayload
				So(json.NewDecoder(listW.Body).Decode(&payloads), ShouldBeNil)
				So(len(payloads), ShouldEqual, 1)
				So(payloads[0].ConsumptionDuration, ShouldEqual, "00:15:00")
			})
		})

		Convey("When logging a physically impossible dose", func() {
			req := httptest.NewRequest("POST", "/users/u1/doses",
				strings.NewReader(`{"caffeine_mg":-10,"consumed_at":"2026-03-10T08:00:00Z"}`))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should be rejected as unprocessable", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			})
		})

		Convey("When posting a malformed body", func() {
			req := httptest.NewRequest("POST", "/users/u1/doses", strings.NewReader(`{not json`))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should be a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestUsersHandler_SessionsAndPreferences(t *testing.T) {
	Convey("Given a users handler", t, func() {
		deps := newMockDependencies()
		mux := registeredMux(deps)

		Convey("When storing focus sessions", func() {
			sessionsJSON := `[{"name":"deep work","start":"2026-03-10T09:00:00Z","end":"2026-03-10T11:00:00Z","importance":3}]`
			req := httptest.NewRequest("PUT", "/users/u1/sessions", strings.NewReader(sessionsJSON))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then they should round-trip", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				getReq := httptest.NewRequest("GET", "/users/u1/sessions", nil)
				getW := httptest.NewRecorder()
				mux.ServeHTTP(getW, getReq)
				So(getW.Code, ShouldEqual, http.StatusOK)

				var sessions []model.FocusSession
				So(json.NewDecoder(getW.Body).Decode(&sessions), ShouldBeNil)
				So(len(sessions), ShouldEqual, 1)
				So(sessions[0].Importance, ShouldEqual, 3)
			})
		})

		Convey("When storing a session with a garbled start time", func() {
			sessionsJSON := `[{"name":"review","start":"yesterday-ish","end":"","importance":2}]`
			req := httptest.NewRequest("PUT", "/users/u1/sessions", strings.NewReader(sessionsJSON))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should be repaired to a midday block", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(len(deps.sessions["u1"]), ShouldEqual, 1)

				stored := deps.sessions["u1"][0]
				So(stored.Start.Hour(), ShouldEqual, 12)
				So(stored.End.Sub(stored.Start), ShouldEqual, time.Hour)
			})
		})

		Convey("When storing a session with a garbled end time", func() {
			sessionsJSON := `[{"name":"review","start":"2026-03-10T09:00:00Z","end":"soon","importance":2}]`
			req := httptest.NewRequest("PUT", "/users/u1/sessions", strings.NewReader(sessionsJSON))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the end should default to an hour after the start", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(len(deps.sessions["u1"]), ShouldEqual, 1)
				So(deps.sessions["u1"][0].End.Sub(deps.sessions["u1"][0].Start), ShouldEqual, time.Hour)
			})
		})

		Convey("When storing inverted sessions", func() {
			sessionsJSON := `[{"name":"bad","start":"2026-03-10T11:00:00Z","end":"2026-03-10T09:00:00Z","importance":2}]`
			req := httptest.NewRequest("PUT", "/users/u1/sessions", strings.NewReader(sessionsJSON))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then they should be rejected", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			})
		})

		Convey("When storing preferences with a minute gap", func() {
			prefsJSON := `{
				"bedtime": "2026-03-10T22:30:00Z",
				"max_daily_caffeine_mg": 350,
				"min_dose_gap_minutes": 90,
				"earliest_dose_hour": 7,
				"latest_dose_hour": 19,
				"bedtime_ceiling_mg": 40,
				"focus_floor_mg": 35
			}`
			req := httptest.NewRequest("PUT", "/users/u1/preferences", strings.NewReader(prefsJSON))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the gap should survive the wire format", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.prefs["u1"].MinDoseGap, ShouldEqual, 90*time.Minute)

				getReq := httptest.NewRequest("GET", "/users/u1/preferences", nil)
				getW := httptest.NewRecorder()
				mux.ServeHTTP(getW, getReq)
				So(getW.Code, ShouldEqual, http.StatusOK)

				var payload prefsPayload
				So(json.NewDecoder(getW.Body).Decode(&payload), ShouldBeNil)
				So(payload.MinDoseGapMinutes, ShouldEqual, 90)
			})
		})

		Convey("When storing preferences with a garbled bedtime", func() {
			prefsJSON := `{"bedtime":"around ten","max_daily_caffeine_mg":300}`
			req := httptest.NewRequest("PUT", "/users/u1/preferences", strings.NewReader(prefsJSON))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the bedtime should decode to zero for the default to apply", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.prefs["u1"].Bedtime.IsZero(), ShouldBeTrue)
				So(deps.prefs["u1"].MaxDailyCaffeineMg, ShouldEqual, 300)
			})
		})

		Convey("When reading unset preferences", func() {
			req := httptest.NewRequest("GET", "/users/u1/preferences", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then they should be not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestUsersHandler_ScoresAndPlan(t *testing.T) {
	Convey("Given a users handler with a known user", t, func() {
		deps := newMockDependencies()
		deps.profiles["u1"] = model.UserProfile{WeightKg: 70, Age: 30, AvgSleepHours7d: 7.5}
		mux := registeredMux(deps)

		Convey("When requesting a risk score", func() {
			req := httptest.NewRequest("GET", "/users/u1/risk?sleep_hours=6.5", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should return the result", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var result model.RiskResult
				So(json.NewDecoder(w.Body).Decode(&result), ShouldBeNil)
				So(result.Score, ShouldEqual, 42)
			})
		})

		Convey("When requesting risk with a POST", func() {
			req := httptest.NewRequest("POST", "/users/u1/risk", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should be method not allowed", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})

		Convey("When requesting a focus score", func() {
			req := httptest.NewRequest("GET", "/users/u1/focus", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should return the result with a zone", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var result model.FocusResult
				So(json.NewDecoder(w.Body).Decode(&result), ShouldBeNil)
				So(result.Zone, ShouldEqual, model.ZoneModerate)
			})
		})

		Convey("When requesting the projection curves", func() {
			riskReq := httptest.NewRequest("GET", "/users/u1/risk-curve?from=2026-03-10T08:00:00Z", nil)
			riskW := httptest.NewRecorder()
			mux.ServeHTTP(riskW, riskReq)

			levelReq := httptest.NewRequest("GET", "/users/u1/level-curve", nil)
			levelW := httptest.NewRecorder()
			mux.ServeHTTP(levelW, levelReq)

			Convey("Then both should return sample lists", func() {
				So(riskW.Code, ShouldEqual, http.StatusOK)
				So(levelW.Code, ShouldEqual, http.StatusOK)

				var riskSamples []model.RiskSample
				So(json.NewDecoder(riskW.Body).Decode(&riskSamples), ShouldBeNil)
				So(len(riskSamples), ShouldEqual, 1)
				So(riskSamples[0].At.UTC(), ShouldResemble, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
			})
		})

		Convey("When requesting a curve with a custom span", func() {
			req := httptest.NewRequest("GET", "/users/u1/risk-curve?hours=2&interval=15", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the span should reach the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.curveHours, ShouldEqual, 2)
				So(deps.curveInterval, ShouldEqual, 15*time.Minute)
			})
		})

		Convey("When requesting a curve with a nonsense span", func() {
			req := httptest.NewRequest("GET", "/users/u1/level-curve?hours=-3&interval=abc", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the span should be left for the configured defaults", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.curveHours, ShouldEqual, 0)
				So(deps.curveInterval, ShouldEqual, time.Duration(0))
			})
		})

		Convey("When generating and fetching a plan", func() {
			genReq := httptest.NewRequest("POST", "/users/u1/plan", nil)
			genW := httptest.NewRecorder()
			mux.ServeHTTP(genW, genReq)
			So(genW.Code, ShouldEqual, http.StatusOK)

			Convey("Then the latest plan should be retrievable", func() {
				getReq := httptest.NewRequest("GET", "/users/u1/plan", nil)
				getW := httptest.NewRecorder()
				mux.ServeHTTP(getW, getReq)
				So(getW.Code, ShouldEqual, http.StatusOK)

				var plan model.CaffeinePlan
				So(json.NewDecoder(getW.Body).Decode(&plan), ShouldBeNil)
				So(plan.Bedtime.After(plan.PlanDate), ShouldBeTrue)
			})
		})

		Convey("When fetching a plan that was never generated", func() {
			req := httptest.NewRequest("GET", "/users/u2/plan", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should be not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}
