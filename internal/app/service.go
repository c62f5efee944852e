// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	refreshqueue "github.com/kdawg1232/jitter/internal/adapters/mq/queue"
	workerpool "github.com/kdawg1232/jitter/internal/adapters/mq/worker"
	repository "github.com/kdawg1232/jitter/internal/adapters/repository"
	"github.com/kdawg1232/jitter/internal/config"
	"github.com/kdawg1232/jitter/internal/domain/dedupe"
	"github.com/kdawg1232/jitter/internal/domain/focus"
	"github.com/kdawg1232/jitter/internal/domain/kinetics"
	"github.com/kdawg1232/jitter/internal/domain/level"
	"github.com/kdawg1232/jitter/internal/domain/model"
	"github.com/kdawg1232/jitter/internal/domain/personalization"
	"github.com/kdawg1232/jitter/internal/domain/planner"
	"github.com/kdawg1232/jitter/internal/domain/risk"
	"github.com/kdawg1232/jitter/pkg/logger"
	"github.com/kdawg1232/jitter/pkg/metrics"
)

// Service implements the API dependencies for the caffeine engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	store        repository.Store
	deduper      dedupe.Deduper
	refreshQueue refreshqueue.Queue
	workerPool   *workerpool.Pool

	pers        *personalization.Model
	agg         *level.Aggregator
	riskScorer  *risk.Scorer
	focusScorer *focus.Scorer
	planner     *planner.Planner

	// Configuration
	cfg         *config.Config
	workerCount int
	queueSize   int
	dedupeSize  int

	// State
	started bool
	now     func() time.Time

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the engine configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithWorkerCount sets the number of refresh worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the refresh queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the submission deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the wall clock. Tests use this for determinism.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:         config.New(),
		workerCount: runtime.NumCPU(),
		queueSize:   10000,
		dedupeSize:  50000,
		now:         time.Now,
		logger:      nil, // Will be replaced when service starts
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting caffeine engine service...")

	s.store = repository.NewShardStore(ctx,
		repository.WithShardCount(s.cfg.ShardCount),
	)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.refreshQueue = refreshqueue.NewInMemoryQueue(
		refreshqueue.WithCapacity(s.queueSize),
	)

	s.pers = personalization.New(
		personalization.WithBaseHours(s.cfg.HalfLifeBaseHours),
		personalization.WithBounds(s.cfg.HalfLifeMinHours, s.cfg.HalfLifeMaxHours),
	)
	kin := kinetics.New(
		kinetics.WithShape(s.cfg.AbsorptionAlpha, s.cfg.AbsorptionBeta),
		kinetics.WithAbsorptionDelay(s.cfg.AbsorptionDelayMinutes),
		kinetics.WithMinWindow(s.cfg.AbsorptionMinWindowMinutes),
	)
	s.agg = level.New(
		level.WithKinetics(kin),
		level.WithPeakStep(s.cfg.PeakStepMinutes),
		level.WithWorkers(s.cfg.CurveWorkers),
	)
	s.riskScorer = risk.New(
		risk.WithPersonalization(s.pers),
		risk.WithAggregator(s.agg),
		risk.WithSleepNormalizers(s.cfg.BaselineSleepHours, s.cfg.MaxSleepDebtHours),
		risk.WithModerateMgPerKg(s.cfg.ModerateMgPerKg),
		risk.WithPeakWindow(s.cfg.PeakWindowHours),
	)
	s.focusScorer = focus.New(
		focus.WithPersonalization(s.pers),
		focus.WithAggregator(s.agg),
		focus.WithBand(s.cfg.FocusBandLowMgPerKg, s.cfg.FocusBandHighMgPerKg),
	)
	s.planner = planner.New(
		planner.WithPersonalization(s.pers),
		planner.WithAggregator(s.agg),
		planner.WithDoseBounds(s.cfg.MinDoseMg, s.cfg.MaxDoseMg),
		planner.WithSippingWindow(s.cfg.SippingWindowMinutes),
		planner.WithDefaults(model.PlanningPreferences{
			MaxDailyCaffeineMg: s.cfg.MaxDailyCaffeineMg,
			MinDoseGap:         time.Duration(s.cfg.MinDoseGapMinutes) * time.Minute,
			EarliestDoseHour:   s.cfg.EarliestDoseHour,
			LatestDoseHour:     s.cfg.LatestDoseHour,
			BedtimeCeilingMg:   s.cfg.BedtimeCeilingMg,
			FocusFloorMg:       s.cfg.FocusFloorMg,
		}),
	)

	s.workerPool = workerpool.NewPool(s.workerCount, s.refreshQueue, s)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "caffeine engine service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("shards", s.cfg.ShardCount),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping caffeine engine service...")

	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}

	if s.store != nil {
		if closer, ok := s.store.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}

	s.started = false
	s.logger.Info(ctx, "caffeine engine service stopped")
}

// UpsertProfile validates and stores a user's physiological profile.
func (s *Service) UpsertProfile(ctx context.Context, userID string, profile model.UserProfile) error {
	if err := profile.Validate(); err != nil {
		metrics.RecordInvalidInput()
		return err
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = s.now()
	}

	if err := s.store.PutProfile(ctx, userID, profile); err != nil {
		return fmt.Errorf("storing profile: %w", err)
	}

	s.logger.Debug(ctx, "profile stored", logger.String("userID", userID))
	return nil
}

// Profile returns a user's stored profile.
func (s *Service) Profile(ctx context.Context, userID string) (model.UserProfile, error) {
	return s.store.Profile(ctx, userID)
}

// LogDose validates and records a consumed dose. Submissions are
// idempotent by dose ID; retries return the stored dose with logged=false.
// An accepted dose schedules a background plan refresh.
func (s *Service) LogDose(ctx context.Context, userID string, dose model.DoseEvent) (model.DoseEvent, bool, error) {
	if dose.ID == "" {
		dose.ID = uuid.NewString()
	}
	if err := dose.Validate(); err != nil {
		metrics.RecordInvalidInput()
		return model.DoseEvent{}, false, err
	}

	submissionID := userID + ":" + dose.ID
	if s.deduper.SeenAndRecord(ctx, submissionID) {
		s.logger.Debug(ctx, "duplicate dose submission, skipping",
			logger.String("userID", userID),
			logger.String("doseID", dose.ID),
		)
		return dose, false, nil
	}

	logged, err := s.store.LogDose(ctx, userID, dose)
	if err != nil {
		// Allow the client to retry once the underlying failure clears.
		s.deduper.Unrecord(ctx, submissionID)
		return model.DoseEvent{}, false, fmt.Errorf("logging dose: %w", err)
	}

	if logged {
		metrics.RecordDoseLogged()
		s.scheduleRefresh(ctx, userID, model.TriggerDoseLogged)
	}
	return dose, logged, nil
}

// Doses returns a user's logged doses in [from, to).
func (s *Service) Doses(ctx context.Context, userID string, from, to time.Time) ([]model.DoseEvent, error) {
	return s.store.Doses(ctx, userID, from, to)
}

// SetSessions validates and stores a user's planned focus sessions.
func (s *Service) SetSessions(ctx context.Context, userID string, sessions []model.FocusSession) error {
	for i := range sessions {
		if err := sessions[i].Validate(); err != nil {
			metrics.RecordInvalidInput()
			return err
		}
	}

	if err := s.store.PutSessions(ctx, userID, sessions); err != nil {
		return fmt.Errorf("storing sessions: %w", err)
	}

	s.scheduleRefresh(ctx, userID, model.TriggerSessionsChanged)
	return nil
}

// Sessions returns a user's planned focus sessions.
func (s *Service) Sessions(ctx context.Context, userID string) ([]model.FocusSession, error) {
	return s.store.Sessions(ctx, userID)
}

// SetPreferences stores a user's planning preferences.
func (s *Service) SetPreferences(ctx context.Context, userID string, prefs model.PlanningPreferences) error {
	if err := s.store.PutPreferences(ctx, userID, prefs); err != nil {
		return fmt.Errorf("storing preferences: %w", err)
	}

	s.scheduleRefresh(ctx, userID, model.TriggerPrefsChanged)
	return nil
}

// Preferences returns a user's planning preferences.
func (s *Service) Preferences(ctx context.Context, userID string) (model.PlanningPreferences, error) {
	return s.store.Preferences(ctx, userID)
}

// Risk computes the crash-risk score for a user at the given time.
// lastNightSleepHours <= 0 falls back to the profile's rolling average.
func (s *Service) Risk(ctx context.Context, userID string, lastNightSleepHours float64, at time.Time) (model.RiskResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRiskLatency(float64(time.Since(start).Milliseconds()))
	}()

	profile, doses, err := s.userState(ctx, userID)
	if err != nil {
		return model.RiskResult{}, err
	}
	if lastNightSleepHours <= 0 {
		lastNightSleepHours = profile.AvgSleepHours7d
	}

	result, err := s.riskScorer.Score(profile, doses, lastNightSleepHours, at)
	if err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			metrics.RecordInvalidInput()
		}
		return model.RiskResult{}, err
	}

	metrics.RecordRiskScore()
	return result, nil
}

// Focus computes the focus score for a user at the given time.
func (s *Service) Focus(ctx context.Context, userID string, at time.Time) (model.FocusResult, error) {
	profile, doses, err := s.userState(ctx, userID)
	if err != nil {
		return model.FocusResult{}, err
	}

	result, err := s.focusScorer.Score(profile, doses, at)
	if err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			metrics.RecordInvalidInput()
		}
		return model.FocusResult{}, err
	}

	metrics.RecordFocusScore()
	return result, nil
}

// RiskCurve projects the crash-risk score forward from the given time.
// Non-positive hoursAhead or interval fall back to the configured span.
func (s *Service) RiskCurve(ctx context.Context, userID string, lastNightSleepHours float64, from time.Time, hoursAhead float64, interval time.Duration) ([]model.RiskSample, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCurveLatency(float64(time.Since(start).Milliseconds()))
	}()

	profile, doses, err := s.userState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if lastNightSleepHours <= 0 {
		lastNightSleepHours = profile.AvgSleepHours7d
	}
	if hoursAhead <= 0 {
		hoursAhead = s.cfg.CurveHoursAhead
	}
	if interval <= 0 {
		interval = time.Duration(s.cfg.CurveIntervalMinutes) * time.Minute
	}

	samples, carried, err := s.riskScorer.GenerateRiskCurve(
		profile, doses, lastNightSleepHours, from, hoursAhead, interval,
	)
	if err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			metrics.RecordInvalidInput()
		}
		return nil, err
	}

	metrics.RecordCurveSamples(len(samples))
	for i := 0; i < carried; i++ {
		metrics.RecordCurveSampleCarry()
	}
	return samples, nil
}

// LevelCurve projects the active caffeine level forward from the given
// time. Non-positive hoursAhead or interval fall back to the configured span.
func (s *Service) LevelCurve(ctx context.Context, userID string, from time.Time, hoursAhead float64, interval time.Duration) ([]model.LevelSample, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCurveLatency(float64(time.Since(start).Milliseconds()))
	}()

	profile, doses, err := s.userState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if hoursAhead <= 0 {
		hoursAhead = s.cfg.CurveHoursAhead
	}
	if interval <= 0 {
		interval = time.Duration(s.cfg.CurveIntervalMinutes) * time.Minute
	}

	samples, err := s.agg.Curve(ctx, doses, s.pers.HalfLife(profile), from, hoursAhead, interval)
	if err != nil {
		return nil, err
	}

	metrics.RecordCurveSamples(len(samples))
	return samples, nil
}

// GeneratePlan builds a dose schedule for the day containing now and
// stores it as the user's latest plan.
func (s *Service) GeneratePlan(ctx context.Context, userID string, now time.Time) (model.CaffeinePlan, error) {
	start := time.Now()
	defer func() {
		metrics.RecordPlanLatency(float64(time.Since(start).Milliseconds()))
	}()

	profile, doses, err := s.userState(ctx, userID)
	if err != nil {
		return model.CaffeinePlan{}, err
	}

	sessions, err := s.store.Sessions(ctx, userID)
	if err != nil {
		return model.CaffeinePlan{}, err
	}

	prefs, err := s.store.Preferences(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrPreferencesNotSet) {
			return model.CaffeinePlan{}, err
		}
		prefs = model.PlanningPreferences{} // planner defaults apply
	}

	plan := s.planner.Propose(profile, doses, sessions, prefs, now)

	if err := s.store.PutPlan(ctx, userID, plan); err != nil {
		return model.CaffeinePlan{}, fmt.Errorf("storing plan: %w", err)
	}

	metrics.RecordPlanGenerated()
	metrics.RecordRecommendations(len(plan.Recommendations))
	if plan.Degraded() {
		metrics.RecordPlanDegraded()
	}

	s.logger.Debug(ctx, "plan generated",
		logger.String("userID", userID),
		logger.Int("recommendations", len(plan.Recommendations)),
		logger.Float64("totalMg", plan.TotalPlannedCaffeineMg),
	)
	return plan, nil
}

// LatestPlan returns the user's most recently generated plan.
func (s *Service) LatestPlan(ctx context.Context, userID string) (model.CaffeinePlan, error) {
	return s.store.Plan(ctx, userID)
}

// RefreshPlan regenerates a user's plan from their current state. It is
// the worker-pool entry point for background refresh jobs.
func (s *Service) RefreshPlan(ctx context.Context, userID string) error {
	_, err := s.GeneratePlan(ctx, userID, s.now())
	return err
}

// scheduleRefresh enqueues a background plan refresh. A full queue is not
// an error: the next state change or explicit plan request catches up.
func (s *Service) scheduleRefresh(ctx context.Context, userID string, trigger model.RefreshTrigger) {
	if s.refreshQueue == nil {
		return
	}
	ok := s.refreshQueue.Enqueue(ctx, model.RefreshJob{
		UserID:     userID,
		Trigger:    trigger,
		EnqueuedAt: s.now(),
	})
	if !ok {
		s.logger.Warn(ctx, "refresh queue full, skipping background refresh",
			logger.String("userID", userID),
			logger.String("trigger", string(trigger)),
		)
	}
}

// userState fetches the profile and full dose history for a user.
func (s *Service) userState(ctx context.Context, userID string) (model.UserProfile, []model.DoseEvent, error) {
	profile, err := s.store.Profile(ctx, userID)
	if err != nil {
		return model.UserProfile{}, nil, err
	}
	doses, err := s.store.Doses(ctx, userID, time.Time{}, time.Time{})
	if err != nil {
		return model.UserProfile{}, nil, err
	}
	return profile, doses, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.refreshQueue.Len(ctx)
		trackedUsers := s.store.Count(ctx)

		stats["refreshQueueLength"] = queueLen
		stats["trackedUsers"] = trackedUsers

		metrics.UpdateRefreshQueueDepth(queueLen)
		metrics.UpdateTrackedUsers(trackedUsers)
	}

	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
