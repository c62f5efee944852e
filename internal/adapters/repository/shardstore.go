// Package repository defines the per-user state store interface and errors.
package repository

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/kdawg1232/jitter/internal/domain/model"
	"github.com/kdawg1232/jitter/pkg/metrics"
)

// Sharded, in-memory Store implementation.
//
// User state is partitioned by FNV-1a hash of the user ID so writes for
// different users never contend on the same lock. Each shard holds a map
// of user ID to state guarded by its own RWMutex.

const (
	defaultShardCount            = 8
	defaultMetricsUpdateInterval = 5 * time.Second
)

// userState holds everything the engine tracks for one user.
type userState struct {
	profile    *model.UserProfile
	doses      []model.DoseEvent
	doseIDs    map[string]struct{}
	sessions   []model.FocusSession
	prefs      *model.PlanningPreferences
	latestPlan *model.CaffeinePlan
}

type shard struct {
	mu    sync.RWMutex
	users map[string]*userState
}

// ShardStore is a sharded in-memory Store.
type ShardStore struct {
	shards                []*shard
	shardCount            int
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewShardStore constructs a sharded store with configuration options.
func NewShardStore(ctx context.Context, opts ...Option) *ShardStore {
	s := &ShardStore{
		shardCount:            defaultShardCount,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{users: make(map[string]*userState)}
	}

	s.stopChan = make(chan struct{})
	s.startMetricsUpdater(ctx)

	return s
}

// Close gracefully shuts down the background metrics goroutine.
func (s *ShardStore) Close() error {
	select {
	case <-s.stopChan:
		// Channel already closed
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

func (s *ShardStore) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return s.shards[int(h.Sum32())%s.shardCount]
}

// PutProfile implements Store.PutProfile, creating the user when absent.
func (s *ShardStore) PutProfile(ctx context.Context, userID string, profile model.UserProfile) error {
	if userID == "" {
		return ErrInvalidUserID
	}

	sh := s.shardFor(userID)
	sh.mu.Lock()
	st, ok := sh.users[userID]
	if !ok {
		st = &userState{doseIDs: make(map[string]struct{})}
		sh.users[userID] = st
	}
	st.profile = &profile
	sh.mu.Unlock()

	metrics.UpdateTrackedUsers(s.Count(ctx))
	return nil
}

// Profile implements Store.Profile.
func (s *ShardStore) Profile(ctx context.Context, userID string) (model.UserProfile, error) {
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	st, ok := sh.users[userID]
	if !ok || st.profile == nil {
		metrics.RecordErrorByType("user_not_found", "low")
		return model.UserProfile{}, ErrUserNotFound
	}
	return *st.profile, nil
}

// LogDose implements Store.LogDose. Duplicate dose IDs are ignored so
// clients can safely retry a submission.
func (s *ShardStore) LogDose(ctx context.Context, userID string, dose model.DoseEvent) (bool, error) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.users[userID]
	if !ok || st.profile == nil {
		metrics.RecordErrorByType("user_not_found", "low")
		return false, ErrUserNotFound
	}

	if dose.ID != "" {
		if _, seen := st.doseIDs[dose.ID]; seen {
			return false, nil
		}
		st.doseIDs[dose.ID] = struct{}{}
	}

	st.doses = append(st.doses, dose)
	sort.SliceStable(st.doses, func(i, j int) bool {
		return st.doses[i].ConsumedAt.Before(st.doses[j].ConsumedAt)
	})
	return true, nil
}

// Doses implements Store.Doses.
func (s *ShardStore) Doses(ctx context.Context, userID string, from, to time.Time) ([]model.DoseEvent, error) {
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	st, ok := sh.users[userID]
	if !ok || st.profile == nil {
		metrics.RecordErrorByType("user_not_found", "low")
		return nil, ErrUserNotFound
	}

	out := make([]model.DoseEvent, 0, len(st.doses))
	for _, d := range st.doses {
		if !from.IsZero() && d.ConsumedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !d.ConsumedAt.Before(to) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// PutSessions implements Store.PutSessions.
func (s *ShardStore) PutSessions(ctx context.Context, userID string, sessions []model.FocusSession) error {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.users[userID]
	if !ok || st.profile == nil {
		metrics.RecordErrorByType("user_not_found", "low")
		return ErrUserNotFound
	}
	st.sessions = append([]model.FocusSession(nil), sessions...)
	return nil
}

// Sessions implements Store.Sessions.
func (s *ShardStore) Sessions(ctx context.Context, userID string) ([]model.FocusSession, error) {
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	st, ok := sh.users[userID]
	if !ok || st.profile == nil {
		metrics.RecordErrorByType("user_not_found", "low")
		return nil, ErrUserNotFound
	}
	return append([]model.FocusSession(nil), st.sessions...), nil
}

// PutPreferences implements Store.PutPreferences.
func (s *ShardStore) PutPreferences(ctx context.Context, userID string, prefs model.PlanningPreferences) error {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.users[userID]
	if !ok || st.profile == nil {
		metrics.RecordErrorByType("user_not_found", "low")
		return ErrUserNotFound
	}
	st.prefs = &prefs
	return nil
}

// Preferences implements Store.Preferences.
func (s *ShardStore) Preferences(ctx context.Context, userID string) (model.PlanningPreferences, error) {
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	st, ok := sh.users[userID]
	if !ok || st.profile == nil {
		metrics.RecordErrorByType("user_not_found", "low")
		return model.PlanningPreferences{}, ErrUserNotFound
	}
	if st.prefs == nil {
		return model.PlanningPreferences{}, ErrPreferencesNotSet
	}
	return *st.prefs, nil
}

// PutPlan implements Store.PutPlan.
func (s *ShardStore) PutPlan(ctx context.Context, userID string, plan model.CaffeinePlan) error {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.users[userID]
	if !ok || st.profile == nil {
		metrics.RecordErrorByType("user_not_found", "low")
		return ErrUserNotFound
	}
	st.latestPlan = &plan
	return nil
}

// Plan implements Store.Plan.
func (s *ShardStore) Plan(ctx context.Context, userID string) (model.CaffeinePlan, error) {
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	st, ok := sh.users[userID]
	if !ok || st.profile == nil {
		metrics.RecordErrorByType("user_not_found", "low")
		return model.CaffeinePlan{}, ErrUserNotFound
	}
	if st.latestPlan == nil {
		return model.CaffeinePlan{}, ErrPlanNotFound
	}
	return *st.latestPlan, nil
}

// Count returns the total number of tracked users.
func (s *ShardStore) Count(ctx context.Context) int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.users)
		sh.mu.RUnlock()
	}
	return total
}

// startMetricsUpdater starts a background goroutine that refreshes the
// tracked-user gauge at the configured interval.
func (s *ShardStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateTrackedUsers(s.Count(ctx))
			}
		}
	}()
}
