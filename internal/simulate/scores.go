package simulate

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/kdawg1232/jitter/pkg/logger"
)

// fetchScores retrieves risk and focus scores for every user concurrently.
func fetchScores(ctx context.Context, config *Config, users []User, stats *Stats) error {
	client := newHTTPClient(config.Timeout)

	var (
		riskFetched  int64
		focusFetched int64
	)

	userChan := make(chan User, config.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for user := range userChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				base := config.BaseURL + "/users/" + user.ID

				if resp, err := client.Get(base + "/risk"); err == nil {
					body, readErr := readResponseBody(resp)
					if readErr == nil && resp.StatusCode == statusOK {
						var risk RiskResponse
						if json.Unmarshal(body, &risk) == nil && risk.Score >= 0 && risk.Score <= 100 {
							atomic.AddInt64(&riskFetched, 1)
						}
					}
				}

				if resp, err := client.Get(base + "/focus"); err == nil {
					body, readErr := readResponseBody(resp)
					if readErr == nil && resp.StatusCode == statusOK {
						var focus FocusResponse
						if json.Unmarshal(body, &focus) == nil && focus.Zone != "" {
							atomic.AddInt64(&focusFetched, 1)
						}
					}
				}
			}
		}()
	}

	go func() {
		defer close(userChan)
		for _, user := range users {
			select {
			case <-ctx.Done():
				return
			case userChan <- user:
			}
		}
	}()

	wg.Wait()

	stats.RiskScoresFetched = int(atomic.LoadInt64(&riskFetched))
	stats.FocusFetched = int(atomic.LoadInt64(&focusFetched))

	logger.Get().Info(ctx, "scores retrieved",
		logger.Int("risk", stats.RiskScoresFetched),
		logger.Int("focus", stats.FocusFetched))

	return nil
}

// generatePlans asks the service for a plan per user and verifies the
// invariants every plan must hold.
func generatePlans(ctx context.Context, config *Config, users []User, stats *Stats) error {
	client := newHTTPClient(config.Timeout)

	var (
		generated  int64
		degraded   int64
		violations int64
	)

	userChan := make(chan User, config.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for user := range userChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				resp, err := client.Post(config.BaseURL+"/users/"+user.ID+"/plan", nil)
				if err != nil {
					continue
				}
				body, readErr := readResponseBody(resp)
				if readErr != nil || resp.StatusCode != statusOK {
					continue
				}

				var plan PlanResponse
				if json.Unmarshal(body, &plan) != nil {
					continue
				}
				atomic.AddInt64(&generated, 1)

				if len(plan.Warnings) > 0 {
					atomic.AddInt64(&degraded, 1)
				}
				if !verifyPlan(user, plan) {
					atomic.AddInt64(&violations, 1)
					logger.Get().Warn(ctx, "plan violates an invariant",
						logger.String("userID", user.ID),
						logger.Float64("totalMg", plan.TotalPlannedCaffeineMg),
						logger.Int("recommendations", len(plan.Recommendations)))
				}
			}
		}()
	}

	go func() {
		defer close(userChan)
		for _, user := range users {
			select {
			case <-ctx.Done():
				return
			case userChan <- user:
			}
		}
	}()

	wg.Wait()

	stats.PlansGenerated = int(atomic.LoadInt64(&generated))
	stats.PlansDegraded = int(atomic.LoadInt64(&degraded))
	stats.PlanViolations = int(atomic.LoadInt64(&violations))

	logger.Get().Info(ctx, "plans generated",
		logger.Int("generated", stats.PlansGenerated),
		logger.Int("degraded", stats.PlansDegraded),
		logger.Int("violations", stats.PlanViolations))

	return nil
}

// verifyPlan checks the invariants the engine promises: chronological
// recommendations, a respected daily cap, and sane confidence values.
func verifyPlan(user User, plan PlanResponse) bool {
	if !sort.SliceIsSorted(plan.Recommendations, func(i, j int) bool {
		return plan.Recommendations[i].RecommendedTime.Before(plan.Recommendations[j].RecommendedTime)
	}) {
		return false
	}

	var total float64
	for _, rec := range plan.Recommendations {
		if rec.DoseMg <= 0 || rec.Confidence <= 0 || rec.Confidence > 1 {
			return false
		}
		if !rec.RecommendedTime.Before(plan.Bedtime) {
			return false
		}
		total += rec.DoseMg
	}

	if user.Prefs.MaxDailyCaffeineMg > 0 && plan.TotalPlannedCaffeineMg > user.Prefs.MaxDailyCaffeineMg {
		return false
	}

	return total == plan.TotalPlannedCaffeineMg
}
