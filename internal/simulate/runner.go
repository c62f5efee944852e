package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kdawg1232/jitter/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes a complete simulation pass.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting jitter simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("users", config.NumUsers),
		logger.Int("dosesPerUser", config.DosesPerUser),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.String("logFile", config.LogFile),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate users
	users, err := generateUsers(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("user generation failed: %w", err)
	}

	// Step 3: Submit everything concurrently
	if err := submitUsers(ctx, config, users, stats); err != nil {
		return fmt.Errorf("user submission failed: %w", err)
	}

	// Step 4: Let the background refresh pipeline settle
	logger.Get().Info(ctx, "waiting for background plan refreshes")
	time.Sleep(refreshSettleDelay)

	// Step 5: Fetch risk and focus scores
	if err := fetchScores(ctx, config, users, stats); err != nil {
		return fmt.Errorf("score retrieval failed: %w", err)
	}

	// Step 6: Generate plans and verify their invariants
	if err := generatePlans(ctx, config, users, stats); err != nil {
		return fmt.Errorf("plan generation failed: %w", err)
	}

	// Step 7: Save users to file
	if err := saveUsersToFile(ctx, config, users); err != nil {
		logger.Get().Warn(ctx, "failed to save users to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	if stats.PlanViolations > 0 {
		return fmt.Errorf("simulation found %d plan invariant violations", stats.PlanViolations)
	}

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer drainAndClose(resp)

	// Accept any 200 response as healthy (the service returns Prometheus metrics)
	if resp.StatusCode != statusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveUsersToFile saves the generated users to a JSON file.
func saveUsersToFile(ctx context.Context, config *Config, users []User) error {
	if len(users) == 0 {
		return fmt.Errorf("no users to save")
	}

	// Determine output filename
	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "generated_users_" + timestamp + ".json"
	}

	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(users); err != nil {
		return fmt.Errorf("failed to encode users: %w", err)
	}

	logger.Get().Info(ctx, "users saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var successRate, dosesPerSecond float64

	if stats.DosesSubmitted > 0 {
		successRate = float64(stats.DosesSuccessful) / float64(stats.DosesSubmitted) * percentageMultiplier
	}

	if stats.Duration > 0 {
		dosesPerSecond = float64(stats.DosesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("usersGenerated", stats.UsersGenerated),
		logger.Int("dosesSubmitted", stats.DosesSubmitted),
		logger.Int("dosesSuccessful", stats.DosesSuccessful),
		logger.Int("dosesDuplicate", stats.DosesDuplicate),
		logger.Int("dosesFailed", stats.DosesFailed),
		logger.Int("riskScoresFetched", stats.RiskScoresFetched),
		logger.Int("focusFetched", stats.FocusFetched),
		logger.Int("plansGenerated", stats.PlansGenerated),
		logger.Int("plansDegraded", stats.PlansDegraded),
		logger.Int("planViolations", stats.PlanViolations),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("dosesPerSecond", dosesPerSecond))
}
