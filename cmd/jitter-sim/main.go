package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/kdawg1232/jitter/internal/simulate"
)

// Default configuration constants.
const (
	defaultNumUsers     = 200
	defaultDosesPerUser = 3
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	defaultRunTimeout   = 10 * time.Minute
)

var (
	baseURL      string
	numUsers     int
	dosesPerUser int
	workers      int
	timeout      time.Duration
	outputFile   string
	logFile      string
	verbose      bool

	rootCmd = &cobra.Command{
		Use:   "jitter-sim",
		Short: "Load and verification tool for a running jitter service",
		Long: `jitter-sim generates synthetic users with profiles, doses, focus
sessions, and planning preferences, submits them concurrently against a
running jitter service, then fetches risk scores, focus scores, and
caffeine plans and verifies the plans' invariants.`,
	}
)

func main() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a full simulation pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := simulate.SetupLogging(logFile); err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
			defer cancel()

			return simulate.Run(ctx, &simulate.Config{
				BaseURL:      baseURL,
				NumUsers:     numUsers,
				DosesPerUser: dosesPerUser,
				Workers:      workers,
				Timeout:      timeout,
				OutputFile:   outputFile,
				LogFile:      logFile,
				Verbose:      verbose,
			})
		},
	}

	runCmd.Flags().StringVarP(&baseURL, "url", "u", "http://localhost:9080", "Base URL of the service")
	runCmd.Flags().IntVarP(&numUsers, "users", "n", defaultNumUsers, "Number of synthetic users")
	runCmd.Flags().IntVarP(&dosesPerUser, "doses", "d", defaultDosesPerUser, "Doses logged per user")
	runCmd.Flags().IntVarP(&workers, "workers", "w", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
	runCmd.Flags().DurationVarP(&timeout, "timeout", "t", defaultTimeout, "HTTP request timeout")
	runCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file for generated users (default: generated_users_TIMESTAMP.json)")
	runCmd.Flags().StringVarP(&logFile, "log", "l", "", "Log file for simulation output (default: sim_log_TIMESTAMP.log)")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
