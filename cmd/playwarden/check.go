package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/goodtune/playwarden/internal/backend"
	"github.com/goodtune/playwarden/internal/backend/jsonrpc"
	"github.com/goodtune/playwarden/internal/budget"
	"github.com/goodtune/playwarden/internal/config"
	"github.com/goodtune/playwarden/internal/names"
	"github.com/goodtune/playwarden/internal/storage"
	redisstore "github.com/goodtune/playwarden/internal/storage/redis"
	"github.com/goodtune/playwarden/internal/timeline"
)

var checkOffline bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Show today's budget status",
	Long: `Check today's gaming time budget and running sessions. Queries the
monitor service live; with --offline the report is built from the last
snapshot the agent stored. Exits non-zero when the budget is exceeded.`,
	Example: `  playwarden -c config.yaml check
  playwarden check --offline`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkOffline, "offline", false, "Report from the last stored snapshot instead of a live query")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for check mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		status   backend.BudgetStatus
		sessions []backend.Session
		stale    bool
		asOf     time.Time
	)

	if checkOffline {
		status, sessions, asOf, err = loadSnapshot(ctx, cfg)
		if err != nil {
			return err
		}
		stale = true
	} else {
		client := jsonrpc.New(jsonrpc.Config{
			URL:     cfg.Backend.URL,
			Timeout: parseDuration(cfg.Backend.Timeout, 5*time.Second),
		}, logger)

		status, err = client.RealtimeBudgetStatus(ctx)
		if err != nil {
			if errors.Is(err, backend.ErrUnavailable) {
				return fmt.Errorf("monitor service unreachable, try --offline: %w", err)
			}
			return err
		}

		sessions, err = client.CurrentSessions(ctx)
		if err != nil {
			return err
		}
		asOf = time.Now()
	}

	classification := budget.Classify(status)
	printBudgetReport(status, classification, sessions, asOf, stale)

	if classification.State == budget.StateExceeded {
		cmd.SilenceErrors = true
		return fmt.Errorf("gaming time budget exceeded")
	}
	return nil
}

// loadSnapshot builds the offline report from the agent's last stored
// snapshot.
func loadSnapshot(ctx context.Context, cfg *config.Config) (backend.BudgetStatus, []backend.Session, time.Time, error) {
	store, err := redisstore.Open(cfg.Storage.Redis)
	if err != nil {
		return backend.BudgetStatus{}, nil, time.Time{}, fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	snapshot, err := store.Snapshots().Latest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return backend.BudgetStatus{}, nil, time.Time{}, fmt.Errorf("no stored snapshot, has the agent run yet?")
		}
		return backend.BudgetStatus{}, nil, time.Time{}, err
	}

	return snapshot.Budget, snapshot.Sessions, snapshot.FetchedAt, nil
}

// printBudgetReport prints the budget check result with colors
func printBudgetReport(status backend.BudgetStatus, classification budget.Classification, sessions []backend.Session, asOf time.Time, stale bool) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("GAMING TIME BUDGET")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	if stale {
		yellow.Printf("Offline report from snapshot taken %s\n\n", asOf.Local().Format("2006-01-02 15:04:05"))
	}

	fmt.Printf("Allowance:  %dm daily", status.DailyAllowanceMinutes)
	if status.RolloverMinutes > 0 {
		fmt.Printf(" + %dm rollover", status.RolloverMinutes)
	}
	if status.EarnedMinutes > 0 {
		fmt.Printf(" + %dm earned", status.EarnedMinutes)
	}
	fmt.Println()
	fmt.Printf("Used:       %s of %s (%d%%)\n",
		timeline.FormatDuration(int64(status.UsedTodayMinutes)*60),
		timeline.FormatDuration(int64(status.TotalAvailableMinutes)*60),
		classification.Percentage)

	remaining := status.RemainingTodayMinutes
	if remaining < 0 {
		remaining = 0
	}
	fmt.Printf("Remaining:  %s\n", timeline.FormatDuration(int64(remaining)*60))
	fmt.Println()

	cyan.Print("Status:     ")
	switch classification.State {
	case budget.StateSafe:
		green.Println("SAFE")
	case budget.StateWarning:
		yellow.Println("WARNING")
		fmt.Println("            → Less than a quarter of the budget remains")
	case budget.StateCritical:
		red.Println("CRITICAL")
		fmt.Println("            → The budget is almost used up")
	case budget.StateExceeded:
		red.Println("EXCEEDED")
		fmt.Printf("            → Over budget by %s\n", timeline.FormatDuration(int64(-status.RemainingTodayMinutes)*60))
	}

	fmt.Println()
	if len(sessions) == 0 {
		fmt.Println("No games running.")
	} else {
		cyan.Printf("Running sessions (%d):\n", len(sessions))
		for _, session := range sessions {
			fmt.Printf("  %-24s since %s\n",
				names.Prettify(session.ProcessName),
				session.StartTime.Local().Format("15:04"))
		}
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}
