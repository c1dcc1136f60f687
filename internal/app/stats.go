package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/autorevoke/internal/output"
	"github.com/blackwell-systems/autorevoke/internal/watcher"
)

var (
	statsUser int
	statsDays int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show when packages were last used",
	Long: `Show the most recent use of every package of a user within a lookback
window, most recent first. Pending lines in the usage log are ingested first.`,
	Example: `  # Last 30 days of the primary user
  autorevoke stats

  # Work profile, last 180 days
  autorevoke stats --user 10 --days 180`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsUser, "user", 0, "user id")
	statsCmd.Flags().IntVar(&statsDays, "days", 30, "lookback window in days")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	user, err := checkUser(statsUser)
	if err != nil {
		return err
	}
	if statsDays <= 0 {
		return fmt.Errorf("--days must be positive")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := watcher.ProcessUsageLog(ctx, st, cfg.UsageLog); err != nil {
		return fmt.Errorf("failed to ingest usage log: %w", err)
	}

	now := clock.Now()
	stats, err := st.LastUsageBetween(ctx, user, now.Add(-time.Duration(statsDays)*24*time.Hour), now)
	if err != nil {
		return fmt.Errorf("failed to query usage: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage of user %d in the last %d days\n\n", user, statsDays)
	fmt.Fprint(out, output.RenderUsageTable(stats, now))
	return nil
}

