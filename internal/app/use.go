package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/store"
	"github.com/blackwell-systems/autorevoke/internal/watcher"
)

var (
	useUser int
	useAgo  time.Duration

	useCmd = &cobra.Command{
		Use:   "use <package>",
		Short: "Record a usage event for a package",
		Long: `Append a usage event for a package to the usage log and ingest it.

A running 'autorevoke watch' picks the line up as well; lines are ingested
exactly once.`,
		Example: `  # The app was just used
  autorevoke use com.example.notes

  # Backdate the event
  autorevoke use com.example.notes --user 10 --ago 72h`,
		Args: cobra.ExactArgs(1),
		RunE: runUse,
	}
)

func init() {
	useCmd.Flags().IntVar(&useUser, "user", 0, "user id")
	useCmd.Flags().DurationVar(&useAgo, "ago", 0, "how long ago the package was used")
}

func runUse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	user, err := checkUser(useUser)
	if err != nil {
		return err
	}
	if useAgo < 0 {
		return fmt.Errorf("--ago must not be negative")
	}
	key := device.PackageKey{PackageName: args[0], User: user}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.GetPackage(ctx, user, key.PackageName); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("package %s is not installed\nRun 'autorevoke scan' to update the package database", key)
		}
		return err
	}

	if err := watcher.AppendUsage(cfg.UsageLog, user, key.PackageName, clock.Now().Add(-useAgo)); err != nil {
		return fmt.Errorf("failed to append usage: %w", err)
	}
	n, err := watcher.ProcessUsageLog(ctx, st, cfg.UsageLog)
	if err != nil {
		return fmt.Errorf("failed to ingest usage log: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Recorded usage of %s (%d events ingested)\n", key, n)
	return nil
}
