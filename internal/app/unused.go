package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/autorevoke/internal/autorevoke"
	"github.com/blackwell-systems/autorevoke/internal/output"
	"github.com/blackwell-systems/autorevoke/internal/watcher"
)

var (
	unusedBucket  string
	unusedTimeout time.Duration
	unusedSummary bool
)

var unusedCmd = &cobra.Command{
	Use:   "unused",
	Short: "List apps with auto-revoked permissions by how long they went unused",
	Long: `List every app that had permission groups auto-revoked, sorted into buckets.

An app lands in three_months when it was used within the unused window, or
was installed within it. Everything else, including apps whose install time
is unknown, lands in six_months.

System apps cannot be uninstalled; their Action column reads "disable".

Pending lines in the usage log are ingested before the apps are sorted.`,
	Example: `  # Show both buckets
  autorevoke unused

  # Show only apps unused for more than six months
  autorevoke unused --bucket six_months

  # Counts only
  autorevoke unused --summary`,
	RunE: runUnused,
}

func init() {
	unusedCmd.Flags().StringVar(&unusedBucket, "bucket", "", "Show one bucket: three_months or six_months")
	unusedCmd.Flags().DurationVar(&unusedTimeout, "timeout", 30*time.Second, "How long to wait for the categories")
	unusedCmd.Flags().BoolVar(&unusedSummary, "summary", false, "Print bucket counts only")
}

func runUnused(cmd *cobra.Command, args []string) error {
	var bucket autorevoke.Bucket
	if unusedBucket != "" {
		b, err := autorevoke.ParseBucket(unusedBucket)
		if err != nil {
			return err
		}
		bucket = b
	}

	cats, err := loadCategories(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	now := clock.Now()
	switch {
	case unusedSummary:
		fmt.Fprintln(out, output.RenderCategorySummary(cats))
	case bucket != "":
		fmt.Fprint(out, output.RenderBucket(bucket, cats[bucket], now))
	default:
		fmt.Fprintln(out, output.RenderCategorySummary(cats))
		fmt.Fprintln(out)
		fmt.Fprint(out, output.RenderCategories(cats, now))
	}
	return nil
}

// loadCategories ingests pending usage and waits for the first categories.
func loadCategories(cmd *cobra.Command) (autorevoke.Categories, error) {
	ctx := cmd.Context()

	st, err := openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	if _, err := watcher.ProcessUsageLog(ctx, st, cfg.UsageLog); err != nil {
		return nil, fmt.Errorf("failed to ingest usage log: %w", err)
	}

	rt, err := newRuntime(st)
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	spinner := output.NewSpinner("Loading unused apps").WithClock(clock)
	spinner.SetWriter(cmd.ErrOrStderr())
	spinner.WithTimeout(unusedTimeout)
	spinner.Start()

	waitCtx, cancel := context.WithTimeout(ctx, unusedTimeout)
	defer cancel()
	cats, err := rt.model.WaitForCategories(waitCtx)
	spinner.Stop()
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("timed out after %s waiting for unused apps", unusedTimeout)
	}
	return cats, err
}
