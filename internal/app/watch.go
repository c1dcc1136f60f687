package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/autorevoke/internal/autorevoke"
	"github.com/blackwell-systems/autorevoke/internal/metrics"
	"github.com/blackwell-systems/autorevoke/internal/output"
	"github.com/blackwell-systems/autorevoke/internal/scanner"
	"github.com/blackwell-systems/autorevoke/internal/watcher"
)

var (
	watchQuiet bool

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Track manifest changes and usage, reprinting unused apps on change",
		Long: `Keep the unused-apps view live in the foreground until Ctrl+C.

The watch command:
  • Imports manifest edits under the manifest root as they happen
  • Ingests lines appended to the usage log
  • Recomputes the unused-app buckets whenever packages, usage or
    auto-revoke records change, and prints them

With --metrics-addr, Prometheus metrics for the live view are served at
/metrics on that address.`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  autorevoke watch

  # Serve metrics
  autorevoke watch --metrics-addr :9090

  # Only print bucket counts on change
  autorevoke watch --quiet`,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	watchCmd.Flags().BoolVar(&watchQuiet, "quiet", false, "print bucket counts only")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	out := cmd.OutOrStdout()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rt, err := newRuntime(st)
	if err != nil {
		return err
	}
	defer rt.Close()

	w, err := watcher.New(watcher.Options{
		Store:      st,
		Scanner:    scanner.New(st, cfg.Manifests),
		Broadcasts: rt.broadcasts,
		UsageLog:   cfg.UsageLog,
		OnUsage: func(int) {
			rt.model.Refresh()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		fmt.Fprintf(out, "Serving metrics on %s/metrics\n", cfg.MetricsAddr)
	}

	spinner := output.NewSpinner("Starting watcher")
	spinner.SetWriter(cmd.ErrOrStderr())
	spinner.Start()
	if err := w.Start(ctx); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	spinner.StopWithMessage("✓ Watcher started")

	cancel := rt.model.Observe(func(cats autorevoke.Categories) {
		fmt.Fprintf(out, "\n[%s] %s\n", clock.Now().Format("15:04:05"), output.RenderCategorySummary(cats))
		if !watchQuiet {
			fmt.Fprint(out, output.RenderCategories(cats, clock.Now()))
		}
	})
	defer cancel()

	fmt.Fprintln(out, "Watching for changes. Press Ctrl+C to stop.")
	<-ctx.Done()

	fmt.Fprintln(out, "\nShutting down...")
	if err := w.Stop(); err != nil {
		return fmt.Errorf("failed to stop watcher: %w", err)
	}
	fmt.Fprintln(out, "✓ Watcher stopped")
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
