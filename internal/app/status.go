package app

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/output"
	"github.com/blackwell-systems/autorevoke/internal/store"
)

var statusActions int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database, manifest and tracking statistics",
	Long: `Display the current state of autorevoke.

Shows:
  • Config file, database and manifest root in use
  • Number of users and installed packages
  • Total usage events logged
  • Number of packages with auto-revoked permissions
  • The most recent actions taken on packages`,
	Example: `  # Check status
  autorevoke status

  # Show the last 20 actions
  autorevoke status --actions 20`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusActions, "actions", 5, "number of recent actions to show (0 hides them)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	dbInfo, err := os.Stat(cfg.DB)
	if os.IsNotExist(err) {
		fmt.Fprintln(out, "autorevoke is not set up. Run 'autorevoke scan' to get started.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat database: %w", err)
	}

	st, err := store.New(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	users, err := st.ListUsers(ctx)
	if err != nil {
		return err
	}
	packages := 0
	for _, user := range users {
		pkgs, err := st.ListPackages(ctx, user)
		if err != nil {
			return err
		}
		packages += len(pkgs)
	}
	events, err := st.GetEventCount()
	if err != nil {
		return err
	}
	revoked, err := st.ListRevoked(ctx)
	if err != nil {
		return err
	}
	revokedPackages := make(map[device.PackageKey]struct{})
	for _, r := range revoked {
		revokedPackages[device.PackageKey{PackageName: r.Package, User: r.User}] = struct{}{}
	}

	const label = "%-14s"
	now := clock.Now()

	configFile := cfg.File
	if configFile == "" {
		configFile = "(defaults)"
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, label+"%s\n", "Config:", configFile)
	fmt.Fprintf(out, label+"%s · %s · last write %s\n", "Database:",
		cfg.DB, humanize.Bytes(uint64(dbInfo.Size())), humanize.RelTime(dbInfo.ModTime(), now, "ago", "from now"))

	if _, err := os.Stat(cfg.Manifests); err != nil {
		fmt.Fprintf(out, label+"%s · missing ⚠\n", "Manifests:", cfg.Manifests)
	} else {
		fmt.Fprintf(out, label+"%s\n", "Manifests:", cfg.Manifests)
	}

	fmt.Fprintf(out, label+"%s across %d users\n", "Packages:", humanize.Comma(int64(packages)), len(users))
	fmt.Fprintf(out, label+"%s total\n", "Events:", humanize.Comma(int64(events)))
	fmt.Fprintf(out, label+"%d packages · %d groups\n", "Revoked:", len(revokedPackages), len(revoked))
	fmt.Fprintf(out, label+"%d days\n", "Window:", int(cfg.UnusedWindow/(24*time.Hour)))

	if statusActions > 0 {
		actions, err := st.ListActions(ctx, statusActions)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Recent actions:")
		fmt.Fprint(out, output.RenderActionTable(actions, now))
	}

	fmt.Fprintln(out)
	return nil
}
