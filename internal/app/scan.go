package app

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/output"
	"github.com/blackwell-systems/autorevoke/internal/scanner"
)

var (
	scanQuiet bool
	scanList  bool

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Import package manifests into the database",
		Long: `Scan the manifest root and mirror it into the autorevoke database.

The manifest root holds one directory per user, named by the numeric user id,
with one YAML manifest per installed package:

  <manifests>/0/com.example.notes.yaml
  <manifests>/10/com.example.notes.yaml

Packages whose manifest disappeared are removed together with their usage
events and auto-revoke records. Users whose directory disappeared are removed
entirely.

The scan command should be run:
  • After setting up the manifest root for the first time
  • After editing manifests while 'autorevoke watch' is not running`,
		Example: `  # Scan all manifests
  autorevoke scan

  # Scan and list the resulting inventory
  autorevoke scan --list

  # Scan quietly (suppress output)
  autorevoke scan --quiet`,
		RunE: runScan,
	}
)

func init() {
	scanCmd.Flags().BoolVar(&scanQuiet, "quiet", false, "suppress output")
	scanCmd.Flags().BoolVar(&scanList, "list", false, "list installed packages after scanning")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var spinner *output.Spinner
	if !scanQuiet && isatty.IsTerminal(os.Stdout.Fd()) {
		spinner = output.NewSpinner("Scanning manifests")
		spinner.Start()
	}

	result, err := scanner.New(st, cfg.Manifests).ScanManifests(ctx)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return fmt.Errorf("failed to scan manifests: %w", err)
	}

	if scanQuiet {
		return nil
	}

	changes := len(result.Changed())
	if changes == 0 {
		fmt.Fprintf(out, "✓ Database up to date (%d users, 0 changes)\n", len(result.Users))
	} else {
		fmt.Fprintf(out, "✓ Scanned %d users: %d added, %d updated, %d removed\n",
			len(result.Users), len(result.Added), len(result.Updated), len(result.Removed))
	}

	if scanList {
		var all []device.PackageInfo
		for _, user := range result.Users {
			pkgs, err := st.ListPackages(ctx, user)
			if err != nil {
				return fmt.Errorf("failed to list packages: %w", err)
			}
			all = append(all, pkgs...)
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, output.RenderPackageTable(all, clock.Now()))
	}

	return nil
}
