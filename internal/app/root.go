package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blackwell-systems/autorevoke/internal/config"
	"github.com/blackwell-systems/autorevoke/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config

	// RootCmd is the root command for autorevoke
	RootCmd = &cobra.Command{
		Use:   "autorevoke",
		Short: "Find apps whose permissions were auto-revoked for being unused",
		Long: `autorevoke tracks installed packages, their usage and the permission
groups revoked from them for being unused, and sorts those apps into two
buckets:

  three_months  used, or installed, within the unused window (default 180 days)
  six_months    neither used nor installed within the window

Each app can then be opened, inspected, uninstalled or, for system apps,
disabled.

Quick Start:
  1. Put package manifests under <manifests>/<user>/<package>.yaml
  2. autorevoke scan
  3. autorevoke revoke <package> <group>...
  4. autorevoke unused

Examples:
  # Import manifests
  autorevoke scan

  # Track changes and usage continuously
  autorevoke watch --metrics-addr :9090

  # List unused apps that were not used for more than six months
  autorevoke unused --bucket six_months

  # Remove an app the way its bucket entry suggests
  autorevoke uninstall com.example.notes --user 10`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "autorevoke: unused app tracking for auto-revoked permissions")
			fmt.Fprintln(out)
			if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
				fmt.Fprintln(out, "Run 'autorevoke scan' to import package manifests.")
			} else {
				fmt.Fprintln(out, "Tip: Run 'autorevoke status' to check the database.")
				fmt.Fprintln(out, "     Run 'autorevoke unused' to list unused apps.")
			}
			fmt.Fprintln(out, "Run 'autorevoke --help' for all commands.")
			return nil
		},
	}
)

func init() {
	// Global flags
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/autorevoke/config.yaml)")
	flags.String("db", "", "database path (default: <config dir>/autorevoke.db)")
	flags.String("manifests", "", "package manifest root (default: <config dir>/manifests)")
	flags.String("usage-log", "", "usage log path (default: <config dir>/usage.log)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	// Register subcommands
	RootCmd.AddCommand(scanCmd)
	RootCmd.AddCommand(watchCmd)
	RootCmd.AddCommand(unusedCmd)
	RootCmd.AddCommand(explainCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(statsCmd)
	RootCmd.AddCommand(revokeCmd)
	RootCmd.AddCommand(useCmd)
	RootCmd.AddCommand(infoCmd)
	RootCmd.AddCommand(openCmd)
	RootCmd.AddCommand(uninstallCmd)
	RootCmd.AddCommand(disableCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"db":         config.KeyDB,
	"manifests":  config.KeyManifests,
	"usage-log":  config.KeyUsageLog,
	"log-level":  config.KeyLogLevel,
	"log-format": config.KeyLogFormat,
}

// initConfig resolves settings from flags, environment and config file, then
// installs the logger.
func initConfig(cmd *cobra.Command, args []string) error {
	v := viper.New()
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	if f := cmd.Flags().Lookup("metrics-addr"); f != nil {
		if err := v.BindPFlag(config.KeyMetricsAddr, f); err != nil {
			return fmt.Errorf("failed to bind --metrics-addr: %w", err)
		}
	}

	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	return nil
}
