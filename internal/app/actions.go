package app

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/autorevoke/internal/autorevoke"
	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/host"
	"github.com/blackwell-systems/autorevoke/internal/store"
)

var (
	actionUser  int
	infoSession string

	infoCmd = &cobra.Command{
		Use:   "info <package>",
		Short: "Open the app-details screen of a package",
		Long: `Open the app-details screen of a package and record the navigation in the
action journal. --session ties the navigation to a caller session; a new
session id is generated when it is omitted.`,
		Example: `  autorevoke info com.example.notes
  autorevoke info com.example.notes --user 10 --session 6f1c1a52-9a41-4d7c-9c1e-0b8e2f5b1a77`,
		Args: cobra.ExactArgs(1),
		RunE: runInfo,
	}

	openCmd = &cobra.Command{
		Use:     "open <package>",
		Short:   "Launch a package",
		Long:    `Launch a package if it is enabled and has a launcher activity.`,
		Example: `  autorevoke open com.example.notes`,
		Args:    cobra.ExactArgs(1),
		RunE:    runOpen,
	}

	uninstallCmd = &cobra.Command{
		Use:   "uninstall <package>",
		Short: "Uninstall a package",
		Long: `Uninstall a package for one user. Its usage events and auto-revoke records
go with it. System packages cannot be uninstalled; disable them instead.`,
		Example: `  autorevoke uninstall com.example.notes --user 10`,
		Args:    cobra.ExactArgs(1),
		RunE:    runUninstall,
	}

	disableCmd = &cobra.Command{
		Use:     "disable <package>",
		Short:   "Disable a package",
		Long:    `Disable a package for one user. A disabled package can no longer be opened.`,
		Example: `  autorevoke disable com.vendor.preinstalled`,
		Args:    cobra.ExactArgs(1),
		RunE:    runDisable,
	}
)

func init() {
	for _, c := range []*cobra.Command{infoCmd, openCmd, uninstallCmd, disableCmd} {
		c.Flags().IntVar(&actionUser, "user", 0, "user id")
	}
	infoCmd.Flags().StringVar(&infoSession, "session", "", "session id (UUID) to record with the navigation")
}

// withModel runs fn against a model wired to the configured database.
func withModel(cmd *cobra.Command, args []string, fn func(m *autorevoke.Model, key device.PackageKey) error) error {
	user, err := checkUser(actionUser)
	if err != nil {
		return err
	}

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

	key := device.PackageKey{PackageName: args[0], User: user}
	if err := fn(rt.model, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("package %s is not installed\nRun 'autorevoke scan' to update the package database", key)
		}
		return err
	}
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	session := uuid.New()
	if infoSession != "" {
		parsed, err := uuid.Parse(infoSession)
		if err != nil {
			return fmt.Errorf("invalid --session: %w", err)
		}
		session = parsed
	}

	return withModel(cmd, args, func(m *autorevoke.Model, key device.PackageKey) error {
		if err := m.NavigateToAppInfo(cmd.Context(), key.PackageName, key.User, session); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Opened app info for %s (session %s)\n", key, session)
		return nil
	})
}

func runOpen(cmd *cobra.Command, args []string) error {
	return withModel(cmd, args, func(m *autorevoke.Model, key device.PackageKey) error {
		opened, err := m.OpenApp(cmd.Context(), key.PackageName, key.User)
		if err != nil {
			return err
		}
		if !opened {
			return fmt.Errorf("%s cannot be opened: it is disabled or has no launcher entry", key)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Opened %s\n", key)
		return nil
	})
}

func runUninstall(cmd *cobra.Command, args []string) error {
	return withModel(cmd, args, func(m *autorevoke.Model, key device.PackageKey) error {
		err := m.RequestUninstallApp(cmd.Context(), key.PackageName, key.User)
		if errors.Is(err, host.ErrSystemPackage) {
			return fmt.Errorf("%s is a system package\nRun 'autorevoke disable %s --user %d' instead", key, key.PackageName, key.User)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Uninstalled %s\n", key)
		return nil
	})
}

func runDisable(cmd *cobra.Command, args []string) error {
	return withModel(cmd, args, func(m *autorevoke.Model, key device.PackageKey) error {
		if err := m.DisableApp(cmd.Context(), key.PackageName, key.User); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Disabled %s\n", key)
		return nil
	})
}
