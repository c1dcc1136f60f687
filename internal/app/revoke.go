package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/store"
)

var (
	revokeUser  int
	revokeClear bool

	revokeCmd = &cobra.Command{
		Use:   "revoke <package> [group...]",
		Short: "Record permission groups auto-revoked from a package",
		Long: `Record that the permission system auto-revoked one or more permission
groups from a package because it went unused. Recording a group twice is a
no-op. With --clear, every record of the package is removed instead, as when
the user grants the permissions again.`,
		Example: `  # Record revoked groups
  autorevoke revoke com.example.notes LOCATION CAMERA

  # The user re-granted everything
  autorevoke revoke com.example.notes --clear`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRevoke,
	}
)

func init() {
	revokeCmd.Flags().IntVar(&revokeUser, "user", 0, "user id")
	revokeCmd.Flags().BoolVar(&revokeClear, "clear", false, "remove all records of the package")
}

func runRevoke(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	user, err := checkUser(revokeUser)
	if err != nil {
		return err
	}
	key := device.PackageKey{PackageName: args[0], User: user}
	groups := args[1:]

	if revokeClear && len(groups) > 0 {
		return fmt.Errorf("--clear takes no permission groups")
	}
	if !revokeClear && len(groups) == 0 {
		return fmt.Errorf("at least one permission group is required")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if revokeClear {
		n, err := st.DeleteRevoked(user, key.PackageName)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Cleared %d auto-revoke records of %s\n", n, key)
		return nil
	}

	if _, err := st.GetPackage(ctx, user, key.PackageName); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("package %s is not installed\nRun 'autorevoke scan' to update the package database", key)
		}
		return err
	}

	now := clock.Now()
	for _, group := range groups {
		if err := st.InsertRevoked(&store.RevokedPermission{
			Package:         key.PackageName,
			User:            user,
			PermissionGroup: strings.ToUpper(group),
			RevokedAt:       now,
		}); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "✓ Recorded %d revoked groups for %s\n", len(groups), key)
	return nil
}
