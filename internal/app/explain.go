package app

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/autorevoke/internal/autorevoke"
	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/output"
)

var explainUser int

var explainCmd = &cobra.Command{
	Use:   "explain <package>",
	Short: "Show why an app landed in its bucket",
	Long: `Display the bucket of one app with auto-revoked permissions and the reason
it landed there: its most recent use within the unused window, or its install
time when it was not used at all.`,
	Example: `  # Explain the bucket of an app of the primary user
  autorevoke explain com.example.notes

  # Explain it for the work profile
  autorevoke explain com.example.notes --user 10`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func init() {
	explainCmd.Flags().IntVar(&explainUser, "user", 0, "user id")
}

func runExplain(cmd *cobra.Command, args []string) error {
	user, err := checkUser(explainUser)
	if err != nil {
		return err
	}
	key := device.PackageKey{PackageName: args[0], User: user}

	cats, err := loadCategories(cmd)
	if err != nil {
		return err
	}

	info, bucket, ok := cats.Find(key)
	if !ok {
		return fmt.Errorf("%s has no auto-revoked permissions\nRun 'autorevoke unused' to list apps that do", key)
	}

	fmt.Fprint(cmd.OutOrStdout(), renderExplanation(info, bucket))
	return nil
}

func renderExplanation(info autorevoke.RevokedPackageInfo, bucket autorevoke.Bucket) string {
	now := clock.Now()
	window := cfg.UnusedWindow

	var sb strings.Builder
	fmt.Fprintf(&sb, "Package: %s (user %d)\n", info.PackageName, info.User)
	fmt.Fprintf(&sb, "Bucket:  %s (%s)\n", output.BucketTitle(bucket), bucket)
	fmt.Fprintf(&sb, "Revoked: %s\n", strings.Join(info.RevokedGroups, ", "))
	sb.WriteString("\nReason: ")

	windowText := humanize.RelTime(now.Add(-window), now, "", "")
	windowText = strings.TrimSpace(windowText)
	switch {
	case !info.LastUsed.IsZero():
		fmt.Fprintf(&sb, "last used %s, within the %s unused window\n",
			humanize.RelTime(info.LastUsed, now, "ago", "from now"), windowText)
	case info.FirstInstallTime.IsZero():
		fmt.Fprintf(&sb, "not used within the %s unused window and install time unknown\n", windowText)
	case bucket == autorevoke.BucketThreeMonths:
		fmt.Fprintf(&sb, "not used, but installed %s, within the %s unused window\n",
			humanize.RelTime(info.FirstInstallTime, now, "ago", "from now"), windowText)
	default:
		fmt.Fprintf(&sb, "not used within the %s unused window, installed %s\n",
			windowText, humanize.RelTime(info.FirstInstallTime, now, "ago", "from now"))
	}

	if info.ShouldDisable {
		fmt.Fprintf(&sb, "Action: system app, disable with 'autorevoke disable %s --user %d'\n", info.PackageName, info.User)
	} else {
		fmt.Fprintf(&sb, "Action: uninstall with 'autorevoke uninstall %s --user %d'\n", info.PackageName, info.User)
	}
	if !info.CanOpen {
		sb.WriteString("Note:   no launcher entry, the app cannot be opened\n")
	}
	return sb.String()
}
