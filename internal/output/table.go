// Package output provides terminal output utilities for autorevoke.
//
// This package includes:
//   - Table rendering for unused-app buckets, installed packages, usage and the action journal
//   - Spinners for waiting on the first categorization
//   - Human-readable relative times
//
// Color is only emitted when stdout is a terminal and NO_COLOR is unset.
package output

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/autorevoke/internal/autorevoke"
	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/store"
)

// ANSI color codes for bucket display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// BucketTitle returns the heading shown above a bucket.
func BucketTitle(b autorevoke.Bucket) string {
	switch b {
	case autorevoke.BucketThreeMonths:
		return "Unused for 3+ months"
	case autorevoke.BucketSixMonths:
		return "Unused for 6+ months"
	default:
		return string(b)
	}
}

func bucketColor(b autorevoke.Bucket) string {
	switch b {
	case autorevoke.BucketThreeMonths:
		return colorYellow
	case autorevoke.BucketSixMonths:
		return colorRed
	default:
		return colorGray
	}
}

// RenderCategories renders every bucket in display order. Relative times are
// computed against now.
func RenderCategories(cats autorevoke.Categories, now time.Time) string {
	if cats.Len() == 0 {
		return "No apps with auto-revoked permissions.\n"
	}

	var sb strings.Builder
	first := true
	for _, b := range autorevoke.Buckets {
		if len(cats[b]) == 0 {
			continue
		}
		if !first {
			sb.WriteString("\n")
		}
		first = false
		sb.WriteString(RenderBucket(b, cats[b], now))
	}
	return sb.String()
}

// RenderBucket renders the apps of one bucket. Entries are expected to be
// sorted already.
func RenderBucket(b autorevoke.Bucket, infos []autorevoke.RevokedPackageInfo, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(colorize(bucketColor(b), fmt.Sprintf("%s (%d)", BucketTitle(b), len(infos))))
	sb.WriteString("\n")

	if len(infos) == 0 {
		sb.WriteString("No apps.\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("%-32s %-5s %-15s %-15s %-10s %-4s %s\n",
		"Package", "User", "Last Used", "Installed", "Action", "Open", "Revoked"))
	sb.WriteString(strings.Repeat("─", 100))
	sb.WriteString("\n")

	for _, info := range infos {
		open := "no"
		if info.CanOpen {
			open = "yes"
		}
		sb.WriteString(fmt.Sprintf("%-32s %-5d %-15s %-15s %-10s %-4s %s\n",
			truncate(info.PackageName, 32),
			info.User,
			formatRelativeTime(info.LastUsed, now),
			formatRelativeTime(info.FirstInstallTime, now),
			ActionLabel(info),
			open,
			strings.Join(info.RevokedGroups, ", ")))
	}

	return sb.String()
}

// ActionLabel names the removal applied to an unused app.
func ActionLabel(info autorevoke.RevokedPackageInfo) string {
	if info.ShouldDisable {
		return "disable"
	}
	return "uninstall"
}

// RenderCategorySummary renders a one-line count per bucket.
// Format: "Unused for 3+ months: 2 apps · Unused for 6+ months: 14 apps"
func RenderCategorySummary(cats autorevoke.Categories) string {
	parts := make([]string, 0, len(autorevoke.Buckets))
	for _, b := range autorevoke.Buckets {
		n := len(cats[b])
		label := "apps"
		if n == 1 {
			label = "app"
		}
		parts = append(parts, fmt.Sprintf("%s: %s %s",
			colorize(bucketColor(b), BucketTitle(b)), humanize.Comma(int64(n)), label))
	}
	return strings.Join(parts, " · ")
}

// RenderPackageTable renders the installed packages of one or more users,
// in the order given.
func RenderPackageTable(packages []device.PackageInfo, now time.Time) string {
	if len(packages) == 0 {
		return "No packages found.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-32s %-5s %-8s %-15s %s\n",
		"Package", "User", "Type", "Installed", "Status"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, pkg := range packages {
		kind := "user"
		if pkg.IsSystem() {
			kind = "system"
		}
		status := "enabled"
		if !pkg.Enabled {
			status = colorize(colorGray, "disabled")
		} else if pkg.Launchable {
			status = colorize(colorGreen, "launchable")
		}
		sb.WriteString(fmt.Sprintf("%-32s %-5d %-8s %-15s %s\n",
			truncate(pkg.Name, 32),
			pkg.User,
			kind,
			formatRelativeTime(pkg.FirstInstallTime, now),
			status))
	}

	return sb.String()
}

// RenderUsageTable renders last-use times, most recent first.
func RenderUsageTable(stats []device.UsageStat, now time.Time) string {
	if len(stats) == 0 {
		return "No usage recorded.\n"
	}

	sorted := slices.Clone(stats)
	slices.SortStableFunc(sorted, func(a, b device.UsageStat) int {
		if c := b.LastTimeUsed.Compare(a.LastTimeUsed); c != 0 {
			return c
		}
		return strings.Compare(a.PackageName, b.PackageName)
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-32s %-5s %s\n", "Package", "User", "Last Used"))
	sb.WriteString(strings.Repeat("─", 60))
	sb.WriteString("\n")

	for _, s := range sorted {
		sb.WriteString(fmt.Sprintf("%-32s %-5d %s\n",
			truncate(s.PackageName, 32),
			s.User,
			formatRelativeTime(s.LastTimeUsed, now)))
	}

	return sb.String()
}

// RenderActionTable renders the action journal, newest first as given.
func RenderActionTable(actions []*store.Action, now time.Time) string {
	if len(actions) == 0 {
		return "No actions recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-5s %-15s %-10s %-32s %-5s %s\n",
		"ID", "When", "Action", "Package", "User", "Session"))
	sb.WriteString(strings.Repeat("─", 100))
	sb.WriteString("\n")

	for _, a := range actions {
		session := a.SessionID
		if session == "" {
			session = "—"
		}
		sb.WriteString(fmt.Sprintf("%-5d %-15s %-10s %-32s %-5d %s\n",
			a.ID,
			formatRelativeTime(a.Timestamp, now),
			a.Action,
			truncate(a.Package, 32),
			a.User,
			session))
	}

	return sb.String()
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
