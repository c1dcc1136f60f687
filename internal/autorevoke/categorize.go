package autorevoke

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/blackwell-systems/autorevoke/internal/device"
)

// DefaultThreshold separates recently unused apps from long unused ones.
const DefaultThreshold = 180 * 24 * time.Hour

// Launcher reports whether a package has an activity the user can open.
type Launcher interface {
	CanLaunch(ctx context.Context, packageName string, user device.UserID) (bool, error)
}

// Inputs are the values Categorize works on.
type Inputs struct {
	Revoked     Revoked
	AllPackages map[device.UserID][]device.PackageInfo
	// UsageStats is expected to be windowed to Threshold already.
	UsageStats map[device.UserID][]device.UsageStat
	// Threshold defaults to DefaultThreshold.
	Threshold time.Duration
}

// Categorize puts every revoked package into exactly one bucket.
//
// A package with any usage stat is recently unused. Otherwise its first
// install time decides: within the threshold of now is recently unused, older
// or unknown is long unused. Entries in each bucket are ordered by package
// name, then user. ctx is checked before every Launcher call; a cancelled
// computation returns ctx.Err().
func Categorize(ctx context.Context, in Inputs, now time.Time, launcher Launcher) (Categories, error) {
	threshold := in.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	packages := make(map[device.PackageKey]device.PackageInfo, len(in.Revoked))
	for user, pkgs := range in.AllPackages {
		for _, pkg := range pkgs {
			key := device.PackageKey{PackageName: pkg.Name, User: user}
			if _, ok := in.Revoked[key]; ok {
				packages[key] = pkg
			}
		}
	}

	lastUsed := make(map[device.PackageKey]time.Time)
	for user, stats := range in.UsageStats {
		for _, stat := range stats {
			key := device.PackageKey{PackageName: stat.PackageName, User: user}
			if _, ok := in.Revoked[key]; !ok {
				continue
			}
			if prev, seen := lastUsed[key]; !seen || stat.LastTimeUsed.After(prev) {
				lastUsed[key] = stat.LastTimeUsed
			}
		}
	}

	cats := NewCategories()
	for key, groups := range in.Revoked {
		pkg := packages[key]

		bucket := BucketSixMonths
		used, wasUsed := lastUsed[key]
		if wasUsed || now.Sub(installTime(pkg)) <= threshold {
			bucket = BucketThreeMonths
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		canOpen, err := launcher.CanLaunch(ctx, key.PackageName, key.User)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve launcher for %s: %w", key, err)
		}

		cats[bucket] = append(cats[bucket], RevokedPackageInfo{
			PackageName:      key.PackageName,
			User:             key.User,
			ShouldDisable:    pkg.IsSystem(),
			CanOpen:          canOpen,
			RevokedGroups:    slices.Clone(groups),
			LastUsed:         used,
			FirstInstallTime: pkg.FirstInstallTime,
		})
	}

	for _, b := range Buckets {
		slices.SortFunc(cats[b], compareInfo)
	}
	return cats, nil
}

// installTime treats a missing install time as the epoch.
func installTime(pkg device.PackageInfo) time.Time {
	if pkg.FirstInstallTime.IsZero() {
		return time.Unix(0, 0)
	}
	return pkg.FirstInstallTime
}

func compareInfo(a, b RevokedPackageInfo) int {
	if c := strings.Compare(a.PackageName, b.PackageName); c != 0 {
		return c
	}
	return cmp.Compare(a.User, b.User)
}
