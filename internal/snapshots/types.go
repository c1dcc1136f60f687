// Package snapshots keeps per-user snapshots of the installed packages.
//
// Each user's package list is a reactive cell that loads lazily, refreshes
// whenever a package broadcast arrives, and stops listening once nobody
// observes it. AllPackages combines the cells of every user into one value.
package snapshots

import (
	"context"

	"github.com/blackwell-systems/autorevoke/internal/device"
)

// PackageSource answers installed-package queries for one user.
type PackageSource interface {
	InstalledPackages(ctx context.Context, user device.UserID) ([]device.PackageInfo, error)
}

// UserSource lists the user profiles on the device.
type UserSource interface {
	Users(ctx context.Context) ([]device.UserID, error)
}
