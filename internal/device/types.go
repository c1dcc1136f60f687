// Package device models the installed-package state of a multi-user device:
// package snapshots, usage records, manifests on disk, and package change
// broadcasts.
package device

import (
	"fmt"
	"time"
)

// UserID identifies a user profile on the device. It is not an end-user account.
type UserID int

// String renders the id the way it appears in paths and logs.
func (u UserID) String() string {
	return fmt.Sprintf("%d", int(u))
}

// Package flags.
const (
	// FlagSystem marks a package that ships with the system image. System apps
	// can be disabled but not uninstalled.
	FlagSystem = 1 << 0
)

// PackageInfo is an immutable snapshot of one installed package for one user.
type PackageInfo struct {
	Name                 string
	User                 UserID
	Flags                int
	FirstInstallTime     time.Time
	RequestedPermissions []string
	Launchable           bool // has a launcher activity
	Enabled              bool
}

// IsSystem reports whether FlagSystem is set.
func (p PackageInfo) IsSystem() bool {
	return p.Flags&FlagSystem != 0
}

// Key returns the (package, user) key of p.
func (p PackageInfo) Key() PackageKey {
	return PackageKey{PackageName: p.Name, User: p.User}
}

// UsageStat records when a package was last used by a user.
type UsageStat struct {
	PackageName  string
	User         UserID
	LastTimeUsed time.Time
}

// Key returns the (package, user) key of s.
func (s UsageStat) Key() PackageKey {
	return PackageKey{PackageName: s.PackageName, User: s.User}
}

// PackageKey identifies a package installed for a specific user.
type PackageKey struct {
	PackageName string
	User        UserID
}

func (k PackageKey) String() string {
	return fmt.Sprintf("%s@%d", k.PackageName, int(k.User))
}
