package store

import (
	"time"

	"github.com/blackwell-systems/autorevoke/internal/device"
)

// UsageEvent records that a user brought a package to the foreground.
type UsageEvent struct {
	Package   string
	User      device.UserID
	Timestamp time.Time
}

// RevokedPermission records one permission group the platform auto-revoked
// from an unused package.
type RevokedPermission struct {
	Package         string
	User            device.UserID
	PermissionGroup string
	RevokedAt       time.Time
}

// Action is a journal row for a user-initiated package action.
type Action struct {
	ID        int64
	Action    string // "info", "open", "uninstall" or "disable"
	Package   string
	User      device.UserID
	SessionID string
	Timestamp time.Time
}
