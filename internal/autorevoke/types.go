// Package autorevoke computes which apps had permissions auto-revoked for
// being unused, grouped by how long they have been unused, and exposes the
// actions a user can take on them.
package autorevoke

import (
	"fmt"
	"time"

	"github.com/blackwell-systems/autorevoke/internal/device"
)

// Bucket groups unused apps by how long they have gone unused.
type Bucket string

const (
	// BucketThreeMonths holds apps used, or installed, within the threshold.
	BucketThreeMonths Bucket = "three_months"
	// BucketSixMonths holds apps unused for longer than the threshold.
	BucketSixMonths Bucket = "six_months"
)

// Buckets lists every bucket in display order.
var Buckets = []Bucket{BucketThreeMonths, BucketSixMonths}

// ParseBucket validates a bucket name.
func ParseBucket(s string) (Bucket, error) {
	for _, b := range Buckets {
		if string(b) == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("invalid bucket %q (want %s or %s)", s, BucketThreeMonths, BucketSixMonths)
}

// Revoked maps a package of a user to the permission groups revoked from it.
// Group lists are sorted and free of duplicates.
type Revoked map[device.PackageKey][]string

// RevokedPackageInfo is one unused app as shown to the user.
type RevokedPackageInfo struct {
	PackageName   string
	User          device.UserID
	ShouldDisable bool // system apps are disabled instead of uninstalled
	CanOpen       bool
	RevokedGroups []string

	LastUsed         time.Time // zero when unused within the lookback
	FirstInstallTime time.Time // zero when unknown
}

// Key returns the (package, user) key of r.
func (r RevokedPackageInfo) Key() device.PackageKey {
	return device.PackageKey{PackageName: r.PackageName, User: r.User}
}

// Categories maps every bucket to its apps. Both buckets are always present.
type Categories map[Bucket][]RevokedPackageInfo

// NewCategories returns categories with both buckets empty.
func NewCategories() Categories {
	c := make(Categories, len(Buckets))
	for _, b := range Buckets {
		c[b] = []RevokedPackageInfo{}
	}
	return c
}

// Len returns the number of apps across all buckets.
func (c Categories) Len() int {
	n := 0
	for _, infos := range c {
		n += len(infos)
	}
	return n
}

// Find returns the entry for key and the bucket holding it.
func (c Categories) Find(key device.PackageKey) (RevokedPackageInfo, Bucket, bool) {
	for _, b := range Buckets {
		for _, info := range c[b] {
			if info.Key() == key {
				return info, b, true
			}
		}
	}
	return RevokedPackageInfo{}, "", false
}
