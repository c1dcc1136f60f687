package autorevoke

import (
	"context"
	"fmt"
	"slices"

	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/live"
)

// RevokedSource reads the auto-revoke record store.
type RevokedSource interface {
	AutoRevokedGroups(ctx context.Context) (map[device.PackageKey][]string, error)
}

// RevokedPackages holds the current auto-revoke records. It loads when first
// observed and on every package broadcast while observed.
type RevokedPackages struct {
	*live.AsyncCell[Revoked]

	source RevokedSource
}

// NewRevokedPackages creates the revoked-records cell.
func NewRevokedPackages(loop *live.Loop, source RevokedSource, broadcasts *device.Broadcasts) *RevokedPackages {
	r := &RevokedPackages{source: source}
	r.AsyncCell = live.NewAsyncCell(loop, "auto_revoked", r.load)
	r.OnActive(func() {
		broadcasts.AddListener(r)
		r.Update()
	})
	r.OnInactive(func() {
		broadcasts.RemoveListener(r)
	})
	return r
}

// OnPackageUpdate reloads the records.
func (r *RevokedPackages) OnPackageUpdate(packageName string) {
	r.Update()
}

func (r *RevokedPackages) load(ctx context.Context) (Revoked, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	groups, err := r.source.AutoRevokedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read auto-revoke records: %w", err)
	}

	revoked := make(Revoked, len(groups))
	for key, g := range groups {
		if len(g) == 0 {
			continue
		}
		g = slices.Clone(g)
		slices.Sort(g)
		revoked[key] = slices.Compact(g)
	}
	return revoked, nil
}
