package snapshots

import (
	"context"
	"fmt"

	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/live"
)

// UserPackages is the installed-package list of one user. While observed it
// listens to package broadcasts and reloads on every one of them.
type UserPackages struct {
	*live.AsyncCell[[]device.PackageInfo]

	user       device.UserID
	source     PackageSource
	broadcasts *device.Broadcasts
}

func newUserPackages(loop *live.Loop, source PackageSource, broadcasts *device.Broadcasts, user device.UserID) *UserPackages {
	u := &UserPackages{
		user:       user,
		source:     source,
		broadcasts: broadcasts,
	}
	u.AsyncCell = live.NewAsyncCell(loop, fmt.Sprintf("user_packages/%d", int(user)), u.load)
	u.OnActive(u.onActive)
	u.OnInactive(u.onInactive)
	return u
}

// User returns the user whose packages the cell holds.
func (u *UserPackages) User() device.UserID {
	return u.user
}

// OnPackageUpdate reloads the list. Broadcasts are not filtered by user.
func (u *UserPackages) OnPackageUpdate(packageName string) {
	u.Update()
}

func (u *UserPackages) onActive() {
	u.broadcasts.AddListener(u)
	u.Update()
}

func (u *UserPackages) onInactive() {
	u.broadcasts.RemoveListener(u)
}

func (u *UserPackages) load(ctx context.Context) ([]device.PackageInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pkgs, err := u.source.InstalledPackages(ctx, u.user)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages of user %s: %w", u.user, err)
	}
	return pkgs, nil
}
