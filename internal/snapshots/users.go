package snapshots

import (
	"context"
	"fmt"

	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/live"
)

// Users is the list of user profiles. It follows the same lifecycle as
// UserPackages: loaded on activation and on every package broadcast.
type Users struct {
	*live.AsyncCell[[]device.UserID]

	source     UserSource
	broadcasts *device.Broadcasts
}

// NewUsers creates the user list cell.
func NewUsers(loop *live.Loop, source UserSource, broadcasts *device.Broadcasts) *Users {
	u := &Users{source: source, broadcasts: broadcasts}
	u.AsyncCell = live.NewAsyncCell(loop, "users", u.load)
	u.OnActive(func() {
		broadcasts.AddListener(u)
		u.Update()
	})
	u.OnInactive(func() {
		broadcasts.RemoveListener(u)
	})
	return u
}

// OnPackageUpdate reloads the user list.
func (u *Users) OnPackageUpdate(packageName string) {
	u.Update()
}

func (u *Users) load(ctx context.Context) ([]device.UserID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	users, err := u.source.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
