package snapshots

import (
	"context"
	"sync"

	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/live"
)

// AllPackages maps every user to their installed packages. It tracks the
// user list and observes one UserPackages cell per user, and it posts nothing
// until the user list and every one of those cells hold a value.
type AllPackages struct {
	*live.Mediator[map[device.UserID][]device.PackageInfo]

	cache *Cache
	users *Users

	mu      sync.Mutex
	tracked map[device.UserID]*UserPackages
}

// NewAllPackages creates the all-users view over cache and users.
func NewAllPackages(cache *Cache, users *Users) *AllPackages {
	a := &AllPackages{
		cache:   cache,
		users:   users,
		tracked: make(map[device.UserID]*UserPackages),
	}
	a.Mediator = live.NewMediator(cache.Loop(), "all_packages", a.load)
	a.AddSource(users, a.syncUsers)
	return a
}

// Tracked returns the users whose cells are currently inputs.
func (a *AllPackages) Tracked() []device.UserID {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]device.UserID, 0, len(a.tracked))
	for u := range a.tracked {
		out = append(out, u)
	}
	return out
}

// syncUsers reconciles the per-user inputs with the user list.
func (a *AllPackages) syncUsers() {
	ids, ok := a.users.Value()
	if !ok {
		return
	}

	want := make(map[device.UserID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	a.mu.Lock()
	var added, removed []*UserPackages
	for _, id := range ids {
		if _, ok := a.tracked[id]; !ok {
			cell := a.cache.Get(id)
			a.tracked[id] = cell
			added = append(added, cell)
		}
	}
	for id, cell := range a.tracked {
		if !want[id] {
			delete(a.tracked, id)
			removed = append(removed, cell)
		}
	}
	a.mu.Unlock()

	for _, cell := range removed {
		a.RemoveSource(cell)
	}
	for _, cell := range added {
		a.AddSource(cell, a.Update)
	}
	a.Update()
}

func (a *AllPackages) load(ctx context.Context) (map[device.UserID][]device.PackageInfo, error) {
	ids, ok := a.users.Value()
	if !ok {
		return nil, live.ErrSkip
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	result := make(map[device.UserID][]device.PackageInfo, len(ids))
	for _, id := range ids {
		cell, ok := a.tracked[id]
		if !ok {
			return nil, live.ErrSkip
		}
		pkgs, ok := cell.Value()
		if !ok {
			return nil, live.ErrSkip
		}
		result[id] = pkgs
	}
	return result, ctx.Err()
}
