package snapshots

import (
	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/live"
)

// Cache hands out the UserPackages cell of each user. There is at most one
// cell per user for the lifetime of the cache.
type Cache struct {
	loop  *live.Loop
	cells *live.Repository[device.UserID, *UserPackages]
}

// NewCache creates an empty cache. Cells are created on first Get.
func NewCache(loop *live.Loop, source PackageSource, broadcasts *device.Broadcasts) *Cache {
	return &Cache{
		loop: loop,
		cells: live.NewRepository(func(user device.UserID) *UserPackages {
			log.Debug().Stringer("user", user).Msg("creating package snapshot cell")
			return newUserPackages(loop, source, broadcasts, user)
		}),
	}
}

// Loop returns the loop the cache's cells commit on.
func (c *Cache) Loop() *live.Loop {
	return c.loop
}

// Get returns the cell for user, creating it if needed.
func (c *Cache) Get(user device.UserID) *UserPackages {
	return c.cells.Get(user)
}

// Users returns the users that currently have a cell.
func (c *Cache) Users() []device.UserID {
	return c.cells.Keys()
}

// PruneInactive drops the cells nobody observes, except those listed in
// keep, and returns how many were dropped. A later Get recreates them.
func (c *Cache) PruneInactive(keep ...device.UserID) int {
	kept := make(map[device.UserID]bool, len(keep))
	for _, u := range keep {
		kept[u] = true
	}
	return c.cells.Prune(func(user device.UserID, cell *UserPackages) bool {
		return !kept[user] && !cell.HasActiveObservers()
	})
}
