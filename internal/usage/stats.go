// Package usage provides the windowed usage statistics cell.
package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/live"
	"github.com/blackwell-systems/autorevoke/internal/snapshots"
)

// DefaultWindow is the lookback used for auto-revoke decisions.
const DefaultWindow = 180 * 24 * time.Hour

// maxConcurrentQueries bounds the per-user queries of one load.
const maxConcurrentQueries = 4

// StatsSource answers usage queries for one user over [begin, end].
type StatsSource interface {
	QueryUsageStats(ctx context.Context, user device.UserID, begin, end time.Time) ([]device.UsageStat, error)
}

// Stats maps each user to the last use of their packages within a fixed
// lookback ending now. It loads when first observed and on every package
// broadcast while observed.
type Stats struct {
	*live.AsyncCell[map[device.UserID][]device.UsageStat]

	window time.Duration
	source StatsSource
	users  snapshots.UserSource
	clock  clockwork.Clock
}

// NewStats creates a stats cell over window.
func NewStats(loop *live.Loop, window time.Duration, source StatsSource, users snapshots.UserSource, broadcasts *device.Broadcasts, clock clockwork.Clock) *Stats {
	s := &Stats{
		window: window,
		source: source,
		users:  users,
		clock:  clock,
	}
	s.AsyncCell = live.NewAsyncCell(loop, fmt.Sprintf("usage_stats/%s", window), s.load)
	s.OnActive(func() {
		broadcasts.AddListener(s)
		s.Update()
	})
	s.OnInactive(func() {
		broadcasts.RemoveListener(s)
	})
	return s
}

// Window returns the lookback of the cell.
func (s *Stats) Window() time.Duration {
	return s.window
}

// OnPackageUpdate reloads the stats.
func (s *Stats) OnPackageUpdate(packageName string) {
	s.Update()
}

func (s *Stats) load(ctx context.Context) (map[device.UserID][]device.UsageStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	users, err := s.users.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	end := s.clock.Now()
	begin := end.Add(-s.window)

	var mu sync.Mutex
	result := make(map[device.UserID][]device.UsageStat, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQueries)
	for _, user := range users {
		g.Go(func() error {
			stats, err := s.source.QueryUsageStats(gctx, user, begin, end)
			if err != nil {
				return fmt.Errorf("failed to query usage of user %s: %w", user, err)
			}
			mu.Lock()
			result[user] = stats
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// Cache hands out one Stats cell per lookback window.
type Cache struct {
	cells *live.Repository[time.Duration, *Stats]
}

// NewCache creates an empty cache of stats cells.
func NewCache(loop *live.Loop, source StatsSource, users snapshots.UserSource, broadcasts *device.Broadcasts, clock clockwork.Clock) *Cache {
	return &Cache{
		cells: live.NewRepository(func(window time.Duration) *Stats {
			return NewStats(loop, window, source, users, broadcasts, clock)
		}),
	}
}

// Get returns the cell for window, creating it if needed.
func (c *Cache) Get(window time.Duration) *Stats {
	return c.cells.Get(window)
}
