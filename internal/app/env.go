package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"

	"github.com/blackwell-systems/autorevoke/internal/autorevoke"
	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/host"
	"github.com/blackwell-systems/autorevoke/internal/live"
	"github.com/blackwell-systems/autorevoke/internal/snapshots"
	"github.com/blackwell-systems/autorevoke/internal/store"
	"github.com/blackwell-systems/autorevoke/internal/usage"
)

// clock is swapped out by tests.
var clock clockwork.Clock = clockwork.NewRealClock()

// openStore opens the configured database, creating it and its schema if
// needed.
func openStore() (*store.Store, error) {
	if dir := filepath.Dir(cfg.DB); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	st, err := store.New(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.CreateSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}
	return st, nil
}

// runtime is the live object graph behind the unused-apps view.
type runtime struct {
	store      *store.Store
	broadcasts *device.Broadcasts
	system     *host.System
	loop       *live.Loop
	packages   *snapshots.Cache
	usage      *usage.Cache
	model      *autorevoke.Model
}

func newRuntime(st *store.Store) (*runtime, error) {
	broadcasts := device.NewBroadcasts()
	system, err := host.New(st, broadcasts, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create host: %w", err)
	}

	loop := live.NewLoop()
	users := snapshots.NewUsers(loop, system, broadcasts)
	packages := snapshots.NewCache(loop, system, broadcasts)
	stats := usage.NewCache(loop, system, system, broadcasts, clock)

	model := autorevoke.NewModel(autorevoke.Config{
		Loop:        loop,
		Revoked:     autorevoke.NewRevokedPackages(loop, system, broadcasts),
		AllPackages: snapshots.NewAllPackages(packages, users),
		UsageStats:  stats.Get(cfg.UnusedWindow),
		Launcher:    system,
		Host:        system,
		Clock:       clock,
	})

	return &runtime{
		store:      st,
		broadcasts: broadcasts,
		system:     system,
		loop:       loop,
		packages:   packages,
		usage:      stats,
		model:      model,
	}, nil
}

func (r *runtime) Close() {
	r.loop.Stop()
	r.system.Close()
}

// checkUser validates a --user value.
func checkUser(id int) (device.UserID, error) {
	if id < 0 {
		return 0, fmt.Errorf("invalid user %d: must be a non-negative integer", id)
	}
	return device.UserID(id), nil
}
