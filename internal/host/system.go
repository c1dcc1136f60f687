// Package host simulates the device services the auto-revoke view depends
// on: the package manager, usage statistics, the revoked-permission record
// store, the launcher, and the app-details and uninstall flows. All state
// lives in the SQLite store.
package host

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/store"
)

// Action names written to the journal.
const (
	ActionInfo      = "info"
	ActionOpen      = "open"
	ActionUninstall = "uninstall"
	ActionDisable   = "disable"
)

// launchCacheSize bounds the launchability memo.
const launchCacheSize = 512

// ErrSystemPackage is returned when uninstalling a package that ships with
// the system image.
var ErrSystemPackage = errors.New("system packages cannot be uninstalled")

// System serves package, user, usage, revoked-record and launcher queries
// from a store and performs the host actions against it.
//
// Launchability answers are memoized until the next package broadcast. Each
// broadcast starts a new epoch, and an answer read from the store is only
// memoized if no broadcast arrived while it was being read.
type System struct {
	store      *store.Store
	broadcasts *device.Broadcasts
	clock      clockwork.Clock

	memoMu     sync.Mutex
	epoch      uint64
	launchable *lru.Cache[device.PackageKey, bool]
}

// New creates a System and subscribes it to package broadcasts so its
// launchability memo never outlives a package change. Call Close to
// unsubscribe.
func New(st *store.Store, broadcasts *device.Broadcasts, clock clockwork.Clock) (*System, error) {
	cache, err := lru.New[device.PackageKey, bool](launchCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create launch cache: %w", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &System{
		store:      st,
		broadcasts: broadcasts,
		clock:      clock,
		launchable: cache,
	}
	broadcasts.AddListener(s)
	return s, nil
}

// Close unsubscribes from package broadcasts.
func (s *System) Close() {
	s.broadcasts.RemoveListener(s)
}

// OnPackageUpdate drops every memoized launchability answer.
func (s *System) OnPackageUpdate(packageName string) {
	s.memoMu.Lock()
	defer s.memoMu.Unlock()
	s.epoch++
	s.launchable.Purge()
}

func (s *System) launchEpoch() uint64 {
	s.memoMu.Lock()
	defer s.memoMu.Unlock()
	return s.epoch
}

// remember memoizes ok for key unless a broadcast ended epoch.
func (s *System) remember(key device.PackageKey, ok bool, epoch uint64) {
	s.memoMu.Lock()
	defer s.memoMu.Unlock()
	if s.epoch == epoch {
		s.launchable.Add(key, ok)
	}
}

// Users returns every user profile on the device.
func (s *System) Users(ctx context.Context) ([]device.UserID, error) {
	return s.store.ListUsers(ctx)
}

// InstalledPackages returns the packages installed for user.
func (s *System) InstalledPackages(ctx context.Context, user device.UserID) ([]device.PackageInfo, error) {
	return s.store.ListPackages(ctx, user)
}

// QueryUsageStats returns the last use of each package of user inside [begin, end].
func (s *System) QueryUsageStats(ctx context.Context, user device.UserID, begin, end time.Time) ([]device.UsageStat, error) {
	return s.store.LastUsageBetween(ctx, user, begin, end)
}

// AutoRevokedGroups returns the permission groups revoked from each package,
// sorted by group name.
func (s *System) AutoRevokedGroups(ctx context.Context) (map[device.PackageKey][]string, error) {
	rows, err := s.store.ListRevoked(ctx)
	if err != nil {
		return nil, err
	}

	groups := make(map[device.PackageKey][]string)
	for _, r := range rows {
		key := device.PackageKey{PackageName: r.Package, User: r.User}
		groups[key] = append(groups[key], r.PermissionGroup)
	}
	for _, g := range groups {
		sort.Strings(g)
	}
	return groups, nil
}

// CanLaunch reports whether the package has an enabled launcher entry for
// user. Missing packages cannot be launched.
func (s *System) CanLaunch(ctx context.Context, packageName string, user device.UserID) (bool, error) {
	key := device.PackageKey{PackageName: packageName, User: user}
	if ok, hit := s.launchable.Get(key); hit {
		return ok, nil
	}

	epoch := s.launchEpoch()
	pkg, err := s.store.GetPackage(ctx, user, packageName)
	if errors.Is(err, store.ErrNotFound) {
		s.remember(key, false, epoch)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ok := pkg.Launchable && pkg.Enabled
	s.remember(key, ok, epoch)
	return ok, nil
}

// NavigateToAppInfo opens the app-details screen of a package, tagged with
// the caller's session.
func (s *System) NavigateToAppInfo(ctx context.Context, packageName string, user device.UserID, sessionID uuid.UUID) error {
	if _, err := s.store.GetPackage(ctx, user, packageName); err != nil {
		return err
	}
	return s.journal(ActionInfo, packageName, user, sessionID)
}

// OpenApp launches the main activity of a package. It returns false without
// error when the package has nothing to launch.
func (s *System) OpenApp(ctx context.Context, packageName string, user device.UserID) (bool, error) {
	ok, err := s.CanLaunch(ctx, packageName, user)
	if err != nil || !ok {
		return false, err
	}
	if err := s.journal(ActionOpen, packageName, user, uuid.Nil); err != nil {
		return false, err
	}
	return true, nil
}

// RequestUninstallApp removes a package for user and broadcasts the change.
func (s *System) RequestUninstallApp(ctx context.Context, packageName string, user device.UserID) error {
	pkg, err := s.store.GetPackage(ctx, user, packageName)
	if err != nil {
		return err
	}
	if pkg.IsSystem() {
		return fmt.Errorf("%s: %w", pkg.Key(), ErrSystemPackage)
	}

	if err := s.store.DeletePackage(user, packageName); err != nil {
		return err
	}
	if err := s.journal(ActionUninstall, packageName, user, uuid.Nil); err != nil {
		return err
	}

	s.broadcasts.Dispatch(packageName)
	return nil
}

// DisableApp marks a package disabled by the user and broadcasts the change.
func (s *System) DisableApp(ctx context.Context, packageName string, user device.UserID) error {
	if err := s.store.SetPackageEnabled(user, packageName, false); err != nil {
		return err
	}
	if err := s.journal(ActionDisable, packageName, user, uuid.Nil); err != nil {
		return err
	}

	s.broadcasts.Dispatch(packageName)
	return nil
}

func (s *System) journal(action, packageName string, user device.UserID, sessionID uuid.UUID) error {
	row := &store.Action{
		Action:    action,
		Package:   packageName,
		User:      user,
		Timestamp: s.clock.Now(),
	}
	if sessionID != uuid.Nil {
		row.SessionID = sessionID.String()
	}

	if _, err := s.store.InsertAction(row); err != nil {
		return err
	}

	log.Info().
		Str("action", action).
		Str("package", packageName).
		Stringer("user", user).
		Str("session", row.SessionID).
		Msg("host action")
	return nil
}
