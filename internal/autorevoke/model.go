package autorevoke

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/live"
	"github.com/blackwell-systems/autorevoke/internal/metrics"
	"github.com/blackwell-systems/autorevoke/internal/snapshots"
	"github.com/blackwell-systems/autorevoke/internal/usage"
)

// Host performs the user-facing actions on a package.
type Host interface {
	NavigateToAppInfo(ctx context.Context, packageName string, user device.UserID, sessionID uuid.UUID) error
	OpenApp(ctx context.Context, packageName string, user device.UserID) (bool, error)
	RequestUninstallApp(ctx context.Context, packageName string, user device.UserID) error
	DisableApp(ctx context.Context, packageName string, user device.UserID) error
}

// Config wires a Model to its inputs.
type Config struct {
	Loop        *live.Loop
	Revoked     *RevokedPackages
	AllPackages *snapshots.AllPackages
	UsageStats  *usage.Stats
	Launcher    Launcher
	Host        Host
	Clock       clockwork.Clock
}

// Model is the auto-revoke view: the categorized unused apps plus the actions
// the user can take on them. The categories are recomputed whenever any input
// changes, and only once every input holds a value.
type Model struct {
	categories *live.Mediator[Categories]

	revoked     *RevokedPackages
	allPackages *snapshots.AllPackages
	usageStats  *usage.Stats
	launcher    Launcher
	host        Host
	clock       clockwork.Clock
}

// NewModel creates a model. Nothing is loaded until the categories are observed.
func NewModel(cfg Config) *Model {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	m := &Model{
		revoked:     cfg.Revoked,
		allPackages: cfg.AllPackages,
		usageStats:  cfg.UsageStats,
		launcher:    cfg.Launcher,
		host:        cfg.Host,
		clock:       clock,
	}

	m.categories = live.NewMediator(cfg.Loop, "auto_revoke_categories", m.load)
	m.categories.AddSource(cfg.Revoked, m.categories.Update)
	m.categories.AddSource(cfg.AllPackages, m.categories.Update)
	m.categories.AddSource(cfg.UsageStats, m.categories.Update)
	return m
}

// Categories returns the categorized unused apps cell.
func (m *Model) Categories() *live.Mediator[Categories] {
	return m.categories
}

// Observe is shorthand for Categories().Observe.
func (m *Model) Observe(fn func(Categories)) (cancel func()) {
	return m.categories.Observe(fn)
}

// AreAutoRevokedPackagesLoaded reports whether the auto-revoke records have
// been read at least once.
func (m *Model) AreAutoRevokedPackagesLoaded() bool {
	return m.revoked.IsInitialized()
}

// Refresh reloads the inputs that do not follow package broadcasts on their
// own, such as usage recorded since the last load.
func (m *Model) Refresh() {
	m.revoked.Update()
	m.usageStats.Update()
}

func (m *Model) load(ctx context.Context) (Categories, error) {
	revoked, ok := m.revoked.Value()
	if !ok {
		return nil, live.ErrSkip
	}
	all, ok := m.allPackages.Value()
	if !ok {
		return nil, live.ErrSkip
	}
	stats, ok := m.usageStats.Value()
	if !ok {
		return nil, live.ErrSkip
	}

	cats, err := Categorize(ctx, Inputs{
		Revoked:     revoked,
		AllPackages: all,
		UsageStats:  stats,
		Threshold:   m.usageStats.Window(),
	}, m.clock.Now(), m.launcher)
	if err != nil {
		return nil, err
	}

	if ctx.Err() == nil {
		for _, b := range Buckets {
			metrics.UnusedApps.WithLabelValues(string(b)).Set(float64(len(cats[b])))
		}
	}
	log.Debug().
		Int(string(BucketThreeMonths), len(cats[BucketThreeMonths])).
		Int(string(BucketSixMonths), len(cats[BucketSixMonths])).
		Msg("auto-revoke categories computed")
	return cats, nil
}

// NavigateToAppInfo opens the app-details screen of a package. sessionID ties
// the navigation to the caller's session.
func (m *Model) NavigateToAppInfo(ctx context.Context, packageName string, user device.UserID, sessionID uuid.UUID) error {
	return m.host.NavigateToAppInfo(ctx, packageName, user, sessionID)
}

// OpenApp launches a package if it has a launcher activity and reports
// whether it did.
func (m *Model) OpenApp(ctx context.Context, packageName string, user device.UserID) (bool, error) {
	return m.host.OpenApp(ctx, packageName, user)
}

// RequestUninstallApp starts the uninstall flow of a package.
func (m *Model) RequestUninstallApp(ctx context.Context, packageName string, user device.UserID) error {
	return m.host.RequestUninstallApp(ctx, packageName, user)
}

// DisableApp disables a package on behalf of the user.
func (m *Model) DisableApp(ctx context.Context, packageName string, user device.UserID) error {
	return m.host.DisableApp(ctx, packageName, user)
}

// Act removes an unused app the way its entry asks for: system apps are
// disabled, everything else is uninstalled.
func (m *Model) Act(ctx context.Context, info RevokedPackageInfo) error {
	if info.ShouldDisable {
		return m.DisableApp(ctx, info.PackageName, info.User)
	}
	return m.RequestUninstallApp(ctx, info.PackageName, info.User)
}

// WaitForCategories observes the model until the first categories value
// arrives or ctx is done.
func (m *Model) WaitForCategories(ctx context.Context) (Categories, error) {
	ch := make(chan Categories, 1)
	cancel := m.Observe(func(c Categories) {
		select {
		case ch <- c:
		default:
		}
	})
	defer cancel()

	select {
	case c := <-ch:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
