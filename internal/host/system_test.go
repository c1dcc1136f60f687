package host

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/store"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type recordingListener struct{ names []string }

func (r *recordingListener) OnPackageUpdate(name string) { r.names = append(r.names, name) }

func setupSystem(t *testing.T) (*System, *store.Store, *device.Broadcasts) {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.CreateSchema())

	b := device.NewBroadcasts()
	sys, err := New(st, b, clockwork.NewFakeClockAt(testNow))
	require.NoError(t, err)
	t.Cleanup(sys.Close)

	return sys, st, b
}

func TestSystem_QueriesDelegateToStore(t *testing.T) {
	sys, st, _ := setupSystem(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertPackage(device.PackageInfo{Name: "com.a", User: 0}))
	require.NoError(t, st.UpsertPackage(device.PackageInfo{Name: "com.a", User: 10}))
	require.NoError(t, st.InsertUsageEvent(&store.UsageEvent{Package: "com.a", User: 10, Timestamp: testNow.Add(-time.Hour)}))
	require.NoError(t, st.InsertRevoked(&store.RevokedPermission{Package: "com.a", User: 0, PermissionGroup: "LOCATION", RevokedAt: testNow}))
	require.NoError(t, st.InsertRevoked(&store.RevokedPermission{Package: "com.a", User: 0, PermissionGroup: "CAMERA", RevokedAt: testNow}))

	users, err := sys.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []device.UserID{0, 10}, users)

	pkgs, err := sys.InstalledPackages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pkgs, 1)

	stats, err := sys.QueryUsageStats(ctx, 10, testNow.Add(-24*time.Hour), testNow)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, device.PackageKey{PackageName: "com.a", User: 10}, stats[0].Key())

	groups, err := sys.AutoRevokedGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[device.PackageKey][]string{
		{PackageName: "com.a", User: 0}: {"CAMERA", "LOCATION"},
	}, groups)
}

func TestSystem_CanLaunchIsMemoizedUntilBroadcast(t *testing.T) {
	sys, st, b := setupSystem(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertPackage(device.PackageInfo{Name: "com.a", User: 0, Launchable: true, Enabled: true}))

	ok, err := sys.CanLaunch(ctx, "com.a", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	// A direct store change is invisible until a broadcast purges the memo.
	require.NoError(t, st.SetPackageEnabled(0, "com.a", false))
	ok, _ = sys.CanLaunch(ctx, "com.a", 0)
	assert.True(t, ok)

	b.Dispatch("com.a")
	ok, _ = sys.CanLaunch(ctx, "com.a", 0)
	assert.False(t, ok)

	ok, err = sys.CanLaunch(ctx, "missing", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSystem_CanLaunchDropsAnswerReadAcrossBroadcast(t *testing.T) {
	sys, _, b := setupSystem(t)
	key := device.PackageKey{PackageName: "com.a", User: 0}

	// An answer read before a broadcast must not land in the memo after it.
	epoch := sys.launchEpoch()
	b.Dispatch("com.a")
	sys.remember(key, true, epoch)
	assert.False(t, sys.launchable.Contains(key))

	sys.remember(key, true, sys.launchEpoch())
	assert.True(t, sys.launchable.Contains(key))
}

func TestSystem_Actions(t *testing.T) {
	sys, st, b := setupSystem(t)
	ctx := context.Background()

	listener := &recordingListener{}
	b.AddListener(listener)

	require.NoError(t, st.UpsertPackage(device.PackageInfo{Name: "com.user", User: 0, Launchable: true, Enabled: true}))
	require.NoError(t, st.UpsertPackage(device.PackageInfo{Name: "com.sys", User: 0, Flags: device.FlagSystem, Enabled: true}))

	session := uuid.New()
	require.NoError(t, sys.NavigateToAppInfo(ctx, "com.user", 0, session))

	opened, err := sys.OpenApp(ctx, "com.user", 0)
	require.NoError(t, err)
	assert.True(t, opened)

	opened, err = sys.OpenApp(ctx, "com.sys", 0)
	require.NoError(t, err)
	assert.False(t, opened, "system package without launcher entry")

	err = sys.RequestUninstallApp(ctx, "com.sys", 0)
	assert.ErrorIs(t, err, ErrSystemPackage)

	require.NoError(t, sys.DisableApp(ctx, "com.sys", 0))
	pkg, err := st.GetPackage(ctx, 0, "com.sys")
	require.NoError(t, err)
	assert.False(t, pkg.Enabled)

	require.NoError(t, sys.RequestUninstallApp(ctx, "com.user", 0))
	_, err = st.GetPackage(ctx, 0, "com.user")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Equal(t, []string{"com.sys", "com.user"}, listener.names)

	actions, err := st.ListActions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, actions, 4)
	assert.Equal(t, ActionUninstall, actions[0].Action)
	assert.Equal(t, ActionDisable, actions[1].Action)
	assert.Equal(t, ActionOpen, actions[2].Action)
	assert.Equal(t, ActionInfo, actions[3].Action)
	assert.Equal(t, session.String(), actions[3].SessionID)
	assert.True(t, actions[3].Timestamp.Equal(testNow))
}

func TestSystem_NavigateToAppInfoUnknownPackage(t *testing.T) {
	sys, _, _ := setupSystem(t)

	err := sys.NavigateToAppInfo(context.Background(), "ghost", 0, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
