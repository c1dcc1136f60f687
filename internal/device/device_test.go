package device

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeManifest(t *testing.T, root string, user UserID, name, body string) string {
	t.Helper()
	path := ManifestPath(root, user, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create user dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestParseManifest(t *testing.T) {
	data := []byte(`
name: com.example.maps
system: true
first_install_time: 2025-03-01T10:00:00Z
launchable: true
permissions:
  - android.permission.ACCESS_FINE_LOCATION
`)
	pkg, err := ParseManifest(data, 10, "ignored")
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}

	if pkg.Name != "com.example.maps" {
		t.Errorf("Name = %q, want com.example.maps", pkg.Name)
	}
	if pkg.User != 10 {
		t.Errorf("User = %d, want 10", pkg.User)
	}
	if !pkg.IsSystem() {
		t.Error("IsSystem() = false, want true")
	}
	if !pkg.Launchable || !pkg.Enabled {
		t.Errorf("Launchable=%v Enabled=%v, want both true", pkg.Launchable, pkg.Enabled)
	}
	want := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if !pkg.FirstInstallTime.Equal(want) {
		t.Errorf("FirstInstallTime = %v, want %v", pkg.FirstInstallTime, want)
	}
	if len(pkg.RequestedPermissions) != 1 {
		t.Errorf("RequestedPermissions = %v, want 1 entry", pkg.RequestedPermissions)
	}
}

func TestParseManifest_FallbackNameAndDisabled(t *testing.T) {
	pkg, err := ParseManifest([]byte(`{"enabled": false}`), 0, "com.example.notes")
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if pkg.Name != "com.example.notes" {
		t.Errorf("Name = %q, want fallback name", pkg.Name)
	}
	if pkg.Enabled {
		t.Error("Enabled = true, want false")
	}
	if !pkg.FirstInstallTime.IsZero() {
		t.Errorf("FirstInstallTime = %v, want zero", pkg.FirstInstallTime)
	}
}

func TestParseManifest_Errors(t *testing.T) {
	if _, err := ParseManifest([]byte("name: [unclosed"), 0, "x"); err == nil {
		t.Error("expected error for malformed YAML")
	}
	if _, err := ParseManifest([]byte("system: true"), 0, ""); err == nil {
		t.Error("expected error when no package name is available")
	}
}

func TestReadManifests(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, 0, "com.b", "launchable: true")
	writeManifest(t, root, 0, "com.a", "system: true")
	writeManifest(t, root, 10, "com.c", "")
	if err := os.MkdirAll(filepath.Join(root, "not-a-user"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "0", "README.txt"), []byte("skip"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadManifests(root)
	if err != nil {
		t.Fatalf("ReadManifests() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d users, want 2", len(got))
	}
	if len(got[0]) != 2 || got[0][0].Name != "com.a" || got[0][1].Name != "com.b" {
		t.Errorf("user 0 packages = %+v, want com.a then com.b", got[0])
	}
	if len(got[10]) != 1 || got[10][0].User != 10 {
		t.Errorf("user 10 packages = %+v", got[10])
	}
}

func TestResolveManifestPath(t *testing.T) {
	root := "/data/manifests"
	tests := []struct {
		path     string
		wantUser UserID
		wantStem string
		wantOK   bool
	}{
		{"/data/manifests/10/com.example.yaml", 10, "com.example", true},
		{"/data/manifests/0/com.example.json", 0, "", false},
		{"/data/manifests/guest/com.example.yaml", 0, "", false},
		{"/data/manifests/10", 0, "", false},
		{"/elsewhere/10/com.example.yaml", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			user, stem, ok := ResolveManifestPath(root, tt.path)
			if ok != tt.wantOK || user != tt.wantUser || stem != tt.wantStem {
				t.Errorf("ResolveManifestPath(%q) = (%d, %q, %v), want (%d, %q, %v)",
					tt.path, user, stem, ok, tt.wantUser, tt.wantStem, tt.wantOK)
			}
		})
	}
}

type countingListener struct {
	mu    sync.Mutex
	names []string
}

func (c *countingListener) OnPackageUpdate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append(c.names, name)
}

func TestBroadcasts_Dispatch(t *testing.T) {
	var b Broadcasts
	l1 := &countingListener{}
	l2 := &countingListener{}

	b.AddListener(l1)
	b.AddListener(l1)
	b.AddListener(l2)
	if b.ListenerCount() != 2 {
		t.Fatalf("ListenerCount() = %d, want 2", b.ListenerCount())
	}

	b.Dispatch("com.example")
	b.RemoveListener(l2)
	b.Dispatch("com.other")

	if len(l1.names) != 2 {
		t.Errorf("l1 received %v, want 2 broadcasts", l1.names)
	}
	if len(l2.names) != 1 || l2.names[0] != "com.example" {
		t.Errorf("l2 received %v, want only com.example", l2.names)
	}
}
