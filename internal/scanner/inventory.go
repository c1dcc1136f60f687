package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/store"
)

// Change describes what a sync did to one package.
type Change int

const (
	Unchanged Change = iota
	Added
	Updated
	Removed
)

func (c Change) String() string {
	switch c {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	}
	return "unchanged"
}

// Result summarizes a full manifest scan.
type Result struct {
	Users   []device.UserID
	Added   []device.PackageKey
	Updated []device.PackageKey
	Removed []device.PackageKey
}

// Changed returns every package the scan touched.
func (r *Result) Changed() []device.PackageKey {
	out := make([]device.PackageKey, 0, len(r.Added)+len(r.Updated)+len(r.Removed))
	out = append(out, r.Added...)
	out = append(out, r.Updated...)
	return append(out, r.Removed...)
}

// ScanManifests makes the store mirror the manifest tree: every manifest is
// imported, packages without a manifest are removed, and users whose
// directory is gone are dropped.
func (s *Scanner) ScanManifests(ctx context.Context) (*Result, error) {
	manifests, err := device.ReadManifests(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifests: %w", err)
	}

	known, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := &Result{}
	for _, user := range known {
		if _, ok := manifests[user]; ok {
			continue
		}
		existing, err := s.store.ListPackages(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("failed to list packages of user %s: %w", user, err)
		}
		if err := s.store.DeleteUser(user); err != nil {
			return nil, err
		}
		for _, pkg := range existing {
			result.Removed = append(result.Removed, pkg.Key())
		}
	}

	for user, pkgs := range manifests {
		result.Users = append(result.Users, user)
		if err := s.store.InsertUser(user); err != nil {
			return nil, err
		}

		existing, err := s.store.ListPackages(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("failed to list packages of user %s: %w", user, err)
		}
		stale := make(map[string]device.PackageInfo, len(existing))
		for _, pkg := range existing {
			stale[pkg.Name] = pkg
		}

		for _, pkg := range pkgs {
			prev, ok := stale[pkg.Name]
			delete(stale, pkg.Name)
			if ok && samePackage(prev, pkg) {
				continue
			}
			if err := s.store.UpsertPackage(pkg); err != nil {
				return nil, fmt.Errorf("failed to import package %s: %w", pkg.Key(), err)
			}
			if ok {
				result.Updated = append(result.Updated, pkg.Key())
			} else {
				result.Added = append(result.Added, pkg.Key())
			}
		}

		for name := range stale {
			if err := s.store.DeletePackage(user, name); err != nil {
				return nil, fmt.Errorf("failed to remove package %s@%s: %w", name, user, err)
			}
			result.Removed = append(result.Removed, device.PackageKey{PackageName: name, User: user})
		}
	}

	slices.Sort(result.Users)
	for _, keys := range [][]device.PackageKey{result.Added, result.Updated, result.Removed} {
		sortKeys(keys)
	}

	log.Debug().
		Int("users", len(result.Users)).
		Int("added", len(result.Added)).
		Int("updated", len(result.Updated)).
		Int("removed", len(result.Removed)).
		Msg("manifest scan complete")

	return result, nil
}

// SyncFile imports or removes the package described by a single manifest
// path. A missing file removes the package named by the file stem.
func (s *Scanner) SyncFile(ctx context.Context, path string) (device.PackageKey, Change, error) {
	user, stem, ok := device.ResolveManifestPath(s.root, path)
	if !ok {
		return device.PackageKey{}, Unchanged, fmt.Errorf("%s is not a manifest under %s", path, s.root)
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		key := device.PackageKey{PackageName: stem, User: user}
		err := s.store.DeletePackage(user, stem)
		if errors.Is(err, store.ErrNotFound) {
			return key, Unchanged, nil
		}
		if err != nil {
			return key, Unchanged, err
		}
		return key, Removed, nil
	}

	pkg, err := device.ReadManifest(path, user)
	if err != nil {
		return device.PackageKey{}, Unchanged, err
	}

	prev, err := s.store.GetPackage(ctx, user, pkg.Name)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return pkg.Key(), Unchanged, err
	}
	existed := err == nil
	if existed && samePackage(prev, pkg) {
		return pkg.Key(), Unchanged, nil
	}

	if err := s.store.UpsertPackage(pkg); err != nil {
		return pkg.Key(), Unchanged, fmt.Errorf("failed to import package %s: %w", pkg.Key(), err)
	}
	if existed {
		return pkg.Key(), Updated, nil
	}
	return pkg.Key(), Added, nil
}

func samePackage(a, b device.PackageInfo) bool {
	return a.Name == b.Name &&
		a.User == b.User &&
		a.Flags == b.Flags &&
		a.FirstInstallTime.Equal(b.FirstInstallTime) &&
		a.Launchable == b.Launchable &&
		a.Enabled == b.Enabled &&
		slices.Equal(a.RequestedPermissions, b.RequestedPermissions)
}

func sortKeys(keys []device.PackageKey) {
	slices.SortFunc(keys, func(a, b device.PackageKey) int {
		if a.PackageName != b.PackageName {
			if a.PackageName < b.PackageName {
				return -1
			}
			return 1
		}
		return int(a.User) - int(b.User)
	})
}
