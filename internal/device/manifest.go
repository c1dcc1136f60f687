package device

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestExt is the file extension of package manifests.
const ManifestExt = ".yaml"

// manifest is the on-disk description of one installed package, stored at
// <root>/<userID>/<package>.yaml. JSON manifests parse as well.
type manifest struct {
	Name             string    `yaml:"name"`
	System           bool      `yaml:"system"`
	FirstInstallTime time.Time `yaml:"first_install_time"`
	Launchable       bool      `yaml:"launchable"`
	Enabled          *bool     `yaml:"enabled"`
	Permissions      []string  `yaml:"permissions"`
}

// ParseManifest decodes a manifest for user. fallbackName is used when the
// manifest does not name the package itself.
func ParseManifest(data []byte, user UserID, fallbackName string) (PackageInfo, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return PackageInfo{}, fmt.Errorf("failed to parse manifest: %w", err)
	}

	name := strings.TrimSpace(m.Name)
	if name == "" {
		name = fallbackName
	}
	if name == "" {
		return PackageInfo{}, fmt.Errorf("manifest has no package name")
	}

	pkg := PackageInfo{
		Name:                 name,
		User:                 user,
		FirstInstallTime:     m.FirstInstallTime,
		RequestedPermissions: m.Permissions,
		Launchable:           m.Launchable,
		Enabled:              true,
	}
	if m.System {
		pkg.Flags |= FlagSystem
	}
	if m.Enabled != nil {
		pkg.Enabled = *m.Enabled
	}
	return pkg, nil
}

// ReadManifest reads and parses the manifest at path for user.
func ReadManifest(path string, user UserID) (PackageInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PackageInfo{}, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	pkg, err := ParseManifest(data, user, strings.TrimSuffix(filepath.Base(path), ManifestExt))
	if err != nil {
		return PackageInfo{}, fmt.Errorf("%s: %w", path, err)
	}
	return pkg, nil
}

// ReadManifests reads every manifest under root, grouped by user. Directories
// whose name is not a user id are ignored. Users without packages are present
// with an empty list.
func ReadManifests(root string) (map[UserID][]PackageInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest root %s: %w", root, err)
	}

	result := make(map[UserID][]PackageInfo)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		user, ok := ParseUserDir(entry.Name())
		if !ok {
			continue
		}

		userDir := filepath.Join(root, entry.Name())
		files, err := os.ReadDir(userDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read user directory %s: %w", userDir, err)
		}

		pkgs := []PackageInfo{}
		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != ManifestExt {
				continue
			}
			pkg, err := ReadManifest(filepath.Join(userDir, f.Name()), user)
			if err != nil {
				return nil, err
			}
			pkgs = append(pkgs, pkg)
		}
		sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
		result[user] = pkgs
	}

	return result, nil
}

// ParseUserDir returns the user id encoded in a manifest directory name.
func ParseUserDir(name string) (UserID, bool) {
	id, err := strconv.Atoi(name)
	if err != nil || id < 0 {
		return 0, false
	}
	return UserID(id), true
}

// ManifestPath returns where the manifest of packageName for user lives under root.
func ManifestPath(root string, user UserID, packageName string) string {
	return filepath.Join(root, user.String(), packageName+ManifestExt)
}

// ResolveManifestPath maps a manifest file path back to its user and file
// stem. ok is false for paths that are not manifests directly under a user
// directory of root.
func ResolveManifestPath(root, path string) (user UserID, stem string, ok bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0, "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 || filepath.Ext(parts[1]) != ManifestExt {
		return 0, "", false
	}
	user, ok = ParseUserDir(parts[0])
	if !ok {
		return 0, "", false
	}
	return user, strings.TrimSuffix(parts[1], ManifestExt), true
}
