package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blackwell-systems/autorevoke/internal/device"
)

// formatTime renders t the way every timestamp column stores it. All values
// are UTC so that lexical order matches time order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// User operations

// InsertUser registers a user. Inserting an existing user is a no-op.
func (s *Store) InsertUser(user device.UserID) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO users (id) VALUES (?)`, int(user))
	if err != nil {
		return fmt.Errorf("failed to insert user %s: %w", user, checkSchema(err))
	}
	return nil
}

// DeleteUser removes a user along with all of their packages.
func (s *Store) DeleteUser(user device.UserID) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, int(user))
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", user, checkSchema(err))
	}
	return nil
}

// ListUsers returns every known user in ascending id order.
func (s *Store) ListUsers(ctx context.Context) ([]device.UserID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", checkSchema(err))
	}
	defer rows.Close()

	users := []device.UserID{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, device.UserID(id))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// Package operations

const packageColumns = `user_id, name, flags, first_install_time, launchable, enabled, permissions`

// UpsertPackage inserts a package or updates the existing row in place, so
// rows that reference it survive. The owning user is created if needed.
func (s *Store) UpsertPackage(pkg device.PackageInfo) error {
	if err := s.InsertUser(pkg.User); err != nil {
		return err
	}

	permissions := pkg.RequestedPermissions
	if permissions == nil {
		permissions = []string{}
	}
	permissionsJSON, err := json.Marshal(permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO packages (` + packageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, name) DO UPDATE SET
			flags = excluded.flags,
			first_install_time = excluded.first_install_time,
			launchable = excluded.launchable,
			enabled = excluded.enabled,
			permissions = excluded.permissions
	`

	_, err = s.db.Exec(query,
		int(pkg.User),
		pkg.Name,
		pkg.Flags,
		formatTime(pkg.FirstInstallTime),
		pkg.Launchable,
		pkg.Enabled,
		string(permissionsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert package %s: %w", pkg.Key(), checkSchema(err))
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPackage(row rowScanner) (device.PackageInfo, error) {
	var pkg device.PackageInfo
	var user int
	var installed sql.NullString
	var permissionsJSON sql.NullString

	if err := row.Scan(&user, &pkg.Name, &pkg.Flags, &installed, &pkg.Launchable, &pkg.Enabled, &permissionsJSON); err != nil {
		return pkg, err
	}
	pkg.User = device.UserID(user)

	var err error
	pkg.FirstInstallTime, err = parseTime(installed.String)
	if err != nil {
		return pkg, fmt.Errorf("failed to parse first_install_time for %s: %w", pkg.Key(), err)
	}

	if permissionsJSON.Valid && permissionsJSON.String != "" {
		if err := json.Unmarshal([]byte(permissionsJSON.String), &pkg.RequestedPermissions); err != nil {
			return pkg, fmt.Errorf("failed to unmarshal permissions for %s: %w", pkg.Key(), err)
		}
	}

	return pkg, nil
}

// GetPackage retrieves one package of one user.
func (s *Store) GetPackage(ctx context.Context, user device.UserID, name string) (device.PackageInfo, error) {
	query := `SELECT ` + packageColumns + ` FROM packages WHERE user_id = ? AND name = ?`

	pkg, err := scanPackage(s.db.QueryRowContext(ctx, query, int(user), name))
	if errors.Is(err, sql.ErrNoRows) {
		return device.PackageInfo{}, fmt.Errorf("package %s@%s: %w", name, user, ErrNotFound)
	}
	if err != nil {
		return device.PackageInfo{}, fmt.Errorf("failed to get package %s@%s: %w", name, user, checkSchema(err))
	}

	return pkg, nil
}

// ListPackages returns the packages installed for user, ordered by name.
func (s *Store) ListPackages(ctx context.Context, user device.UserID) ([]device.PackageInfo, error) {
	query := `SELECT ` + packageColumns + ` FROM packages WHERE user_id = ? ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, int(user))
	if err != nil {
		return nil, fmt.Errorf("failed to list packages for user %s: %w", user, checkSchema(err))
	}
	defer rows.Close()

	packages := []device.PackageInfo{}
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan package row: %w", err)
		}
		packages = append(packages, pkg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packages: %w", err)
	}

	return packages, nil
}

// DeletePackage removes a package. Its usage events and revoked groups go
// with it.
func (s *Store) DeletePackage(user device.UserID, name string) error {
	result, err := s.db.Exec(`DELETE FROM packages WHERE user_id = ? AND name = ?`, int(user), name)
	if err != nil {
		return fmt.Errorf("failed to delete package %s@%s: %w", name, user, checkSchema(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("package %s@%s: %w", name, user, ErrNotFound)
	}

	return nil
}

// SetPackageEnabled flips the enabled state of a package.
func (s *Store) SetPackageEnabled(user device.UserID, name string, enabled bool) error {
	result, err := s.db.Exec(`UPDATE packages SET enabled = ? WHERE user_id = ? AND name = ?`, enabled, int(user), name)
	if err != nil {
		return fmt.Errorf("failed to update package %s@%s: %w", name, user, checkSchema(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("package %s@%s: %w", name, user, ErrNotFound)
	}

	return nil
}

// Usage event operations

// InsertUsageEvent records a package usage event.
func (s *Store) InsertUsageEvent(event *UsageEvent) error {
	query := `
		INSERT INTO usage_events (user_id, package, timestamp)
		VALUES (?, ?, ?)
	`

	_, err := s.db.Exec(query, int(event.User), event.Package, formatTime(event.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to insert usage event for %s@%s: %w", event.Package, event.User, checkSchema(err))
	}

	return nil
}

// LastUsageBetween returns, per package of user, the most recent usage inside
// [begin, end]. Packages without usage in that window are absent.
func (s *Store) LastUsageBetween(ctx context.Context, user device.UserID, begin, end time.Time) ([]device.UsageStat, error) {
	query := `
		SELECT package, MAX(timestamp)
		FROM usage_events
		WHERE user_id = ? AND timestamp >= ? AND timestamp <= ?
		GROUP BY package
		ORDER BY package
	`

	rows, err := s.db.QueryContext(ctx, query, int(user), formatTime(begin), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query usage for user %s: %w", user, checkSchema(err))
	}
	defer rows.Close()

	stats := []device.UsageStat{}
	for rows.Next() {
		var stat device.UsageStat
		var timestamp string
		if err := rows.Scan(&stat.PackageName, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}

		stat.User = user
		stat.LastTimeUsed, err = parseTime(timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp for %s: %w", stat.PackageName, err)
		}
		stats = append(stats, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage rows: %w", err)
	}

	return stats, nil
}

// GetEventCount returns the total number of usage events recorded.
func (s *Store) GetEventCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM usage_events").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get event count: %w", checkSchema(err))
	}
	return count, nil
}

// Auto-revoke operations

// InsertRevoked records a revoked permission group. Recording the same group
// twice keeps the first revocation time.
func (s *Store) InsertRevoked(r *RevokedPermission) error {
	query := `
		INSERT OR IGNORE INTO auto_revoked (user_id, package, permission_group, revoked_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(query, int(r.User), r.Package, r.PermissionGroup, formatTime(r.RevokedAt))
	if err != nil {
		return fmt.Errorf("failed to insert revoked group %s for %s@%s: %w", r.PermissionGroup, r.Package, r.User, checkSchema(err))
	}

	return nil
}

// DeleteRevoked clears every revoked group of a package and reports how many
// rows went away.
func (s *Store) DeleteRevoked(user device.UserID, name string) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM auto_revoked WHERE user_id = ? AND package = ?`, int(user), name)
	if err != nil {
		return 0, fmt.Errorf("failed to delete revoked groups for %s@%s: %w", name, user, checkSchema(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// ListRevoked returns every revoked group across all users, ordered by
// package, user and group.
func (s *Store) ListRevoked(ctx context.Context) ([]*RevokedPermission, error) {
	query := `
		SELECT user_id, package, permission_group, revoked_at
		FROM auto_revoked
		ORDER BY package, user_id, permission_group
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list revoked groups: %w", checkSchema(err))
	}
	defer rows.Close()

	var revoked []*RevokedPermission
	for rows.Next() {
		var r RevokedPermission
		var user int
		var revokedAt string
		if err := rows.Scan(&user, &r.Package, &r.PermissionGroup, &revokedAt); err != nil {
			return nil, fmt.Errorf("failed to scan revoked row: %w", err)
		}

		r.User = device.UserID(user)
		r.RevokedAt, err = parseTime(revokedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse revoked_at for %s: %w", r.Package, err)
		}
		revoked = append(revoked, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revoked rows: %w", err)
	}

	return revoked, nil
}

// Action journal operations

// InsertAction appends a row to the action journal and returns its ID.
func (s *Store) InsertAction(a *Action) (int64, error) {
	query := `
		INSERT INTO actions (action, user_id, package, session_id, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query, a.Action, int(a.User), a.Package, a.SessionID, formatTime(a.Timestamp))
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s action for %s@%s: %w", a.Action, a.Package, a.User, checkSchema(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get action ID: %w", err)
	}

	return id, nil
}

// ListActions returns the most recent journal rows, newest first. A limit of
// zero or less returns all rows.
func (s *Store) ListActions(ctx context.Context, limit int) ([]*Action, error) {
	query := `
		SELECT id, action, user_id, package, COALESCE(session_id, ''), timestamp
		FROM actions
		ORDER BY id DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", checkSchema(err))
	}
	defer rows.Close()

	var actions []*Action
	for rows.Next() {
		var a Action
		var user int
		var timestamp string
		if err := rows.Scan(&a.ID, &a.Action, &user, &a.Package, &a.SessionID, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan action row: %w", err)
		}

		a.User = device.UserID(user)
		a.Timestamp, err = parseTime(timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp for action %d: %w", a.ID, err)
		}
		actions = append(actions, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actions: %w", err)
	}

	return actions, nil
}
