package watcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/store"
)

const maxUsageLogLinesPerPass = 10_000

// AppendUsage appends one usage entry to the log at logPath, creating it if
// needed. Entries are processed by ProcessUsageLog.
//
// Log format (one entry per line):
//
//	<unix_nano>,<user>,<package>
//
// Example:
//
//	1709012345678901234,10,com.example.maps
func AppendUsage(logPath string, user device.UserID, packageName string, at time.Time) error {
	if strings.ContainsAny(packageName, ",\n") || packageName == "" {
		return fmt.Errorf("invalid package name %q", packageName)
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create usage log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open usage log: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d,%d,%s\n", at.UnixNano(), int(user), packageName); err != nil {
		return fmt.Errorf("failed to append usage entry: %w", err)
	}
	return nil
}

// ProcessUsageLog reads entries appended to logPath since the last processed
// offset and inserts them as usage events. Entries for packages the store
// does not know are skipped. The log is drained in batches of at most
// maxUsageLogLinesPerPass events, one transaction per batch, until no entry is
// pending. It returns the number of events inserted, and nil when the log
// does not exist yet.
//
// The offset is kept next to the log in <logPath>.offset and only advances
// after a successful commit.
func ProcessUsageLog(ctx context.Context, st *store.Store, logPath string) (int, error) {
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return 0, nil
	}

	known, err := knownPackages(ctx, st)
	if err != nil {
		return 0, fmt.Errorf("usage log: list packages: %w", err)
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := ingestUsageBatch(ctx, st, logPath, known)
		total += n
		if err != nil {
			return total, err
		}
		if n < maxUsageLogLinesPerPass {
			return total, nil
		}
	}
}

// ingestUsageBatch inserts up to maxUsageLogLinesPerPass pending events and
// advances the offset past every line it consumed.
func ingestUsageBatch(ctx context.Context, st *store.Store, logPath string, known map[device.PackageKey]struct{}) (int, error) {
	offsetPath := logPath + ".offset"

	offset, err := readOffset(offsetPath)
	if err != nil {
		return 0, fmt.Errorf("usage log: read offset: %w", err)
	}

	f, err := os.Open(logPath)
	if err != nil {
		return 0, fmt.Errorf("usage log: open: %w", err)
	}
	defer f.Close()

	if offset > 0 {
		info, err := f.Stat()
		if err == nil && info.Size() < offset {
			// Log was truncated or rotated.
			log.Warn().Int64("offset", offset).Int64("size", info.Size()).Msg("usage log shrank, rereading from start")
			offset = 0
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return 0, fmt.Errorf("usage log: seek: %w", err)
		}
	}

	var events []store.UsageEvent
	newOffset := offset

	reader := bufio.NewReader(f)
	for len(events) < maxUsageLogLinesPerPass {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			// A partial trailing line is left for the next pass.
			break
		}
		if err != nil {
			return 0, fmt.Errorf("usage log: read: %w", err)
		}
		newOffset += int64(len(line))

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		event, ok := parseUsageLogLine(line)
		if !ok {
			log.Warn().Str("line", line).Msg("skipping malformed usage log line")
			continue
		}
		if _, ok := known[device.PackageKey{PackageName: event.Package, User: event.User}]; !ok {
			log.Debug().Str("package", event.Package).Stringer("user", event.User).Msg("usage for unknown package")
			continue
		}
		events = append(events, event)
	}

	if len(events) == 0 {
		// Advance past skipped lines.
		if newOffset != offset {
			return 0, writeOffsetAtomic(offsetPath, newOffset)
		}
		return 0, nil
	}

	tx, err := st.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("usage log: begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO usage_events (user_id, package, timestamp) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("usage log: prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, int(e.User), e.Package, e.Timestamp.UTC().Format(time.RFC3339)); err != nil {
			tx.Rollback() //nolint:errcheck
			return 0, fmt.Errorf("usage log: insert event for %s@%s: %w", e.Package, e.User, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("usage log: commit: %w", err)
	}

	if err := writeOffsetAtomic(offsetPath, newOffset); err != nil {
		return len(events), err
	}
	return len(events), nil
}

func knownPackages(ctx context.Context, st *store.Store) (map[device.PackageKey]struct{}, error) {
	users, err := st.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[device.PackageKey]struct{})
	for _, user := range users {
		pkgs, err := st.ListPackages(ctx, user)
		if err != nil {
			return nil, err
		}
		for _, pkg := range pkgs {
			known[pkg.Key()] = struct{}{}
		}
	}
	return known, nil
}

// parseUsageLogLine parses a line of the form "<unix_nano>,<user>,<package>".
func parseUsageLogLine(line string) (store.UsageEvent, bool) {
	parts := strings.SplitN(line, ",", 3)
	if len(parts) != 3 || parts[2] == "" {
		return store.UsageEvent{}, false
	}

	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || ts <= 0 {
		return store.UsageEvent{}, false
	}
	user, ok := device.ParseUserDir(parts[1])
	if !ok {
		return store.UsageEvent{}, false
	}

	return store.UsageEvent{
		Package:   parts[2],
		User:      user,
		Timestamp: time.Unix(0, ts),
	}, true
}

// readOffset reads the byte offset from the offset tracking file.
// Returns 0 if the file does not exist.
func readOffset(offsetPath string) (int64, error) {
	data, err := os.ReadFile(offsetPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, nil
	}
	offset, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse offset %q: %w", s, err)
	}
	return offset, nil
}

// writeOffsetAtomic writes newOffset to offsetPath via a temp-file rename.
func writeOffsetAtomic(offsetPath string, newOffset int64) error {
	tmpPath := offsetPath + ".tmp"

	if err := os.WriteFile(tmpPath, []byte(strconv.FormatInt(newOffset, 10)), 0600); err != nil {
		return fmt.Errorf("write temp offset file: %w", err)
	}
	if err := os.Rename(tmpPath, offsetPath); err != nil {
		return fmt.Errorf("rename offset file: %w", err)
	}
	return nil
}
