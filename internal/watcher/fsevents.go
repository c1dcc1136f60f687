package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/autorevoke/internal/device"
	"github.com/blackwell-systems/autorevoke/internal/scanner"
	"github.com/blackwell-systems/autorevoke/internal/store"
)

// Options configures a Watcher.
type Options struct {
	Store      *store.Store
	Scanner    *scanner.Scanner
	Broadcasts *device.Broadcasts

	// UsageLog is the usage log to ingest. Empty disables usage ingestion.
	UsageLog string
	// OnUsage, if set, is called after usage events were inserted.
	OnUsage func(events int)
}

// Watcher turns filesystem changes into device state changes. Manifest
// edits under the scanner root are imported and announced as package
// broadcasts, and lines appended to the usage log become usage events.
type Watcher struct {
	store      *store.Store
	scanner    *scanner.Scanner
	broadcasts *device.Broadcasts
	usageLog   string
	onUsage    func(int)

	fsw    *fsnotify.Watcher
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Watcher instance.
func New(opts Options) (*Watcher, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if opts.Scanner == nil {
		return nil, fmt.Errorf("scanner cannot be nil")
	}
	if opts.Broadcasts == nil {
		return nil, fmt.Errorf("broadcasts cannot be nil")
	}

	return &Watcher{
		store:      opts.Store,
		scanner:    opts.Scanner,
		broadcasts: opts.Broadcasts,
		usageLog:   opts.UsageLog,
		onUsage:    opts.OnUsage,
	}, nil
}

// Start performs an initial manifest scan and usage log pass, then watches
// for changes until Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	root := w.scanner.Root()
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	if err := w.watchUserDirs(fsw, root); err != nil {
		fsw.Close()
		return err
	}
	if w.usageLog != "" {
		dir := filepath.Dir(w.usageLog)
		if err := os.MkdirAll(dir, 0755); err != nil {
			fsw.Close()
			return fmt.Errorf("failed to create usage log directory: %w", err)
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	w.fsw = fsw
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.rescan()
	w.ingestUsage()

	w.wg.Add(1)
	go w.run()

	log.Info().Str("manifests", root).Str("usage_log", w.usageLog).Msg("watcher started")
	return nil
}

// Stop halts the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) watchUserDirs(fsw *fsnotify.Watcher, root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", root, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, ok := device.ParseUserDir(entry.Name()); !ok {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return nil
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if w.usageLog != "" && filepath.Clean(event.Name) == filepath.Clean(w.usageLog) {
		if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
			w.ingestUsage()
		}
		return
	}

	root := w.scanner.Root()
	if filepath.Dir(event.Name) == filepath.Clean(root) {
		// A user directory appeared or went away.
		if _, ok := device.ParseUserDir(filepath.Base(event.Name)); !ok {
			return
		}
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.fsw.Add(event.Name); err != nil {
					log.Error().Err(err).Str("dir", event.Name).Msg("failed to watch user directory")
				}
			}
		}
		w.rescan()
		return
	}

	if _, _, ok := device.ResolveManifestPath(root, event.Name); !ok {
		return
	}
	if event.Op == fsnotify.Chmod {
		return
	}

	key, change, err := w.scanner.SyncFile(w.ctx, event.Name)
	if err != nil {
		log.Error().Err(err).Str("path", event.Name).Msg("failed to sync manifest")
		return
	}
	if change == scanner.Unchanged {
		return
	}

	log.Info().Str("package", key.PackageName).Stringer("user", key.User).Stringer("change", change).Msg("package changed")
	w.broadcasts.Dispatch(key.PackageName)
}

func (w *Watcher) rescan() {
	result, err := w.scanner.ScanManifests(w.ctx)
	if err != nil {
		log.Error().Err(err).Msg("manifest scan failed")
		return
	}

	dispatched := make(map[string]bool)
	for _, key := range result.Changed() {
		if dispatched[key.PackageName] {
			continue
		}
		dispatched[key.PackageName] = true
		w.broadcasts.Dispatch(key.PackageName)
	}
}

func (w *Watcher) ingestUsage() {
	if w.usageLog == "" {
		return
	}

	n, err := ProcessUsageLog(w.ctx, w.store, w.usageLog)
	if err != nil {
		log.Error().Err(err).Str("path", w.usageLog).Msg("usage log processing failed")
	}
	if n > 0 {
		log.Debug().Int("events", n).Msg("usage events ingested")
		if w.onUsage != nil {
			w.onUsage(n)
		}
	}
}
