// Package watcher keeps the device state in sync with the filesystem.
//
// Package manifests live under <manifests>/<userID>/<package>.yaml. The
// Watcher watches that tree with fsnotify, imports created or edited
// manifests through the scanner, removes packages whose manifest was
// deleted, and dispatches a package broadcast for every change. A usage log
// of "<unix_nano>,<user>,<package>" lines is ingested the same way.
//
// Key features:
//   - Event driven, nothing is polled
//   - Crash-safe usage log offset tracking (temp file + rename pattern)
//   - Batched SQLite inserts (single transaction per pass)
//   - New user directories are picked up while running
//
// Example usage:
//
//	w, err := watcher.New(watcher.Options{
//		Store:      st,
//		Scanner:    scanner.New(st, manifestDir),
//		Broadcasts: broadcasts,
//		UsageLog:   usageLog,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := w.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer w.Stop()
package watcher
