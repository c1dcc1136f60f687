package device

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/autorevoke/internal/metrics"
)

// PackageListener is notified whenever any package is installed, removed or updated.
type PackageListener interface {
	OnPackageUpdate(packageName string)
}

// Broadcasts fans package change notifications out to registered listeners.
// The zero value is ready to use.
type Broadcasts struct {
	mu        sync.Mutex
	listeners map[PackageListener]struct{}
}

// NewBroadcasts creates an empty receiver.
func NewBroadcasts() *Broadcasts {
	return &Broadcasts{}
}

// AddListener registers l for every package change. Adding twice is a no-op.
func (b *Broadcasts) AddListener(l PackageListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[PackageListener]struct{})
	}
	b.listeners[l] = struct{}{}
}

// RemoveListener unregisters l.
func (b *Broadcasts) RemoveListener(l PackageListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, l)
}

// ListenerCount returns the number of registered listeners.
func (b *Broadcasts) ListenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Dispatch notifies every listener that packageName changed. Listeners are
// called outside the lock, so they may add or remove listeners.
func (b *Broadcasts) Dispatch(packageName string) {
	b.mu.Lock()
	listeners := make([]PackageListener, 0, len(b.listeners))
	for l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.Unlock()

	metrics.PackageBroadcastsTotal.Inc()
	log.Debug().Str("package", packageName).Int("listeners", len(listeners)).Msg("package broadcast")

	for _, l := range listeners {
		l.OnPackageUpdate(packageName)
	}
}
