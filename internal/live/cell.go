package live

import (
	"sync"
	"sync/atomic"

	"github.com/blackwell-systems/autorevoke/internal/metrics"
)

// Observable is the type-erased view of a cell used by mediators.
type Observable interface {
	IsInitialized() bool
	ObserveChanges(fn func()) (cancel func())
}

type observer[T any] struct {
	fn        func(T)
	cancelled atomic.Bool
	version   uint64 // last version delivered; only touched on the loop
}

// Cell holds a value and notifies observers on the loop whenever a new value
// is committed. The zero value is not usable; use NewCell.
type Cell[T any] struct {
	loop *Loop
	name string

	mu          sync.RWMutex
	value       T
	initialized bool
	version     uint64
	observers   []*observer[T]
	onActive    []func()
	onInactive  []func()
}

// NewCell creates an empty, uninitialized cell bound to loop.
func NewCell[T any](loop *Loop, name string) *Cell[T] {
	return &Cell[T]{loop: loop, name: name}
}

// Name returns the cell's name as used in logs and metrics.
func (c *Cell[T]) Name() string {
	return c.name
}

// Loop returns the loop the cell commits values on.
func (c *Cell[T]) Loop() *Loop {
	return c.loop
}

// Value returns the current value and whether one has ever been committed.
// Callers must treat the returned value as read-only.
func (c *Cell[T]) Value() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.initialized
}

// IsInitialized reports whether a value has been committed.
func (c *Cell[T]) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// HasActiveObservers reports whether at least one observer is registered.
func (c *Cell[T]) HasActiveObservers() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.observers) > 0
}

// OnActive registers fn to run on the loop when the cell gains its first observer.
func (c *Cell[T]) OnActive(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onActive = append(c.onActive, fn)
}

// OnInactive registers fn to run on the loop when the cell loses its last observer.
func (c *Cell[T]) OnInactive(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onInactive = append(c.onInactive, fn)
}

// Observe registers fn to receive every committed value on the loop. If the
// cell already holds a value, fn receives it shortly after registration.
// The returned func unregisters fn; calling it more than once is a no-op.
func (c *Cell[T]) Observe(fn func(T)) (cancel func()) {
	obs := &observer[T]{fn: fn}

	c.mu.Lock()
	c.observers = append(c.observers, obs)
	var hooks []func()
	if len(c.observers) == 1 {
		hooks = append(hooks, c.onActive...)
	}
	c.mu.Unlock()

	if len(hooks) > 0 {
		c.loop.Post(func() { runHooks(hooks) })
	}
	c.loop.Post(func() {
		c.mu.RLock()
		v, ok, version := c.value, c.initialized, c.version
		c.mu.RUnlock()
		if ok {
			c.dispatch(obs, v, version)
		}
	})

	var once sync.Once
	return func() {
		once.Do(func() { c.removeObserver(obs) })
	}
}

// ObserveChanges registers fn to run after every committed value.
func (c *Cell[T]) ObserveChanges(fn func()) (cancel func()) {
	return c.Observe(func(T) { fn() })
}

// Post commits v on the loop and notifies observers. Safe from any goroutine.
func (c *Cell[T]) Post(v T) {
	c.loop.Post(func() { c.setValue(v) })
}

func (c *Cell[T]) removeObserver(obs *observer[T]) {
	obs.cancelled.Store(true)

	c.mu.Lock()
	for i, o := range c.observers {
		if o == obs {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			break
		}
	}
	var hooks []func()
	if len(c.observers) == 0 {
		hooks = append(hooks, c.onInactive...)
	}
	c.mu.Unlock()

	if len(hooks) > 0 {
		c.loop.Post(func() { runHooks(hooks) })
	}
}

// setValue must run on the loop.
func (c *Cell[T]) setValue(v T) {
	c.mu.Lock()
	c.value = v
	c.initialized = true
	c.version++
	version := c.version
	observers := make([]*observer[T], len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	metrics.CellPostsTotal.WithLabelValues(c.name).Inc()

	for _, obs := range observers {
		c.dispatch(obs, v, version)
	}
}

// dispatch must run on the loop.
func (c *Cell[T]) dispatch(obs *observer[T], v T, version uint64) {
	if obs.cancelled.Load() || obs.version >= version {
		return
	}
	obs.version = version
	obs.fn(v)
}

func runHooks(hooks []func()) {
	for _, h := range hooks {
		h()
	}
}
