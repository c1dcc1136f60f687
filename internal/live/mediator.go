package live

import "sync"

type mediatorSource struct {
	onChange func()
	cancel   func()
}

// Mediator is an AsyncCell derived from other cells. While it has observers
// it observes every source and runs the source's onChange callback (usually
// Update) on each change; when it loses its last observer it lets go of all
// sources.
type Mediator[T any] struct {
	*AsyncCell[T]

	srcMu   sync.Mutex
	plugged bool
	sources map[Observable]*mediatorSource
}

// NewMediator creates a mediator whose value is computed by load.
func NewMediator[T any](loop *Loop, name string, load LoadFunc[T]) *Mediator[T] {
	m := &Mediator[T]{
		AsyncCell: NewAsyncCell(loop, name, load),
		sources:   make(map[Observable]*mediatorSource),
	}
	m.OnActive(m.plug)
	m.OnInactive(m.unplug)
	return m
}

// AddSource makes src an input. Adding the same source twice is a no-op.
func (m *Mediator[T]) AddSource(src Observable, onChange func()) {
	m.srcMu.Lock()
	defer m.srcMu.Unlock()

	if _, ok := m.sources[src]; ok {
		return
	}
	s := &mediatorSource{onChange: onChange}
	m.sources[src] = s
	if m.plugged {
		s.cancel = src.ObserveChanges(onChange)
	}
}

// RemoveSource stops observing src.
func (m *Mediator[T]) RemoveSource(src Observable) {
	m.srcMu.Lock()
	defer m.srcMu.Unlock()

	s, ok := m.sources[src]
	if !ok {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	delete(m.sources, src)
}

// HasSource reports whether src is currently an input.
func (m *Mediator[T]) HasSource(src Observable) bool {
	m.srcMu.Lock()
	defer m.srcMu.Unlock()
	_, ok := m.sources[src]
	return ok
}

func (m *Mediator[T]) plug() {
	m.srcMu.Lock()
	defer m.srcMu.Unlock()

	m.plugged = true
	for src, s := range m.sources {
		if s.cancel == nil {
			s.cancel = src.ObserveChanges(s.onChange)
		}
	}
}

func (m *Mediator[T]) unplug() {
	m.srcMu.Lock()
	defer m.srcMu.Unlock()

	m.plugged = false
	for _, s := range m.sources {
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
	}
	m.Cancel()
}
