package live

import (
	"sync"
)

// Loop runs posted functions one at a time, in the order they were posted,
// on a single goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake   chan struct{}
	stopCh chan struct{}
	done   chan struct{}
}

// NewLoop creates a Loop and starts its goroutine.
func NewLoop() *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Post queues fn to run on the loop. It never blocks, including when called
// from the loop itself. Returns false if the loop has been stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Sync blocks until every function posted before the call has run.
// It must not be called from the loop goroutine.
func (l *Loop) Sync() {
	ch := make(chan struct{})
	if !l.Post(func() { close(ch) }) {
		return
	}
	select {
	case <-ch:
	case <-l.done:
	}
}

// Stop halts the loop and waits for its goroutine to exit. Functions still
// queued are dropped.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()

	close(l.stopCh)
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		select {
		case <-l.wake:
			l.drain()
		case <-l.stopCh:
			return
		}
	}
}

// drain runs queued functions until the queue is empty or the loop stops.
func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if l.stopped || len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}
