package live

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/autorevoke/internal/metrics"
)

// ErrSkip is returned by a LoadFunc that has nothing to post yet, typically
// because an input it depends on has not produced a value.
var ErrSkip = errors.New("live: inputs not ready")

// LoadFunc computes a new value for an AsyncCell. It runs off the loop and
// should return ctx.Err() promptly once ctx is cancelled.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// AsyncCell is a Cell whose value is produced by a LoadFunc. Each Update
// cancels the load still in flight, so a burst of updates collapses to the
// latest one and a superseded load never overwrites a newer value.
type AsyncCell[T any] struct {
	*Cell[T]
	load LoadFunc[T]

	taskMu     sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

// NewAsyncCell creates an uninitialized cell loaded by load.
func NewAsyncCell[T any](loop *Loop, name string, load LoadFunc[T]) *AsyncCell[T] {
	return &AsyncCell[T]{
		Cell: NewCell[T](loop, name),
		load: load,
	}
}

// Update starts a new load, cancelling the one in flight. Safe from any goroutine.
func (a *AsyncCell[T]) Update() {
	metrics.CellUpdatesTotal.WithLabelValues(a.name).Inc()

	a.taskMu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.generation++
	gen := a.generation
	a.cancel = cancel
	a.taskMu.Unlock()

	go a.run(ctx, gen)
}

// Cancel aborts the load in flight, if any, without starting a new one.
func (a *AsyncCell[T]) Cancel() {
	a.taskMu.Lock()
	defer a.taskMu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.generation++
}

// current reports whether the load identified by gen is still the latest one.
func (a *AsyncCell[T]) current(ctx context.Context, gen uint64) bool {
	a.taskMu.Lock()
	defer a.taskMu.Unlock()
	return gen == a.generation && ctx.Err() == nil
}

func (a *AsyncCell[T]) run(ctx context.Context, gen uint64) {
	logger := log.With().Str("cell", a.name).Uint64("generation", gen).Logger()

	if !a.current(ctx, gen) {
		metrics.CellCancelledTotal.WithLabelValues(a.name).Inc()
		return
	}

	v, err := a.load(ctx)

	switch {
	case !a.current(ctx, gen):
		metrics.CellCancelledTotal.WithLabelValues(a.name).Inc()
		logger.Debug().Msg("load superseded")
		return
	case errors.Is(err, ErrSkip):
		metrics.CellSkippedTotal.WithLabelValues(a.name).Inc()
		logger.Debug().Msg("inputs not ready, skipping")
		return
	case err != nil:
		metrics.CellErrorsTotal.WithLabelValues(a.name).Inc()
		logger.Warn().Err(err).Msg("load failed, keeping previous value")
		return
	}

	a.loop.Post(func() {
		if !a.current(ctx, gen) {
			metrics.CellCancelledTotal.WithLabelValues(a.name).Inc()
			logger.Debug().Msg("load superseded before commit")
			return
		}
		a.setValue(v)
	})
}
