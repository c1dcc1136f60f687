package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mattn/go-isatty"
)

// writerIsTTY reports whether w is a file descriptor backed by a terminal.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

var spinnerFrames = [...]string{"|", "/", "-", `\`}

const spinnerInterval = 100 * time.Millisecond

// Spinner is a one-line activity indicator shown while a command waits, for
// example on the first categorization of unused apps:
//
//	/  Loading unused apps (27s remaining)
//
// On a writer that is not a terminal the message is printed once and nothing
// is animated.
type Spinner struct {
	mu      sync.Mutex
	w       io.Writer
	clock   clockwork.Clock
	message string
	timed   bool
	timeout time.Duration
	started time.Time
	active  bool

	stop    chan struct{}
	stopped chan struct{}
}

// NewSpinner returns a stopped spinner writing to stdout.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		w:       os.Stdout,
		clock:   clockwork.NewRealClock(),
		message: message,
	}
}

// WithTimeout adds timing to the label: the time left until timeout, or the
// time elapsed when timeout is 0. Call it before Start.
func (s *Spinner) WithTimeout(timeout time.Duration) *Spinner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timed = true
	s.timeout = timeout
	return s
}

// WithClock replaces the clock driving frames and timing.
func (s *Spinner) WithClock(clock clockwork.Clock) *Spinner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
	return s
}

// SetWriter sets the output writer.
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

// Start shows the spinner. Starting a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return
	}
	s.active = true
	s.started = s.clock.Now()

	if !writerIsTTY(s.w) {
		fmt.Fprintf(s.w, "%s...\n", s.message)
		return
	}

	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.spin(s.clock.NewTicker(spinnerInterval), s.stop, s.stopped)
}

func (s *Spinner) spin(ticker clockwork.Ticker, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			s.mu.Lock()
			fmt.Fprintf(s.w, "\r%s  %s", spinnerFrames[frame%len(spinnerFrames)], s.label())
			s.mu.Unlock()
		}
	}
}

// label is the message plus timing. Callers hold mu.
func (s *Spinner) label() string {
	if !s.timed {
		return s.message
	}
	elapsed := s.clock.Since(s.started)
	if s.timeout > 0 {
		remaining := max(s.timeout-elapsed, 0)
		return fmt.Sprintf("%s (%ds remaining)", s.message, int(remaining.Seconds()))
	}
	return fmt.Sprintf("%s (%ds elapsed)", s.message, int(elapsed.Seconds()))
}

// Stop hides the spinner and waits for the animation to end. Stopping a
// stopped spinner does nothing.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(s.label())+3))
}

// UpdateMessage replaces the message of a running or stopped spinner.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// StopWithMessage stops the spinner and prints message on its own line.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, message)
}
