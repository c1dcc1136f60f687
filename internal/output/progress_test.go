package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestWriterIsTTY_Buffer(t *testing.T) {
	if writerIsTTY(&bytes.Buffer{}) {
		t.Error("a bytes.Buffer is never a terminal")
	}
}

func TestSpinner_NonTTYPrintsOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	clock := clockwork.NewFakeClock()
	s := NewSpinner("Loading unused apps").WithClock(clock)
	s.SetWriter(buf)

	s.Start()
	s.Start()
	clock.Advance(time.Second)
	s.Stop()

	if got := buf.String(); got != "Loading unused apps...\n" {
		t.Errorf("non-TTY spinner output = %q, want a single line", got)
	}
}

func TestSpinner_MultipleStops(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Scanning manifests")
	s.SetWriter(buf)
	s.Start()

	s.Stop()
	s.Stop()
	s.Stop()
}

func TestSpinner_StopBeforeStart(t *testing.T) {
	s := NewSpinner("Scanning manifests")
	s.SetWriter(&bytes.Buffer{})
	s.Stop()
}

func TestSpinner_Restart(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Starting watcher")
	s.SetWriter(buf)

	s.Start()
	s.Stop()
	s.Start()
	s.Stop()

	if got := strings.Count(buf.String(), "Starting watcher..."); got != 2 {
		t.Errorf("expected the message once per start, got %d in %q", got, buf.String())
	}
}

func TestSpinner_StopWithMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Starting watcher")
	s.SetWriter(buf)
	s.Start()

	s.StopWithMessage("✓ Watcher started")

	if !strings.HasSuffix(buf.String(), "✓ Watcher started\n") {
		t.Errorf("spinner should end with final message, got: %q", buf.String())
	}
}

func TestSpinner_Label(t *testing.T) {
	tests := []struct {
		name    string
		timed   bool
		timeout time.Duration
		advance time.Duration
		want    string
	}{
		{"no timing", false, 0, 9500 * time.Millisecond, "Loading unused apps"},
		{"elapsed", true, 0, 9500 * time.Millisecond, "Loading unused apps (9s elapsed)"},
		{"remaining", true, 30 * time.Second, 9500 * time.Millisecond, "Loading unused apps (20s remaining)"},
		{"past timeout", true, 30 * time.Second, time.Minute, "Loading unused apps (0s remaining)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := clockwork.NewFakeClock()
			s := NewSpinner("Loading unused apps").WithClock(clock)
			s.SetWriter(&bytes.Buffer{})
			if tt.timed {
				s.WithTimeout(tt.timeout)
			}
			s.Start()
			defer s.Stop()

			clock.Advance(tt.advance)
			if got := s.label(); got != tt.want {
				t.Errorf("label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSpinner_UpdateMessage(t *testing.T) {
	s := NewSpinner("Loading unused apps")
	s.UpdateMessage("Waiting for auto-revoke records")
	if got := s.label(); got != "Waiting for auto-revoke records" {
		t.Errorf("label() = %q", got)
	}
}

func TestSpinner_Concurrent(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Concurrent")
	s.SetWriter(buf)
	s.Start()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.UpdateMessage("Concurrent update")
		}()
	}
	wg.Wait()
	s.Stop()
}
