package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

// syncBuffer is a bytes.Buffer safe for the concurrent writes of spinners,
// loggers and observers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testEnv is an isolated configuration: its own config dir, database,
// manifest root and usage log, and a clock frozen at testNow.
type testEnv struct {
	dir       string
	db        string
	manifests string
	usageLog  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("NO_COLOR", "1")

	old := clock
	clock = clockwork.NewFakeClockAt(testNow)
	t.Cleanup(func() { clock = old })

	env := &testEnv{
		dir:       dir,
		db:        filepath.Join(dir, "autorevoke.db"),
		manifests: filepath.Join(dir, "manifests"),
		usageLog:  filepath.Join(dir, "usage.log"),
	}
	if err := os.MkdirAll(env.manifests, 0755); err != nil {
		t.Fatalf("failed to create manifest root: %v", err)
	}
	return env
}

type manifestSpec struct {
	user       int
	name       string
	system     bool
	installed  time.Duration // how long before testNow
	launchable bool
}

func (e *testEnv) writeManifest(t *testing.T, m manifestSpec) {
	t.Helper()
	dir := filepath.Join(e.manifests, fmt.Sprint(m.user))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create user dir: %v", err)
	}
	body := fmt.Sprintf("name: %s\nsystem: %t\nfirst_install_time: %s\nlaunchable: %t\n",
		m.name, m.system, testNow.Add(-m.installed).Format(time.RFC3339), m.launchable)
	if err := os.WriteFile(filepath.Join(dir, m.name+".yaml"), []byte(body), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
}

// args appends the paths of the environment to a command line.
func (e *testEnv) args(args ...string) []string {
	return append(args, "--db", e.db, "--manifests", e.manifests, "--usage-log", e.usageLog)
}

// execute runs RootCmd with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut syncBuffer
	err := executeContext(context.Background(), &out, &errOut, args...)
	return out.String(), err
}

// mustExecute is execute for commands that are expected to succeed.
func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("autorevoke %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func executeContext(ctx context.Context, out, errOut *syncBuffer, args ...string) error {
	resetCommands(RootCmd, ctx)
	RootCmd.SetOut(out)
	RootCmd.SetErr(errOut)
	RootCmd.SetArgs(args)
	defer func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	}()
	return RootCmd.ExecuteContext(ctx)
}

// resetCommands restores every flag to its default and hands ctx to every
// command, since cobra keeps both across executions.
func resetCommands(cmd *cobra.Command, ctx context.Context) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		resetCommands(c, ctx)
	}
}

// setupScenario imports a small device and records auto-revoked groups:
//
//	com.vendor.gallery@0  system, installed 200 days ago, unused    -> six_months, disable
//	com.example.notes@0   installed 400 days ago, used 5 days ago  -> three_months, uninstall
//	com.example.maps@0    installed 10 days ago, nothing revoked   -> not listed
//	com.example.notes@10  installed 300 days ago, unused            -> six_months, uninstall
func setupScenario(t *testing.T, env *testEnv) {
	t.Helper()
	env.writeManifest(t, manifestSpec{user: 0, name: "com.vendor.gallery", system: true, installed: 200 * day, launchable: true})
	env.writeManifest(t, manifestSpec{user: 0, name: "com.example.notes", installed: 400 * day, launchable: true})
	env.writeManifest(t, manifestSpec{user: 0, name: "com.example.maps", installed: 10 * day, launchable: true})
	env.writeManifest(t, manifestSpec{user: 10, name: "com.example.notes", installed: 300 * day})

	mustExecute(t, env.args("scan", "--quiet")...)
	mustExecute(t, env.args("revoke", "com.vendor.gallery", "location")...)
	mustExecute(t, env.args("revoke", "com.example.notes", "CAMERA", "MICROPHONE")...)
	mustExecute(t, env.args("revoke", "com.example.notes", "CONTACTS", "--user", "10")...)
	mustExecute(t, env.args("use", "com.example.notes", "--ago", "120h")...)
}

// section returns the lines of out from the line starting with title up to
// the next blank line.
func section(out, title string) string {
	var lines []string
	in := false
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, title):
			in = true
		case in && strings.TrimSpace(line) == "":
			return strings.Join(lines, "\n")
		}
		if in {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
