package app

import (
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestStatusCommand(t *testing.T) {
	if statusCmd.Use != "status" {
		t.Errorf("expected Use to be 'status', got '%s'", statusCmd.Use)
	}

	if statusCmd.Short == "" {
		t.Error("expected Short description to be set")
	}

	flag := statusCmd.Flags().Lookup("actions")
	if flag == nil {
		t.Fatal("expected --actions flag to be defined")
	}
	if flag.DefValue != "5" {
		t.Errorf("--actions default = %s, want 5", flag.DefValue)
	}
}

func TestStatus_NotSetUp(t *testing.T) {
	env := newTestEnv(t)

	out := mustExecute(t, env.args("status")...)
	if !strings.Contains(out, "autorevoke is not set up") {
		t.Errorf("expected setup hint, got:\n%s", out)
	}
	if _, err := os.Stat(env.db); !os.IsNotExist(err) {
		t.Error("status must not create the database")
	}
}

func TestStatus_Counts(t *testing.T) {
	env := newTestEnv(t)
	setupScenario(t, env)

	out := mustExecute(t, env.args("status")...)

	for _, want := range []string{
		statusLine("Config:", "(defaults)"),
		statusLine("Database:", env.db),
		statusLine("Manifests:", env.manifests),
		statusLine("Packages:", "4 across 2 users"),
		statusLine("Events:", "1 total"),
		statusLine("Revoked:", "3 packages · 4 groups"),
		statusLine("Window:", "180 days"),
		"Recent actions:",
		"No actions recorded.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in status, got:\n%s", want, out)
		}
	}
}

func TestStatus_MissingManifests(t *testing.T) {
	env := newTestEnv(t)
	mustExecute(t, env.args("scan", "--quiet")...)
	if err := os.RemoveAll(env.manifests); err != nil {
		t.Fatal(err)
	}

	out := mustExecute(t, env.args("status", "--actions", "0")...)
	if !strings.Contains(out, "missing ⚠") {
		t.Errorf("expected missing manifest warning, got:\n%s", out)
	}
	if strings.Contains(out, "Recent actions:") {
		t.Error("--actions 0 must hide the action journal")
	}
}

func statusLine(label, value string) string {
	return fmt.Sprintf("%-14s%s", label, value)
}
