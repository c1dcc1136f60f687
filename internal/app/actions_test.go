package app

import (
	"strings"
	"testing"
)

func TestActionCommands(t *testing.T) {
	tests := []struct {
		name string
		use  string
	}{
		{"info", "info <package>"},
		{"open", "open <package>"},
		{"uninstall", "uninstall <package>"},
		{"disable", "disable <package>"},
	}

	byName := make(map[string]bool)
	for _, cmd := range RootCmd.Commands() {
		byName[cmd.Name()] = true
		for _, tt := range tests {
			if cmd.Name() != tt.name {
				continue
			}
			if cmd.Use != tt.use {
				t.Errorf("%s: expected Use %q, got %q", tt.name, tt.use, cmd.Use)
			}
			if cmd.Flags().Lookup("user") == nil {
				t.Errorf("%s: expected --user flag to be defined", tt.name)
			}
		}
	}
	for _, tt := range tests {
		if !byName[tt.name] {
			t.Errorf("expected %s command to be registered", tt.name)
		}
	}

	if infoCmd.Flags().Lookup("session") == nil {
		t.Error("expected --session flag on info")
	}
}

func TestInfo_RecordsSession(t *testing.T) {
	env := newTestEnv(t)
	setupScenario(t, env)

	const session = "6f1c1a52-9a41-4d7c-9c1e-0b8e2f5b1a77"
	out := mustExecute(t, env.args("info", "com.example.notes", "--session", session)...)
	if !strings.Contains(out, "✓ Opened app info for com.example.notes") || !strings.Contains(out, session) {
		t.Errorf("unexpected info output:\n%s", out)
	}

	status := mustExecute(t, env.args("status")...)
	if !strings.Contains(section(status, "Recent actions:"), session) {
		t.Errorf("expected the session in the action journal, got:\n%s", status)
	}

	if _, err := execute(t, env.args("info", "com.example.notes", "--session", "not-a-uuid")...); err == nil {
		t.Error("expected error for an invalid session id")
	}
}

func TestOpen(t *testing.T) {
	env := newTestEnv(t)
	setupScenario(t, env)

	out := mustExecute(t, env.args("open", "com.example.notes")...)
	if !strings.Contains(out, "✓ Opened com.example.notes") {
		t.Errorf("unexpected open output:\n%s", out)
	}

	// The work profile copy has no launcher entry.
	_, err := execute(t, env.args("open", "com.example.notes", "--user", "10")...)
	if err == nil || !strings.Contains(err.Error(), "cannot be opened") {
		t.Errorf("expected open to fail without a launcher entry, got: %v", err)
	}
}

func TestUninstall(t *testing.T) {
	env := newTestEnv(t)
	setupScenario(t, env)

	out := mustExecute(t, env.args("uninstall", "com.example.notes", "--user", "10")...)
	if !strings.Contains(out, "✓ Uninstalled com.example.notes") {
		t.Errorf("unexpected uninstall output:\n%s", out)
	}

	// Its revoked records went with it.
	summary := mustExecute(t, env.args("unused", "--summary")...)
	if !strings.Contains(summary, "Unused for 6+ months: 1 app") {
		t.Errorf("expected the uninstalled app to leave its bucket, got:\n%s", summary)
	}

	_, err := execute(t, env.args("uninstall", "com.example.notes", "--user", "10")...)
	if err == nil || !strings.Contains(err.Error(), "is not installed") {
		t.Errorf("expected not installed error, got: %v", err)
	}
}

func TestUninstall_SystemPackage(t *testing.T) {
	env := newTestEnv(t)
	setupScenario(t, env)

	_, err := execute(t, env.args("uninstall", "com.vendor.gallery")...)
	if err == nil {
		t.Fatal("expected system packages to refuse uninstall")
	}
	if !strings.Contains(err.Error(), "autorevoke disable com.vendor.gallery") {
		t.Errorf("expected a disable hint, got: %v", err)
	}
}

func TestDisable(t *testing.T) {
	env := newTestEnv(t)
	setupScenario(t, env)

	out := mustExecute(t, env.args("disable", "com.vendor.gallery")...)
	if !strings.Contains(out, "✓ Disabled com.vendor.gallery") {
		t.Errorf("unexpected disable output:\n%s", out)
	}

	// A disabled app can no longer be opened.
	if _, err := execute(t, env.args("open", "com.vendor.gallery")...); err == nil {
		t.Error("expected a disabled app to refuse opening")
	}

	status := mustExecute(t, env.args("status")...)
	actions := section(status, "Recent actions:")
	if !strings.Contains(actions, "disable") || !strings.Contains(actions, "com.vendor.gallery") {
		t.Errorf("expected the disable in the action journal, got:\n%s", status)
	}
}
