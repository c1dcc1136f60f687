package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if dir != "/tmp/xdg/autorevoke" {
		t.Errorf("Dir() = %q, want /tmp/xdg/autorevoke", dir)
	}
}

func TestDir_HomeFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", home)

	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if want := filepath.Join(home, ".config", "autorevoke"); dir != want {
		t.Errorf("Dir() = %q, want %q", dir, want)
	}
}

func TestLoad_Defaults(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	dir := filepath.Join(xdg, "autorevoke")
	if cfg.DB != filepath.Join(dir, "autorevoke.db") {
		t.Errorf("DB = %q", cfg.DB)
	}
	if cfg.Manifests != filepath.Join(dir, "manifests") {
		t.Errorf("Manifests = %q", cfg.Manifests)
	}
	if cfg.UsageLog != filepath.Join(dir, "usage.log") {
		t.Errorf("UsageLog = %q", cfg.UsageLog)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "console" {
		t.Errorf("log = %s/%s, want info/console", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.UnusedWindow != 180*24*time.Hour {
		t.Errorf("UnusedWindow = %v, want 180 days", cfg.UnusedWindow)
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want none", cfg.File)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	dir := filepath.Join(xdg, "autorevoke")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "manifests: /data/manifests\nlog_format: json\nunused_window: 90d\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AUTOREVOKE_LOG_FORMAT", "console")
	t.Setenv("AUTOREVOKE_DB", "/tmp/env.db")

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Manifests != "/data/manifests" {
		t.Errorf("Manifests = %q, want value from file", cfg.Manifests)
	}
	if cfg.LogFormat != "console" {
		t.Errorf("LogFormat = %q, env should win over file", cfg.LogFormat)
	}
	if cfg.DB != "/tmp/env.db" {
		t.Errorf("DB = %q, want value from env", cfg.DB)
	}
	if cfg.UnusedWindow != 90*24*time.Hour {
		t.Errorf("UnusedWindow = %v, want 90 days", cfg.UnusedWindow)
	}
	if cfg.File == "" {
		t.Error("File should name the config that was read")
	}
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoad_InvalidWindow(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("AUTOREVOKE_UNUSED_WINDOW", "soon")

	if _, err := Load(viper.New(), ""); err == nil {
		t.Error("expected error for invalid unused_window")
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"180d", 180 * 24 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"36h", 36 * time.Hour, false},
		{" 7d ", 7 * 24 * time.Hour, false},
		{"0d", 0, true},
		{"-5d", 0, true},
		{"xd", 0, true},
		{"", 0, true},
		{"106751d", 106751 * 24 * time.Hour, false},
		{"106752d", 0, true},
		{"200000d", 0, true},
		{"300000d", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseWindow(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWindow(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseWindow(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseWindow_DayCountOutOfRange(t *testing.T) {
	for _, in := range []string{"200000d", "300000d"} {
		_, err := ParseWindow(in)
		if err == nil || !strings.Contains(err.Error(), "out of range") {
			t.Errorf("ParseWindow(%q) error = %v, want out of range", in, err)
		}
	}
}
