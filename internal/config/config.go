// Package config loads autorevoke settings from the config file, the
// environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keys. Flags bound to viper use the same names.
const (
	KeyDB           = "db"
	KeyManifests    = "manifests"
	KeyUsageLog     = "usage_log"
	KeyLogLevel     = "log_level"
	KeyLogFormat    = "log_format"
	KeyMetricsAddr  = "metrics_addr"
	KeyUnusedWindow = "unused_window"
)

// EnvPrefix prefixes every environment override, e.g. AUTOREVOKE_DB.
const EnvPrefix = "AUTOREVOKE"

// DefaultUnusedWindow is how far back usage counts as recent.
const DefaultUnusedWindow = "180d"

// Config holds the resolved settings.
type Config struct {
	DB           string
	Manifests    string
	UsageLog     string
	LogLevel     string
	LogFormat    string
	MetricsAddr  string
	UnusedWindow time.Duration

	// File is the config file that was read, empty if none.
	File string
}

// Dir returns the autorevoke config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/autorevoke if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "autorevoke"), nil
}

// SetDefaults installs the default value of every key on v.
func SetDefaults(v *viper.Viper, dir string) {
	v.SetDefault(KeyDB, filepath.Join(dir, "autorevoke.db"))
	v.SetDefault(KeyManifests, filepath.Join(dir, "manifests"))
	v.SetDefault(KeyUsageLog, filepath.Join(dir, "usage.log"))
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyUnusedWindow, DefaultUnusedWindow)
}

// Load reads settings into v and resolves them. cfgFile, when set, must
// exist; otherwise config.yaml in Dir() is read if present.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}
	SetDefaults(v, dir)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	window, err := ParseWindow(v.GetString(KeyUnusedWindow))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyUnusedWindow, err)
	}

	return &Config{
		DB:           v.GetString(KeyDB),
		Manifests:    v.GetString(KeyManifests),
		UsageLog:     v.GetString(KeyUsageLog),
		LogLevel:     v.GetString(KeyLogLevel),
		LogFormat:    v.GetString(KeyLogFormat),
		MetricsAddr:  v.GetString(KeyMetricsAddr),
		UnusedWindow: window,
		File:         v.ConfigFileUsed(),
	}, nil
}

// ParseWindow parses a duration that may also be given in whole days ("90d").
func ParseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		if int64(n) > math.MaxInt64/int64(24*time.Hour) {
			return 0, fmt.Errorf("window %q out of range", s)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, err
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("window must be positive, got %q", s)
	}
	return d, nil
}
