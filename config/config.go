// Package config loads breezyd settings from the environment.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Prefix is prepended to every variable name.
const Prefix = "BREEZY_"

// Config holds the node settings.
type Config struct {
	// Home is the data directory. The store lives in Home/data.
	Home string `env:"HOME" envDefault:".breezy"`
	// InMemory keeps state in memory; nothing survives a restart.
	InMemory bool `env:"IN_MEMORY"`
	// App names the handler set to serve: "accounts" or "counter".
	App string `env:"APP" envDefault:"accounts"`

	ListenAddr  string `env:"LISTEN_ADDR" envDefault:"127.0.0.1:26658"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:"127.0.0.1:26660"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// CacheMB and Handles size the LevelDB backing store.
	CacheMB int `env:"CACHE_MB" envDefault:"16"`
	Handles int `env:"HANDLES" envDefault:"16"`
}

// Load parses Config from BREEZY_* variables.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses Config from the given variables instead of the process
// environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings for consistency.
func (c Config) Validate() error {
	if !c.InMemory && c.Home == "" {
		return fmt.Errorf("config: %sHOME is required unless %sIN_MEMORY is set", Prefix, Prefix)
	}
	switch c.App {
	case "accounts", "counter":
	default:
		return fmt.Errorf("config: unknown app %q", c.App)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: %sLISTEN_ADDR is required", Prefix)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	if c.CacheMB < 0 || c.Handles < 0 {
		return fmt.Errorf("config: cache size and handles must not be negative")
	}
	return nil
}

// DataDir returns the store directory, or "" for an in-memory store.
func (c Config) DataDir() string {
	if c.InMemory {
		return ""
	}
	return filepath.Join(c.Home, "data")
}

// Logger builds a logrus logger at the configured level and format.
func (c Config) Logger() *logrus.Logger {
	l := logrus.New()
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		l.SetLevel(lvl)
	}
	if c.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l
}
