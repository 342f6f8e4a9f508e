// Package config loads the runtime configuration of exproxy from TOML.
//
// Every key is optional; unset keys keep their defaults. Command-line flags
// override the file.
package config

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/roach88/exproxy/internal/host"
)

// Config is the resolved runtime configuration.
type Config struct {
	Database      string
	LogLevel      slog.Level
	MaxCallDepth  int
	MaxCallsPerTx int
	StrictStorage bool
}

// fileConfig maps exproxy.toml keys.
type fileConfig struct {
	Database      string `toml:"database"`
	LogLevel      string `toml:"log_level"`
	MaxCallDepth  int    `toml:"max_call_depth"`
	MaxCallsPerTx int    `toml:"max_calls_per_tx"`
	StrictStorage bool   `toml:"strict_storage"`
}

// Default returns the configuration used without a file.
func Default() Config {
	return Config{
		Database:      "exproxy.db",
		LogLevel:      slog.LevelInfo,
		MaxCallDepth:  host.DefaultMaxDepth,
		MaxCallsPerTx: host.DefaultMaxCallsPerTx,
		StrictStorage: true,
	}
}

// Load reads path over the defaults. Unknown keys are rejected so typos do
// not silently fall back to a default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("load config: unknown keys %s", strings.Join(keys, ", "))
	}

	if meta.IsDefined("database") {
		cfg.Database = strings.TrimSpace(raw.Database)
	}
	if meta.IsDefined("log_level") {
		level, err := ParseLevel(raw.LogLevel)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		cfg.LogLevel = level
	}
	if meta.IsDefined("max_call_depth") {
		cfg.MaxCallDepth = raw.MaxCallDepth
	}
	if meta.IsDefined("max_calls_per_tx") {
		cfg.MaxCallsPerTx = raw.MaxCallsPerTx
	}
	if meta.IsDefined("strict_storage") {
		cfg.StrictStorage = raw.StrictStorage
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database must not be empty")
	}
	if c.MaxCallDepth <= 0 {
		return fmt.Errorf("max_call_depth must be positive, got %d", c.MaxCallDepth)
	}
	if c.MaxCallsPerTx <= 0 {
		return fmt.Errorf("max_calls_per_tx must be positive, got %d", c.MaxCallsPerTx)
	}
	return nil
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", s, err)
	}
	return level, nil
}

// HostOptions translates the configuration into host options.
func (c Config) HostOptions(logger *slog.Logger) []host.Option {
	opts := []host.Option{
		host.WithMaxDepth(c.MaxCallDepth),
		host.WithMaxCallsPerTx(c.MaxCallsPerTx),
		host.WithStrictStorage(c.StrictStorage),
	}
	if logger != nil {
		opts = append(opts, host.WithLogger(logger))
	}
	return opts
}
