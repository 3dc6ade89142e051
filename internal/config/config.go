// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

// Package config loads Guildhall configuration from a YAML file,
// environment, and command-line flags, in increasing precedence.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config holds the runtime configuration.
type Config struct {
	DatabaseURL string        `koanf:"database_url"`
	LogFormat   string        `koanf:"log_format"`
	LogLevel    string        `koanf:"log_level"`
	MetricsAddr string        `koanf:"metrics_addr"`
	AuditMode   string        `koanf:"audit_mode"`
	CacheStale  time.Duration `koanf:"cache_staleness"`
}

// Defaults applied before any provider is loaded.
var defaults = Config{
	LogFormat:   "json",
	LogLevel:    "info",
	MetricsAddr: "127.0.0.1:9100",
	AuditMode:   "minimal",
	CacheStale:  30 * time.Second,
}

// RegisterFlags defines the standard configuration flags on fs. Flag
// defaults mirror the built-in defaults so unchanged flags never mask
// file values.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("log-format", defaults.LogFormat, "log format (json or text)")
	fs.String("log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	fs.String("metrics-addr", defaults.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("audit-mode", defaults.AuditMode, "audit mode (minimal, denials_only, all)")
	fs.Duration("cache-staleness", defaults.CacheStale, "cache staleness threshold")
}

// Load reads configuration from the optional YAML file at path, the
// GUILDHALL_DATABASE_URL environment variable, and the given flag set.
// Flags win over the environment, which wins over the file.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	cfg := defaults

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.In("config").
				Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// Kebab-case flag names map onto snake_case config keys.
		cb := func(key, value string) (string, any) {
			return strings.ReplaceAll(key, "-", "_"), value
		}
		if err := k.Load(posflag.ProviderWithValue(flags, ".", k, cb), nil); err != nil {
			return nil, oops.In("config").
				Code("CONFIG_FLAGS_FAILED").
				Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.In("config").
			Code("CONFIG_UNMARSHAL_FAILED").
			Wrap(err)
	}

	// Environment beats the file but not explicit flags.
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("GUILDHALL_DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.In("config").
			Code("CONFIG_INVALID").
			With("log_format", c.LogFormat).
			Errorf("log_format must be 'json' or 'text'")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return oops.In("config").
			Code("CONFIG_INVALID").
			With("log_level", c.LogLevel).
			Errorf("log_level must be 'debug', 'info', 'warn', or 'error'")
	}
	switch c.AuditMode {
	case "minimal", "denials_only", "all":
	default:
		return oops.In("config").
			Code("CONFIG_INVALID").
			With("audit_mode", c.AuditMode).
			Errorf("audit_mode must be 'minimal', 'denials_only', or 'all'")
	}
	if c.CacheStale <= 0 {
		return oops.In("config").
			Code("CONFIG_INVALID").
			With("cache_staleness", c.CacheStale.String()).
			Errorf("cache_staleness must be positive")
	}
	return nil
}
