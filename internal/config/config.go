// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

// Package config loads the orchestrator configuration: transport URL,
// request timeouts, retry counts, and the plugin discovery catalog.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/EldestGruff/sidhe-conclave/internal/registry"
)

// Config is the full orchestrator configuration.
type Config struct {
	Transport     Transport               `koanf:"transport"`
	Request       Request                 `koanf:"request"`
	Plugins       []registry.CatalogEntry `koanf:"plugins"`
	Observability Observability           `koanf:"observability"`
	Log           Log                     `koanf:"log"`
}

// Transport configures the pub/sub connection.
type Transport struct {
	URL string `koanf:"url"`
}

// Request configures request/response behavior.
type Request struct {
	DefaultTimeout time.Duration `koanf:"default_timeout"`
	MaxRetries     int           `koanf:"max_retries"`
}

// Observability configures the health/metrics HTTP server.
type Observability struct {
	Addr string `koanf:"addr"`
}

// Log configures structured logging.
type Log struct {
	// Format is "json" or "text".
	Format string `koanf:"format"`
}

// Default returns the configuration used when no file or flags override it.
func Default() Config {
	return Config{
		Transport: Transport{URL: "redis://localhost:6379/0"},
		Request: Request{
			DefaultTimeout: 30 * time.Second,
			MaxRetries:     3,
		},
		Observability: Observability{Addr: "localhost:9090"},
		Log:           Log{Format: "json"},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// optional command-line flag overrides, in that precedence order.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return cfg, oops.Code("CONFIG_FILE_MISSING").Wrapf(err, "config file %s", path)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, oops.Code("CONFIG_PARSE_FAILED").Wrapf(err, "load config file %s", path)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return cfg, oops.Code("CONFIG_FLAGS_FAILED").Wrapf(err, "load flag overrides")
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrapf(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks configuration constraints.
func (c Config) Validate() error {
	if c.Transport.URL == "" {
		return oops.Code("CONFIG_MISSING_TRANSPORT").Errorf("transport.url is required")
	}
	if c.Request.DefaultTimeout <= 0 {
		return oops.Code("CONFIG_BAD_TIMEOUT").Errorf("request.default_timeout must be positive")
	}
	if c.Request.MaxRetries < 0 {
		return oops.Code("CONFIG_BAD_RETRIES").Errorf("request.max_retries cannot be negative")
	}
	seen := make(map[string]bool)
	for _, p := range c.Plugins {
		if p.ID == "" {
			return oops.Code("CONFIG_BAD_PLUGIN").Errorf("plugin catalog entries need an id")
		}
		if seen[p.ID] {
			return oops.Code("CONFIG_DUPLICATE_PLUGIN").Errorf("duplicate plugin id %q in catalog", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}
