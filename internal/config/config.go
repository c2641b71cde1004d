// Package config loads posync settings.
//
// Precedence, lowest first: built-in defaults, the YAML file, POSYNC_*
// environment variables, then command-line flags (applied by the CLI).
// The merged result is validated against an embedded CUE schema.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/posync/internal/connectivity"
	"github.com/roach88/posync/internal/engine"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "POSYNC_"

// Config is the merged configuration.
type Config struct {
	// Database is the SQLite file holding the pending-order queue.
	Database string `yaml:"database" json:"database"`

	// Endpoint is the base URL orders are POSTed to (<endpoint>/orders).
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// HealthURL is probed by the connectivity monitor. Defaults to
	// <endpoint>/health when empty.
	HealthURL string `yaml:"health_url" json:"health_url"`

	SessionDeadline Duration `yaml:"session_deadline" json:"session_deadline"`
	Pace            Duration `yaml:"pace" json:"pace"`
	SubmitTimeout   Duration `yaml:"submit_timeout" json:"submit_timeout"`
	Backoff         Duration `yaml:"backoff" json:"backoff"`
	ProbeInterval   Duration `yaml:"probe_interval" json:"probe_interval"`

	// RejectPolicy is keep-and-retry or drop-and-report.
	RejectPolicy string `yaml:"reject_policy" json:"reject_policy"`

	// Trace exports OpenTelemetry spans to stderr.
	Trace bool `yaml:"trace" json:"trace"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Database:        "posync.db",
		SessionDeadline: Duration(engine.DefaultSessionDeadline),
		Pace:            Duration(engine.DefaultPace),
		SubmitTimeout:   Duration(engine.DefaultSubmitTimeout),
		Backoff:         Duration(engine.DefaultBackoff),
		ProbeInterval:   Duration(connectivity.DefaultProbeInterval),
		RejectPolicy:    string(engine.KeepAndRetry),
	}
}

// Load merges defaults, the YAML file at path (skipped when path is empty)
// and environment overrides, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeYAML overlays data onto cfg, rejecting unknown keys.
func decodeYAML(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overlays POSYNC_* variables onto cfg.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	strs := map[string]*string{
		"DATABASE":      &cfg.Database,
		"ENDPOINT":      &cfg.Endpoint,
		"HEALTH_URL":    &cfg.HealthURL,
		"REJECT_POLICY": &cfg.RejectPolicy,
	}
	for name, dst := range strs {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	durations := map[string]*Duration{
		"SESSION_DEADLINE": &cfg.SessionDeadline,
		"PACE":             &cfg.Pace,
		"SUBMIT_TIMEOUT":   &cfg.SubmitTimeout,
		"BACKOFF":          &cfg.Backoff,
		"PROBE_INTERVAL":   &cfg.ProbeInterval,
	}
	for name, dst := range durations {
		v, ok := get(name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = Duration(d)
	}

	if v, ok := get("TRACE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sTRACE: %w", EnvPrefix, err)
		}
		cfg.Trace = b
	}
	return nil
}

// Validate checks cfg against the schema and the timing constraints.
func (c Config) Validate() error {
	if err := validateSchema(c); err != nil {
		return err
	}

	positive := []struct {
		name string
		d    Duration
	}{
		{"session_deadline", c.SessionDeadline},
		{"submit_timeout", c.SubmitTimeout},
		{"backoff", c.Backoff},
		{"probe_interval", c.ProbeInterval},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("invalid config: %s must be positive, got %s", p.name, p.d)
		}
	}
	if c.Pace < 0 {
		return fmt.Errorf("invalid config: pace must not be negative, got %s", c.Pace)
	}
	return nil
}

// ResolvedHealthURL returns HealthURL, or <endpoint>/health when unset.
func (c Config) ResolvedHealthURL() string {
	if c.HealthURL != "" {
		return c.HealthURL
	}
	if c.Endpoint == "" {
		return ""
	}
	return strings.TrimRight(c.Endpoint, "/") + "/health"
}

// Policy returns the parsed reject policy.
func (c Config) Policy() engine.RejectPolicy {
	p, err := engine.ParseRejectPolicy(c.RejectPolicy)
	if err != nil {
		return engine.KeepAndRetry
	}
	return p
}

// EngineOptions translates the timing settings into engine options.
func (c Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithSessionDeadline(c.SessionDeadline.Std()),
		engine.WithPace(c.Pace.Std()),
		engine.WithSubmitTimeout(c.SubmitTimeout.Std()),
		engine.WithBackoff(c.Backoff.Std()),
		engine.WithRejectPolicy(c.Policy()),
	}
}
