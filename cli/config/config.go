package config

import (
	"fmt"
	"time"
)

// Config represents a vantage.yaml configuration file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Sessions SessionsConfig `yaml:"sessions"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Policy   PolicyConfig   `yaml:"policy"`
	Adapter  AdapterConfig  `yaml:"adapter"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds defaults for vantage serve.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	Metrics         *bool    `yaml:"metrics,omitempty"`
}

// SessionsConfig bounds the session registry and the notifier.
type SessionsConfig struct {
	Max           int `yaml:"max"`
	NotifyWorkers int `yaml:"notify_workers"`
	NotifyQueue   int `yaml:"notify_queue"`
}

// ArchiveConfig holds archive storage defaults.
type ArchiveConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
	// Sidecars writes a rendered text file per terminal artifact.
	Sidecars bool `yaml:"sidecars"`
}

// PolicyConfig holds policy defaults.
type PolicyConfig struct {
	Name          string   `yaml:"name"`
	FlushMode     string   `yaml:"flush_mode"`
	BufferParts   int      `yaml:"buffer_parts"`
	BufferBytes   int64    `yaml:"buffer_bytes"`
	FlushCount    int      `yaml:"flush_count"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// AdapterConfig holds lifecycle notification defaults.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MetricsEnabled reports whether /metrics is served. Defaults to true.
func (s ServerConfig) MetricsEnabled() bool {
	return s.Metrics == nil || *s.Metrics
}

// Validate checks enum-valued fields. Empty values are allowed; commands
// apply their own defaults.
func (c *Config) Validate() error {
	switch c.Policy.Name {
	case "", "noop", "strict", "buffered", "streaming":
	default:
		return fmt.Errorf("policy.name: unknown policy %q", c.Policy.Name)
	}
	switch c.Archive.Backend {
	case "", "fs", "s3":
	default:
		return fmt.Errorf("archive.backend: unknown backend %q (must be fs or s3)", c.Archive.Backend)
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		return fmt.Errorf("adapter.type: unknown adapter %q (must be webhook or redis)", c.Adapter.Type)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	if c.Sessions.Max < 0 {
		return fmt.Errorf("sessions.max must be >= 0, got %d", c.Sessions.Max)
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		return fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries)
	}
	return nil
}
