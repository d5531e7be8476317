// Package config builds the process configuration once at start-up:
// defaults, then an optional YAML file, then environment overrides.
// Components receive their slice of it by value and never read the
// environment themselves.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full policyvet configuration.
type Config struct {
	Listen   string       `yaml:"listen"`
	LogLevel string       `yaml:"log_level"` // debug | info | warn | error
	Debug    bool         `yaml:"debug"`     // expose error detail in API responses
	Ingest   IngestConfig `yaml:"ingest"`
	Assess   AssessConfig `yaml:"assess"`
	AuditDB  string       `yaml:"audit_db"` // SQLite path of the ingest event log; empty = off
	MCP      bool         `yaml:"mcp"`      // serve MCP tools at /mcp
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	MaxUploadMB          int           `yaml:"max_upload_mb"`
	FetchTimeout         time.Duration `yaml:"fetch_timeout"`
	UserAgent            string        `yaml:"user_agent"`
	BlockPrivateNetworks bool          `yaml:"block_private_networks"`
	Markdown             bool          `yaml:"markdown"`
	BrowserURL           string        `yaml:"browser_url"` // remote Chrome for JS rendering; empty = off
}

// AssessConfig configures the external assessment service.
type AssessConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	MaxTextLength int           `yaml:"max_text_length"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Default returns sane defaults.
func Default() *Config {
	return &Config{
		Listen:   ":3000",
		LogLevel: "info",
		Ingest: IngestConfig{
			MaxUploadMB:  5,
			FetchTimeout: 30 * time.Second,
		},
		Assess: AssessConfig{
			MaxTextLength: 100_000,
			Timeout:       120 * time.Second,
		},
		MCP: true,
	}
}

// LoadFile reads and parses a YAML config file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds the configuration: defaults, the YAML file at path when path
// is not empty, then overrides from getenv. The result is validated.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		c.Listen = ":" + strings.TrimPrefix(v, ":")
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEBUG: %w", err)
		}
		c.Debug = b
	}
	if v := getenv("MAX_UPLOAD_MB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_MB: %w", err)
		}
		c.Ingest.MaxUploadMB = n
	}
	if v := getenv("FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FETCH_TIMEOUT: %w", err)
		}
		c.Ingest.FetchTimeout = d
	}
	if v := getenv("BROWSER_URL"); v != "" {
		c.Ingest.BrowserURL = v
	}
	if v := getenv("ASSESS_ENDPOINT"); v != "" {
		c.Assess.Endpoint = v
	}
	if v := getenv("ASSESS_API_KEY"); v != "" {
		c.Assess.APIKey = v
	} else if v := getenv("ANTHROPIC_API_KEY"); v != "" && c.Assess.APIKey == "" {
		c.Assess.APIKey = v
	}
	if v := getenv("AUDIT_DB"); v != "" {
		c.AuditDB = v
	}
	return nil
}

// Validate checks that values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Ingest.MaxUploadMB <= 0 {
		return fmt.Errorf("ingest.max_upload_mb must be > 0")
	}
	if c.Ingest.FetchTimeout <= 0 {
		return fmt.Errorf("ingest.fetch_timeout must be > 0")
	}
	if c.Assess.MaxTextLength <= 0 {
		return fmt.Errorf("assess.max_text_length must be > 0")
	}
	if c.Assess.Timeout <= 0 {
		return fmt.Errorf("assess.timeout must be > 0")
	}
	return nil
}

// MaxUploadBytes returns the document size ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 { return int64(c.Ingest.MaxUploadMB) * 1024 * 1024 }

// ParseLevel maps a log_level string to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level: unknown level %q", s)
}
