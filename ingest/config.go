package ingest

import (
	"log/slog"
	"time"
)

// DefaultMaxUploadBytes is the size ceiling used when none is configured.
const DefaultMaxUploadBytes int64 = 5 << 20

// Config configures the ingestion service.
type Config struct {
	// MaxUploadBytes is the size ceiling of uploads and fetched bodies.
	// Default: 5 MiB.
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes"`

	// FetchTimeout bounds a whole URL fetch. Default: 30s.
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout"`

	// UserAgent overrides the fetcher's User-Agent.
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// BlockPrivateNetworks refuses URLs resolving to loopback or private
	// addresses, redirects included.
	BlockPrivateNetworks bool `json:"block_private_networks" yaml:"block_private_networks"`

	// Markdown adds a Markdown rendering of HTML sources to the result.
	Markdown bool `json:"markdown" yaml:"markdown"`

	// BrowserURL is the DevTools endpoint used to render HTML pages with
	// JavaScript. Empty disables rendering.
	BrowserURL string `json:"browser_url" yaml:"browser_url"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
