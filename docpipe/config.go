package docpipe

import "log/slog"

// Config configures the document pipeline.
type Config struct {
	// Markdown also renders HTML sources as Markdown into Document.Markdown.
	Markdown bool `json:"markdown" yaml:"markdown"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
