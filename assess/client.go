package assess

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/policyvet/apperr"
	"github.com/hazyhaar/policyvet/netguard"
	"github.com/hazyhaar/policyvet/observability"
)

// maxResponseBytes bounds the answer read from the assessment service.
const maxResponseBytes = 8 << 20

// Config configures the assessment client.
type Config struct {
	// Endpoint is the URL the assessment request is POSTed to.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	// APIKey is sent as a bearer token. Required.
	APIKey string `json:"-" yaml:"api_key"`
	// Model is forwarded to the service when set.
	Model string `json:"model" yaml:"model"`
	// MaxTextLength is the truncation limit of policy text, in characters.
	// Default: 100000.
	MaxTextLength int `json:"max_text_length" yaml:"max_text_length"`
	// Timeout bounds one assessment call. Default: 120s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper `json:"-" yaml:"-"`
	Logger    *slog.Logger      `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxTextLength <= 0 {
		c.MaxTextLength = DefaultMaxTextLength
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client forwards assessment requests to the external service.
type Client struct {
	cfg     Config
	http    *http.Client
	metrics *observability.Metrics
}

// Option customises a Client.
type Option func(*Client)

// WithMetrics records the outcome of every call.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Client. A missing endpoint or key is only reported
// when Assess is called.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.defaults()
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Configured reports whether the client has an endpoint and a key.
func (c *Client) Configured() bool {
	return c.cfg.Endpoint != "" && c.cfg.APIKey != ""
}

// MaxTextLength is the truncation limit applied by Analyze.
func (c *Client) MaxTextLength() int { return c.cfg.MaxTextLength }

// Analysis is the merged outcome of one assessment.
type Analysis struct {
	Results   []Result `json:"results"`
	Score     Stats    `json:"score"`
	Truncated bool     `json:"truncated,omitempty"`
}

// Analyze prepares, forwards, merges and scores one assessment.
func (c *Client) Analyze(ctx context.Context, policyContent string, obligations []Obligation) (*Analysis, error) {
	req, err := Prepare(policyContent, obligations, c.cfg.MaxTextLength)
	if err != nil {
		return nil, err
	}
	items, err := c.Assess(ctx, req)
	if err != nil {
		return nil, err
	}
	results := Merge(obligations, items)
	return &Analysis{Results: results, Score: Score(results), Truncated: req.Truncated}, nil
}

// Assess sends req and returns the service's items. Configuration is checked
// before any I/O.
func (c *Client) Assess(ctx context.Context, req *Request) ([]Item, error) {
	items, err := c.assess(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = apperr.Class(err)
	}
	c.metrics.ObserveAssess(outcome)
	return items, err
}

func (c *Client) assess(ctx context.Context, req *Request) ([]Item, error) {
	if !c.Configured() {
		return nil, apperr.New(apperr.ErrConfiguration, "Assessment service not configured")
	}
	if req.Model == "" {
		req.Model = c.cfg.Model
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("assess: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrConfiguration, err, "Assessment endpoint is invalid")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.cfg.Logger.Error("assess: request failed", "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || isTimeout(err) {
			return nil, apperr.Wrap(apperr.ErrFetchTimeout, err, "Assessment timed out")
		}
		return nil, apperr.Wrap(apperr.ErrTransport, err, "Assessment request failed")
	}
	defer resp.Body.Close()

	raw, err := netguard.LimitedReadAll(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrTransport, err, "Failed to read assessment response")
	}
	c.cfg.Logger.Info("assess: response", "status", resp.StatusCode, "bytes", len(raw),
		"obligations", len(req.Obligations), "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := apperr.Newf(apperr.ErrTransport, "Assessment service returned %d %s",
			resp.StatusCode, http.StatusText(resp.StatusCode))
		e.UpstreamStatus = resp.StatusCode
		return nil, e
	}

	items, err := ParseItems(raw)
	if err != nil {
		preview := raw
		if len(preview) > 500 {
			preview = preview[:500]
		}
		c.cfg.Logger.Warn("assess: unparseable response", "error", err, "preview", string(preview))
		return nil, apperr.Wrap(apperr.ErrTransport, err, "Failed to parse assessment response")
	}
	return items, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
