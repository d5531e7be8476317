// Package fetch implements the bounded, time-limited HTTP GET used to pull
// policy documents from a URL.
//
// Every failure is reported in the apperr taxonomy: non-2xx answers and
// network errors are transport failures, deadlines and cancellation are
// fetch timeouts, and bodies over the ceiling are size failures.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/hazyhaar/policyvet/apperr"
	"github.com/hazyhaar/policyvet/netguard"
)

const (
	// DefaultUserAgent identifies the fetcher to remote servers.
	DefaultUserAgent = "Mozilla/5.0 (compatible; policyvet/1.0)"
	// Accept lists the preferred document types, HTML first.
	Accept = "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf;q=0.8,*/*;q=0.7"

	maxRedirects = 10
)

// TimeoutMessage is the user-facing message of every fetch timeout.
const TimeoutMessage = "URL fetch timed out. The server may be slow or unreachable."

// Result contains the outcome of a successful fetch.
type Result struct {
	Body        []byte
	ContentType string
	StatusCode  int
	FinalURL    string // after redirects
	Hash        string // SHA-256 of body
}

// Config configures the fetcher.
type Config struct {
	Timeout  time.Duration // Whole-exchange timeout. Default: 30s.
	MaxBytes int64         // Max response body size. Default: 5 MiB.
	// UserAgent sent with requests.
	UserAgent string
	// URLValidator validates the URL and every redirect target.
	// Default: netguard.CheckScheme (scheme and host only).
	URLValidator func(string) error
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 5 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.URLValidator == nil {
		c.URLValidator = func(u string) error {
			_, err := netguard.CheckScheme(u)
			return err
		}
	}
}

// Fetcher performs bounded HTTP GET requests.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher that applies the URL validator to redirects.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Fetch retrieves rawURL. The body is read only for 2xx answers and never
// beyond MaxBytes+1 bytes.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if err := f.config.URLValidator(rawURL); err != nil {
		return nil, apperr.Wrap(apperr.ErrInvalidInput, err, "URL not allowed: "+rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInvalidInput, err, "Invalid URL: "+rawURL)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", Accept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := apperr.Newf(apperr.ErrTransport, "Failed to fetch URL: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		e.UpstreamStatus = resp.StatusCode
		return nil, e
	}

	if resp.ContentLength > f.config.MaxBytes {
		return nil, apperr.TooLarge(f.config.MaxBytes)
	}
	body, err := netguard.LimitedReadAll(resp.Body, f.config.MaxBytes)
	if errors.Is(err, netguard.ErrTooLarge) {
		return nil, apperr.TooLarge(f.config.MaxBytes)
	}
	if err != nil {
		return nil, classify(err)
	}

	h := sha256.Sum256(body)
	return &Result{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
		FinalURL:    resp.Request.URL.String(),
		Hash:        hex.EncodeToString(h[:]),
	}, nil
}

// classify maps a client or body-read error to the taxonomy.
func classify(err error) error {
	if isTimeout(err) {
		return apperr.Wrap(apperr.ErrFetchTimeout, err, TimeoutMessage)
	}
	return apperr.Wrap(apperr.ErrTransport, err, "URL fetch failed: "+cause(err).Error())
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// cause strips the *url.Error envelope, whose text repeats method and URL.
func cause(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	return err
}
