// Package ingest turns a URL, an uploaded file or pasted text into the plain
// text of a policy document.
//
// Each call is independent: the request is validated, the bytes are obtained
// (fetched, uploaded or pasted), the format is sniffed once, exactly one
// extractor runs and its output is checked before being returned. Nothing is
// kept between calls apart from metrics and the optional event log.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/policyvet/apperr"
	"github.com/hazyhaar/policyvet/docpipe"
	"github.com/hazyhaar/policyvet/ingest/internal/fetch"
	"github.com/hazyhaar/policyvet/ingest/internal/render"
	"github.com/hazyhaar/policyvet/kit"
	"github.com/hazyhaar/policyvet/netguard"
	"github.com/hazyhaar/policyvet/observability"
)

// Rejection messages shown to the user.
const (
	msgUnreadablePDF = "Could not extract readable text from this PDF. The file may be image-based (scanned), encrypted, or use unsupported encoding. Try copying the text manually and using the Paste option instead."
	msgUnreadableDoc = "Could not extract readable text from this document. The file may be image-based (scanned), encrypted, or use unsupported encoding. Try copying the text manually and using the Paste option instead."
	msgEmptyFile     = "Could not extract meaningful text from the file. It may be empty or corrupted."
	msgEmptyPage     = "Could not extract meaningful text from the URL. The page may require authentication, be empty, or use JavaScript rendering."
)

// Renderer loads a page in a browser and returns its rendered HTML.
type Renderer interface {
	Render(ctx context.Context, pageURL string) ([]byte, error)
}

// Service is the ingestion entry point shared by the HTTP, MCP and CLI surfaces.
type Service struct {
	cfg      Config
	logger   *slog.Logger
	fetcher  *fetch.Fetcher
	pipe     *docpipe.Pipeline
	renderer Renderer
	metrics  *observability.Metrics
	events   *observability.EventLog

	extractorOpts []docpipe.Option
	ownsRenderer  bool
}

// Option customises a Service.
type Option func(*Service)

// WithMetrics records every call in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEventLog records every call in the ingest event log.
func WithEventLog(l *observability.EventLog) Option {
	return func(s *Service) { s.events = l }
}

// WithExtractor replaces the extractor of one format.
func WithExtractor(format docpipe.Format, fn docpipe.Extractor) Option {
	return func(s *Service) { s.extractorOpts = append(s.extractorOpts, docpipe.WithExtractor(format, fn)) }
}

// WithRenderer sets the renderer used for HTML pages, overriding BrowserURL.
func WithRenderer(r Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// New creates a Service.
func New(cfg Config, opts ...Option) *Service {
	cfg.defaults()
	s := &Service{cfg: cfg, logger: cfg.Logger}
	for _, o := range opts {
		o(s)
	}

	validator := func(u string) error {
		_, err := netguard.CheckScheme(u)
		return err
	}
	if cfg.BlockPrivateNetworks {
		validator = netguard.ValidateURL
	}
	s.fetcher = fetch.New(fetch.Config{
		Timeout:      cfg.FetchTimeout,
		MaxBytes:     cfg.MaxUploadBytes,
		UserAgent:    cfg.UserAgent,
		URLValidator: validator,
	})
	s.pipe = docpipe.New(docpipe.Config{Markdown: cfg.Markdown, Logger: cfg.Logger}, s.extractorOpts...)

	if s.renderer == nil && cfg.BrowserURL != "" {
		rc := render.Config{RemoteURL: cfg.BrowserURL, Logger: cfg.Logger}
		if cfg.BlockPrivateNetworks {
			rc.URLValidator = netguard.ValidateURL
		}
		s.renderer = render.New(rc)
		s.ownsRenderer = true
	}
	return s
}

// MaxUploadBytes is the size ceiling applied to uploads and fetched bodies.
func (s *Service) MaxUploadBytes() int64 { return s.cfg.MaxUploadBytes }

// Close releases the browser connection, if one was opened.
func (s *Service) Close() error {
	if r, ok := s.renderer.(*render.Renderer); ok && s.ownsRenderer {
		return r.Close()
	}
	return nil
}

// outcome tracks what one call saw, for logging and metrics.
type outcome struct {
	format docpipe.Format
	bytes  int
}

// Ingest runs one request through the pipeline.
func (s *Service) Ingest(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	var o outcome

	res, err := s.ingest(ctx, req, &o)
	s.observe(ctx, req, res, &o, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) ingest(ctx context.Context, req Request, o *outcome) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	switch req.Kind {
	case KindText:
		o.bytes = len(req.Text)
		return &Result{Content: strings.TrimSpace(req.Text), Source: req.source(), Format: docpipe.FormatText}, nil
	case KindUpload:
		return s.ingestUpload(ctx, req, o)
	default:
		return s.ingestURL(ctx, req, o)
	}
}

func (s *Service) ingestUpload(ctx context.Context, req Request, o *outcome) (*Result, error) {
	o.bytes = len(req.Data)
	if int64(len(req.Data)) > s.cfg.MaxUploadBytes {
		return nil, apperr.TooLarge(s.cfg.MaxUploadBytes)
	}
	format, err := docpipe.SniffUpload(req.Filename, req.ContentType)
	if err != nil {
		return nil, err
	}
	o.format = format

	doc, err := s.pipe.Extract(ctx, req.Data, format)
	if err != nil {
		return nil, err
	}
	if err := check(doc, msgEmptyFile); err != nil {
		return nil, err
	}
	return result(doc, req.source()), nil
}

func (s *Service) ingestURL(ctx context.Context, req Request, o *outcome) (*Result, error) {
	target := strings.TrimSpace(req.URL)
	fetched, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	o.bytes = len(fetched.Body)

	format := docpipe.SniffURL(fetched.FinalURL, fetched.ContentType)
	o.format = format

	body := fetched.Body
	if format == docpipe.FormatHTML && s.renderer != nil {
		body = s.render(ctx, fetched.FinalURL, body)
	}

	doc, err := s.pipe.Extract(ctx, body, format)
	if err != nil {
		return nil, err
	}
	if err := check(doc, msgEmptyPage); err != nil {
		return nil, err
	}
	return result(doc, req.source()), nil
}

// render replaces a fetched page with its browser rendering. Failures keep
// the fetched body.
func (s *Service) render(ctx context.Context, pageURL string, fetched []byte) []byte {
	html, err := s.renderer.Render(ctx, pageURL)
	if err != nil {
		s.logger.Warn("ingest: render failed, using fetched body", "url", pageURL, "error", err)
		return fetched
	}
	if int64(len(html)) > s.cfg.MaxUploadBytes {
		s.logger.Warn("ingest: rendered page over size ceiling, using fetched body",
			"url", pageURL, "bytes", len(html))
		return fetched
	}
	return html
}

// check applies the full prose check to PDF, length and marker rules to
// DOCX, and only the length rule to html and text. lengthMsg is the message
// of a short html/text result.
func check(doc *docpipe.Document, lengthMsg string) error {
	switch doc.Format {
	case docpipe.FormatPDF:
		return docpipe.CheckProse(doc.Text, msgUnreadablePDF)
	case docpipe.FormatDocx:
		return docpipe.CheckStructure(doc.Text, msgUnreadableDoc)
	default:
		return docpipe.CheckLength(doc.Text, lengthMsg)
	}
}

func result(doc *docpipe.Document, source string) *Result {
	return &Result{
		Content:  strings.TrimSpace(doc.Text),
		Source:   source,
		Markdown: doc.Markdown,
		Format:   doc.Format,
		Quality:  doc.Quality,
	}
}

func (s *Service) observe(ctx context.Context, req Request, res *Result, o *outcome, err error, d time.Duration) {
	outcomeClass := "ok"
	var errMsg string
	if err != nil {
		outcomeClass = apperr.Class(err)
		errMsg = err.Error()
	}

	var chars int
	var hash string
	if res != nil {
		chars = len([]rune(res.Content))
		sum := sha256.Sum256([]byte(res.Content))
		hash = hex.EncodeToString(sum[:])
	}

	s.metrics.ObserveIngest(string(req.Kind), string(o.format), outcomeClass, o.bytes, d)
	s.events.Record(&observability.IngestEvent{
		TraceID:      kit.GetTraceID(ctx),
		Transport:    kit.GetTransport(ctx),
		Kind:         string(req.Kind),
		Source:       req.source(),
		Format:       string(o.format),
		Outcome:      outcomeClass,
		ErrorMessage: errMsg,
		BytesIn:      o.bytes,
		CharsOut:     chars,
		ContentHash:  hash,
		DurationMs:   d.Milliseconds(),
	})

	attrs := []any{"kind", req.Kind, "source", req.source(), "format", o.format,
		"bytes", o.bytes, "chars", chars, "duration_ms", d.Milliseconds(), "outcome", outcomeClass}
	if kit.GetTraceID(ctx) != "" {
		attrs = append(attrs, "trace_id", kit.GetTraceID(ctx))
	}
	if addr := kit.GetRemoteAddr(ctx); addr != "" {
		attrs = append(attrs, "remote_addr", addr)
	}
	switch {
	case err == nil:
		s.logger.Info("ingest", attrs...)
	case apperr.Class(err) == "internal" || errors.Is(err, context.Canceled):
		s.logger.Error("ingest failed", append(attrs, "error", err)...)
	default:
		s.logger.Warn("ingest rejected", append(attrs, "error", err)...)
	}
}
