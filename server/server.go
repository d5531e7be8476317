// Package server exposes ingestion, assessment and export over HTTP.
//
// Routes:
//
//	POST /api/ingest        JSON {url} | {text}, or multipart/form-data field "file"
//	POST /api/analyze       {policyContent, obligations | profile}
//	GET  /api/obligations   ?use_case=..&risk=..
//	POST /api/export        ?format=csv|xlsx, body {results}
//	GET  /health
//	GET  /metrics
//	     /mcp               streamable HTTP MCP endpoint, when enabled
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/policyvet/assess"
	"github.com/hazyhaar/policyvet/ingest"
	"github.com/hazyhaar/policyvet/observability"
	"github.com/hazyhaar/policyvet/shield"
)

// envelopeOverhead is the room left above the upload ceiling for the
// multipart or JSON-RPC envelope around a file.
const envelopeOverhead = 1 << 20

// apiBodyLimit caps /api bodies: a raw file plus its multipart envelope.
func apiBodyLimit(maxUpload int64) int64 { return maxUpload + envelopeOverhead }

// mcpBodyLimit caps /mcp bodies, where files travel base64 encoded and so
// grow to 4/3 of their size.
func mcpBodyLimit(maxUpload int64) int64 {
	return 4*((maxUpload+2)/3) + envelopeOverhead
}

// Ingester runs the ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error)
	MaxUploadBytes() int64
}

// Analyzer forwards a policy to the assessment service.
type Analyzer interface {
	Analyze(ctx context.Context, policyContent string, obligations []assess.Obligation) (*assess.Analysis, error)
}

// Config wires the server to its collaborators.
type Config struct {
	Ingest  Ingester
	Assess  Analyzer
	Dataset *assess.Dataset
	Metrics *observability.Metrics
	// MCP is served at /mcp when set.
	MCP *mcp.Server
	// Debug adds the full error chain to error responses.
	Debug bool

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server is the HTTP API.
type Server struct {
	cfg    Config
	router chi.Router
}

// New builds the router.
func New(cfg Config) *Server {
	cfg.defaults()
	s := &Server{cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	for _, mw := range shield.BaseStack() {
		r.Use(mw)
	}
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", cfg.Metrics.Handler())

	maxUpload := cfg.Ingest.MaxUploadBytes()
	r.Route("/api", func(r chi.Router) {
		r.Use(shield.MaxBody(apiBodyLimit(maxUpload)))
		r.Post("/ingest", s.handleIngest)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/obligations", s.handleObligations)
		r.Post("/export", s.handleExport)
	})

	if cfg.MCP != nil {
		h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return cfg.MCP }, nil)
		r.Group(func(r chi.Router) {
			r.Use(shield.MaxBody(mcpBodyLimit(maxUpload)))
			r.Handle("/mcp", h)
			r.Handle("/mcp/*", h)
		})
	}

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// instrument records every exchange under its route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.cfg.Metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
	})
}
