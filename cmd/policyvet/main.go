// Command policyvet serves the policy ingestion and assessment API.
//
// Usage:
//
//	policyvet                       # defaults + environment
//	policyvet -config policyvet.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/policyvet/assess"
	"github.com/hazyhaar/policyvet/config"
	"github.com/hazyhaar/policyvet/dbopen"
	"github.com/hazyhaar/policyvet/ingest"
	"github.com/hazyhaar/policyvet/observability"
	"github.com/hazyhaar/policyvet/server"
)

var version = "dev"

// eventRetentionDays bounds the age of ingest events kept in the audit DB.
const eventRetentionDays = 30

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to policyvet.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath, os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "policyvet: config:", err)
		os.Exit(2)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("policyvet: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	var events *observability.EventLog
	if cfg.AuditDB != "" {
		db, err := dbopen.Open(cfg.AuditDB, dbopen.WithMkdirAll(), dbopen.WithSchema(observability.Schema))
		if err != nil {
			return fmt.Errorf("audit db: %w", err)
		}
		defer db.Close()
		events = observability.NewEventLog(db, 256, observability.WithEventLogger(logger))
		defer events.Close()
		go pruneEvents(ctx, events, logger)
	}

	svc := ingest.New(ingest.Config{
		MaxUploadBytes:       cfg.MaxUploadBytes(),
		FetchTimeout:         cfg.Ingest.FetchTimeout,
		UserAgent:            cfg.Ingest.UserAgent,
		BlockPrivateNetworks: cfg.Ingest.BlockPrivateNetworks,
		Markdown:             cfg.Ingest.Markdown,
		BrowserURL:           cfg.Ingest.BrowserURL,
		Logger:               logger,
	}, ingest.WithMetrics(metrics), ingest.WithEventLog(events))
	defer svc.Close()

	dataset, err := assess.Default()
	if err != nil {
		return err
	}
	assessor := assess.NewClient(assess.Config{
		Endpoint:      cfg.Assess.Endpoint,
		APIKey:        cfg.Assess.APIKey,
		Model:         cfg.Assess.Model,
		MaxTextLength: cfg.Assess.MaxTextLength,
		Timeout:       cfg.Assess.Timeout,
		Logger:        logger,
	}, assess.WithMetrics(metrics))
	if !assessor.Configured() {
		logger.Warn("assessment service not configured, /api/analyze will answer 500")
	}

	var mcpSrv *mcp.Server
	if cfg.MCP {
		mcpSrv = mcp.NewServer(&mcp.Implementation{Name: "policyvet", Version: version}, nil)
		svc.RegisterMCP(mcpSrv)
	}

	handler := server.New(server.Config{
		Ingest:  svc,
		Assess:  assessor,
		Dataset: dataset,
		Metrics: metrics,
		MCP:     mcpSrv,
		Debug:   cfg.Debug,
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Long enough for a fetch plus an assessment round trip.
		WriteTimeout: cfg.Ingest.FetchTimeout + cfg.Assess.Timeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", cfg.Listen, "version", version,
			"max_upload_mb", cfg.Ingest.MaxUploadMB, "mcp", cfg.MCP, "audit_db", cfg.AuditDB != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// pruneEvents drops old ingest events once a day.
func pruneEvents(ctx context.Context, events *observability.EventLog, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		n, err := events.Cleanup(ctx, eventRetentionDays)
		if err != nil && ctx.Err() == nil {
			logger.Warn("event cleanup", "error", err)
		} else if n > 0 {
			logger.Info("event cleanup", "deleted", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
