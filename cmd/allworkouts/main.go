package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/meltforce/allworkouts/internal/catalog"
	"github.com/meltforce/allworkouts/internal/config"
	"github.com/meltforce/allworkouts/internal/extract"
	"github.com/meltforce/allworkouts/internal/importer"
	"github.com/meltforce/allworkouts/internal/llm"
	"github.com/meltforce/allworkouts/internal/matcher"
	"github.com/meltforce/allworkouts/internal/mcp"
	"github.com/meltforce/allworkouts/internal/metrics"
	"github.com/meltforce/allworkouts/internal/server"
	"github.com/meltforce/allworkouts/internal/storage"
	"github.com/meltforce/allworkouts/internal/telemetry"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	mcpRemote := flag.String("mcp-remote", "", "serve MCP over stdio, proxying to the AllWorkouts server at this URL")
	apiKey := flag.String("api-key", os.Getenv("ALLWORKOUTS_AUTH_API_KEY"), "API key for -mcp-remote")
	flag.Parse()

	if *mcpRemote != "" {
		// stdout carries the MCP protocol in this mode
		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
		runRemoteMCP(*mcpRemote, *apiKey, log)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("AllWorkouts starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	enabled, err := telemetry.Init(telemetry.Options{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Release:     Version,
	})
	if err != nil {
		log.Warn("sentry init failed", "error", err)
	} else if enabled {
		log.Info("sentry enabled", "environment", cfg.Sentry.Environment)
		defer telemetry.Flush(2 * time.Second)
	}

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Connect database
	ctx := context.Background()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	// Build the import pipeline
	cat := catalog.NewCached(db, cfg.Catalog.CacheTTL())

	m := matcher.New(cat, cfg.Matching.Thresholds())

	llmClient, err := llm.New(ctx, llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		Endpoint: cfg.LLM.Endpoint,
		Timeout:  cfg.LLM.Timeout(),
	})
	if err != nil {
		log.Error("failed to create llm client", "error", err)
		os.Exit(1)
	}
	defer llmClient.Close()

	ext := extract.New(llmClient, extract.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout(),
	}, log)

	met, err := metrics.New()
	if err != nil {
		log.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	imp := importer.New(ext, cat, m, db, met, log, importer.Options{
		TopN:             cfg.Matching.TopN,
		MatchConcurrency: cfg.Import.MatchConcurrency,
		FinalizeTimeout:  cfg.Import.FinalizeTimeout(),
	})
	materializer := importer.NewMaterializer(db, met, log)

	mcpSrv := mcp.New(mcp.NewLocalSource(imp, m, db, cat), Version, log)

	deps := server.Deps{
		Store:        db,
		Catalog:      cat,
		Matcher:      m,
		Importer:     imp,
		Materializer: materializer,
		Metrics:      met,
		MCP:          mcp.NewHTTPHandler(mcpSrv, server.UserID),
		APIKey:       cfg.Auth.APIKey,
		TopN:         cfg.Matching.TopN,
		Log:          log,
	}

	// Start server: tsnet or plain HTTP
	var listener net.Listener

	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		deps.WhoIs = lc

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{
		Handler:           server.New(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// SIGHUP drops the cached catalog, e.g. after reseeding exercises
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			cat.Invalidate()
			log.Info("exercise catalog cache invalidated")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}

// runRemoteMCP serves the MCP tools over stdio, backed by a running server.
func runRemoteMCP(baseURL, apiKey string, log *slog.Logger) {
	if apiKey == "" {
		log.Error("-mcp-remote requires -api-key or ALLWORKOUTS_AUTH_API_KEY")
		os.Exit(1)
	}
	log.Info("serving MCP over stdio", "remote", baseURL, "version", Version)

	s := mcp.New(mcp.NewHTTPClient(baseURL, apiKey), Version, log)
	if err := mcpserver.ServeStdio(s); err != nil {
		log.Error("mcp stdio error", "error", err)
		os.Exit(1)
	}
}
