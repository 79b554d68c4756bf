// Entry point for the scrivener conversion service: chi router behind
// the shield middleware stack, SQLite observability, optional MCP
// stdio transport.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/lexforge/scrivener/dbopen"
	"github.com/lexforge/scrivener/observability"
	"github.com/lexforge/scrivener/service"
	"github.com/lexforge/scrivener/shield"
	"github.com/lexforge/scrivener/tool"
)

func main() {
	cfg, err := service.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	// Logging.
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Fail fast when the conversion engines are missing rather than on
	// the first request that needs them.
	run := tool.NewExecRunner()
	for _, bin := range []string{
		cfg.Binaries.PDFToText, cfg.Binaries.PDFToPPM, cfg.Binaries.Tesseract,
		cfg.Binaries.FFmpeg, cfg.Binaries.FFprobe, cfg.Binaries.File,
	} {
		if err := run.LookPath(bin); err != nil {
			slog.Warn("conversion engine not found", "binary", bin)
		}
	}

	// Observability DB.
	obsDB, err := dbopen.Open(cfg.ObsDBPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("observability db", "error", err)
		os.Exit(1)
	}
	defer obsDB.Close()
	if err := observability.Init(obsDB); err != nil {
		slog.Error("observability init", "error", err)
		os.Exit(1)
	}
	if err := shield.Init(obsDB); err != nil {
		slog.Error("shield init", "error", err)
		os.Exit(1)
	}

	metrics := observability.NewMetricsManager(obsDB, 100, 5*time.Second)
	defer metrics.Close()
	events := observability.NewEventLogger(obsDB)

	heartbeat := observability.NewHeartbeatWriter(obsDB, "scrivener", time.Minute)
	heartbeat.Start(ctx)
	defer heartbeat.Stop()

	// Daily retention sweep over all three observability tables.
	go func() {
		tick := time.NewTicker(24 * time.Hour)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
				if n, err := metrics.Cleanup(sweepCtx, cfg.RetentionDays); err != nil {
					slog.Error("metrics retention", "error", err)
				} else if n > 0 {
					slog.Info("metrics retention", "deleted", n)
				}
				if n, err := observability.CleanupEvents(sweepCtx, obsDB, cfg.RetentionDays); err != nil {
					slog.Error("events retention", "error", err)
				} else if n > 0 {
					slog.Info("events retention", "deleted", n)
				}
				if n, err := observability.CleanupHeartbeats(sweepCtx, obsDB, cfg.RetentionDays); err != nil {
					slog.Error("heartbeats retention", "error", err)
				} else if n > 0 {
					slog.Info("heartbeats retention", "deleted", n)
				}
				cancel()
			}
		}
	}()

	svc := service.New(cfg, run,
		service.WithLogger(logger),
		service.WithMetrics(metrics),
		service.WithEventLogger(events),
		service.WithHeartbeatProbe(func(ctx context.Context) (*observability.HeartbeatStatus, error) {
			return observability.LatestHeartbeat(ctx, obsDB, "scrivener", 3*time.Minute)
		}),
	)

	// Optional MCP stdio transport: the process serves tools on
	// stdin/stdout and skips HTTP entirely.
	if cfg.MCPTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "scrivener",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)

		slog.Info("MCP stdio starting")
		if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			slog.Error("MCP stdio", "error", err)
			os.Exit(1)
		}
		return
	}

	// Router.
	r := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack(obsDB) {
		r.Use(mw)
	}
	svc.RegisterHTTP(r)

	// HTTP server.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}
