package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/apresai/hydrator/internal/config"
	"github.com/apresai/hydrator/internal/mcpserver"
	"github.com/apresai/hydrator/internal/observability"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("HYDRATOR_CONFIG"), "Path to a YAML config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		observability.InitLogger("info", "json").Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.InitLogger(cfg.Log.Level, cfg.Log.Format)

	logger.Info("Hydrator MCP Server starting...", "version", version)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if observability.TracingEnabled() {
		tp, err := observability.InitTracer(ctx, "hydrator-mcp", version)
		if err != nil {
			logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					logger.Error("Tracer shutdown error", "error", err)
				}
			}()
		}
	}

	srv, err := mcpserver.New(ctx, cfg, version, logger)
	if err != nil {
		logger.Error("Failed to create server", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	// Running batches get up to 8 seconds to finish their in-flight writes
	// before the process is killed.
	if err := srv.Start(ctx, 8*time.Second); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
