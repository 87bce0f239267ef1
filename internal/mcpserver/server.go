package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/apresai/hydrator/internal/config"
	"github.com/apresai/hydrator/internal/metrics"
	"github.com/apresai/hydrator/internal/setup"
)

// Server is the MCP server for URL ingestion.
type Server struct {
	cfg     *config.Config
	app     *setup.App
	mcp     *server.MCPServer
	batches *BatchManager
	log     *slog.Logger
}

// New wires the pipeline from cfg and registers the MCP tools.
// ctx should be cancelled on SIGTERM; async batches derive from it.
func New(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (*Server, error) {
	app, err := setup.Build(ctx, cfg, logger, setup.Options{Metrics: true})
	if err != nil {
		return nil, err
	}

	batches := NewBatchManager(app.Pipeline, cfg.Server.MaxBatches, logger, ctx)
	handlers := NewHandlers(batches, app.Pipeline, app.Store, logger)

	mcpServer := server.NewMCPServer(
		"hydrator",
		version,
		server.WithToolCapabilities(true),
	)

	// Register tools
	tools := ToolDefs()
	mcpServer.AddTool(tools[0], handlers.HandleIngestURLs)
	mcpServer.AddTool(tools[1], handlers.HandleGetBatch)
	mcpServer.AddTool(tools[2], handlers.HandleCancelBatch)
	mcpServer.AddTool(tools[3], handlers.HandleIndexBucket)
	mcpServer.AddTool(tools[4], handlers.HandleListObjects)

	return &Server{
		cfg:     cfg,
		app:     app,
		mcp:     mcpServer,
		batches: batches,
		log:     logger,
	}, nil
}

// Handler routes /mcp, /metrics and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", RequireAPIKey(s.cfg.Server.APIKey, server.NewStreamableHTTPServer(s.mcp,
		server.WithStateLess(true),
	)))
	mux.Handle("/metrics", metrics.Handler(s.app.Registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start serves HTTP until ctx is cancelled, then waits up to drain for
// running batches before shutting down.
func (s *Server) Start(ctx context.Context, drain time.Duration) error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting MCP server", "addr", addr, "bucket", s.cfg.Bucket)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutdown signal received, waiting for active batches...")
	drainCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	if err := s.batches.Wait(drainCtx); err != nil {
		s.log.Warn("Batches still running at shutdown", "error", err)
	}
	if err := httpServer.Shutdown(drainCtx); err != nil {
		s.log.Error("HTTP shutdown error", "error", err)
	}
	s.log.Info("Shutdown complete")
	return nil
}

// Close releases the pipeline's clients.
func (s *Server) Close() error {
	return s.app.Close()
}
