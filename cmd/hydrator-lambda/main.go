//go:build lambda.norpc

package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/apresai/hydrator/internal/api"
	"github.com/apresai/hydrator/internal/config"
	"github.com/apresai/hydrator/internal/observability"
	"github.com/apresai/hydrator/internal/pipeline"
	"github.com/apresai/hydrator/internal/setup"
)

func main() {
	cfg, err := config.Load(os.Getenv("HYDRATOR_CONFIG"))
	if err != nil {
		observability.InitLogger("info", "json").Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	log := observability.InitLogger(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	if observability.TracingEnabled() {
		if _, err := observability.InitTracer(ctx, "hydrator-lambda", "1.0.0"); err != nil {
			log.Warn("Failed to init tracer, continuing without tracing", "error", err)
		}
	}

	// Clients are built once per execution environment and reused across
	// invocations.
	app, err := setup.Build(ctx, cfg, log, setup.Options{})
	if err != nil {
		log.Error("Failed to build pipeline", "error", err)
		os.Exit(1)
	}

	mode, err := pipeline.ParseMode(cfg.Mode)
	if err != nil {
		log.Error("Invalid mode", "error", err)
		os.Exit(1)
	}

	lambda.Start(api.FunctionURLHandler(app.Pipeline, mode, cfg.Server.APIKey, log))
}
