// Package setup builds the shared clients and the pipeline from config.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/apresai/hydrator/internal/config"
	"github.com/apresai/hydrator/internal/fetch"
	"github.com/apresai/hydrator/internal/index"
	"github.com/apresai/hydrator/internal/ingest"
	"github.com/apresai/hydrator/internal/metrics"
	"github.com/apresai/hydrator/internal/notify"
	"github.com/apresai/hydrator/internal/objstore"
	"github.com/apresai/hydrator/internal/pipeline"
	"github.com/apresai/hydrator/internal/progress"
)

// Options tune what Build wires.
type Options struct {
	Progress progress.Callback
	// Metrics registers pipeline instruments on a fresh registry.
	Metrics bool
}

// App holds everything an entry point needs. Close releases it.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    objstore.Store
	Indexer  index.Indexer
	Pipeline *pipeline.Pipeline
	Registry *prometheus.Registry

	// SQLite is set when the index backend is sqlite.
	SQLite *index.SQLiteIndex

	closers []func() error
}

// Build wires clients from cfg, loading secrets first when a secret prefix
// is configured, and ensures the target bucket exists.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	var awsCfg aws.Config
	if needsAWS(cfg) {
		var err error
		awsCfg, err = LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		if cfg.SecretPrefix != "" {
			if err := loadSecrets(ctx, awsCfg, cfg.SecretPrefix, logger); err != nil {
				logger.Warn("Failed to load secrets from Secrets Manager, falling back to env vars",
					"error", err)
			}
			if err := cfg.ApplyEnv(); err != nil {
				return nil, err
			}
		}
	}

	store, err := NewStore(cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	app.Store = store

	if err := app.buildIndex(cfg, awsCfg); err != nil {
		return nil, err
	}

	notifier, err := app.buildNotifier(cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	var rec *metrics.Recorder
	if opts.Metrics {
		app.Registry = prometheus.NewRegistry()
		app.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		if rec, err = metrics.NewRecorder(app.Registry); err != nil {
			app.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	mode, err := pipeline.ParseMode(cfg.Mode)
	if err != nil {
		app.Close()
		return nil, err
	}

	p, err := pipeline.New(pipeline.Deps{
		Fetcher: fetch.New(&fetch.Options{
			Timeout:           cfg.Fetch.Timeout,
			UserAgent:         cfg.Fetch.UserAgent,
			RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
			Burst:             cfg.Fetch.Burst,
		}),
		Extractor: ingest.NewAutoExtractor(ingest.Options{Readability: cfg.Readability}),
		Store:     app.Store,
		Indexer:   app.Indexer,
		Logger:    logger,
		Metrics:   rec,
		Notifier:  notifier,
		Progress:  opts.Progress,
	}, pipeline.Options{
		Bucket:      cfg.Bucket,
		ClassName:   cfg.Class,
		Concurrency: cfg.Concurrency,
		IndexMode:   mode,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Pipeline = p

	if err := p.EnsureBucket(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Close releases index and notifier connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func needsAWS(cfg *config.Config) bool {
	return cfg.Store.Backend == "s3" || cfg.Index.Backend == "dynamodb" || cfg.SecretPrefix != ""
}

// LoadAWSConfig loads the default AWS config for region with OpenTelemetry
// instrumentation on every client built from it.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	return awsCfg, nil
}

// NewStore builds the configured object store. Static credentials from
// config apply only to the object store client.
func NewStore(cfg *config.Config, awsCfg aws.Config) (objstore.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return objstore.NewMemoryStore(), nil
	case "s3":
		s3Cfg := awsCfg.Copy()
		if cfg.Store.AccessKey != "" {
			s3Cfg.Credentials = aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(cfg.Store.AccessKey, cfg.Store.SecretKey, ""),
			)
		}
		client := objstore.NewS3Client(s3Cfg, cfg.Store.Endpoint, cfg.Store.UsePathStyle)
		return objstore.NewS3Store(client, cfg.AWSRegion), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func (a *App) buildIndex(cfg *config.Config, awsCfg aws.Config) error {
	switch cfg.Index.Backend {
	case "memory":
		a.Indexer = index.NewMemoryIndex()
	case "sqlite":
		idx, err := index.NewSQLiteIndex(cfg.Index.Path)
		if err != nil {
			return err
		}
		a.Indexer = idx
		a.SQLite = idx
		a.closers = append(a.closers, idx.Close)
	case "dynamodb":
		a.Indexer = index.NewDynamoIndex(dynamodb.NewFromConfig(awsCfg), cfg.Index.Table)
	case "weaviate":
		idx, err := index.NewWeaviateIndex(index.WeaviateConfig{
			Host:   cfg.Index.Weaviate.Host,
			Scheme: cfg.Index.Weaviate.Scheme,
			APIKey: cfg.Index.Weaviate.APIKey,
		})
		if err != nil {
			return err
		}
		a.Indexer = idx
	default:
		return fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
	return nil
}

func (a *App) buildNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, error) {
	if cfg.Notify.NATSURL == "" {
		return notify.Nop{}, nil
	}
	n, err := notify.NewNATSNotifier(cfg.Notify.NATSURL, cfg.Notify.SubjectPrefix)
	if err != nil {
		return nil, err
	}
	logger.Info("Publishing pipeline events", "nats_url", cfg.Notify.NATSURL, "prefix", cfg.Notify.SubjectPrefix)
	a.closers = append(a.closers, n.Close)
	return n, nil
}

// loadSecrets fetches credentials from Secrets Manager and sets them as env vars.
func loadSecrets(ctx context.Context, cfg aws.Config, prefix string, logger *slog.Logger) error {
	client := secretsmanager.NewFromConfig(cfg)

	secrets := map[string]string{
		"S3_ACCESS_KEY":    prefix + "S3_ACCESS_KEY",
		"S3_SECRET_KEY":    prefix + "S3_SECRET_KEY",
		"WEAVIATE_API_KEY": prefix + "WEAVIATE_API_KEY",
		"HYDRATOR_API_KEY": prefix + "HYDRATOR_API_KEY",
	}

	for envVar, secretID := range secrets {
		// Skip if already set in environment
		if os.Getenv(envVar) != "" {
			continue
		}

		result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: &secretID,
		})
		if err != nil {
			logger.Info("Secret not found", "secret_id", secretID, "error", err)
			continue
		}
		if result.SecretString != nil {
			os.Setenv(envVar, *result.SecretString)
			logger.Info("Loaded secret", "secret_id", secretID)
		}
	}

	return nil
}
