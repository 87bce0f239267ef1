// Populate the configured bucket from a seed list of URLs, then optionally
// index everything in it. Useful for bootstrapping a fresh MinIO/S3 bucket.
//
// Usage:
//
//	go run ./scripts/populate-bucket --file seeds.txt
//	go run ./scripts/populate-bucket --file seeds.txt --index --config hydrator.yaml
//	go run ./scripts/populate-bucket --dry-run --file seeds.txt   # print keys only
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/apresai/hydrator/internal/config"
	"github.com/apresai/hydrator/internal/ingest"
	"github.com/apresai/hydrator/internal/observability"
	"github.com/apresai/hydrator/internal/pipeline"
	"github.com/apresai/hydrator/internal/setup"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("HYDRATOR_CONFIG"), "Path to a YAML config file")
		seedFile   = flag.String("file", "", "File with one URL per line")
		index      = flag.Bool("index", false, "Index the whole bucket after populating")
		dryRun     = flag.Bool("dry-run", false, "Print the object key for each URL without fetching")
	)
	flag.Parse()

	_ = godotenv.Load()

	urls, err := readSeeds(*seedFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read seeds: %v\n", err)
		os.Exit(1)
	}
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "no URLs to ingest (use --file)")
		os.Exit(1)
	}

	if *dryRun {
		for _, u := range urls {
			fmt.Printf("[DRY-RUN] %s -> %s\n", u, ingest.ObjectKey(u))
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := observability.InitLogger(cfg.Log.Level, "text")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := setup.Build(ctx, cfg, logger, setup.Options{})
	if err != nil {
		logger.Error("Failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	outcomes := app.Pipeline.IngestMany(ctx, urls, pipeline.ModeConcurrent)
	ok, failed := pipeline.Summarize(outcomes)
	logger.Info("Populate complete", "bucket", cfg.Bucket, "stored", ok, "failed", failed)

	if *index {
		indexed, err := app.Pipeline.IndexStoredObjects(ctx, cfg.Bucket)
		if err != nil {
			logger.Error("Index failed", "error", err)
			os.Exit(1)
		}
		iok, ifailed := pipeline.Summarize(indexed)
		logger.Info("Index complete", "indexed", iok, "failed", ifailed)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func readSeeds(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	return urls, sc.Err()
}
