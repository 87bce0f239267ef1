package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/apresai/hydrator/internal/config"
	"github.com/apresai/hydrator/internal/observability"
	"github.com/apresai/hydrator/internal/progress"
	"github.com/apresai/hydrator/internal/setup"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "hydrator",
	Short:         "Ingest web pages and documents into object storage and a document index",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hydrator %s\n", Version)
	},
}

var (
	flagConfig  string
	flagBucket  string
	flagVerbose bool
)

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", os.Getenv("HYDRATOR_CONFIG"), "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&flagBucket, "bucket", "b", "", "Bucket to read and write (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable detailed logging instead of the progress bar")
}

func Execute() error {
	return ExecuteContext(context.Background())
}

// loadConfig reads config and applies persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagBucket != "" {
		cfg.Bucket = flagBucket
	}
	if flagVerbose {
		cfg.Log.Level = "debug"
		cfg.Log.Format = "text"
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.Log.Level
	if !flagVerbose && level != "error" {
		// Keep the terminal for the progress bar and report.
		level = "warn"
	}
	return observability.NewLogger(os.Stderr, level, cfg.Log.Format)
}

// buildApp wires an App and returns it with a finish func that stops the
// progress renderer.
func buildApp(ctx context.Context, cfg *config.Config) (*setup.App, func(), error) {
	opts := setup.Options{}
	finish := func() {}
	if !flagVerbose {
		r := progress.NewBarRenderer(os.Stderr)
		opts.Progress = r.Handle
		finish = r.Finish
	}

	app, err := setup.Build(ctx, cfg, newLogger(cfg), opts)
	if err != nil {
		return nil, nil, err
	}
	return app, finish, nil
}

// ExecuteContext runs the root command with ctx, which commands see as
// cmd.Context().
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
	}
	return err
}
