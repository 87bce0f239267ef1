package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apresai/hydrator/internal/pipeline"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [url-or-path...]",
	Short: "Fetch, extract and store each locator as normalized text",
	Long: `Fetch each locator (an http(s) URL or a local file), extract its text,
collapse whitespace and write it to the bucket under a key derived from the
locator. With --index the stored objects are also submitted to the document
index. Exits non-zero when any locator fails.`,
	RunE: runIngest,
}

var (
	flagFile        string
	flagMode        string
	flagConcurrency int
	flagIndex       bool
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&flagFile, "file", "f", "", "Read locators from a file, one per line (- for stdin)")
	ingestCmd.Flags().StringVarP(&flagMode, "mode", "m", "", "Batch mode: sequential or concurrent (default from config)")
	ingestCmd.Flags().IntVarP(&flagConcurrency, "concurrency", "n", 0, "Maximum locators processed at once in concurrent mode")
	ingestCmd.Flags().BoolVarP(&flagIndex, "index", "i", false, "Submit stored objects to the document index")
}

func runIngest(cmd *cobra.Command, args []string) error {
	locators, err := readLocators(args, flagFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if len(locators) == 0 {
		return fmt.Errorf("no locators given: pass URLs or paths as arguments or use --file")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagMode != "" {
		cfg.Mode = flagMode
	}
	if flagConcurrency > 0 {
		cfg.Concurrency = flagConcurrency
	}
	mode, err := pipeline.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	app, finish, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	outcomes := app.Pipeline.Ingest(cmd.Context(), locators, mode, flagIndex)
	finish()

	renderReport(cmd.OutOrStdout(), "Ingested into "+cfg.Bucket, outcomes)
	return failureError(outcomes)
}

// readLocators merges positional arguments with lines from file. Blank lines
// and lines starting with # are skipped.
func readLocators(args []string, file string, stdin io.Reader) ([]string, error) {
	var locators []string
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			locators = append(locators, a)
		}
	}
	if file == "" {
		return locators, nil
	}

	var r io.Reader = stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open locator file: %w", err)
		}
		defer f.Close()
		r = f
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		locators = append(locators, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read locator file: %w", err)
	}
	return locators, nil
}

func failureError(outcomes []pipeline.Outcome) error {
	_, failed := pipeline.Summarize(outcomes)
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d items failed", failed, len(outcomes))
}
