package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Submit every stored text object in the bucket to the document index",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, finish, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		outcomes, err := app.Pipeline.IndexStoredObjects(cmd.Context(), cfg.Bucket)
		finish()
		if err != nil {
			return err
		}
		renderReport(cmd.OutOrStdout(), "Indexed from "+cfg.Bucket, outcomes)
		return failureError(outcomes)
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List objects in the bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, _, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		keys, err := app.Store.List(cmd.Context(), cfg.Bucket, true)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if strings.HasPrefix(k, flagPrefix) {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		}
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <key>...",
	Short: "Delete objects from the bucket",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, _, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		for _, key := range args {
			if err := app.Store.Delete(cmd.Context(), cfg.Bucket, key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", key)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over indexed records (sqlite index only)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Index.Backend != "sqlite" {
			return fmt.Errorf("search requires the sqlite index backend (configured: %s)", cfg.Index.Backend)
		}
		app, _, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		hits, err := app.SQLite.Search(cmd.Context(), strings.Join(args, " "), flagLimit)
		if err != nil {
			return err
		}
		renderHits(cmd.OutOrStdout(), hits)
		return nil
	},
}

var (
	flagPrefix string
	flagLimit  int
)

func init() {
	rootCmd.AddCommand(indexCmd, lsCmd, rmCmd, searchCmd)
	lsCmd.Flags().StringVarP(&flagPrefix, "prefix", "p", "", "Only list keys with this prefix")
	searchCmd.Flags().IntVarP(&flagLimit, "limit", "l", 10, "Maximum number of hits")
}
