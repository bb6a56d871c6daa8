package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quillwiki/quill/internal/config"
	"github.com/quillwiki/quill/internal/entity"
	"github.com/quillwiki/quill/internal/wikidb"
)

var initWriteConfig bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database schema (and optionally a default config file)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		path := cfg.DatabasePath
		if dbPath != "" {
			path = dbPath
		}
		db, err := wikidb.Open(path)
		if err != nil {
			return fmt.Errorf("creating database %s: %w", path, err)
		}
		defer db.Close()
		slog.Info("Initialized database", "path", path)

		if initWriteConfig {
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file %s already exists", configPath)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			if err := os.WriteFile(configPath, data, 0o644); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			slog.Info("Wrote default config", "path", configPath)
		}
		return nil
	},
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Maintenance operations",
}

var adminReindexCmd = &cobra.Command{
	Use:   "reindex [navigation]",
	Short: "Rebuild search tokens for one page, or for every page",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStores()
		if err != nil {
			return err
		}
		defer s.Close()
		ctx := cmd.Context()

		if len(args) == 1 {
			page, err := requirePage(ctx, s, args[0])
			if err != nil {
				return err
			}
			if err := s.search.RebuildPageTokens(ctx, page.ID); err != nil {
				return err
			}
			slog.Info("Reindexed page", "navigation", page.Navigation)
			return nil
		}

		const batch = 100
		var total int
		for listing := 1; ; listing++ {
			pages, err := s.pages.ListPages(ctx, entity.PageSortName, listing, batch)
			if err != nil {
				return err
			}
			if len(pages) == 0 {
				break
			}
			for _, p := range pages {
				if err := s.search.RebuildPageTokens(ctx, p.ID); err != nil {
					return fmt.Errorf("reindexing %s: %w", p.Navigation, err)
				}
				total++
			}
		}
		slog.Info("Reindexed all pages", "count", total)
		return nil
	},
}

var adminStatsCmd = &cobra.Command{
	Use:   "stats <navigation>",
	Short: "Show a page's hit count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStores()
		if err != nil {
			return err
		}
		defer s.Close()
		ctx := cmd.Context()

		page, err := requirePage(ctx, s, args[0])
		if err != nil {
			return err
		}
		hits, err := s.pages.PageHitCount(ctx, page.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s  hits=%d\n", page.Navigation, hits)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initWriteConfig, "write-config", false, "Also write a default config file")
	adminCmd.AddCommand(adminReindexCmd, adminStatsCmd)
	rootCmd.AddCommand(initCmd, adminCmd)
}
