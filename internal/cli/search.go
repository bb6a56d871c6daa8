package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillwiki/quill/internal/storage"
)

var (
	searchFuzzy    bool
	searchByScore  bool
	searchJSON     bool
	searchPage     int
	searchPageSize int
)

var searchCmd = &cobra.Command{
	Use:   "search <terms...>",
	Short: "Search pages by weighted tokens, with optional phonetic matching",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStores()
		if err != nil {
			return err
		}
		defer s.Close()

		cfg := s.cfg.Search
		cfg.EnableFuzzy = searchFuzzy
		index := storage.NewSearchService(s.db, storage.NewCache(s.cfg.Cache.MaxPerCategory, s.cfg.Cache.TTL), cfg)
		results, err := index.SearchPaged(cmd.Context(), args, storage.SearchOptions{
			Page:         searchPage,
			PageSize:     searchPageSize,
			OrderByScore: searchByScore,
		})
		if err != nil {
			return err
		}
		if searchJSON {
			return printJSON(results)
		}
		for _, r := range results {
			fmt.Printf("%5.2f  %-30s %s\n", r.Score, r.Navigation, r.Name)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().BoolVar(&searchFuzzy, "fuzzy", true, "Include phonetic near-matches")
	searchCmd.Flags().BoolVar(&searchByScore, "score", false, "Order by score instead of name")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output as JSON")
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "Result page number")
	searchCmd.Flags().IntVar(&searchPageSize, "page-size", 20, "Result page size")
	rootCmd.AddCommand(searchCmd)
}
