package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/maruel/ksid"
	"github.com/spf13/cobra"

	"github.com/quillwiki/quill/internal/entity"
)

var (
	pageDescription string
	pageNamespace   string
	pageSummary     string
	pageBodyFile    string
	pageTags        []string
	pageRevision    int
	pageJSON        bool
	pageSort        string
	listPage        int
	listPageSize    int
)

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Create, read, version and archive wiki pages",
}

var pageSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Create a page or append a revision to an existing one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStores()
		if err != nil {
			return err
		}
		defer s.Close()
		ctx := cmd.Context()

		body, err := readBody(pageBodyFile)
		if err != nil {
			return err
		}
		name := args[0]
		if pageNamespace == "" {
			pageNamespace, _ = entity.SplitName(name)
		}
		page := &entity.Page{
			Name:          name,
			Namespace:     pageNamespace,
			Description:   pageDescription,
			Body:          body,
			ChangeSummary: pageSummary,
		}
		// An existing page under the same navigation gets a new revision
		// instead of a duplicate.
		existing, err := s.pages.GetPageByNavigation(ctx, entity.CanonicalNavigation(name))
		if err != nil {
			return err
		}
		if existing != nil {
			page.ID = existing.ID
			page.Navigation = existing.Navigation
		}
		id, err := s.pages.SavePage(ctx, page, userID)
		if err != nil {
			return err
		}
		if existing == nil {
			// Other pages may already link to this navigation; resolve them.
			if err := s.refs.UpdateSinglePageReference(ctx, page.Navigation, id); err != nil {
				return err
			}
		}
		if len(pageTags) > 0 {
			if err := s.pages.UpdatePageTags(ctx, id, pageTags); err != nil {
				return err
			}
		}
		if err := s.search.RebuildPageTokens(ctx, id); err != nil {
			return err
		}
		slog.Info("Saved page", "id", id, "navigation", page.Navigation, "revision", page.Revision)
		fmt.Println(id)
		return nil
	},
}

var pageGetCmd = &cobra.Command{
	Use:   "get <navigation>",
	Short: "Print a page revision (the current one by default)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStores()
		if err != nil {
			return err
		}
		defer s.Close()
		ctx := cmd.Context()

		rev, err := s.pages.GetPageRevisionByNavigation(ctx, entity.CanonicalNavigation(args[0]), pageRevision, false)
		if err != nil {
			return err
		}
		if rev == nil {
			return fmt.Errorf("page %q revision %d: %w", args[0], pageRevision, entity.ErrNotFound)
		}
		if err := s.pages.BumpPageStatistics(ctx, rev.PageID); err != nil {
			slog.Warn("Failed to record page hit", "error", err)
		}
		if pageJSON {
			return printJSON(rev)
		}
		fmt.Print(rev.Body)
		return nil
	},
}

var pageHistoryCmd = &cobra.Command{
	Use:   "history <navigation>",
	Short: "List a page's revisions, newest first",
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
		revs, err := s.pages.ListPageRevisions(ctx, page.ID, listPage, listPageSize)
		if err != nil {
			return err
		}
		if pageJSON {
			return printJSON(revs)
		}
		for _, r := range revs {
			fmt.Printf("%4d  %s  %-16s  %s\n",
				r.Revision, r.ModifiedDate.Format("2006-01-02 15:04"), r.ModifiedBy, r.ChangeSummary)
		}
		return nil
	},
}

var pageListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List pages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStores()
		if err != nil {
			return err
		}
		defer s.Close()

		sortKey, err := entity.ParsePageSort(pageSort)
		if err != nil {
			return err
		}
		pages, err := s.pages.ListPages(cmd.Context(), sortKey, listPage, listPageSize)
		if err != nil {
			return err
		}
		if pageJSON {
			return printJSON(pages)
		}
		for _, p := range pages {
			fmt.Printf("%s  r%-4d %-30s %s\n", p.ID, p.Revision, p.Navigation, p.Name)
		}
		return nil
	},
}

var pageRevertCmd = &cobra.Command{
	Use:   "revert <navigation> <revision>",
	Short: "Save an old revision's content as the new head revision",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStores()
		if err != nil {
			return err
		}
		defer s.Close()
		ctx := cmd.Context()

		revision, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid revision %q: %w", args[1], err)
		}
		page, err := requirePage(ctx, s, args[0])
		if err != nil {
			return err
		}
		if err := s.pages.RevertPageToRevision(ctx, page.ID, revision, userID); err != nil {
			return err
		}
		if err := s.search.RebuildPageTokens(ctx, page.ID); err != nil {
			return err
		}
		slog.Info("Reverted page", "navigation", args[0], "to_revision", revision)
		return nil
	},
}

var pageDeleteCmd = &cobra.Command{
	Use:   "delete <navigation>",
	Short: "Move a page to the archive (revisions stay addressable)",
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
		if err := s.archive.MovePageToDeleted(ctx, page.ID, userID); err != nil {
			return err
		}
		slog.Info("Archived page", "id", page.ID, "navigation", page.Navigation)
		return nil
	},
}

var pageRestoreCmd = &cobra.Command{
	Use:   "restore <page-id>",
	Short: "Move an archived page back to the live table and re-index it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStores()
		if err != nil {
			return err
		}
		defer s.Close()
		ctx := cmd.Context()

		id, err := ksid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid page id %q: %w", args[0], err)
		}
		if err := s.archive.RestoreDeletedPage(ctx, id); err != nil {
			return err
		}
		if err := s.search.RebuildPageTokens(ctx, id); err != nil {
			return err
		}
		slog.Info("Restored page", "id", id)
		return nil
	},
}

var pagePurgeCmd = &cobra.Command{
	Use:   "purge <page-id>",
	Short: "Permanently remove an archived page and everything keyed by it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStores()
		if err != nil {
			return err
		}
		defer s.Close()

		id, err := ksid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid page id %q: %w", args[0], err)
		}
		if err := s.archive.PurgeDeletedPage(cmd.Context(), id); err != nil {
			return err
		}
		slog.Info("Purged page", "id", id)
		return nil
	},
}

var pageDeleteRevisionCmd = &cobra.Command{
	Use:   "delete-revision <navigation> <revision>",
	Short: "Archive one revision; archiving the head rewinds the page to the previous one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStores()
		if err != nil {
			return err
		}
		defer s.Close()
		ctx := cmd.Context()

		revision, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid revision %q: %w", args[1], err)
		}
		page, err := requirePage(ctx, s, args[0])
		if err != nil {
			return err
		}
		if err := s.archive.MovePageRevisionToDeleted(ctx, page.ID, revision, userID); err != nil {
			return err
		}
		slog.Info("Archived revision", "navigation", page.Navigation, "revision", revision)
		return nil
	},
}

var pageRestoreRevisionCmd = &cobra.Command{
	Use:   "restore-revision <page-id> <revision>",
	Short: "Move an archived revision back into the page's history",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStores()
		if err != nil {
			return err
		}
		defer s.Close()

		id, err := ksid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid page id %q: %w", args[0], err)
		}
		revision, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid revision %q: %w", args[1], err)
		}
		if err := s.archive.RestoreDeletedPageRevision(cmd.Context(), id, revision); err != nil {
			return err
		}
		slog.Info("Restored revision", "id", id, "revision", revision)
		return nil
	},
}

var pageDeletedCmd = &cobra.Command{
	Use:   "deleted",
	Short: "List archived pages, most recently deleted first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStores()
		if err != nil {
			return err
		}
		defer s.Close()

		out, err := s.archive.ListDeletedPages(cmd.Context(), listPage, listPageSize)
		if err != nil {
			return err
		}
		if pageJSON {
			return printJSON(out)
		}
		for _, dp := range out {
			fmt.Printf("%s  %s  deleted %s by %s\n",
				dp.ID, dp.Navigation, dp.DeletedDate.Format("2006-01-02 15:04"), dp.DeletedBy)
		}
		return nil
	},
}

var pageTagCmd = &cobra.Command{
	Use:   "tag <navigation> [tags...]",
	Short: "Replace a page's tags and re-index it",
	Args:  cobra.MinimumNArgs(1),
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
		if err := s.pages.UpdatePageTags(ctx, page.ID, args[1:]); err != nil {
			return err
		}
		if err := s.search.RebuildPageTokens(ctx, page.ID); err != nil {
			return err
		}
		slog.Info("Tagged page", "navigation", page.Navigation, "tags", len(args)-1)
		return nil
	},
}

func init() {
	pageSaveCmd.Flags().StringVar(&pageDescription, "description", "", "Short page description")
	pageSaveCmd.Flags().StringVar(&pageNamespace, "namespace", "", "Page namespace")
	pageSaveCmd.Flags().StringVar(&pageSummary, "summary", "", "Change summary recorded on the revision")
	pageSaveCmd.Flags().StringVar(&pageBodyFile, "body-file", "-", "Body source file, - for stdin")
	pageSaveCmd.Flags().StringSliceVar(&pageTags, "tag", nil, "Tags (repeatable)")
	pageGetCmd.Flags().IntVar(&pageRevision, "revision", 0, "Revision to fetch, 0 for current")
	pageListCmd.Flags().StringVar(&pageSort, "sort", "name", "Sort key (name, navigation, modified)")
	for _, c := range []*cobra.Command{pageGetCmd, pageHistoryCmd, pageListCmd, pageDeletedCmd} {
		c.Flags().BoolVar(&pageJSON, "json", false, "Output as JSON")
	}
	for _, c := range []*cobra.Command{pageHistoryCmd, pageListCmd, pageDeletedCmd} {
		c.Flags().IntVar(&listPage, "page", 1, "Listing page number")
		c.Flags().IntVar(&listPageSize, "page-size", 20, "Listing page size")
	}
	pageCmd.AddCommand(pageSaveCmd, pageGetCmd, pageHistoryCmd, pageListCmd,
		pageRevertCmd, pageDeleteCmd, pageRestoreCmd, pagePurgeCmd,
		pageDeleteRevisionCmd, pageRestoreRevisionCmd, pageDeletedCmd, pageTagCmd)
	rootCmd.AddCommand(pageCmd)
}

// requirePage resolves a live page by navigation and errors on a miss.
func requirePage(ctx context.Context, s *stores, navigation string) (*entity.Page, error) {
	page, err := s.pages.GetPageByNavigation(ctx, entity.CanonicalNavigation(navigation))
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("page %q: %w", navigation, entity.ErrNotFound)
	}
	return page, nil
}

func readBody(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading body file: %w", err)
	}
	return string(data), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
