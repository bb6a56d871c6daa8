package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/quillwiki/quill/internal/entity"
)

var refsJSON bool

var refsCmd = &cobra.Command{
	Use:   "refs",
	Short: "Inspect and rewrite the page reference graph",
}

var refsMissingCmd = &cobra.Command{
	Use:   "missing",
	Short: "List referenced navigations no live page exists under",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStores()
		if err != nil {
			return err
		}
		defer s.Close()

		missing, err := s.refs.ListMissingPages(cmd.Context())
		if err != nil {
			return err
		}
		if refsJSON {
			return printJSON(missing)
		}
		for _, m := range missing {
			fmt.Printf("%4d  %s\n", m.Referrers, m.Navigation)
		}
		return nil
	},
}

var refsOfCmd = &cobra.Command{
	Use:   "of <navigation>",
	Short: "List a page's outgoing references",
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
		out, err := s.refs.ListOutgoingReferences(ctx, page.ID)
		if err != nil {
			return err
		}
		if refsJSON {
			return printJSON(out)
		}
		for _, r := range out {
			state := "missing"
			if !r.ReferencesPageID.IsZero() {
				state = r.ReferencesPageID.String()
			}
			fmt.Printf("%-30s -> %s\n", r.ReferencesPageNavigation, state)
		}
		return nil
	},
}

var refsToCmd = &cobra.Command{
	Use:   "to <navigation>",
	Short: "List pages referencing a navigation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStores()
		if err != nil {
			return err
		}
		defer s.Close()

		in, err := s.refs.ListPagesReferencing(cmd.Context(), entity.CanonicalNavigation(args[0]))
		if err != nil {
			return err
		}
		if refsJSON {
			return printJSON(in)
		}
		for _, r := range in {
			fmt.Println(r.PageID)
		}
		return nil
	},
}

var refsSetCmd = &cobra.Command{
	Use:   "set <navigation> [targets...]",
	Short: "Replace a page's outgoing references",
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
		targets := make([]string, 0, len(args)-1)
		for _, t := range args[1:] {
			targets = append(targets, entity.CanonicalNavigation(t))
		}
		if err := s.refs.UpdatePageReferences(ctx, page.ID, targets); err != nil {
			return err
		}
		slog.Info("Updated references", "navigation", page.Navigation, "targets", len(targets))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{refsMissingCmd, refsOfCmd, refsToCmd} {
		c.Flags().BoolVar(&refsJSON, "json", false, "Output as JSON")
	}
	refsCmd.AddCommand(refsMissingCmd, refsOfCmd, refsToCmd, refsSetCmd)
	rootCmd.AddCommand(refsCmd)
}
