package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/maruel/ksid"
	"github.com/spf13/cobra"

	"github.com/quillwiki/quill/internal/entity"
	"github.com/quillwiki/quill/internal/storage"
)

var (
	fileName        string
	fileContentType string
	fileRevision    int
	fileOutput      string
	fileJSON        bool
	fileAll         bool
	orphansList     bool
)

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Attach versioned files to pages",
}

var filePutCmd = &cobra.Command{
	Use:   "put <page-navigation> <path>",
	Short: "Upload a file and attach it to the page's current revision",
	Args:  cobra.ExactArgs(2),
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
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		name := fileName
		if name == "" {
			name = filepath.Base(args[1])
		}
		fileID, err := s.files.UpsertPageFile(ctx, storage.FileUpload{
			PageID:      page.ID,
			Name:        name,
			ContentType: fileContentType,
			Data:        data,
		}, userID)
		if err != nil {
			return err
		}
		slog.Info("Uploaded file", "page", page.Navigation, "file", name,
			"id", fileID, "size", humanize.Bytes(uint64(len(data))))
		fmt.Println(fileID)
		return nil
	},
}

var fileGetCmd = &cobra.Command{
	Use:   "get <page-navigation> <file-navigation>",
	Short: "Download the file revision attached to a page revision",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStores()
		if err != nil {
			return err
		}
		defer s.Close()
		ctx := cmd.Context()

		pageNav := entity.CanonicalNavigation(args[0])
		fileNav := entity.CanonicalNavigation(args[1])
		var att *storage.FileAttachment
		if fileRevision > 0 {
			att, err = s.files.GetFileAttachmentByRevision(ctx, pageNav, fileNav, fileRevision)
		} else {
			att, err = s.files.GetFileAttachment(ctx, pageNav, fileNav)
		}
		if err != nil {
			return err
		}
		if att == nil {
			return fmt.Errorf("file %q on page %q: %w", args[1], args[0], entity.ErrNotFound)
		}
		if fileOutput == "-" || fileOutput == "" {
			_, err := os.Stdout.Write(att.Data)
			return err
		}
		if err := os.WriteFile(fileOutput, att.Data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", fileOutput, err)
		}
		slog.Info("Downloaded file", "file", att.Name, "revision", att.Revision,
			"content_type", att.ContentType, "size", humanize.Bytes(uint64(att.Size)))
		return nil
	},
}

var fileListCmd = &cobra.Command{
	Use:   "ls <page-navigation>",
	Short: "List files attached to a page revision",
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
		var files []entity.PageFile
		if fileAll {
			files, err = s.files.ListPageFiles(ctx, page.ID)
		} else {
			revision := fileRevision
			if revision <= 0 {
				revision = page.Revision
			}
			files, err = s.files.ListPageFilesByRevision(ctx, page.ID, revision)
		}
		if err != nil {
			return err
		}
		if fileJSON {
			return printJSON(files)
		}
		for _, f := range files {
			fmt.Printf("%s  r%-4d %-30s %s\n", f.ID, f.Revision, f.Navigation, f.Name)
		}
		return nil
	},
}

var fileDetachCmd = &cobra.Command{
	Use:   "detach <page-navigation> <file-id> <page-revision>",
	Short: "Remove a file's attachment link from one page revision",
	Args:  cobra.ExactArgs(3),
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
		fileID, err := ksid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid file id %q: %w", args[1], err)
		}
		revision, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid revision %q: %w", args[2], err)
		}
		if err := s.files.DetachFile(ctx, page.ID, fileID, revision); err != nil {
			return err
		}
		slog.Info("Detached file", "page", page.Navigation, "file", fileID, "revision", revision)
		return nil
	},
}

var filePurgeOrphansCmd = &cobra.Command{
	Use:   "purge-orphans",
	Short: "Delete file revisions no attachment row points at",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStores()
		if err != nil {
			return err
		}
		defer s.Close()
		ctx := cmd.Context()

		if orphansList {
			orphans, err := s.files.ListOrphanedFileRevisions(ctx)
			if err != nil {
				return err
			}
			for _, o := range orphans {
				fmt.Printf("%s  r%-4d %-30s %s\n",
					o.PageFileID, o.Revision, o.FileName, humanize.Bytes(uint64(o.Size)))
			}
			return nil
		}
		n, err := s.files.PurgeOrphanedFileRevisions(ctx)
		if err != nil {
			return err
		}
		slog.Info("Purged orphaned file revisions", "count", n)
		return nil
	},
}

func init() {
	filePutCmd.Flags().StringVar(&fileName, "name", "", "File name (defaults to the path's base name)")
	filePutCmd.Flags().StringVar(&fileContentType, "content-type", "", "MIME type (detected from the name when empty)")
	fileGetCmd.Flags().IntVar(&fileRevision, "revision", 0, "Page revision to resolve against, 0 for current")
	fileGetCmd.Flags().StringVarP(&fileOutput, "output", "o", "-", "Output path, - for stdout")
	fileListCmd.Flags().IntVar(&fileRevision, "revision", 0, "Page revision to list, 0 for current")
	fileListCmd.Flags().BoolVar(&fileAll, "all", false, "List every file of the page regardless of attachment")
	fileListCmd.Flags().BoolVar(&fileJSON, "json", false, "Output as JSON")
	filePurgeOrphansCmd.Flags().BoolVar(&orphansList, "list", false, "List orphans instead of purging them")
	fileCmd.AddCommand(filePutCmd, fileGetCmd, fileListCmd, fileDetachCmd, filePurgeOrphansCmd)
	rootCmd.AddCommand(fileCmd)
}
