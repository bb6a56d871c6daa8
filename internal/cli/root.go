// Package cli implements the quill command tree. The commands are thin
// drivers over the stores in internal/storage; this layer owns logging and
// output formatting, the stores stay silent.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/quillwiki/quill/internal/config"
	"github.com/quillwiki/quill/internal/storage"
	"github.com/quillwiki/quill/internal/wikidb"
)

var (
	configPath string
	dbPath     string
	logLevel   string
	userID     string
)

var rootCmd = &cobra.Command{
	Use:           "quill",
	Short:         "Versioned wiki content store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(logLevel)
	},
}

// Execute runs the command tree.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "quill.yml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides configuration)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", defaultUser(), "User recorded on writes")
}

func defaultUser() string {
	if u := os.Getenv("QUILL_USER"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "anonymous"
}

func initLogger(level string) {
	var ll slog.Level
	switch level {
	case "debug":
		ll = slog.LevelDebug
	case "warn":
		ll = slog.LevelWarn
	case "error":
		ll = slog.LevelError
	default:
		ll = slog.LevelInfo
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)
}

// stores bundles an open database with the services built on it.
type stores struct {
	cfg     *config.Config
	db      *wikidb.DB
	pages   *storage.RevisionService
	files   *storage.AttachmentService
	search  *storage.SearchService
	refs    *storage.ReferenceService
	archive *storage.DeletionService
}

func (s *stores) Close() error {
	return s.db.Close()
}

// openStores loads the configuration and opens the database. Path priority:
// QUILL_DB environment variable, then the --db flag, then the configuration
// file.
func openStores() (*stores, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	path := cfg.DatabasePath
	if dbPath != "" {
		path = dbPath
	}
	if env := os.Getenv("QUILL_DB"); env != "" {
		path = env
	}
	db, err := wikidb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	cache := storage.NewCache(cfg.Cache.MaxPerCategory, cfg.Cache.TTL)
	return &stores{
		cfg:     cfg,
		db:      db,
		pages:   storage.NewRevisionService(db, cache),
		files:   storage.NewAttachmentService(db, cache),
		search:  storage.NewSearchService(db, cache, cfg.Search),
		refs:    storage.NewReferenceService(db, cache),
		archive: storage.NewDeletionService(db, cache),
	}, nil
}
