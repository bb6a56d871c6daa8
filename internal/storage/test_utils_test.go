package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/quillwiki/quill/internal/config"
	"github.com/quillwiki/quill/internal/entity"
	"github.com/quillwiki/quill/internal/wikidb"
)

func newTestDB(t *testing.T) (*wikidb.DB, *Cache) {
	t.Helper()
	db, err := wikidb.Open(filepath.Join(t.TempDir(), "quill.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, NewCache(100, time.Minute)
}

// savePage creates or updates a page and fails the test on error.
func savePage(t *testing.T, svc *RevisionService, page *entity.Page) *entity.Page {
	t.Helper()
	if _, err := svc.SavePage(context.Background(), page, "tester"); err != nil {
		t.Fatalf("SavePage(%s) failed: %v", page.Name, err)
	}
	return page
}

func defaultSearchConfig() config.SearchConfig {
	return config.Default().Search
}
