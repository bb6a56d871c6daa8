package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maruel/ksid"

	"github.com/quillwiki/quill/internal/entity"
	"github.com/quillwiki/quill/internal/wikidb"
)

// ReferenceService owns the page_references table: the outgoing links of
// every page, keyed by target navigation and lazily resolved to a page id.
// Rows whose target id is still null are the "missing pages" report; no
// separate structure exists.
type ReferenceService struct {
	db    *wikidb.DB
	cache *Cache
}

// NewReferenceService creates a new reference service.
func NewReferenceService(db *wikidb.DB, cache *Cache) *ReferenceService {
	return &ReferenceService{db: db, cache: cache}
}

// UpdatePageReferences replaces every outgoing reference of a page with one
// row per distinct target navigation, resolving targets that exist now and
// leaving the rest unresolved.
func (s *ReferenceService) UpdatePageReferences(ctx context.Context, pageID ksid.ID, targets []string) error {
	seen := map[string]bool{}
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM page_references WHERE page_id = ?", pageID.String()); err != nil {
			return fmt.Errorf("clearing references: %w", err)
		}
		for _, target := range targets {
			if target == "" || seen[target] {
				continue
			}
			seen[target] = true

			var targetID sql.NullString
			err := tx.QueryRow("SELECT id FROM pages WHERE navigation = ?", target).Scan(&targetID.String)
			if err == nil {
				targetID.Valid = true
			} else if err != sql.ErrNoRows {
				return fmt.Errorf("resolving target %q: %w", target, err)
			}
			if _, err := tx.Exec(`
				INSERT INTO page_references (page_id, references_page_navigation, references_page_id)
				VALUES (?, ?, ?)`, pageID.String(), target, targetID); err != nil {
				return fmt.Errorf("inserting reference to %q: %w", target, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.ClearCategory(CachePages)
	return nil
}

// UpdateSinglePageReference repairs every reference row across the graph
// pointing at navigation so it resolves to pageID. Called right after a new
// page is created under a navigation other pages already link to.
func (s *ReferenceService) UpdateSinglePageReference(ctx context.Context, navigation string, pageID ksid.ID) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		UPDATE page_references SET references_page_id = ?
		WHERE references_page_navigation = ?
		AND (references_page_id IS NULL OR references_page_id != ?)`,
		pageID.String(), navigation, pageID.String())
	if err != nil {
		return fmt.Errorf("repairing references to %q: %w", navigation, err)
	}
	s.cache.ClearCategory(CachePages)
	return nil
}

// ListOutgoingReferences returns a page's reference rows.
func (s *ReferenceService) ListOutgoingReferences(ctx context.Context, pageID ksid.ID) ([]entity.PageReference, error) {
	return s.listReferences(ctx,
		"WHERE page_id = ? ORDER BY references_page_navigation", pageID.String())
}

// ListPagesReferencing returns every reference row pointing at a navigation.
func (s *ReferenceService) ListPagesReferencing(ctx context.Context, navigation string) ([]entity.PageReference, error) {
	return s.listReferences(ctx,
		"WHERE references_page_navigation = ? ORDER BY page_id", navigation)
}

func (s *ReferenceService) listReferences(ctx context.Context, where string, arg any) ([]entity.PageReference, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, page_id, references_page_navigation, references_page_id
		FROM page_references `+where, arg)
	if err != nil {
		return nil, fmt.Errorf("listing references: %w", err)
	}
	defer rows.Close()

	var out []entity.PageReference
	for rows.Next() {
		var r entity.PageReference
		var pageID string
		var targetID sql.NullString
		if err := rows.Scan(&r.ID, &pageID, &r.ReferencesPageNavigation, &targetID); err != nil {
			return nil, err
		}
		pid, err := ksid.Parse(pageID)
		if err != nil {
			return nil, fmt.Errorf("parsing page id %q: %w", pageID, err)
		}
		r.PageID = pid
		if targetID.Valid {
			tid, err := ksid.Parse(targetID.String)
			if err != nil {
				return nil, fmt.Errorf("parsing target id %q: %w", targetID.String, err)
			}
			r.ReferencesPageID = tid
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListMissingPages returns the distinct unresolved target navigations with
// how many pages link to each.
func (s *ReferenceService) ListMissingPages(ctx context.Context) ([]entity.MissingPage, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT references_page_navigation, COUNT(DISTINCT page_id)
		FROM page_references
		WHERE references_page_id IS NULL
		GROUP BY references_page_navigation
		ORDER BY references_page_navigation`)
	if err != nil {
		return nil, fmt.Errorf("listing missing pages: %w", err)
	}
	defer rows.Close()

	var out []entity.MissingPage
	for rows.Next() {
		var m entity.MissingPage
		if err := rows.Scan(&m.Navigation, &m.Referrers); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
