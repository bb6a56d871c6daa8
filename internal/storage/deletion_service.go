package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/maruel/ksid"

	"github.com/quillwiki/quill/internal/entity"
	"github.com/quillwiki/quill/internal/wikidb"
)

// DeletionService owns the deleted_pages and deleted_page_revisions archive
// tables. Deleting is a move, not a destroy: the live row is copied into the
// archive and removed, and only an explicit purge is irreversible.
type DeletionService struct {
	db    *wikidb.DB
	cache *Cache
}

// NewDeletionService creates a new deletion service.
func NewDeletionService(db *wikidb.DB, cache *Cache) *DeletionService {
	return &DeletionService{db: db, cache: cache}
}

// MovePageToDeleted archives the live page row and cascade-deletes its
// dependent rows (tags, processing instructions, comments, references,
// tokens, statistics). Revisions are not touched; they stay addressable
// until archived per-revision.
func (s *DeletionService) MovePageToDeleted(ctx context.Context, pageID ksid.ID, userID string) error {
	now := wikidb.ToMillis(time.Now().UTC())
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO deleted_pages (id, name, navigation, namespace, description, revision,
				created_by, created_date, modified_by, modified_date, deleted_by, deleted_date)
			SELECT id, name, navigation, namespace, description, revision,
				created_by, created_date, modified_by, modified_date, ?, ?
			FROM pages WHERE id = ?`, userID, now, pageID.String())
		if err != nil {
			return fmt.Errorf("archiving page: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("page %s: %w", pageID, entity.ErrNotFound)
		}
		if _, err := tx.Exec("DELETE FROM pages WHERE id = ?", pageID.String()); err != nil {
			return fmt.Errorf("removing live page: %w", err)
		}
		for _, table := range []string{
			"page_tags", "page_processing_instructions", "page_comments",
			"page_references", "page_tokens", "page_statistics",
		} {
			if _, err := tx.Exec("DELETE FROM "+table+" WHERE page_id = ?", pageID.String()); err != nil {
				return fmt.Errorf("cascading %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.Clear()
	return nil
}

// RestoreDeletedPage moves the archived page row back to the live table.
// Tags, tokens and other derived rows are not restored; the caller rebuilds
// them by re-tokenizing.
func (s *DeletionService) RestoreDeletedPage(ctx context.Context, pageID ksid.ID) error {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO pages (id, name, navigation, namespace, description, revision,
				created_by, created_date, modified_by, modified_date)
			SELECT id, name, navigation, namespace, description, revision,
				created_by, created_date, modified_by, modified_date
			FROM deleted_pages WHERE id = ?`, pageID.String())
		if wikidb.IsUniqueViolation(err, "pages.navigation") {
			return fmt.Errorf("restoring page %s: %w", pageID, entity.ErrNavigationTaken)
		}
		if err != nil {
			return fmt.Errorf("restoring page: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("archived page %s: %w", pageID, entity.ErrNotFound)
		}
		if _, err := tx.Exec("DELETE FROM deleted_pages WHERE id = ?", pageID.String()); err != nil {
			return fmt.Errorf("removing archived page: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.Clear()
	return nil
}

// MovePageRevisionToDeleted archives one revision snapshot. Archiving the
// head revision of a live page rewinds the page's current-revision pointer
// to the highest revision still live; the revision's attachment links are
// dropped, orphaning their file revisions.
func (s *DeletionService) MovePageRevisionToDeleted(ctx context.Context, pageID ksid.ID, revision int, userID string) error {
	now := wikidb.ToMillis(time.Now().UTC())
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO deleted_page_revisions (page_id, revision, name, navigation, namespace,
				description, body, data_hash, change_summary, modified_by, modified_date,
				deleted_by, deleted_date)
			SELECT page_id, revision, name, navigation, namespace,
				description, body, data_hash, change_summary, modified_by, modified_date, ?, ?
			FROM page_revisions WHERE page_id = ? AND revision = ?`,
			userID, now, pageID.String(), revision)
		if err != nil {
			return fmt.Errorf("archiving revision: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("revision %d of page %s: %w", revision, pageID, entity.ErrNotFound)
		}
		if _, err := tx.Exec(
			"DELETE FROM page_revisions WHERE page_id = ? AND revision = ?",
			pageID.String(), revision); err != nil {
			return fmt.Errorf("removing live revision: %w", err)
		}
		if _, err := tx.Exec(
			"DELETE FROM page_revision_attachments WHERE page_id = ? AND page_revision = ?",
			pageID.String(), revision); err != nil {
			return fmt.Errorf("dropping attachment links: %w", err)
		}
		// Rewind the denormalized pointer when the head was archived.
		if _, err := tx.Exec(`
			UPDATE pages SET revision = (
				SELECT COALESCE(MAX(revision), 0) FROM page_revisions WHERE page_id = pages.id
			) WHERE id = ? AND revision = ?`, pageID.String(), revision); err != nil {
			return fmt.Errorf("rewinding page revision: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.Clear()
	return nil
}

// RestoreDeletedPageRevision moves an archived revision back. Restoring a
// revision above the live page's pointer fast-forwards the pointer.
func (s *DeletionService) RestoreDeletedPageRevision(ctx context.Context, pageID ksid.ID, revision int) error {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO page_revisions (page_id, revision, name, navigation, namespace,
				description, body, data_hash, change_summary, modified_by, modified_date)
			SELECT page_id, revision, name, navigation, namespace,
				description, body, data_hash, change_summary, modified_by, modified_date
			FROM deleted_page_revisions WHERE page_id = ? AND revision = ?`,
			pageID.String(), revision)
		if err != nil {
			return fmt.Errorf("restoring revision: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("archived revision %d of page %s: %w", revision, pageID, entity.ErrNotFound)
		}
		if _, err := tx.Exec(
			"DELETE FROM deleted_page_revisions WHERE page_id = ? AND revision = ?",
			pageID.String(), revision); err != nil {
			return fmt.Errorf("removing archived revision: %w", err)
		}
		if _, err := tx.Exec(
			"UPDATE pages SET revision = ? WHERE id = ? AND revision < ?",
			revision, pageID.String(), revision); err != nil {
			return fmt.Errorf("fast-forwarding page revision: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.Clear()
	return nil
}

// PurgeDeletedPage permanently removes the archived page, its archived and
// remaining live revisions, and every file and dependent row keyed by the
// page id. Irreversible.
func (s *DeletionService) PurgeDeletedPage(ctx context.Context, pageID ksid.ID) error {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM deleted_pages WHERE id = ?", pageID.String())
		if err != nil {
			return fmt.Errorf("purging archived page: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("archived page %s: %w", pageID, entity.ErrNotFound)
		}
		for _, stmt := range []string{
			"DELETE FROM deleted_page_revisions WHERE page_id = ?",
			"DELETE FROM page_revisions WHERE page_id = ?",
			"DELETE FROM page_revision_attachments WHERE page_id = ?",
			`DELETE FROM page_file_revisions WHERE page_file_id IN (
				SELECT id FROM page_files WHERE page_id = ?)`,
			"DELETE FROM page_files WHERE page_id = ?",
			"DELETE FROM page_tags WHERE page_id = ?",
			"DELETE FROM page_processing_instructions WHERE page_id = ?",
			"DELETE FROM page_comments WHERE page_id = ?",
			"DELETE FROM page_references WHERE page_id = ?",
			"DELETE FROM page_tokens WHERE page_id = ?",
			"DELETE FROM page_statistics WHERE page_id = ?",
		} {
			if _, err := tx.Exec(stmt, pageID.String()); err != nil {
				return fmt.Errorf("purging dependents: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.Clear()
	return nil
}

// GetDeletedPageByID returns the archived page row, or nil.
func (s *DeletionService) GetDeletedPageByID(ctx context.Context, pageID ksid.ID) (*entity.DeletedPage, error) {
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT id, name, navigation, namespace, description, revision,
			created_by, created_date, modified_by, modified_date, deleted_by, deleted_date
		FROM deleted_pages WHERE id = ?`, pageID.String())
	dp, err := scanDeletedPage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading archived page: %w", err)
	}
	return dp, nil
}

// ListDeletedPages returns one listing page of archived pages, most recently
// deleted first.
func (s *DeletionService) ListDeletedPages(ctx context.Context, page, pageSize int) ([]entity.DeletedPage, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page < 1 {
		page = 1
	}
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, name, navigation, namespace, description, revision,
			created_by, created_date, modified_by, modified_date, deleted_by, deleted_date
		FROM deleted_pages ORDER BY deleted_date DESC LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("listing archived pages: %w", err)
	}
	defer rows.Close()

	var out []entity.DeletedPage
	for rows.Next() {
		dp, err := scanDeletedPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *dp)
	}
	return out, rows.Err()
}

func scanDeletedPage(r rowScanner) (*entity.DeletedPage, error) {
	var dp entity.DeletedPage
	var id string
	var created, modified, deleted int64
	err := r.Scan(&id, &dp.Name, &dp.Navigation, &dp.Namespace, &dp.Description,
		&dp.Revision, &dp.CreatedBy, &created, &dp.ModifiedBy, &modified,
		&dp.DeletedBy, &deleted)
	if err != nil {
		return nil, err
	}
	pid, err := ksid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing page id %q: %w", id, err)
	}
	dp.ID = pid
	dp.CreatedDate = wikidb.FromMillis(created)
	dp.ModifiedDate = wikidb.FromMillis(modified)
	dp.DeletedDate = wikidb.FromMillis(deleted)
	return &dp, nil
}
