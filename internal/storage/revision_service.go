package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/maruel/ksid"

	"github.com/quillwiki/quill/internal/contenthash"
	"github.com/quillwiki/quill/internal/entity"
	"github.com/quillwiki/quill/internal/wikidb"
)

// RevisionService owns all write access to the pages and page_revisions
// tables. Revisions are append-only: saving a changed page appends a new
// snapshot and bumps the page's denormalized current-revision pointer inside
// one transaction.
type RevisionService struct {
	db    *wikidb.DB
	cache *Cache
}

// NewRevisionService creates a new revision service.
func NewRevisionService(db *wikidb.DB, cache *Cache) *RevisionService {
	return &RevisionService{db: db, cache: cache}
}

// SavePage persists a page body as a new revision when anything real changed.
// A save whose name, description, change summary and body hash all match the
// current revision writes no new revision and only touches the modification
// metadata. Two concurrent saves from the same base both succeed and produce
// two sequential revisions; the later writer's content ends up current.
func (s *RevisionService) SavePage(ctx context.Context, page *entity.Page, userID string) (ksid.ID, error) {
	if page.Name == "" {
		return 0, fmt.Errorf("page name cannot be empty")
	}
	if page.Navigation == "" {
		page.Navigation = entity.CanonicalNavigation(page.Name)
	}
	now := time.Now().UTC()
	newHash := contenthash.SumString(page.Body)

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		hasChanged := true
		if page.ID.IsZero() {
			page.ID = ksid.NewID()
			page.Revision = 0
			page.CreatedBy = userID
			page.CreatedDate = now
			_, err := tx.Exec(`
				INSERT INTO pages (id, name, navigation, namespace, description, revision,
					created_by, created_date, modified_by, modified_date)
				VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
				page.ID.String(), page.Name, page.Navigation, page.Namespace, page.Description,
				userID, wikidb.ToMillis(now), userID, wikidb.ToMillis(now))
			if wikidb.IsUniqueViolation(err, "pages.navigation") {
				return fmt.Errorf("navigation %q: %w", page.Navigation, entity.ErrNavigationTaken)
			}
			if err != nil {
				return fmt.Errorf("inserting page: %w", err)
			}
		} else {
			var revision int
			err := tx.QueryRow("SELECT revision FROM pages WHERE id = ?", page.ID.String()).Scan(&revision)
			if err == sql.ErrNoRows {
				var archived int
				if err := tx.QueryRow("SELECT COUNT(*) FROM deleted_pages WHERE id = ?", page.ID.String()).Scan(&archived); err != nil {
					return fmt.Errorf("checking archive: %w", err)
				}
				if archived > 0 {
					return fmt.Errorf("page %s: %w", page.ID, entity.ErrPageArchived)
				}
				return fmt.Errorf("page %s: %w", page.ID, entity.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("loading page: %w", err)
			}
			page.Revision = revision

			if revision > 0 {
				var curName, curDescription, curSummary string
				var curHash uint32
				err = tx.QueryRow(`
					SELECT name, description, change_summary, data_hash
					FROM page_revisions WHERE page_id = ? AND revision = ?`,
					page.ID.String(), revision).Scan(&curName, &curDescription, &curSummary, &curHash)
				if err != nil {
					return fmt.Errorf("loading current revision: %w", err)
				}
				hasChanged = curName != page.Name ||
					curDescription != page.Description ||
					curSummary != page.ChangeSummary ||
					curHash != newHash
			}
		}

		if !hasChanged {
			_, err := tx.Exec("UPDATE pages SET modified_by = ?, modified_date = ? WHERE id = ?",
				userID, wikidb.ToMillis(now), page.ID.String())
			if err != nil {
				return fmt.Errorf("touching page metadata: %w", err)
			}
			return nil
		}

		previous := page.Revision
		page.Revision++
		_, err := tx.Exec(`
			UPDATE pages SET name = ?, navigation = ?, namespace = ?, description = ?,
				revision = ?, modified_by = ?, modified_date = ?
			WHERE id = ?`,
			page.Name, page.Navigation, page.Namespace, page.Description,
			page.Revision, userID, wikidb.ToMillis(now), page.ID.String())
		if wikidb.IsUniqueViolation(err, "pages.navigation") {
			return fmt.Errorf("navigation %q: %w", page.Navigation, entity.ErrNavigationTaken)
		}
		if err != nil {
			return fmt.Errorf("updating page: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO page_revisions (page_id, revision, name, navigation, namespace,
				description, body, data_hash, change_summary, modified_by, modified_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			page.ID.String(), page.Revision, page.Name, page.Navigation, page.Namespace,
			page.Description, page.Body, newHash, page.ChangeSummary,
			userID, wikidb.ToMillis(now))
		if err != nil {
			return fmt.Errorf("inserting revision: %w", err)
		}

		// Carry the previous revision's attachments forward so a content
		// edit does not silently drop files.
		if previous > 0 {
			_, err = tx.Exec(`
				INSERT INTO page_revision_attachments (page_id, page_file_id, page_revision, file_revision)
				SELECT page_id, page_file_id, ?, file_revision
				FROM page_revision_attachments WHERE page_id = ? AND page_revision = ?`,
				page.Revision, page.ID.String(), previous)
			if err != nil {
				return fmt.Errorf("carrying attachments forward: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	page.ModifiedBy = userID
	page.ModifiedDate = now
	s.cache.ClearCategory(CachePages)
	s.cache.ClearCategory(CacheSearch)
	return page.ID, nil
}

// GetPageByID returns the live page row, or nil when no such page exists.
func (s *RevisionService) GetPageByID(ctx context.Context, id ksid.ID) (*entity.Page, error) {
	return s.getPage(ctx, "id = ?", id.String())
}

// GetPageByNavigation returns the live page row for a navigation key, or nil.
func (s *RevisionService) GetPageByNavigation(ctx context.Context, navigation string) (*entity.Page, error) {
	return s.getPage(ctx, "navigation = ?", navigation)
}

func (s *RevisionService) getPage(ctx context.Context, where string, arg any) (*entity.Page, error) {
	key := cacheKey("page", where, arg)
	if v, ok := s.cache.Get(CachePages, key); ok {
		return v.(*entity.Page), nil
	}
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT id, name, navigation, namespace, description, revision,
			created_by, created_date, modified_by, modified_date
		FROM pages WHERE `+where, arg)
	page, err := scanPage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading page: %w", err)
	}
	s.cache.Set(CachePages, key, page)
	return page, nil
}

// GetPageRevisionByNavigation resolves a navigation key to a specific
// revision snapshot; revision 0 means the current one. Returns nil when
// either lookup misses. Results are cached; refresh forces a fresh read,
// used right after a write in the same logical operation.
func (s *RevisionService) GetPageRevisionByNavigation(ctx context.Context, navigation string, revision int, refresh bool) (*entity.PageRevision, error) {
	key := cacheKey("revnav", navigation, revision)
	if !refresh {
		if v, ok := s.cache.Get(CachePages, key); ok {
			return v.(*entity.PageRevision), nil
		}
	}
	page, err := s.GetPageByNavigation(ctx, navigation)
	if err != nil || page == nil {
		return nil, err
	}
	rev, err := s.loadRevision(ctx, page.ID, revision)
	if err != nil || rev == nil {
		return nil, err
	}
	s.cache.Set(CachePages, key, rev)
	return rev, nil
}

// GetPageRevisionByID is GetPageRevisionByNavigation keyed by page id.
func (s *RevisionService) GetPageRevisionByID(ctx context.Context, id ksid.ID, revision int, refresh bool) (*entity.PageRevision, error) {
	key := cacheKey("revid", id, revision)
	if !refresh {
		if v, ok := s.cache.Get(CachePages, key); ok {
			return v.(*entity.PageRevision), nil
		}
	}
	rev, err := s.loadRevision(ctx, id, revision)
	if err != nil || rev == nil {
		return nil, err
	}
	s.cache.Set(CachePages, key, rev)
	return rev, nil
}

func (s *RevisionService) loadRevision(ctx context.Context, id ksid.ID, revision int) (*entity.PageRevision, error) {
	query := `
		SELECT page_id, revision, name, navigation, namespace, description, body,
			data_hash, change_summary, modified_by, modified_date
		FROM page_revisions WHERE page_id = ?`
	args := []any{id.String()}
	if revision > 0 {
		query += " AND revision = ?"
		args = append(args, revision)
	} else {
		query += " ORDER BY revision DESC LIMIT 1"
	}
	rev, err := scanPageRevision(s.db.Conn().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading revision: %w", err)
	}
	return rev, nil
}

// NextRevision returns the smallest revision number strictly greater than
// revision, or 0 when none exists.
func (s *RevisionService) NextRevision(ctx context.Context, id ksid.ID, revision int) (int, error) {
	return s.adjacentRevision(ctx, id,
		"SELECT COALESCE(MIN(revision), 0) FROM page_revisions WHERE page_id = ? AND revision > ?", revision)
}

// PreviousRevision returns the largest revision number strictly less than
// revision, or 0 when none exists.
func (s *RevisionService) PreviousRevision(ctx context.Context, id ksid.ID, revision int) (int, error) {
	return s.adjacentRevision(ctx, id,
		"SELECT COALESCE(MAX(revision), 0) FROM page_revisions WHERE page_id = ? AND revision < ?", revision)
}

func (s *RevisionService) adjacentRevision(ctx context.Context, id ksid.ID, query string, revision int) (int, error) {
	var n int
	if err := s.db.Conn().QueryRowContext(ctx, query, id.String(), revision).Scan(&n); err != nil {
		return 0, fmt.Errorf("loading adjacent revision: %w", err)
	}
	return n, nil
}

// ListPageRevisions returns one history page of revision snapshots, newest
// first. Page numbers start at 1.
func (s *RevisionService) ListPageRevisions(ctx context.Context, id ksid.ID, page, pageSize int) ([]entity.PageRevision, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page < 1 {
		page = 1
	}
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT page_id, revision, name, navigation, namespace, description, body,
			data_hash, change_summary, modified_by, modified_date
		FROM page_revisions WHERE page_id = ?
		ORDER BY revision DESC LIMIT ? OFFSET ?`,
		id.String(), pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("listing revisions: %w", err)
	}
	defer rows.Close()

	var out []entity.PageRevision
	for rows.Next() {
		rev, err := scanPageRevision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rev)
	}
	return out, rows.Err()
}

// ListPages returns one listing page of live page rows in the given order.
func (s *RevisionService) ListPages(ctx context.Context, sort entity.PageSort, page, pageSize int) ([]entity.Page, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page < 1 {
		page = 1
	}
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, name, navigation, namespace, description, revision,
			created_by, created_date, modified_by, modified_date
		FROM pages ORDER BY `+sort.Column()+` LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	defer rows.Close()

	var out []entity.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// RevertPageToRevision saves the snapshot of an old revision as a new head
// revision. History is never rewritten; a revert is just another save.
func (s *RevisionService) RevertPageToRevision(ctx context.Context, id ksid.ID, revision int, userID string) error {
	rev, err := s.loadRevision(ctx, id, revision)
	if err != nil {
		return err
	}
	if rev == nil {
		return fmt.Errorf("revision %d of page %s: %w", revision, id, entity.ErrNotFound)
	}
	page := &entity.Page{
		ID:            id,
		Name:          rev.Name,
		Navigation:    rev.Navigation,
		Namespace:     rev.Namespace,
		Description:   rev.Description,
		Body:          rev.Body,
		ChangeSummary: fmt.Sprintf("Reverted to revision %d", revision),
	}
	_, err = s.SavePage(ctx, page, userID)
	return err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanPage(r rowScanner) (*entity.Page, error) {
	var p entity.Page
	var id string
	var created, modified int64
	err := r.Scan(&id, &p.Name, &p.Navigation, &p.Namespace, &p.Description,
		&p.Revision, &p.CreatedBy, &created, &p.ModifiedBy, &modified)
	if err != nil {
		return nil, err
	}
	pid, err := ksid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing page id %q: %w", id, err)
	}
	p.ID = pid
	p.CreatedDate = wikidb.FromMillis(created)
	p.ModifiedDate = wikidb.FromMillis(modified)
	return &p, nil
}

func scanPageRevision(r rowScanner) (*entity.PageRevision, error) {
	var rev entity.PageRevision
	var id string
	var modified int64
	err := r.Scan(&id, &rev.Revision, &rev.Name, &rev.Navigation, &rev.Namespace,
		&rev.Description, &rev.Body, &rev.DataHash, &rev.ChangeSummary,
		&rev.ModifiedBy, &modified)
	if err != nil {
		return nil, err
	}
	pid, err := ksid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing page id %q: %w", id, err)
	}
	rev.PageID = pid
	rev.ModifiedDate = wikidb.FromMillis(modified)
	return &rev, nil
}
