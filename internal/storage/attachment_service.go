package storage

import (
	"context"
	"database/sql"
	"fmt"
	"mime"
	"path/filepath"
	"time"

	"github.com/maruel/ksid"

	"github.com/quillwiki/quill/internal/contenthash"
	"github.com/quillwiki/quill/internal/entity"
	"github.com/quillwiki/quill/internal/wikidb"
)

// AttachmentService owns the page_files, page_file_revisions and
// page_revision_attachments tables. File content is versioned with the same
// append-only discipline as page bodies, and every file revision is linked
// to the page revision that was current when it was uploaded.
type AttachmentService struct {
	db    *wikidb.DB
	cache *Cache
}

// NewAttachmentService creates a new attachment service.
func NewAttachmentService(db *wikidb.DB, cache *Cache) *AttachmentService {
	return &AttachmentService{db: db, cache: cache}
}

// FileUpload is the input of UpsertPageFile.
type FileUpload struct {
	PageID      ksid.ID
	Name        string
	Navigation  string // derived from Name when empty
	ContentType string // detected from Name when empty
	Data        []byte
}

// UpsertPageFile stores uploaded bytes as a new file revision attached to the
// page's current revision. Re-uploading identical bytes is a no-op: no new
// file revision and no attachment churn. A changed payload supersedes the
// attachment row for the current page revision, so at most one row exists per
// (page, file) pair at any page revision.
func (s *AttachmentService) UpsertPageFile(ctx context.Context, up FileUpload, userID string) (ksid.ID, error) {
	if up.Name == "" {
		return 0, fmt.Errorf("file name cannot be empty")
	}
	if len(up.Data) == 0 {
		return 0, fmt.Errorf("file data cannot be empty")
	}
	if up.Navigation == "" {
		up.Navigation = entity.CanonicalNavigation(up.Name)
	}
	if up.ContentType == "" {
		up.ContentType = mime.TypeByExtension(filepath.Ext(up.Name))
		if up.ContentType == "" {
			up.ContentType = "application/octet-stream"
		}
	}
	now := time.Now().UTC()
	newHash := contenthash.Sum(up.Data)

	var fileID ksid.ID
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var pageRevision int
		err := tx.QueryRow("SELECT revision FROM pages WHERE id = ?", up.PageID.String()).Scan(&pageRevision)
		if err == sql.ErrNoRows {
			return fmt.Errorf("page %s: %w", up.PageID, entity.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("loading page revision: %w", err)
		}

		var fileIDStr string
		var fileRevision int
		err = tx.QueryRow(
			"SELECT id, revision FROM page_files WHERE page_id = ? AND navigation = ?",
			up.PageID.String(), up.Navigation).Scan(&fileIDStr, &fileRevision)
		switch {
		case err == sql.ErrNoRows:
			fileID = ksid.NewID()
			fileRevision = 0
			if _, err := tx.Exec(`
				INSERT INTO page_files (id, page_id, name, navigation, revision, created_date)
				VALUES (?, ?, ?, ?, 0, ?)`,
				fileID.String(), up.PageID.String(), up.Name, up.Navigation,
				wikidb.ToMillis(now)); err != nil {
				return fmt.Errorf("inserting file: %w", err)
			}
		case err != nil:
			return fmt.Errorf("loading file: %w", err)
		default:
			fileID, err = ksid.Parse(fileIDStr)
			if err != nil {
				return fmt.Errorf("parsing file id %q: %w", fileIDStr, err)
			}
		}

		// Hash of the file revision currently attached to the current
		// page revision, if any.
		attached := false
		var attachedHash uint32
		err = tx.QueryRow(`
			SELECT fr.data_hash
			FROM page_revision_attachments a
			JOIN page_file_revisions fr
				ON fr.page_file_id = a.page_file_id AND fr.revision = a.file_revision
			WHERE a.page_id = ? AND a.page_file_id = ? AND a.page_revision = ?`,
			up.PageID.String(), fileID.String(), pageRevision).Scan(&attachedHash)
		if err == nil {
			attached = true
		} else if err != sql.ErrNoRows {
			return fmt.Errorf("loading attached revision: %w", err)
		}

		if attached && attachedHash == newHash {
			// Identical bytes already attached.
			return nil
		}

		fileRevision++
		if _, err := tx.Exec(`
			INSERT INTO page_file_revisions (page_file_id, revision, content_type, size,
				data, data_hash, created_by, created_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			fileID.String(), fileRevision, up.ContentType, int64(len(up.Data)),
			up.Data, newHash, userID, wikidb.ToMillis(now)); err != nil {
			return fmt.Errorf("inserting file revision: %w", err)
		}
		if _, err := tx.Exec(
			"UPDATE page_files SET revision = ?, name = ? WHERE id = ?",
			fileRevision, up.Name, fileID.String()); err != nil {
			return fmt.Errorf("updating file: %w", err)
		}
		if attached {
			if _, err := tx.Exec(`
				DELETE FROM page_revision_attachments
				WHERE page_id = ? AND page_file_id = ? AND page_revision = ?`,
				up.PageID.String(), fileID.String(), pageRevision); err != nil {
				return fmt.Errorf("removing superseded attachment: %w", err)
			}
		}
		if _, err := tx.Exec(`
			INSERT INTO page_revision_attachments (page_id, page_file_id, page_revision, file_revision)
			VALUES (?, ?, ?, ?)`,
			up.PageID.String(), fileID.String(), pageRevision, fileRevision); err != nil {
			return fmt.Errorf("inserting attachment: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.cache.ClearCategory(CacheFiles)
	return fileID, nil
}

// FileAttachment is a file revision resolved for download.
type FileAttachment struct {
	FileID      ksid.ID
	Name        string
	Navigation  string
	Revision    int
	ContentType string
	Size        int64
	Data        []byte
}

// GetFileAttachment returns the file revision attached to the page's current
// revision, or nil when the page, file or attachment does not exist.
func (s *AttachmentService) GetFileAttachment(ctx context.Context, pageNavigation, fileNavigation string) (*FileAttachment, error) {
	return s.getAttachment(ctx, pageNavigation, fileNavigation, 0)
}

// GetFileAttachmentByRevision returns the file revision attached to an
// explicit page revision.
func (s *AttachmentService) GetFileAttachmentByRevision(ctx context.Context, pageNavigation, fileNavigation string, pageRevision int) (*FileAttachment, error) {
	return s.getAttachment(ctx, pageNavigation, fileNavigation, pageRevision)
}

func (s *AttachmentService) getAttachment(ctx context.Context, pageNavigation, fileNavigation string, pageRevision int) (*FileAttachment, error) {
	key := cacheKey("attachment", pageNavigation, fileNavigation, pageRevision)
	if v, ok := s.cache.Get(CacheFiles, key); ok {
		return v.(*FileAttachment), nil
	}
	query := `
		SELECT f.id, f.name, f.navigation, a.file_revision, fr.content_type, fr.size, fr.data
		FROM pages p
		JOIN page_files f ON f.page_id = p.id
		JOIN page_revision_attachments a
			ON a.page_id = p.id AND a.page_file_id = f.id
		JOIN page_file_revisions fr
			ON fr.page_file_id = f.id AND fr.revision = a.file_revision
		WHERE p.navigation = ? AND f.navigation = ?`
	args := []any{pageNavigation, fileNavigation}
	if pageRevision > 0 {
		query += " AND a.page_revision = ?"
		args = append(args, pageRevision)
	} else {
		query += " AND a.page_revision = p.revision"
	}
	var att FileAttachment
	var idStr string
	err := s.db.Conn().QueryRowContext(ctx, query, args...).Scan(
		&idStr, &att.Name, &att.Navigation, &att.Revision,
		&att.ContentType, &att.Size, &att.Data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading attachment: %w", err)
	}
	att.FileID, err = ksid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parsing file id %q: %w", idStr, err)
	}
	s.cache.Set(CacheFiles, key, &att)
	return &att, nil
}

// ListPageFiles returns every live file row of a page.
func (s *AttachmentService) ListPageFiles(ctx context.Context, pageID ksid.ID) ([]entity.PageFile, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, page_id, name, navigation, revision, created_date
		FROM page_files WHERE page_id = ? ORDER BY navigation`, pageID.String())
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()
	return scanPageFiles(rows)
}

// ListPageFilesByRevision returns the files attached to one page revision,
// with Revision set to the attached file revision.
func (s *AttachmentService) ListPageFilesByRevision(ctx context.Context, pageID ksid.ID, pageRevision int) ([]entity.PageFile, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT f.id, f.page_id, f.name, f.navigation, a.file_revision, f.created_date
		FROM page_files f
		JOIN page_revision_attachments a
			ON a.page_file_id = f.id AND a.page_id = f.page_id
		WHERE f.page_id = ? AND a.page_revision = ?
		ORDER BY f.navigation`, pageID.String(), pageRevision)
	if err != nil {
		return nil, fmt.Errorf("listing attached files: %w", err)
	}
	defer rows.Close()
	return scanPageFiles(rows)
}

func scanPageFiles(rows *sql.Rows) ([]entity.PageFile, error) {
	var out []entity.PageFile
	for rows.Next() {
		var f entity.PageFile
		var id, pageID string
		var created int64
		if err := rows.Scan(&id, &pageID, &f.Name, &f.Navigation, &f.Revision, &created); err != nil {
			return nil, err
		}
		fid, err := ksid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parsing file id %q: %w", id, err)
		}
		pid, err := ksid.Parse(pageID)
		if err != nil {
			return nil, fmt.Errorf("parsing page id %q: %w", pageID, err)
		}
		f.ID = fid
		f.PageID = pid
		f.CreatedDate = wikidb.FromMillis(created)
		out = append(out, f)
	}
	return out, rows.Err()
}

// DetachFile removes the attachment row linking a file to one page revision.
// The file revision itself survives as an orphan until purged.
func (s *AttachmentService) DetachFile(ctx context.Context, pageID, fileID ksid.ID, pageRevision int) error {
	res, err := s.db.Conn().ExecContext(ctx, `
		DELETE FROM page_revision_attachments
		WHERE page_id = ? AND page_file_id = ? AND page_revision = ?`,
		pageID.String(), fileID.String(), pageRevision)
	if err != nil {
		return fmt.Errorf("detaching file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("attachment of file %s at page revision %d: %w",
			fileID, pageRevision, entity.ErrNotFound)
	}
	s.cache.ClearCategory(CacheFiles)
	return nil
}

// ListOrphanedFileRevisions returns every file revision no attachment row
// references.
func (s *AttachmentService) ListOrphanedFileRevisions(ctx context.Context) ([]entity.OrphanedFileRevision, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT fr.page_file_id, f.page_id, f.name, fr.revision, fr.size
		FROM page_file_revisions fr
		JOIN page_files f ON f.id = fr.page_file_id
		WHERE NOT EXISTS (
			SELECT 1 FROM page_revision_attachments a
			WHERE a.page_file_id = fr.page_file_id AND a.file_revision = fr.revision
		)
		ORDER BY f.name, fr.revision`)
	if err != nil {
		return nil, fmt.Errorf("listing orphans: %w", err)
	}
	defer rows.Close()
	var out []entity.OrphanedFileRevision
	for rows.Next() {
		var o entity.OrphanedFileRevision
		var fileID, pageID string
		if err := rows.Scan(&fileID, &pageID, &o.FileName, &o.Revision, &o.Size); err != nil {
			return nil, err
		}
		fid, err := ksid.Parse(fileID)
		if err != nil {
			return nil, fmt.Errorf("parsing file id %q: %w", fileID, err)
		}
		pid, err := ksid.Parse(pageID)
		if err != nil {
			return nil, fmt.Errorf("parsing page id %q: %w", pageID, err)
		}
		o.PageFileID = fid
		o.PageID = pid
		out = append(out, o)
	}
	return out, rows.Err()
}

// PurgeOrphanedFileRevision deletes one file revision if it is still
// orphaned. The linkage re-check runs inside the delete so a concurrently
// created attachment keeps its revision.
func (s *AttachmentService) PurgeOrphanedFileRevision(ctx context.Context, fileID ksid.ID, revision int) error {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			DELETE FROM page_file_revisions
			WHERE page_file_id = ? AND revision = ?
			AND NOT EXISTS (
				SELECT 1 FROM page_revision_attachments a
				WHERE a.page_file_id = page_file_revisions.page_file_id
				AND a.file_revision = page_file_revisions.revision
			)`, fileID.String(), revision)
		if err != nil {
			return fmt.Errorf("purging orphan: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("orphaned revision %d of file %s: %w", revision, fileID, entity.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.ClearCategory(CacheFiles)
	return nil
}

// PurgeOrphanedFileRevisions deletes every orphaned file revision and then
// any file row left with no revisions. Returns how many revisions were
// removed.
func (s *AttachmentService) PurgeOrphanedFileRevisions(ctx context.Context) (int64, error) {
	var purged int64
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			DELETE FROM page_file_revisions
			WHERE NOT EXISTS (
				SELECT 1 FROM page_revision_attachments a
				WHERE a.page_file_id = page_file_revisions.page_file_id
				AND a.file_revision = page_file_revisions.revision
			)`)
		if err != nil {
			return fmt.Errorf("purging orphans: %w", err)
		}
		purged, _ = res.RowsAffected()
		if _, err := tx.Exec(`
			DELETE FROM page_files
			WHERE NOT EXISTS (
				SELECT 1 FROM page_file_revisions fr WHERE fr.page_file_id = page_files.id
			)`); err != nil {
			return fmt.Errorf("removing empty files: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.cache.ClearCategory(CacheFiles)
	return purged, nil
}
