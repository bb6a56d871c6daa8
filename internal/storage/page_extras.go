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

// Ancillary page rows: tags, processing instructions, comments and view
// statistics. All are cascade targets of the deletion archive and none are
// restored with a page; tags and tokens are rebuilt externally.

// UpdatePageTags replaces the page's tag set.
func (s *RevisionService) UpdatePageTags(ctx context.Context, id ksid.ID, tags []string) error {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM page_tags WHERE page_id = ?", id.String()); err != nil {
			return fmt.Errorf("clearing tags: %w", err)
		}
		for _, tag := range tags {
			if tag == "" {
				continue
			}
			if _, err := tx.Exec(
				"INSERT OR IGNORE INTO page_tags (page_id, tag) VALUES (?, ?)",
				id.String(), tag); err != nil {
				return fmt.Errorf("inserting tag %q: %w", tag, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.ClearCategory(CachePages)
	s.cache.ClearCategory(CacheSearch)
	return nil
}

// ListPageTags returns the page's tags, alphabetically.
func (s *RevisionService) ListPageTags(ctx context.Context, id ksid.ID) ([]string, error) {
	return s.listStrings(ctx,
		"SELECT tag FROM page_tags WHERE page_id = ? ORDER BY tag", id)
}

// UpdatePageProcessingInstructions replaces the page's processing
// instruction set.
func (s *RevisionService) UpdatePageProcessingInstructions(ctx context.Context, id ksid.ID, instructions []string) error {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM page_processing_instructions WHERE page_id = ?", id.String()); err != nil {
			return fmt.Errorf("clearing instructions: %w", err)
		}
		for _, in := range instructions {
			if in == "" {
				continue
			}
			if _, err := tx.Exec(
				"INSERT OR IGNORE INTO page_processing_instructions (page_id, instruction) VALUES (?, ?)",
				id.String(), in); err != nil {
				return fmt.Errorf("inserting instruction %q: %w", in, err)
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

// ListPageProcessingInstructions returns the page's processing instructions.
func (s *RevisionService) ListPageProcessingInstructions(ctx context.Context, id ksid.ID) ([]string, error) {
	return s.listStrings(ctx,
		"SELECT instruction FROM page_processing_instructions WHERE page_id = ? ORDER BY instruction", id)
}

func (s *RevisionService) listStrings(ctx context.Context, query string, id ksid.ID) ([]string, error) {
	rows, err := s.db.Conn().QueryContext(ctx, query, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// AddPageComment appends a user comment and returns its id.
func (s *RevisionService) AddPageComment(ctx context.Context, id ksid.ID, userID, body string) (int64, error) {
	if body == "" {
		return 0, fmt.Errorf("comment body cannot be empty")
	}
	res, err := s.db.Conn().ExecContext(ctx,
		"INSERT INTO page_comments (page_id, user_id, body, created_date) VALUES (?, ?, ?, ?)",
		id.String(), userID, body, wikidb.ToMillis(time.Now().UTC()))
	if err != nil {
		return 0, fmt.Errorf("inserting comment: %w", err)
	}
	return res.LastInsertId()
}

// ListPageComments returns the page's comments, oldest first.
func (s *RevisionService) ListPageComments(ctx context.Context, id ksid.ID) ([]entity.PageComment, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, page_id, user_id, body, created_date
		FROM page_comments WHERE page_id = ? ORDER BY id`, id.String())
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()
	var out []entity.PageComment
	for rows.Next() {
		var c entity.PageComment
		var pid string
		var created int64
		if err := rows.Scan(&c.ID, &pid, &c.UserID, &c.Body, &created); err != nil {
			return nil, err
		}
		parsed, err := ksid.Parse(pid)
		if err != nil {
			return nil, fmt.Errorf("parsing page id %q: %w", pid, err)
		}
		c.PageID = parsed
		c.CreatedDate = wikidb.FromMillis(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeletePageComment removes one comment.
func (s *RevisionService) DeletePageComment(ctx context.Context, commentID int64) error {
	res, err := s.db.Conn().ExecContext(ctx, "DELETE FROM page_comments WHERE id = ?", commentID)
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("comment %d: %w", commentID, entity.ErrNotFound)
	}
	return nil
}

// BumpPageStatistics records one page view.
func (s *RevisionService) BumpPageStatistics(ctx context.Context, id ksid.ID) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO page_statistics (page_id, hit_count, last_viewed) VALUES (?, 1, ?)
		ON CONFLICT(page_id) DO UPDATE SET hit_count = hit_count + 1, last_viewed = excluded.last_viewed`,
		id.String(), wikidb.ToMillis(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("bumping statistics: %w", err)
	}
	return nil
}

// PageHitCount returns how many views the page has recorded.
func (s *RevisionService) PageHitCount(ctx context.Context, id ksid.ID) (int64, error) {
	var n int64
	err := s.db.Conn().QueryRowContext(ctx,
		"SELECT hit_count FROM page_statistics WHERE page_id = ?", id.String()).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}
