// Package wikidb owns the sqlite database handle: open/close, schema
// migration, scoped transactions and time column conversion. All SQL against
// the handle lives in internal/storage.
package wikidb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a sqlite database connection.
type DB struct {
	conn *sql.DB
	Path string
}

// Open opens the sqlite database with WAL mode and foreign keys enabled and
// creates any missing tables.
//
// The pragmas ride on the DSN so every pooled connection gets them, and
// transactions begin immediate so two concurrent writers queue on the write
// lock (bounded by the busy timeout) instead of one failing on a stale
// deferred snapshot.
func Open(path string) (*DB, error) {
	dsn := path + "?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{conn: conn, Path: path}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying sql.DB for queries outside a transaction.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back when fn returns an error or panics, so a
// multi-row mutation is never partially visible.
func (d *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return nil
}

// IsUniqueViolation reports whether err is a sqlite unique-constraint
// failure on the named constraint (e.g. "pages.navigation"). The driver
// exposes no typed error for this, so the message is matched.
func IsUniqueViolation(err error, constraint string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+constraint)
}

// ToMillis converts a timestamp to the integer column representation.
func ToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromMillis converts an integer column back to a timestamp.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
