// Package sqlite provides a blob store backed by a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/maruel/fieldblob/backend/internal/blobstore"
	"github.com/maruel/ksid"
	_ "modernc.org/sqlite" // Registers the "sqlite" driver.
)

const schema = `
CREATE TABLE IF NOT EXISTS blobs (
	handle       TEXT PRIMARY KEY,
	bucket       TEXT NOT NULL DEFAULT '',
	field        TEXT NOT NULL DEFAULT '',
	record       TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	data         BLOB NOT NULL,
	created_at   INTEGER NOT NULL
);`

// Store is a SQLite-backed implementation of blobstore.Store.
//
// Well-known metadata keys are kept in their own columns so that blobs can be
// audited with plain SQL; other keys are dropped.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to init blobs table: %w", err), db.Close())
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to set journal mode: %w", err), db.Close())
	}
	return &Store{db: db}, nil
}

// Put inserts data as a new row.
func (s *Store) Put(ctx context.Context, data []byte, md blobstore.Metadata) (blobstore.Handle, error) {
	h := blobstore.Handle(ksid.NewID().String())
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO blobs (handle, bucket, field, record, content_type, data, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		string(h), md[blobstore.MetaBucket], md[blobstore.MetaField], md[blobstore.MetaRecord], md[blobstore.MetaContentType],
		data, time.Now().UnixMilli())
	if err != nil {
		return "", wrapErr("insert blob", err)
	}
	return h, nil
}

// Get returns the blob stored under h.
func (s *Store) Get(ctx context.Context, h blobstore.Handle) ([]byte, error) {
	if h.IsZero() {
		return nil, blobstore.ErrInvalidHandle
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM blobs WHERE handle = ?", string(h)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", blobstore.ErrNotFound, h)
		}
		return nil, wrapErr("select blob", err)
	}
	return data, nil
}

// Count returns the number of stored blobs in bucket.
func (s *Store) Count(ctx context.Context, bucket string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blobs WHERE bucket = ?", bucket).Scan(&n); err != nil {
		return 0, wrapErr("count blobs", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func wrapErr(op string, err error) error {
	if errors.Is(err, sql.ErrConnDone) || err.Error() == "sql: database is closed" {
		return blobstore.ErrClosed
	}
	return fmt.Errorf("sqlite %s: %w", op, err)
}

var _ blobstore.Store = (*Store)(nil)
