// Package badger provides a blob store on top of an embedded BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/maruel/fieldblob/backend/internal/blobstore"
	"github.com/maruel/ksid"
)

const keyPrefix = "blob:"

// Store is a BadgerDB-backed implementation of blobstore.Store.
type Store struct {
	db *badgerdb.DB
}

// Open opens or creates a database in dir. An empty dir opens an in-memory
// database.
func Open(dir string) (*Store, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

func key(h blobstore.Handle) []byte {
	return []byte(keyPrefix + string(h))
}

// Put stores data under a fresh handle. Metadata is not persisted.
func (s *Store) Put(ctx context.Context, data []byte, _ blobstore.Metadata) (blobstore.Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h := blobstore.Handle(ksid.NewID().String())
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key(h), data)
	})
	if err != nil {
		if errors.Is(err, badgerdb.ErrDBClosed) {
			return "", blobstore.ErrClosed
		}
		return "", fmt.Errorf("badger put: %w", err)
	}
	return h, nil
}

// Get returns the blob stored under h.
func (s *Store) Get(ctx context.Context, h blobstore.Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.IsZero() {
		return nil, blobstore.ErrInvalidHandle
	}
	var data []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key(h))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, badgerdb.ErrKeyNotFound):
			return nil, fmt.Errorf("%w: %s", blobstore.ErrNotFound, h)
		case errors.Is(err, badgerdb.ErrDBClosed):
			return nil, blobstore.ErrClosed
		}
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return data, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ blobstore.Store = (*Store)(nil)
