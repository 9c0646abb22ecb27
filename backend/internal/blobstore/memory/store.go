// Package memory provides an in-memory blob store, mainly for tests.
package memory

import (
	"context"
	"sync"

	"github.com/maruel/fieldblob/backend/internal/blobstore"
	"github.com/maruel/ksid"
)

// Store is an in-memory implementation of blobstore.Store.
type Store struct {
	mu     sync.RWMutex
	blobs  map[blobstore.Handle]entry
	closed bool
}

type entry struct {
	data []byte
	md   blobstore.Metadata
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{blobs: make(map[blobstore.Handle]entry)}
}

// Put stores a copy of data under a fresh handle.
func (s *Store) Put(ctx context.Context, data []byte, md blobstore.Metadata) (blobstore.Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", blobstore.ErrClosed
	}
	h := blobstore.Handle(ksid.NewID().String())
	e := entry{data: append([]byte(nil), data...)}
	if len(md) != 0 {
		e.md = make(blobstore.Metadata, len(md))
		for k, v := range md {
			e.md[k] = v
		}
	}
	s.blobs[h] = e
	return h, nil
}

// Get returns a copy of the blob stored under h.
func (s *Store) Get(ctx context.Context, h blobstore.Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, blobstore.ErrClosed
	}
	e, ok := s.blobs[h]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	return append([]byte(nil), e.data...), nil
}

// Metadata returns the metadata passed to Put for h.
func (s *Store) Metadata(h blobstore.Handle) (blobstore.Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.blobs[h]
	return e.md, ok
}

// Len returns the number of stored blobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// Close marks the store as closed and drops its content.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.blobs = nil
	return nil
}

var _ blobstore.Store = (*Store)(nil)
