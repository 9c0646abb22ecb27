// Package gitstore stores blobs as loose objects in a bare git repository.
//
// The handle is the object's SHA-1, so identical content is stored once and
// the repository can be inspected with stock git tooling (git cat-file -p).
package gitstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/maruel/fieldblob/backend/internal/blobstore"
)

// Store is a go-git backed implementation of blobstore.Store.
type Store struct {
	repo *gogit.Repository
	mu   sync.Mutex
}

// Open opens the bare repository at dir, initializing it if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create repo directory: %w", err)
	}
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		repo, err = gogit.PlainInit(dir, true)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
	}
	return &Store{repo: repo}, nil
}

// Put writes data as a blob object. Metadata is ignored.
func (s *Store) Put(ctx context.Context, data []byte, _ blobstore.Metadata) (blobstore.Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))
	w, err := obj.Writer()
	if err != nil {
		return "", fmt.Errorf("failed to open object writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return "", errors.Join(fmt.Errorf("failed to write object: %w", err), w.Close())
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close object writer: %w", err)
	}
	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("failed to store object: %w", err)
	}
	return blobstore.Handle(hash.String()), nil
}

// Get reads the blob object named by h.
func (s *Store) Get(ctx context.Context, h blobstore.Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !plumbing.IsHash(string(h)) {
		return nil, blobstore.ErrInvalidHandle
	}
	hash := plumbing.NewHash(string(h))
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, err := s.repo.BlobObject(hash)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", blobstore.ErrNotFound, h)
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	defer func() {
		_ = r.Close()
	}()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

var _ blobstore.Store = (*Store)(nil)
