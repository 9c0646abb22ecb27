// Package fsstore stores blobs as content-addressed files in a directory.
//
// Files are organized with 256-way fan-out: <dir>/<hash[:2]>/<hash[2:]>.
// Temporary files during write are stored in <dir>/tmp/<random>.tmp and
// renamed into place once the hash is known, so a reader never observes a
// partial blob. Identical content yields the identical handle.
package fsstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/maruel/fieldblob/backend/internal/blobstore"
)

const tmpDirName = "tmp"

// Store is a content-addressed file store implementing blobstore.Store.
//
// Metadata passed to Put is ignored; the handle is derived from content only.
type Store struct {
	dir string
}

// New returns a store rooted at dir. The directory is created lazily.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Put writes data and returns its content address.
func (s *Store) Put(ctx context.Context, data []byte, _ blobstore.Metadata) (blobstore.Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	w, err := s.newWriter()
	if err != nil {
		return "", err
	}
	if _, err := w.Write(data); err != nil {
		return "", errors.Join(fmt.Errorf("failed to write blob: %w", err), w.Abort())
	}
	return w.Close()
}

// Get reads the blob with handle h.
func (s *Store) Get(ctx context.Context, h blobstore.Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate(h); err != nil {
		return nil, err
	}
	if h == emptyHandle {
		return []byte{}, nil
	}
	data, err := os.ReadFile(s.pathFor(h))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", blobstore.ErrNotFound, h)
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// pathFor returns the file path for a handle.
// Uses the hash portion after the "sha256:" prefix for the fan-out directory.
func (s *Store) pathFor(h blobstore.Handle) string {
	hashPart := string(h)[7:]
	return filepath.Join(s.dir, hashPart[:2], hashPart[2:])
}

// newWriter creates a writer streaming to a temp file.
func (s *Store) newWriter() (*writer, error) {
	if err := os.MkdirAll(filepath.Join(s.dir, tmpDirName), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create tmp directory: %w", err)
	}
	f, err := os.CreateTemp(filepath.Join(s.dir, tmpDirName), "*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return &writer{store: s, file: f, tmpPath: f.Name(), hasher: sha256.New()}, nil
}

// writer streams data to a temp file, computing the SHA-256 hash as data is
// written.
type writer struct {
	store   *Store
	tmpPath string
	file    io.WriteCloser // nil after Close or Abort
	hasher  hash.Hash
	size    int64
}

func (w *writer) Write(p []byte) (int, error) {
	if w.file == nil {
		return 0, fs.ErrClosed
	}
	n, err := w.file.Write(p)
	if n > 0 {
		w.size += int64(n)
		w.hasher.Write(p[:n])
	}
	return n, err
}

// Close finalizes the blob and renames it to its content-addressed location.
func (w *writer) Close() (blobstore.Handle, error) {
	if w.file == nil {
		return "", fs.ErrClosed
	}
	if err := w.file.Close(); err != nil {
		w.file = nil
		return "", errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(w.tmpPath))
	}
	w.file = nil

	if w.size == 0 {
		if err := os.Remove(w.tmpPath); err != nil {
			return "", fmt.Errorf("failed to remove temp file: %w", err)
		}
		return emptyHandle, nil
	}

	h := blobstore.Handle(fmt.Sprintf("%s%s-%d", handlePrefix, base32Enc.EncodeToString(w.hasher.Sum(nil)), w.size))
	if err := os.MkdirAll(filepath.Join(w.store.dir, string(h)[7:9]), 0o750); err != nil {
		return "", errors.Join(fmt.Errorf("failed to create blob subdirectory: %w", err), os.Remove(w.tmpPath))
	}

	// Same content already stored.
	target := w.store.pathFor(h)
	if _, err := os.Stat(target); err == nil {
		if err := os.Remove(w.tmpPath); err != nil {
			return "", fmt.Errorf("failed to remove temp file: %w", err)
		}
		return h, nil
	}
	if err := os.Rename(w.tmpPath, target); err != nil {
		return "", errors.Join(fmt.Errorf("failed to rename blob to final location: %w", err), os.Remove(w.tmpPath))
	}
	return h, nil
}

// Abort cancels the write and removes the temp file.
func (w *writer) Abort() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return errors.Join(err, os.Remove(w.tmpPath))
}

var _ blobstore.Store = (*Store)(nil)
