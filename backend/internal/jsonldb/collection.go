package jsonldb

import (
	"bufio"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/maruel/fieldblob/backend/internal/offload"
	"github.com/maruel/ksid"
)

// Hook runs before a document is written. A non-nil error vetoes the write.
//
// offload.Engine.BeforeSave has this shape.
type Hook func(ctx context.Context, rec offload.Record) error

// Collection handles storage and in-memory caching of documents in a JSONL
// file.
type Collection struct {
	path string
	mu   sync.RWMutex

	docs  []*Document // Sorted by ID.
	hooks []Hook
}

// Open creates a new Collection and loads all documents from the file.
func Open(path string) (*Collection, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	c := &Collection{path: path}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collection) load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.docs = nil
			return nil
		}
		return fmt.Errorf("failed to open collection file %s: %w", c.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var docs []*Document
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		d := &Document{}
		if err := json.Unmarshal(line, d); err != nil {
			return fmt.Errorf("failed to unmarshal document in %s: %w", c.path, err)
		}
		if d.ID.IsZero() {
			return fmt.Errorf("document without %s in %s", IDKey, c.path)
		}
		docs = append(docs, d)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read collection file %s: %w", c.path, err)
	}
	// Files may be edited by hand.
	slices.SortStableFunc(docs, compareDocs)
	c.docs = docs
	return nil
}

// OnBeforeSave registers h to run on every Save, after the hooks registered
// before it.
func (c *Collection) OnBeforeSave(h Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, h)
}

// Save runs the pre-save hooks on doc then inserts or replaces it.
//
// A zero doc.ID is assigned first so hooks see the final ID; it is reset if
// the save fails. Hooks may mutate doc; the document written is doc as the
// last hook left it. If a hook fails nothing is written and its error is
// returned unchanged.
func (c *Collection) Save(ctx context.Context, doc *Document) error {
	assigned := doc.ID.IsZero()
	if assigned {
		doc.ID = ksid.NewID()
	}
	if err := c.save(ctx, doc); err != nil {
		if assigned {
			var zero ksid.ID
			doc.ID = zero
		}
		return err
	}
	return nil
}

func (c *Collection) save(ctx context.Context, doc *Document) error {
	c.mu.RLock()
	hooks := slices.Clone(c.hooks)
	c.mu.RUnlock()
	for _, h := range hooks {
		if err := h(ctx, doc); err != nil {
			return err
		}
	}

	stored, err := doc.normalize()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	docs := slices.Clone(c.docs)
	if i, found := slices.BinarySearchFunc(docs, stored.ID, searchID); found {
		docs[i] = stored
	} else {
		docs = slices.Insert(docs, i, stored)
	}
	if err := c.write(docs); err != nil {
		return err
	}
	c.docs = docs
	return nil
}

// Get returns a clone of the document with the given ID.
func (c *Collection) Get(id ksid.ID) (*Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i, found := slices.BinarySearchFunc(c.docs, id, searchID); found {
		return c.docs[i].Clone(), true
	}
	return nil, false
}

// Delete removes the document with the given ID. Offloaded blobs are left in
// the blob store.
func (c *Collection) Delete(id ksid.ID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, found := slices.BinarySearchFunc(c.docs, id, searchID)
	if !found {
		return false, nil
	}
	docs := slices.Delete(slices.Clone(c.docs), i, i+1)
	if err := c.write(docs); err != nil {
		return false, err
	}
	c.docs = docs
	return true, nil
}

// All returns an iterator over clones of all documents, in ID order.
func (c *Collection) All() iter.Seq[*Document] {
	return func(yield func(*Document) bool) {
		c.mu.RLock()
		defer c.mu.RUnlock()
		for _, d := range c.docs {
			if !yield(d.Clone()) {
				return
			}
		}
	}
}

// Len returns the number of documents.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// write replaces the file with docs. The new content is written to a temp
// file and renamed over the old one.
func (c *Collection) write(docs []*Document) error {
	f, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()
	writer := bufio.NewWriter(f)
	for _, d := range docs {
		data, err := json.Marshal(d)
		if err != nil {
			return errors.Join(fmt.Errorf("failed to marshal document: %w", err), f.Close(), os.Remove(tmp))
		}
		if _, err := writer.Write(data); err != nil {
			return errors.Join(fmt.Errorf("failed to write document: %w", err), f.Close(), os.Remove(tmp))
		}
		if err := writer.WriteByte('\n'); err != nil {
			return errors.Join(fmt.Errorf("failed to write newline: %w", err), f.Close(), os.Remove(tmp))
		}
	}
	if err := writer.Flush(); err != nil {
		return errors.Join(fmt.Errorf("failed to flush writer: %w", err), f.Close(), os.Remove(tmp))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmp))
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return errors.Join(fmt.Errorf("failed to rename collection file: %w", err), os.Remove(tmp))
	}
	return nil
}

func compareDocs(a, b *Document) int {
	return cmp.Compare(a.ID, b.ID)
}

func searchID(d *Document, id ksid.ID) int {
	return cmp.Compare(d.ID, id)
}
