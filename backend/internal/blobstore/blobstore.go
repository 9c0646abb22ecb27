// Package blobstore defines the opaque blob store that holds offloaded field
// values.
//
// A [Store] only knows how to put bytes and get them back by [Handle]. It does
// not chunk, index, or garbage collect. Backends live in sub-packages; the
// wrappers in this package ([Sealed], [RateLimited], [WithTimeout]) compose
// around any of them.
package blobstore

import (
	"context"
	"errors"
	"io"
)

// Handle is the opaque identifier a Store returns from Put.
//
// Its format is backend specific. Callers must treat it as a plain string.
type Handle string

// IsZero returns true if the handle is unset.
func (h Handle) IsZero() bool {
	return h == ""
}

func (h Handle) String() string {
	return string(h)
}

// Metadata is an opaque bag passed through to the backend on Put.
//
// Backends may persist it (S3 object metadata, sqlite columns) or ignore it.
type Metadata map[string]string

// Well-known metadata keys set by the offload engine.
const (
	MetaBucket      = "bucket"
	MetaField       = "field"
	MetaRecord      = "record"
	MetaContentType = "content-type"
)

// Store is the blob store adapter.
type Store interface {
	// Put stores data and returns a handle that Get accepts.
	Put(ctx context.Context, data []byte, md Metadata) (Handle, error)
	// Get returns the data stored under h.
	//
	// Returns an error wrapping ErrNotFound if h is unknown.
	Get(ctx context.Context, h Handle) ([]byte, error)
}

// Common errors returned by Store implementations.
var (
	// ErrNotFound is returned when a handle refers to no stored blob.
	ErrNotFound = errors.New("blob not found")
	// ErrClosed is returned when a store is used after Close.
	ErrClosed = errors.New("store is closed")
	// ErrInvalidHandle is returned when a handle is malformed for the backend.
	ErrInvalidHandle = errors.New("invalid blob handle")
)

// Close closes s if it implements io.Closer.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
