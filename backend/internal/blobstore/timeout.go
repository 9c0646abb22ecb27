package blobstore

import (
	"context"
	"time"
)

type timeoutStore struct {
	inner Store
	d     time.Duration
}

// WithTimeout wraps inner so that each Put and Get runs under a deadline of d.
//
// The offload engine itself never times out; a hung backend stalls the whole
// batch unless it is wrapped.
func WithTimeout(inner Store, d time.Duration) Store {
	return &timeoutStore{inner: inner, d: d}
}

func (s *timeoutStore) Put(ctx context.Context, data []byte, md Metadata) (Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return s.inner.Put(ctx, data, md)
}

func (s *timeoutStore) Get(ctx context.Context, h Handle) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return s.inner.Get(ctx, h)
}

func (s *timeoutStore) Close() error {
	return Close(s.inner)
}
