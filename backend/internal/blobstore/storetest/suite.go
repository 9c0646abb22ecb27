// Package storetest holds a conformance suite that every blobstore.Store
// backend runs from its own tests.
package storetest

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/maruel/fieldblob/backend/internal/blobstore"
)

// StoreFactory creates a fresh Store for each test. It can use t.TempDir()
// and t.Cleanup() for teardown.
type StoreFactory func(t *testing.T) blobstore.Store

// RunConformanceSuite runs the suite against stores built by factory.
//
// missing must be a well-formed handle for the backend that no test stores.
func RunConformanceSuite(t *testing.T, factory StoreFactory, missing blobstore.Handle) {
	t.Helper()

	t.Run("RoundTrip", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		for _, data := range [][]byte{
			[]byte(`"hello"`),
			[]byte(`{"a":1}`),
			{0, 1, 2, 0xFF, 0xFE},
			bytes.Repeat([]byte("0123456789"), 100000),
		} {
			h, err := s.Put(ctx, data, blobstore.Metadata{blobstore.MetaField: "f"})
			if err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if h.IsZero() {
				t.Fatal("Put() returned a zero handle")
			}
			got, err := s.Get(ctx, h)
			if err != nil {
				t.Fatalf("Get(%s) error = %v", h, err)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("Get(%s) returned %d bytes, want %d", h, len(got), len(data))
			}
		}
	})

	t.Run("Empty", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		h, err := s.Put(ctx, []byte{}, nil)
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		got, err := s.Get(ctx, h)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Get() = %q, want empty", got)
		}
	})

	t.Run("DistinctContent", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		h1, err := s.Put(ctx, []byte("one"), nil)
		if err != nil {
			t.Fatal(err)
		}
		h2, err := s.Put(ctx, []byte("two"), nil)
		if err != nil {
			t.Fatal(err)
		}
		if h1 == h2 {
			t.Errorf("distinct content got the same handle %s", h1)
		}
		got, err := s.Get(ctx, h1)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "one" {
			t.Errorf("Get(h1) = %q, want one", got)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		s := factory(t)
		if _, err := s.Get(t.Context(), missing); !errors.Is(err, blobstore.ErrNotFound) {
			t.Errorf("Get(%s) error = %v, want ErrNotFound", missing, err)
		}
	})

	t.Run("InvalidHandle", func(t *testing.T) {
		s := factory(t)
		if _, err := s.Get(t.Context(), ""); err == nil {
			t.Error("Get(\"\") succeeded")
		}
	})

	t.Run("ConcurrentPuts", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		const n = 16
		handles := make([]blobstore.Handle, n)
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				handles[i], errs[i] = s.Put(ctx, fmt.Appendf(nil, "blob-%d", i), nil)
			}()
		}
		wg.Wait()
		for i := range n {
			if errs[i] != nil {
				t.Fatalf("Put(%d) error = %v", i, errs[i])
			}
			got, err := s.Get(ctx, handles[i])
			if err != nil {
				t.Fatalf("Get(%d) error = %v", i, err)
			}
			if want := fmt.Sprintf("blob-%d", i); string(got) != want {
				t.Errorf("Get(%d) = %q, want %q", i, got, want)
			}
		}
	})
}
