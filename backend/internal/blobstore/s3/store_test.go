package s3

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/maruel/fieldblob/backend/internal/blobstore"
	"github.com/maruel/fieldblob/backend/internal/blobstore/storetest"
	"github.com/maruel/ksid"
)

// fakeS3 serves the subset of the S3 REST API the store uses, with path
// style addressing.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]object
}

type object struct {
	data   []byte
	header http.Header
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.objects[path] = object{data: data, header: r.Header.Clone()}
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		o, ok := f.objects[path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(o.data)
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) get(key string) (object, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[key]
	return o, ok
}

func setupStore(t *testing.T, prefix string) (*Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string]object{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(srv.URL),
		UsePathStyle:               true,
		Credentials:                aws.AnonymousCredentials{},
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	return New(client, Config{Bucket: "blobs", KeyPrefix: prefix}), fake
}

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) blobstore.Store {
		s, _ := setupStore(t, "")
		return s
	}, blobstore.Handle(ksid.NewID().String()))
}

func TestStore(t *testing.T) {
	t.Run("KeyPrefixAndMetadata", func(t *testing.T) {
		s, fake := setupStore(t, "docs/")
		h, err := s.Put(t.Context(), []byte(`"v"`), blobstore.Metadata{
			blobstore.MetaContentType: "application/json",
			blobstore.MetaField:       "content",
		})
		if err != nil {
			t.Fatal(err)
		}
		o, ok := fake.get("blobs/docs/" + string(h))
		if !ok {
			t.Fatalf("object %s not stored under the prefix", h)
		}
		if got := o.header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if got := o.header.Get("X-Amz-Meta-Field"); got != "content" {
			t.Errorf("x-amz-meta-field = %q", got)
		}
	})

	t.Run("HealthCheck", func(t *testing.T) {
		s, _ := setupStore(t, "")
		if err := s.HealthCheck(t.Context()); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
	})

	t.Run("Closed", func(t *testing.T) {
		s, _ := setupStore(t, "")
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Put(t.Context(), []byte("x"), nil); !errors.Is(err, blobstore.ErrClosed) {
			t.Errorf("Put() error = %v, want ErrClosed", err)
		}
		if _, err := s.Get(t.Context(), "x"); !errors.Is(err, blobstore.ErrClosed) {
			t.Errorf("Get() error = %v, want ErrClosed", err)
		}
	})
}
