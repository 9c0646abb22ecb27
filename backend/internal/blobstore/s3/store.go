// Package s3 provides an S3-backed blob store.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/maruel/fieldblob/backend/internal/blobstore"
	"github.com/maruel/ksid"
)

// Config holds configuration for the S3 blob store.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// KeyPrefix is prepended to all object keys (e.g., "blobs/").
	// Should end with "/" if non-empty.
	KeyPrefix string

	// ForcePathStyle forces path-style addressing (required for MinIO).
	ForcePathStyle bool
}

// Store is an S3-backed implementation of blobstore.Store.
//
// Each Put creates a new object named by a fresh ksid; the handle is that
// name without KeyPrefix.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// New creates a new S3 blob store with an existing client.
func New(client *s3.Client, cfg Config) *Store {
	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}
}

// NewFromConfig creates a new S3 blob store, building the client from the
// default AWS configuration chain.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return New(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

func (s *Store) key(h blobstore.Handle) string {
	return s.keyPrefix + string(h)
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return blobstore.ErrClosed
	}
	return nil
}

// Put uploads data as a new object. Metadata becomes S3 user metadata, except
// the content type which is sent as Content-Type.
func (s *Store) Put(ctx context.Context, data []byte, md blobstore.Metadata) (blobstore.Handle, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	h := blobstore.Handle(ksid.NewID().String())
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(h)),
		Body:   bytes.NewReader(data),
	}
	for k, v := range md {
		if k == blobstore.MetaContentType {
			in.ContentType = aws.String(v)
			continue
		}
		if in.Metadata == nil {
			in.Metadata = make(map[string]string, len(md))
		}
		in.Metadata[k] = v
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return h, nil
}

// Get downloads the object for h.
func (s *Store) Get(ctx context.Context, h blobstore.Handle) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if h.IsZero() {
		return nil, blobstore.ErrInvalidHandle
	}
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(h)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", blobstore.ErrNotFound, h)
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object body: %w", err)
	}
	return data, nil
}

// HealthCheck verifies the bucket is accessible.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func isNotFoundError(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	// S3-compatible services do not always return typed errors.
	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") || strings.Contains(errStr, "StatusCode: 404")
}

var _ blobstore.Store = (*Store)(nil)
