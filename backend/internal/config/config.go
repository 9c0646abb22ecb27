// Package config loads the fieldblob YAML configuration and builds the blob
// store and offload engine it describes.
package config

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/maruel/fieldblob/backend/internal/blobstore"
	"github.com/maruel/fieldblob/backend/internal/blobstore/badger"
	"github.com/maruel/fieldblob/backend/internal/blobstore/fsstore"
	"github.com/maruel/fieldblob/backend/internal/blobstore/gitstore"
	"github.com/maruel/fieldblob/backend/internal/blobstore/memory"
	"github.com/maruel/fieldblob/backend/internal/blobstore/s3"
	"github.com/maruel/fieldblob/backend/internal/blobstore/sqlite"
	"github.com/maruel/fieldblob/backend/internal/offload"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Store kinds.
const (
	KindFS     = "fs"
	KindMemory = "memory"
	KindS3     = "s3"
	KindBadger = "badger"
	KindSQLite = "sqlite"
	KindGit    = "git"
)

// Config is the content of the YAML configuration file.
type Config struct {
	// Collection is the JSONL file holding documents, relative to the data
	// directory.
	Collection string `yaml:"collection" json:"collection,omitempty" jsonschema:"description=JSONL document file relative to the data directory,default=documents.jsonl"`

	// Bucket namespaces blobs in the store.
	Bucket string `yaml:"bucket" json:"bucket,omitempty" jsonschema:"description=Blob namespace,default=fs"`

	// Fields lists the offloadable fields, in order.
	Fields []string `yaml:"fields" json:"fields" jsonschema:"description=Offloadable field names,minItems=1"`

	// Concurrency bounds in-flight store calls per batch. 0 is unbounded.
	Concurrency int `yaml:"concurrency" json:"concurrency,omitempty" jsonschema:"description=Maximum in-flight store calls per batch (0 means unbounded),minimum=0"`

	Store StoreConfig `yaml:"store" json:"store"`
}

// StoreConfig selects and configures the blob store.
type StoreConfig struct {
	Kind string `yaml:"kind" json:"kind" jsonschema:"enum=fs,enum=memory,enum=s3,enum=badger,enum=sqlite,enum=git,default=fs"`

	// Path is the backend location for fs, badger, sqlite and git, relative
	// to the data directory. Defaults to "<bucket>.<kind>".
	Path string `yaml:"path" json:"path,omitempty" jsonschema:"description=Backend location relative to the data directory"`

	S3 S3Config `yaml:"s3" json:"s3,omitempty"`

	// KeyFile names a file holding a hex encoded 32 byte key. When set, blobs
	// are encrypted at rest.
	KeyFile string `yaml:"key_file" json:"key_file,omitempty" jsonschema:"description=Hex encoded 32 byte key file enabling encryption at rest"`

	// RateLimit caps store calls per second. 0 disables throttling.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit,omitempty" jsonschema:"minimum=0"`
	Burst     int     `yaml:"burst" json:"burst,omitempty" jsonschema:"minimum=0"`

	// Timeout bounds each store call. 0 disables it.
	Timeout time.Duration `yaml:"timeout" json:"timeout,omitempty" jsonschema:"type=string,description=Per call deadline such as 30s"`
}

// S3Config configures the s3 store kind.
type S3Config struct {
	Bucket         string `yaml:"bucket" json:"bucket,omitempty"`
	Region         string `yaml:"region" json:"region,omitempty"`
	Endpoint       string `yaml:"endpoint" json:"endpoint,omitempty"`
	KeyPrefix      string `yaml:"key_prefix" json:"key_prefix,omitempty"`
	ForcePathStyle bool   `yaml:"force_path_style" json:"force_path_style,omitempty"`
}

// Load reads path, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) setDefaults() {
	if c.Collection == "" {
		c.Collection = "documents.jsonl"
	}
	if c.Bucket == "" {
		c.Bucket = offload.DefaultBucket
	}
	if c.Store.Kind == "" {
		c.Store.Kind = KindFS
	}
}

// Validate checks that the configuration is well-formed.
func (c *Config) Validate() error {
	if _, err := c.Registry(); err != nil {
		return err
	}
	if c.Concurrency < 0 {
		return errors.New("concurrency must be non-negative")
	}
	switch c.Store.Kind {
	case KindFS, KindMemory, KindBadger, KindSQLite, KindGit:
	case KindS3:
		if c.Store.S3.Bucket == "" {
			return errors.New("store.s3.bucket is required")
		}
	default:
		return fmt.Errorf("unknown store.kind %q", c.Store.Kind)
	}
	if c.Store.RateLimit < 0 {
		return errors.New("store.rate_limit must be non-negative")
	}
	if c.Store.Burst < 0 {
		return errors.New("store.burst must be non-negative")
	}
	if c.Store.Timeout < 0 {
		return errors.New("store.timeout must be non-negative")
	}
	return nil
}

// Registry builds the field registry.
func (c *Config) Registry() (*offload.Registry, error) {
	return offload.NewRegistry(c.Bucket, c.Fields...)
}

// OpenStore builds the configured store, wrapped with encryption, throttling
// and deadlines as requested. Relative paths are resolved against dataDir.
func (c *Config) OpenStore(ctx context.Context, dataDir string) (blobstore.Store, error) {
	s, err := c.openBackend(ctx, dataDir)
	if err != nil {
		return nil, err
	}
	if c.Store.KeyFile != "" {
		key, err := readKey(resolve(dataDir, c.Store.KeyFile))
		if err != nil {
			return nil, errors.Join(err, blobstore.Close(s))
		}
		sealed, err := blobstore.Sealed(s, key)
		if err != nil {
			return nil, errors.Join(err, blobstore.Close(s))
		}
		s = sealed
	}
	if c.Store.RateLimit > 0 {
		s = blobstore.RateLimited(s, rate.Limit(c.Store.RateLimit), c.Store.Burst)
	}
	if c.Store.Timeout > 0 {
		s = blobstore.WithTimeout(s, c.Store.Timeout)
	}
	return s, nil
}

func (c *Config) openBackend(ctx context.Context, dataDir string) (blobstore.Store, error) {
	path := c.Store.Path
	if path == "" {
		path = c.Bucket + "." + c.Store.Kind
	}
	path = resolve(dataDir, path)
	switch c.Store.Kind {
	case KindFS:
		return fsstore.New(path), nil
	case KindMemory:
		return memory.New(), nil
	case KindBadger:
		return badger.Open(path)
	case KindSQLite:
		return sqlite.Open(ctx, path)
	case KindGit:
		return gitstore.Open(path)
	case KindS3:
		return s3.NewFromConfig(ctx, s3.Config{
			Bucket:         c.Store.S3.Bucket,
			Region:         c.Store.S3.Region,
			Endpoint:       c.Store.S3.Endpoint,
			KeyPrefix:      c.Store.S3.KeyPrefix,
			ForcePathStyle: c.Store.S3.ForcePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown store.kind %q", c.Store.Kind)
	}
}

// NewEngine opens the store and binds it to the registry.
//
// The caller must close the returned store.
func (c *Config) NewEngine(ctx context.Context, dataDir string) (*offload.Engine, blobstore.Store, error) {
	reg, err := c.Registry()
	if err != nil {
		return nil, nil, err
	}
	s, err := c.OpenStore(ctx, dataDir)
	if err != nil {
		return nil, nil, err
	}
	e, err := offload.NewEngine(reg, s, &offload.Options{Concurrency: c.Concurrency})
	if err != nil {
		return nil, nil, errors.Join(err, blobstore.Close(s))
	}
	return e, s, nil
}

// CollectionPath returns the document file path resolved against dataDir.
func (c *Config) CollectionPath(dataDir string) string {
	return resolve(dataDir, c.Collection)
}

// Schema returns the JSON Schema of the configuration file.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true}
	return r.Reflect(&Config{})
}

func readKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid key file: %w", err)
	}
	if len(key) != blobstore.KeySize {
		return nil, fmt.Errorf("invalid key file: got %d bytes, want %d", len(key), blobstore.KeySize)
	}
	return key, nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
