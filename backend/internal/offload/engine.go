// Implements the offload and rehydration engines.

package offload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maruel/fieldblob/backend/internal/blobstore"
	"golang.org/x/sync/errgroup"
)

// Options tunes an Engine. The zero value is valid.
type Options struct {
	// Concurrency bounds the number of in-flight store calls per batch.
	// 0 means one per field.
	Concurrency int
}

// Engine offloads and rehydrates the registered fields of records.
type Engine struct {
	reg   *Registry
	store blobstore.Store
	opts  Options
}

// NewEngine binds reg to store. Both are required.
func NewEngine(reg *Registry, store blobstore.Store, opts *Options) (*Engine, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: registry is required", ErrConfiguration)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: blob store is required", ErrConfiguration)
	}
	e := &Engine{reg: reg, store: store}
	if opts != nil {
		if opts.Concurrency < 0 {
			return nil, fmt.Errorf("%w: concurrency must be non-negative", ErrConfiguration)
		}
		e.opts = *opts
	}
	return e, nil
}

// Registry returns the engine's field registry.
func (e *Engine) Registry() *Registry {
	return e.reg
}

// pending is one field of an offload batch.
type pending struct {
	field  string
	data   []byte
	handle blobstore.Handle
}

// Offload moves every registered field of rec that holds a value into the
// blob store.
//
// Fields without a value are skipped. On success each converted field is
// removed from rec and its handle recorded in rec.Refs(). On failure rec is
// left untouched and the error is a *FieldError of kind ErrEncode or
// ErrStoreWrite.
func (e *Engine) Offload(ctx context.Context, rec Record) error {
	var batch []*pending
	for _, f := range e.reg.fields {
		v, ok := rec.Field(f)
		if !ok {
			continue
		}
		data, err := encode(v)
		if err != nil {
			return &FieldError{Field: f, Kind: ErrEncode, Err: err}
		}
		batch = append(batch, &pending{field: f, data: data})
	}
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	id := rec.RecordID()
	eg, egCtx := e.group(ctx)
	for _, p := range batch {
		eg.Go(func() error {
			md := blobstore.Metadata{
				blobstore.MetaBucket:      e.reg.bucket,
				blobstore.MetaField:       p.field,
				blobstore.MetaContentType: contentType,
			}
			if id != "" {
				md[blobstore.MetaRecord] = id
			}
			h, err := e.store.Put(egCtx, p.data, md)
			if err == nil && h.IsZero() {
				err = blobstore.ErrInvalidHandle
			}
			if err != nil {
				return &FieldError{Field: p.field, Kind: ErrStoreWrite, Err: err}
			}
			p.handle = h
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		slog.WarnContext(ctx, "offload failed", "record", id, "fields", len(batch), "err", err)
		return err
	}

	refs := rec.Refs()
	for _, p := range batch {
		refs.set(p.field, p.handle)
		rec.ClearField(p.field)
	}
	slog.DebugContext(ctx, "offloaded", "record", id, "bucket", e.reg.bucket, "fields", len(batch), "dur", time.Since(start))
	return nil
}

// Rehydrate fetches every registered field referenced in rec.Refs() and sets
// it on rec.
//
// Registered fields without a reference are skipped. The Reference Map is not
// modified and nothing is cached: every call fetches again. On failure the
// error is a *FieldError of kind ErrStoreRead or ErrDecode; fields fetched
// before the failure remain set on rec.
func (e *Engine) Rehydrate(ctx context.Context, rec Record) error {
	refs := rec.Refs()
	id := rec.RecordID()
	start := time.Now()
	// Record implementations are not goroutine safe.
	var mu sync.Mutex
	n := 0
	eg, egCtx := e.group(ctx)
	for _, f := range e.reg.fields {
		h, ok := refs.Get(f)
		if !ok {
			continue
		}
		n++
		eg.Go(func() error {
			data, err := e.store.Get(egCtx, h)
			if err != nil {
				return &FieldError{Field: f, Kind: ErrStoreRead, Err: err}
			}
			v, err := decode(data)
			if err != nil {
				return &FieldError{Field: f, Kind: ErrDecode, Err: err}
			}
			mu.Lock()
			defer mu.Unlock()
			rec.SetField(f, v)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		slog.WarnContext(ctx, "rehydrate failed", "record", id, "fields", n, "err", err)
		return err
	}
	if n != 0 {
		slog.DebugContext(ctx, "rehydrated", "record", id, "bucket", e.reg.bucket, "fields", n, "dur", time.Since(start))
	}
	return nil
}

// BeforeSave offloads rec. It has the shape of a host pre-save hook: a
// non-nil error vetoes the save and must be returned to the caller unchanged.
func (e *Engine) BeforeSave(ctx context.Context, rec Record) error {
	return e.Offload(ctx, rec)
}

func (e *Engine) group(ctx context.Context) (*errgroup.Group, context.Context) {
	eg, egCtx := errgroup.WithContext(ctx)
	if e.opts.Concurrency > 0 {
		eg.SetLimit(e.opts.Concurrency)
	}
	return eg, egCtx
}
