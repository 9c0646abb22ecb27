package offload

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultBucket is used when a registry is built with an empty bucket.
const DefaultBucket = "fs"

// Registry lists the offloadable fields of one record type.
//
// It is immutable once built.
type Registry struct {
	bucket string
	fields []string
	index  map[string]struct{}
}

// NewRegistry validates fields and returns a registry. An empty bucket
// selects DefaultBucket. Fields keep their order.
//
// It returns an error wrapping ErrConfiguration when:
//   - fields is empty;
//   - a name is empty;
//   - a name starts with "_", reserved for record bookkeeping such as [RefsKey];
//   - a name is repeated.
func NewRegistry(bucket string, fields ...string) (*Registry, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrConfiguration)
	}
	if bucket == "" {
		bucket = DefaultBucket
	}
	r := &Registry{
		bucket: bucket,
		fields: make([]string, 0, len(fields)),
		index:  make(map[string]struct{}, len(fields)),
	}
	for i, f := range fields {
		if f == "" {
			return nil, fmt.Errorf("%w: field %d: name is required", ErrConfiguration, i)
		}
		if strings.HasPrefix(f, "_") {
			return nil, fmt.Errorf("%w: field %q: names starting with '_' are reserved", ErrConfiguration, f)
		}
		if _, ok := r.index[f]; ok {
			return nil, fmt.Errorf("%w: field %q: duplicate", ErrConfiguration, f)
		}
		r.index[f] = struct{}{}
		r.fields = append(r.fields, f)
	}
	return r, nil
}

// Bucket returns the blob namespace passed to the store as metadata.
func (r *Registry) Bucket() string {
	return r.bucket
}

// Fields returns a copy of the registered field names, in registration order.
func (r *Registry) Fields() []string {
	return slices.Clone(r.fields)
}

// Has returns true if name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Len returns the number of registered fields.
func (r *Registry) Len() int {
	return len(r.fields)
}
