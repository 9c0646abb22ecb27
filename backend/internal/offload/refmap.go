// Defines the per-record Reference Map of offloaded fields.

package offload

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/maruel/fieldblob/backend/internal/blobstore"
)

// RefsKey is the key under which a record persists its RefMap.
const RefsKey = "_blobs"

// RefMap maps an offloaded field name to the handle of its blob.
//
// It is read-only outside this package: only a successful [Engine.Offload]
// creates or overwrites entries. The zero value is an empty map.
type RefMap struct {
	m map[string]blobstore.Handle
}

// Get returns the handle for field.
func (r *RefMap) Get(field string) (blobstore.Handle, bool) {
	h, ok := r.m[field]
	return h, ok
}

// Has returns true if field has been offloaded.
func (r *RefMap) Has(field string) bool {
	_, ok := r.m[field]
	return ok
}

// Len returns the number of entries.
func (r *RefMap) Len() int {
	return len(r.m)
}

// Fields returns the offloaded field names, sorted.
func (r *RefMap) Fields() []string {
	return slices.Sorted(maps.Keys(r.m))
}

// All iterates over entries in field name order.
func (r *RefMap) All() iter.Seq2[string, blobstore.Handle] {
	return func(yield func(string, blobstore.Handle) bool) {
		for _, f := range r.Fields() {
			if !yield(f, r.m[f]) {
				return
			}
		}
	}
}

// Clone returns an independent copy.
func (r *RefMap) Clone() RefMap {
	return RefMap{m: maps.Clone(r.m)}
}

// IsZero returns true if the map is empty. Implements the interface for json
// omitzero.
func (r *RefMap) IsZero() bool {
	return len(r.m) == 0
}

func (r *RefMap) set(field string, h blobstore.Handle) {
	if r.m == nil {
		r.m = make(map[string]blobstore.Handle)
	}
	r.m[field] = h
}

// MarshalJSON encodes the map as a JSON object of field name to handle.
//
// The value receiver lets a RefMap embedded by value in a record marshal.
func (r RefMap) MarshalJSON() ([]byte, error) {
	if len(r.m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(r.m)
}

// UnmarshalJSON decodes a JSON object of field name to handle. Null yields an
// empty map.
func (r *RefMap) UnmarshalJSON(data []byte) error {
	var m map[string]blobstore.Handle
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("invalid %s: %w", RefsKey, err)
	}
	for f, h := range m {
		if f == "" || h.IsZero() {
			return fmt.Errorf("invalid %s: empty entry %q", RefsKey, f)
		}
	}
	r.m = m
	if len(r.m) == 0 {
		r.m = nil
	}
	return nil
}
