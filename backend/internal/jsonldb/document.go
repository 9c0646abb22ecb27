// Defines Document, the schemaless row type stored in a Collection.

package jsonldb

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/maruel/fieldblob/backend/internal/offload"
	"github.com/maruel/ksid"
)

// IDKey is the key under which a document persists its ID.
const IDKey = "_id"

var errReservedField = errors.New("field names starting with '_' are reserved")

// Document is a keyed, schemaless JSON object.
//
// Keys starting with "_" are reserved: IDKey holds the ID and offload.RefsKey
// the Reference Map of offloaded fields. Document implements offload.Record.
type Document struct {
	ID ksid.ID

	fields map[string]any
	refs   offload.RefMap
}

// NewDocument returns a document holding fields.
func NewDocument(fields map[string]any) (*Document, error) {
	d := &Document{fields: make(map[string]any, len(fields))}
	for k, v := range fields {
		if err := d.Set(k, v); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Get returns the value of field name.
func (d *Document) Get(name string) (any, bool) {
	v, ok := d.fields[name]
	return v, ok
}

// Set sets field name to v.
func (d *Document) Set(name string, v any) error {
	if name == "" {
		return errors.New("field name is required")
	}
	if strings.HasPrefix(name, "_") {
		return fmt.Errorf("%q: %w", name, errReservedField)
	}
	d.SetField(name, v)
	return nil
}

// Delete removes field name.
func (d *Document) Delete(name string) {
	delete(d.fields, name)
}

// Names returns the names of the fields present, sorted.
func (d *Document) Names() []string {
	return slices.Sorted(maps.Keys(d.fields))
}

// RecordID implements offload.Record.
func (d *Document) RecordID() string {
	if d.ID.IsZero() {
		return ""
	}
	return d.ID.String()
}

// Field implements offload.Record.
func (d *Document) Field(name string) (any, bool) {
	return d.Get(name)
}

// SetField implements offload.Record.
func (d *Document) SetField(name string, v any) {
	if d.fields == nil {
		d.fields = make(map[string]any)
	}
	d.fields[name] = v
}

// ClearField implements offload.Record.
func (d *Document) ClearField(name string) {
	d.Delete(name)
}

// Refs implements offload.Record.
func (d *Document) Refs() *offload.RefMap {
	return &d.refs
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := &Document{ID: d.ID, fields: make(map[string]any, len(d.fields)), refs: d.refs.Clone()}
	for k, v := range d.fields {
		c.fields[k] = cloneValue(v)
	}
	return c
}

// MarshalJSON implements json.Marshaler. Fields are emitted flat next to
// IDKey and, when non-empty, offload.RefsKey.
func (d *Document) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(d.fields)+2)
	maps.Copy(m, d.fields)
	if !d.ID.IsZero() {
		m[IDKey] = d.ID.String()
	}
	if !d.refs.IsZero() {
		m[offload.RefsKey] = d.refs
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Document{fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch {
		case k == IDKey:
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("invalid %s: %w", IDKey, err)
			}
			if s == "" {
				continue
			}
			id, err := ksid.Parse(s)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", IDKey, err)
			}
			d.ID = id
		case k == offload.RefsKey:
			if err := d.refs.UnmarshalJSON(v); err != nil {
				return err
			}
		case strings.HasPrefix(k, "_"):
			return fmt.Errorf("%q: %w", k, errReservedField)
		default:
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("field %q: %w", k, err)
			}
			d.fields[k] = val
		}
	}
	return nil
}

// normalize returns a deep copy of d holding only JSON-decoded values, as a
// reload from disk would.
func (d *Document) normalize() (*Document, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	n := &Document{}
	if err := json.Unmarshal(data, n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return n, nil
}

// cloneValue deep copies a JSON-decoded value.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(t))
		for k, e := range t {
			c[k] = cloneValue(e)
		}
		return c
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = cloneValue(e)
		}
		return c
	default:
		return v
	}
}
