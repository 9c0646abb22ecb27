// Encodes field values as self-describing JSON.

package offload

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// contentType is passed as blob metadata for every offloaded field.
const contentType = "application/json"

// Tags of the single key objects that carry values JSON cannot represent
// exactly. A map whose keys start with tagPrefix is escaped under tagMap.
const (
	tagPrefix  = "$"
	tagBinary  = "$binary"
	tagMap     = "$map"
	tagFloat32 = "$float32"
	tagNil     = "$nil"
)

var errTrailingData = errors.New("trailing data after value")

// encode returns the JSON encoding of v.
//
// Supported types are nil, bool, string, all integer and float kinds, []byte,
// []any and map[string]any, nested arbitrarily. float64 values are plain JSON
// numbers. Other scalars, []byte and nil slices or maps are wrapped in a
// tagged object so that decode returns a value of the same type. Any other
// type is an error.
func encode(v any) ([]byte, error) {
	t, err := toJSON(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(t)
}

// decode is the inverse of encode. Untagged numbers decode as float64 and
// untagged objects as map[string]any, so plain JSON blobs stay readable.
func decode(data []byte) (any, error) {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	var t any
	if err := d.Decode(&t); err != nil {
		return nil, err
	}
	if _, err := d.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return fromJSON(t)
}

func toJSON(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string:
		return t, nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("unsupported float value %v", t)
		}
		return t, nil
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return nil, fmt.Errorf("unsupported float value %v", t)
		}
		return map[string]any{tagFloat32: strconv.FormatFloat(float64(t), 'g', -1, 32)}, nil
	case int:
		return intTag("int", int64(t)), nil
	case int8:
		return intTag("int8", int64(t)), nil
	case int16:
		return intTag("int16", int64(t)), nil
	case int32:
		return intTag("int32", int64(t)), nil
	case int64:
		return intTag("int64", t), nil
	case uint:
		return uintTag("uint", uint64(t)), nil
	case uint8:
		return uintTag("uint8", uint64(t)), nil
	case uint16:
		return uintTag("uint16", uint64(t)), nil
	case uint32:
		return uintTag("uint32", uint64(t)), nil
	case uint64:
		return uintTag("uint64", t), nil
	case []byte:
		if t == nil {
			return map[string]any{tagNil: "binary"}, nil
		}
		return map[string]any{tagBinary: base64.StdEncoding.EncodeToString(t)}, nil
	case []any:
		if t == nil {
			return map[string]any{tagNil: "list"}, nil
		}
		out := make([]any, len(t))
		for i, e := range t {
			var err error
			if out[i], err = toJSON(e); err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return out, nil
	case map[string]any:
		if t == nil {
			return map[string]any{tagNil: "map"}, nil
		}
		out := make(map[string]any, len(t))
		escape := false
		for k, e := range t {
			escape = escape || strings.HasPrefix(k, tagPrefix)
			var err error
			if out[k], err = toJSON(e); err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
		}
		if escape {
			return map[string]any{tagMap: out}, nil
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

func intTag(kind string, v int64) map[string]any {
	return map[string]any{tagPrefix + kind: strconv.FormatInt(v, 10)}
}

func uintTag(kind string, v uint64) map[string]any {
	return map[string]any{tagPrefix + kind: strconv.FormatUint(v, 10)}
}

func fromJSON(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Float64()
	case []any:
		for i, e := range t {
			var err error
			if t[i], err = fromJSON(e); err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return t, nil
	case map[string]any:
		if len(t) == 1 {
			for k, e := range t {
				if strings.HasPrefix(k, tagPrefix) {
					return fromTag(k, e)
				}
			}
		}
		return fromMap(t)
	default:
		return t, nil
	}
}

func fromMap(m map[string]any) (map[string]any, error) {
	for k, e := range m {
		var err error
		if m[k], err = fromJSON(e); err != nil {
			return nil, fmt.Errorf("%q: %w", k, err)
		}
	}
	return m, nil
}

func fromTag(tag string, v any) (any, error) {
	if tag == tagMap {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: want object, got %T", tag, v)
		}
		return fromMap(m)
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%s: want string, got %T", tag, v)
	}
	switch tag {
	case tagNil:
		switch s {
		case "binary":
			return []byte(nil), nil
		case "list":
			return []any(nil), nil
		case "map":
			return map[string]any(nil), nil
		}
		return nil, fmt.Errorf("%s: unknown type %q", tag, s)
	case tagBinary:
		return base64.StdEncoding.DecodeString(s)
	case tagFloat32:
		f, err := strconv.ParseFloat(s, 32)
		return float32(f), err
	case "$int":
		i, err := strconv.ParseInt(s, 10, strconv.IntSize)
		return int(i), err
	case "$int8":
		i, err := strconv.ParseInt(s, 10, 8)
		return int8(i), err
	case "$int16":
		i, err := strconv.ParseInt(s, 10, 16)
		return int16(i), err
	case "$int32":
		i, err := strconv.ParseInt(s, 10, 32)
		return int32(i), err
	case "$int64":
		return strconv.ParseInt(s, 10, 64)
	case "$uint":
		u, err := strconv.ParseUint(s, 10, strconv.IntSize)
		return uint(u), err
	case "$uint8":
		u, err := strconv.ParseUint(s, 10, 8)
		return uint8(u), err
	case "$uint16":
		u, err := strconv.ParseUint(s, 10, 16)
		return uint16(u), err
	case "$uint32":
		u, err := strconv.ParseUint(s, 10, 32)
		return uint32(u), err
	case "$uint64":
		return strconv.ParseUint(s, 10, 64)
	default:
		return nil, fmt.Errorf("unknown tag %q", tag)
	}
}
