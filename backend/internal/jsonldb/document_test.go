package jsonldb

import (
	"encoding/json"
	"reflect"
	"slices"
	"testing"

	"github.com/maruel/fieldblob/backend/internal/offload"
	"github.com/maruel/ksid"
)

func TestDocument(t *testing.T) {
	t.Run("reserved names", func(t *testing.T) {
		for _, name := range []string{"", IDKey, offload.RefsKey, "_x"} {
			if _, err := NewDocument(map[string]any{name: 1}); err == nil {
				t.Errorf("NewDocument(%q) succeeded", name)
			}
		}
	})

	t.Run("record interface", func(t *testing.T) {
		d, err := NewDocument(map[string]any{"a": 1})
		if err != nil {
			t.Fatal(err)
		}
		if d.RecordID() != "" {
			t.Errorf("RecordID() = %q, want empty", d.RecordID())
		}
		d.ID = ksid.NewID()
		if d.RecordID() != d.ID.String() {
			t.Errorf("RecordID() = %q", d.RecordID())
		}
		d.SetField("b", nil)
		if v, ok := d.Field("b"); !ok || v != nil {
			t.Errorf("Field(b) = %v, %v", v, ok)
		}
		d.ClearField("b")
		if _, ok := d.Field("b"); ok {
			t.Error("ClearField() left the key")
		}
		if got := d.Names(); !slices.Equal(got, []string{"a"}) {
			t.Errorf("Names() = %v", got)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		in := `{"_blobs":{"content":"h1"},"_id":"` + ksid.NewID().String() + `","list":[1,"x"],"name":"n"}`
		d := &Document{}
		if err := json.Unmarshal([]byte(in), d); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if h, _ := d.Refs().Get("content"); h != "h1" {
			t.Errorf("Refs().Get(content) = %q", h)
		}
		if v, _ := d.Get("list"); !reflect.DeepEqual(v, []any{1.0, "x"}) {
			t.Errorf("list = %#v", v)
		}
		out, err := json.Marshal(d)
		if err != nil {
			t.Fatal(err)
		}
		if string(out) != in {
			t.Errorf("Marshal() = %s, want %s", out, in)
		}
	})

	t.Run("JSON without refs", func(t *testing.T) {
		d, err := NewDocument(map[string]any{"name": "n"})
		if err != nil {
			t.Fatal(err)
		}
		out, err := json.Marshal(d)
		if err != nil {
			t.Fatal(err)
		}
		if string(out) != `{"name":"n"}` {
			t.Errorf("Marshal() = %s", out)
		}
	})

	t.Run("JSON invalid", func(t *testing.T) {
		for _, in := range []string{
			`[]`,
			`{"_id":1}`,
			`{"_id":"!!"}`,
			`{"_other":1}`,
			`{"_blobs":{"a":""}}`,
		} {
			d := &Document{}
			if err := json.Unmarshal([]byte(in), d); err == nil {
				t.Errorf("Unmarshal(%s) succeeded", in)
			}
		}
	})

	t.Run("Clone", func(t *testing.T) {
		d, err := NewDocument(map[string]any{"obj": map[string]any{"arr": []any{"a"}}})
		if err != nil {
			t.Fatal(err)
		}
		c := d.Clone()
		obj, _ := c.Get("obj")
		obj.(map[string]any)["arr"].([]any)[0] = "b"
		orig, _ := d.Get("obj")
		if orig.(map[string]any)["arr"].([]any)[0] != "a" {
			t.Error("Clone() shares nested values")
		}
	})
}
