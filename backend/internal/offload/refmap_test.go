package offload

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/maruel/fieldblob/backend/internal/blobstore"
)

func TestRefMap(t *testing.T) {
	t.Run("zero value", func(t *testing.T) {
		var r RefMap
		if !r.IsZero() || r.Len() != 0 {
			t.Error("zero RefMap is not empty")
		}
		if _, ok := r.Get("a"); ok {
			t.Error("Get() on zero RefMap found an entry")
		}
		data, err := json.Marshal(r)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "{}" {
			t.Errorf("Marshal() = %s, want {}", data)
		}
	})

	t.Run("iteration order", func(t *testing.T) {
		var r RefMap
		r.set("b", "h2")
		r.set("a", "h1")
		r.set("c", "h3")
		if got := r.Fields(); !slices.Equal(got, []string{"a", "b", "c"}) {
			t.Errorf("Fields() = %v", got)
		}
		var got []blobstore.Handle
		for _, h := range r.All() {
			got = append(got, h)
		}
		if !slices.Equal(got, []blobstore.Handle{"h1", "h2", "h3"}) {
			t.Errorf("All() = %v", got)
		}
	})

	t.Run("clone is independent", func(t *testing.T) {
		var r RefMap
		r.set("a", "h1")
		c := r.Clone()
		c.set("a", "h2")
		if h, _ := r.Get("a"); h != "h1" {
			t.Errorf("original changed to %q", h)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		var r RefMap
		r.set("content", "h1")
		r.set("complement", "h2")
		data, err := json.Marshal(r)
		if err != nil {
			t.Fatal(err)
		}
		if want := `{"complement":"h2","content":"h1"}`; string(data) != want {
			t.Errorf("Marshal() = %s, want %s", data, want)
		}
		var got RefMap
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if h, _ := got.Get("complement"); h != "h2" {
			t.Errorf("Get(complement) = %q", h)
		}
	})

	t.Run("JSON invalid", func(t *testing.T) {
		for _, in := range []string{`[]`, `{"a":""}`, `{"":"h"}`, `{"a":1}`} {
			var r RefMap
			if err := json.Unmarshal([]byte(in), &r); err == nil {
				t.Errorf("Unmarshal(%s) succeeded", in)
			}
		}
	})

	t.Run("JSON null", func(t *testing.T) {
		var r RefMap
		if err := json.Unmarshal([]byte(`null`), &r); err != nil {
			t.Fatalf("Unmarshal(null) error = %v", err)
		}
		if !r.IsZero() {
			t.Error("null decoded to a non-empty map")
		}
	})
}
