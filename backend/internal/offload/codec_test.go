package offload

import (
	"reflect"
	"testing"
)

func TestCodec(t *testing.T) {
	t.Run("PlainJSON", func(t *testing.T) {
		// Blobs written by other tools decode with encoding/json types.
		got, err := decode([]byte(`{"a":1,"b":[true,"x"],"c":null}`))
		if err != nil {
			t.Fatalf("decode() error = %v", err)
		}
		want := map[string]any{"a": 1.0, "b": []any{true, "x"}, "c": nil}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("decode() = %#v, want %#v", got, want)
		}
	})

	t.Run("Tagged", func(t *testing.T) {
		data, err := encode(map[string]any{"bin": []byte{0, 0xff}, "n": int64(9007199254740993)})
		if err != nil {
			t.Fatal(err)
		}
		const want = `{"bin":{"$binary":"AP8="},"n":{"$int64":"9007199254740993"}}`
		if string(data) != want {
			t.Errorf("encode() = %s, want %s", data, want)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		for _, v := range []any{
			[]string{"a"},
			map[string]string{"a": "b"},
			struct{}{},
			map[string]any{"deep": []any{func() {}}},
		} {
			if _, err := encode(v); err == nil {
				t.Errorf("encode(%#v) succeeded", v)
			}
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, in := range []string{
			`{not json`,
			`"a" "b"`,
			`{"$binary":"!!"}`,
			`{"$binary":1}`,
			`{"$int8":"300"}`,
			`{"$uint":"-1"}`,
			`{"$nil":"chan"}`,
			`{"$map":[]}`,
			`{"$unknown":"x"}`,
		} {
			if _, err := decode([]byte(in)); err == nil {
				t.Errorf("decode(%s) succeeded", in)
			}
		}
	})
}
