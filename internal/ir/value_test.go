package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny_Scalars(t *testing.T) {
	cases := []struct {
		in   any
		want Value
	}{
		{"hello", String("hello")},
		{42, Int(42)},
		{int64(-7), Int(-7)},
		{true, Bool(true)},
		{nil, Null{}},
		{json.Number("12"), Int(12)},
	}

	for _, tc := range cases {
		got, err := FromAny(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestFromAny_RejectsFloats(t *testing.T) {
	_, err := FromAny(3.14)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are not supported")

	_, err = FromAny(json.Number("1.5"))
	require.Error(t, err)
}

func TestFromAny_Nested(t *testing.T) {
	got, err := FromAny(map[string]any{
		"tags":  []any{"a", "b"},
		"owner": map[string]any{"name": "ana", "level": 3},
	})
	require.NoError(t, err)

	want := Object{
		"tags":  Array{String("a"), String("b")},
		"owner": Object{"name": String("ana"), "level": Int(3)},
	}
	assert.Equal(t, want, got)
}

func TestFromAny_NestedFloatReportsPath(t *testing.T) {
	_, err := ObjectFromMap(map[string]any{"score": []any{1, 2.5}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "score"`)
	assert.Contains(t, err.Error(), "[1]")
}

func TestDecodeObject_KeepsIntegersExact(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"big": 9007199254740993, "ok": true, "none": null}`))
	require.NoError(t, err)

	assert.Equal(t, Int(9007199254740993), obj["big"])
	assert.Equal(t, Bool(true), obj["ok"])
	assert.Equal(t, Null{}, obj["none"])
}

func TestClone_IsDeep(t *testing.T) {
	orig := Object{"tags": Array{String("a")}, "inner": Object{"n": Int(1)}}
	cp := orig.Clone()

	cp["tags"].(Array)[0] = String("changed")
	cp["inner"].(Object)["n"] = Int(2)

	assert.Equal(t, String("a"), orig["tags"].(Array)[0])
	assert.Equal(t, Int(1), orig["inner"].(Object)["n"])
}

func TestSortedKeys_UTF16Order(t *testing.T) {
	// U+1F600 encodes as a surrogate pair (0xD83D...) which sorts before
	// U+FF5E in UTF-16 but after it in UTF-8.
	obj := Object{"\uff5e": Int(1), "\U0001F600": Int(2), "a": Int(3)}
	assert.Equal(t, []string{"a", "\U0001F600", "\uff5e"}, obj.SortedKeys())
}

func TestRecord_Get(t *testing.T) {
	r := Record{ID: "t1", Entity: "Task", Fields: Object{"title": String("write")}}

	assert.Equal(t, String("t1"), r.Get("id"))
	assert.Equal(t, String("write"), r.Get("title"))
	assert.Nil(t, r.Get("missing"))
}

func TestToAny_RoundTripsThroughFromAny(t *testing.T) {
	obj := Object{"n": Int(1), "s": String("x"), "l": Array{Bool(false)}, "z": Null{}}

	back, err := FromAny(ToAny(obj))
	require.NoError(t, err)
	assert.Equal(t, obj, back)
}
