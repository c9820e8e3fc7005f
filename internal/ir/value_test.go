package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Bool(true)
	var _ Value = Array{String("a"), Int(1)}
	var _ Value = Object{"key": String("value")}
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{"zebra": Int(1), "apple": Int(2), "banana": Int(3)}
	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestObjectSortedKeysUTF16(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D 0xDE00, which sort before U+FB01
	// in UTF-16 but after it in UTF-8.
	obj := Object{"\U0001F600": Int(1), "ﬁ": Int(2)}
	assert.Equal(t, []string{"\U0001F600", "ﬁ"}, obj.SortedKeys())
}

func TestObjectAccessors(t *testing.T) {
	obj := Object{"code": String("MAB123"), "max_capacity": Int(30)}

	assert.Equal(t, "MAB123", obj.Str("code"))
	assert.Equal(t, "", obj.Str("max_capacity"))
	assert.Equal(t, "", obj.Str("missing"))

	n, ok := obj.Num("max_capacity")
	assert.True(t, ok)
	assert.Equal(t, int64(30), n)

	_, ok = obj.Num("code")
	assert.False(t, ok)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"code":   "MAB123",
		"cap":    30,
		"yaml":   float64(2),
		"flags":  []any{true, "x"},
		"nested": map[string]any{"n": int64(1)},
	})
	require.NoError(t, err)

	obj := v.(Object)
	assert.Equal(t, String("MAB123"), obj["code"])
	assert.Equal(t, Int(30), obj["cap"])
	assert.Equal(t, Int(2), obj["yaml"])
	assert.Equal(t, Array{Bool(true), String("x")}, obj["flags"])
	assert.Equal(t, Object{"n": Int(1)}, obj["nested"])
}

func TestFromAnyRejects(t *testing.T) {
	_, err := FromAny(nil)
	require.Error(t, err)

	_, err = FromAny(1.5)
	require.Error(t, err)

	_, err = FromAny(struct{}{})
	require.Error(t, err)
}

func TestToAny(t *testing.T) {
	obj := Object{"a": Int(1), "b": Array{String("x")}, "c": Bool(false)}
	assert.Equal(t, map[string]any{
		"a": int64(1),
		"b": []any{"x"},
		"c": false,
	}, ToAny(obj))
}

func TestUnmarshalObject(t *testing.T) {
	obj, err := UnmarshalObject([]byte(`{"code":"MAB123","max_capacity":30}`))
	require.NoError(t, err)
	assert.Equal(t, Object{"code": String("MAB123"), "max_capacity": Int(30)}, obj)
}

func TestUnmarshalObjectRejectsFloatsAndNull(t *testing.T) {
	_, err := UnmarshalObject([]byte(`{"x":1.5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")

	_, err = UnmarshalObject([]byte(`{"x":null}`))
	require.Error(t, err)

	_, err = UnmarshalObject([]byte(`null`))
	require.Error(t, err)
}

func TestObjectMarshalJSONIsCanonical(t *testing.T) {
	data, err := json.Marshal(Object{"b": Int(1), "a": String("x")})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1}`, string(data))
}
