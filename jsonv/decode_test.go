package jsonv_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/spotstat/jsonv"
)

func TestDecodePreservesMemberOrder(t *testing.T) {
	t.Parallel()

	v, err := jsonv.Decode(strings.NewReader(`{"z": 1, "a": 2, "m": 3}`))
	require.NoError(t, err)

	obj, ok := v.AsObject()
	require.True(t, ok)

	keys := make([]string, 0, len(obj))
	for _, m := range obj {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"z", "a", "m"}, keys)
}

func TestDecodeKeepsDuplicateNames(t *testing.T) {
	t.Parallel()

	v, err := jsonv.Parse([]byte(`{"a": 1, "b": {"a": 2}, "a": 3}`))
	require.NoError(t, err)

	obj, ok := v.AsObject()
	require.True(t, ok)
	require.Len(t, obj, 3)
	assert.Equal(t, "a", obj[2].Key)

	var got []int64
	for match := range jsonv.Search(v, "a") {
		n, ok := match.AsInt64()
		require.True(t, ok)
		got = append(got, n)
	}
	assert.Equal(t, []int64{1, 2, 3}, got)

	first, ok := v.Get("a")
	require.True(t, ok)
	n, _ := first.AsInt64()
	assert.Equal(t, int64(1), n)
}

func TestDecodeKinds(t *testing.T) {
	t.Parallel()

	v, err := jsonv.Parse([]byte(`{"s": "x", "n": 1.5e3, "i": -7, "t": true, "f": false, "z": null, "a": [], "o": {}}`))
	require.NoError(t, err)

	tests := []struct {
		key  string
		kind jsonv.Kind
	}{
		{key: "s", kind: jsonv.KindString},
		{key: "n", kind: jsonv.KindNumber},
		{key: "i", kind: jsonv.KindNumber},
		{key: "t", kind: jsonv.KindBool},
		{key: "f", kind: jsonv.KindBool},
		{key: "z", kind: jsonv.KindNull},
		{key: "a", kind: jsonv.KindArray},
		{key: "o", kind: jsonv.KindObject},
	}
	for _, test := range tests {
		got, ok := v.Get(test.key)
		require.True(t, ok, test.key)
		assert.Equal(t, test.kind, got.Kind(), test.key)
	}

	n, _ := v.Get("n")
	i, ok := n.AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(1500), i)

	lit, ok := n.Literal()
	require.True(t, ok)
	assert.Equal(t, "1.5e3", lit)

	neg, _ := v.Get("i")
	i, ok = neg.AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(-7), i)
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty input", input: ``},
		{name: "truncated object", input: `{"a": `},
		{name: "trailing data", input: `{} {}`},
		{name: "invalid literal", input: `{"a": nope}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			_, err := jsonv.Parse([]byte(test.input))
			require.Error(t, err)
		})
	}

	_, err := jsonv.Parse([]byte(`[1] 2`))
	require.ErrorIs(t, err, jsonv.ErrTrailingData)
}

func TestFromAny(t *testing.T) {
	t.Parallel()

	var generic any
	require.NoError(t, json.Unmarshal([]byte(`{"b": [1, "two", null], "a": {"ok": true}}`), &generic))

	v := jsonv.FromAny(generic)
	obj, ok := v.AsObject()
	require.True(t, ok)
	require.Len(t, obj, 2)
	assert.Equal(t, "a", obj[0].Key)
	assert.Equal(t, "b", obj[1].Key)

	arr, ok := obj[1].Value.AsArray()
	require.True(t, ok)
	require.Len(t, arr, 3)
	n, ok := arr[0].AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, jsonv.KindNull, arr[2].Kind())

	assert.Equal(t, jsonv.KindInvalid, jsonv.FromAny(struct{}{}).Kind())
	assert.Equal(t, jsonv.KindNumber, jsonv.FromAny(json.Number("12")).Kind())
}

func TestValueAccessorsRejectOtherKinds(t *testing.T) {
	t.Parallel()

	s := jsonv.String("x")

	_, ok := s.AsInt64()
	assert.False(t, ok)
	_, ok = s.AsBool()
	assert.False(t, ok)
	_, ok = s.AsObject()
	assert.False(t, ok)
	_, ok = s.Get("x")
	assert.False(t, ok)
	_, ok = s.Index(0)
	assert.False(t, ok)
	assert.Zero(t, s.Len())
	assert.Equal(t, jsonv.KindInvalid, s.Field("x").At(0).Field("y").Kind())

	_, ok = jsonv.Number("1.5").AsInt64()
	assert.False(t, ok)
}
