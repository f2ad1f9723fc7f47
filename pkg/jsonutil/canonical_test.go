package jsonutil_test

import (
	"testing"

	"github.com/remedy-project/remedy/pkg/jsonutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalMarshal_SortsKeys(t *testing.T) {
	data, err := jsonutil.CanonicalMarshal(map[string]any{
		"zebra": 1,
		"alpha": 2,
		"mid":   3,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zebra":1}`, string(data))
}

func TestCanonicalMarshal_NestedStructures(t *testing.T) {
	type inner struct {
		B string `json:"b"`
		A string `json:"a"`
	}
	type outer struct {
		Z inner    `json:"z"`
		L []string `json:"l"`
	}
	data, err := jsonutil.CanonicalMarshal(outer{
		Z: inner{B: "2", A: "1"},
		L: []string{"x", "y"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"l":["x","y"],"z":{"a":"1","b":"2"}}`, string(data))
}

func TestCanonicalMarshal_Deterministic(t *testing.T) {
	v := map[string]any{"k1": []any{1, 2, 3}, "k2": nil, "k3": true}
	first, err := jsonutil.CanonicalMarshal(v)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		next, err := jsonutil.CanonicalMarshal(v)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(next))
	}
}

func TestCanonicalSHA256_StableAcrossKeyOrder(t *testing.T) {
	h1, err := jsonutil.CanonicalSHA256(map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	h2, err := jsonutil.CanonicalSHA256(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestCanonicalSHA256_DiffersOnContent(t *testing.T) {
	h1, err := jsonutil.CanonicalSHA256(map[string]any{"a": 1})
	require.NoError(t, err)
	h2, err := jsonutil.CanonicalSHA256(map[string]any{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
