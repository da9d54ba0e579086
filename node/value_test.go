package node

import (
	"bytes"
	"testing"

	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildValue(t *testing.T) {
	input := map[string]any{
		"name":    "Ada",
		"year":    int64(1815),
		"ratio":   1.5,
		"active":  true,
		"missing": nil,
		"raw":     []byte{1, 2, 3},
		"tags":    []any{"math", int64(1)},
		"settings": map[string]any{
			"theme": "dark",
			"notifications": map[string]any{
				"email": true,
			},
		},
	}
	n, err := Build(input)
	require.NoError(t, err)

	actual, err := Value(n)
	require.NoError(t, err)
	assert.Equal(t, input, actual)
}

func TestBuildNormalizesNumbers(t *testing.T) {
	n, err := Build(map[string]any{"count": 3, "small": float32(0.5)})
	require.NoError(t, err)

	actual, err := Value(n)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": int64(3), "small": 0.5}, actual)
}

func TestBuildUnsupported(t *testing.T) {
	_, err := Build(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestBuildDeterministicEncoding(t *testing.T) {
	a, err := Build(map[string]any{"a": int64(1), "b": int64(2), "c": int64(3)})
	require.NoError(t, err)
	b, err := Build(map[string]any{"c": int64(3), "a": int64(1), "b": int64(2)})
	require.NoError(t, err)

	var bufA, bufB bytes.Buffer
	require.NoError(t, dagcbor.Encode(a, &bufA))
	require.NoError(t, dagcbor.Encode(b, &bufB))
	assert.Equal(t, bufA.Bytes(), bufB.Bytes())
}
