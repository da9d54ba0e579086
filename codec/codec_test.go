package codec

import (
	"bytes"
	"encoding/binary"
	"math"
	"runtime"
	"testing"

	"github.com/nasdf/docproxy/fieldop"
	"github.com/nasdf/docproxy/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRef(t *testing.T, path string) transport.Ref {
	ref, err := transport.NewRef(path)
	require.NoError(t, err)
	return ref
}

func TestEncodeDecode(t *testing.T) {
	testInput := []any{
		nil,
		"",
		"test",
		[]byte{},
		[]byte{0, 1, 2, 3},
		int64(math.MaxInt64),
		int64(math.MinInt64),
		float64(3.14),
		true,
		false,
		[]any{},
		[]any{int64(5), "hello", nil},
		map[string]any{},
		map[string]any{"count": int64(9), "tags": []any{"a"}},
		fieldop.Delete,
		fieldop.ArrayUnion{Values: []any{"logic", int64(1)}},
		fieldop.ArrayRemove{Values: []any{map[string]any{"x": true}}},
		fieldop.Increment{Amount: int64(5)},
		fieldop.Increment{Amount: float64(-0.5)},
		&transport.Snapshot{
			Ref:    mustRef(t, "users/ada"),
			Exists: true,
			Data:   map[string]any{"name": "Ada"},
		},
	}

	var buffer bytes.Buffer
	enc := NewEncoder(&buffer)
	dec := NewDecoder(&buffer)

	for _, expect := range testInput {
		buffer.Reset()

		err := enc.Encode(expect)
		require.NoError(t, err)

		err = enc.Flush()
		require.NoError(t, err)

		actual, err := dec.Decode()
		require.NoError(t, err)

		assert.Equal(t, expect, actual)
	}
}

func TestEncodePayload(t *testing.T) {
	payload := transport.Payload{
		"name":  "Ada",
		"old":   fieldop.Delete,
		"count": fieldop.Increment{Amount: int64(1)},
	}

	var buffer bytes.Buffer
	enc := NewEncoder(&buffer)
	require.NoError(t, enc.Encode(payload))
	require.NoError(t, enc.Flush())

	actual, err := NewDecoder(&buffer).DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, payload, actual)
}

func TestMissingSnapshotDecodesEmptyData(t *testing.T) {
	snap := &transport.Snapshot{Ref: mustRef(t, "users/none")}

	var buffer bytes.Buffer
	enc := NewEncoder(&buffer)
	require.NoError(t, enc.EncodeSnapshot(snap))
	require.NoError(t, enc.Flush())

	actual, err := NewDecoder(&buffer).DecodeSnapshot()
	require.NoError(t, err)
	assert.False(t, actual.Exists)
	assert.Empty(t, actual.Data)
	assert.Equal(t, "users/none", actual.Ref.Path())
}

func TestEncodeUnsupportedValue(t *testing.T) {
	enc := NewEncoder(&bytes.Buffer{})
	err := enc.Encode(struct{}{})
	assert.ErrorContains(t, err, "no encoder")
}

func TestDecodeInvalidKind(t *testing.T) {
	_, err := NewDecoder(bytes.NewReader([]byte{0xff})).Decode()
	assert.ErrorContains(t, err, "invalid codec kind")
}

func TestDecodeTruncated(t *testing.T) {
	var buffer bytes.Buffer
	enc := NewEncoder(&buffer)
	require.NoError(t, enc.EncodeString("truncated"))
	require.NoError(t, enc.Flush())

	data := buffer.Bytes()[:buffer.Len()-3]
	_, err := NewDecoder(bytes.NewReader(data)).Decode()
	assert.Error(t, err)
}

func TestDecodeLengthPrefixDoesNotPreallocate(t *testing.T) {
	for _, kind := range []byte{kindList, kindMap, kindBytes, kindString} {
		data := binary.LittleEndian.AppendUint64([]byte{kind}, maxSize)

		var before, after runtime.MemStats
		runtime.ReadMemStats(&before)
		_, err := NewDecoder(bytes.NewReader(data)).Decode()
		runtime.ReadMemStats(&after)

		assert.Error(t, err, "kind %d", kind)
		assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20), "kind %d", kind)
	}
}

func TestDecodeLengthPrefixOverLimit(t *testing.T) {
	data := binary.LittleEndian.AppendUint64([]byte{kindList}, maxSize+1)
	_, err := NewDecoder(bytes.NewReader(data)).Decode()
	assert.Error(t, err)
}

func TestDecodeNestingDepth(t *testing.T) {
	nested := func(levels int) []byte {
		var data []byte
		for range levels {
			data = binary.LittleEndian.AppendUint64(append(data, kindList), 1)
		}
		return append(data, kindNull)
	}

	_, err := NewDecoder(bytes.NewReader(nested(MaxDepth))).Decode()
	assert.NoError(t, err)

	_, err = NewDecoder(bytes.NewReader(nested(MaxDepth + 1))).Decode()
	assert.ErrorContains(t, err, "depth")

	_, err = NewDecoder(bytes.NewReader(nested(10000))).Decode()
	assert.ErrorContains(t, err, "depth")
}

func TestDecodePayloadAtValueDepthLimit(t *testing.T) {
	var value any = "leaf"
	for range 19 {
		value = []any{value}
	}
	payload := transport.Payload{
		"deep":  value,
		"union": fieldop.ArrayUnion{Values: []any{value}},
	}

	var buffer bytes.Buffer
	enc := NewEncoder(&buffer)
	require.NoError(t, enc.Encode(payload))
	require.NoError(t, enc.Flush())

	out, err := NewDecoder(&buffer).DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, value, out["deep"])
}
