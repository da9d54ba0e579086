package link

import (
	"bytes"
	"context"
	"testing"

	"github.com/nasdf/docproxy/storage"

	"github.com/ipld/go-car/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreMapRoundTrip(t *testing.T) {
	ctx := context.Background()
	links := NewStore(storage.NewMemory())

	value := map[string]any{
		"name": "Ada",
		"year": int64(1815),
		"tags": []any{"math"},
	}
	lnk, err := links.StoreMap(ctx, value)
	require.NoError(t, err)

	parsed, err := ParseLink(lnk.String())
	require.NoError(t, err)
	assert.Equal(t, lnk, parsed)

	actual, err := links.LoadMap(ctx, parsed)
	require.NoError(t, err)
	assert.Equal(t, value, actual)
}

func TestStoreMapSameLink(t *testing.T) {
	ctx := context.Background()
	links := NewStore(storage.NewMemory())

	a, err := links.StoreMap(ctx, map[string]any{"a": int64(1), "b": int64(2)})
	require.NoError(t, err)
	b, err := links.StoreMap(ctx, map[string]any{"b": int64(2), "a": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStoreRemove(t *testing.T) {
	ctx := context.Background()
	links := NewStore(storage.NewMemory())

	lnk, err := links.StoreMap(ctx, map[string]any{"a": int64(1)})
	require.NoError(t, err)

	ok, err := links.Has(ctx, lnk)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, links.Remove(ctx, lnk))
	ok, err = links.Has(ctx, lnk)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = links.LoadMap(ctx, lnk)
	assert.Error(t, err)
}

func TestParseLinkInvalid(t *testing.T) {
	_, err := ParseLink("not a cid")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	links := NewStore(storage.NewMemory())

	lnk, err := links.StoreMap(ctx, map[string]any{"name": "Ada"})
	require.NoError(t, err)

	var out bytes.Buffer
	err = links.Export(ctx, lnk, &out)
	require.NoError(t, err)

	reader, err := car.NewBlockReader(&out)
	require.NoError(t, err)
	require.Len(t, reader.Roots, 1)
	assert.Equal(t, lnk.String(), reader.Roots[0].String())
}
