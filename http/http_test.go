package http

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nasdf/docproxy/codec"
	"github.com/nasdf/docproxy/core"
	"github.com/nasdf/docproxy/fieldop"
	"github.com/nasdf/docproxy/storage"
	"github.com/nasdf/docproxy/store"
	"github.com/nasdf/docproxy/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *store.Store) {
	s, err := store.Open(context.Background(), storage.NewMemory())
	require.NoError(t, err)

	server := httptest.NewServer(Handler(s, nil))
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, server.Client())
	require.NoError(t, err)
	return client, s
}

func mustRef(t *testing.T, path string) transport.Ref {
	ref, err := transport.NewRef(path)
	require.NoError(t, err)
	return ref
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, s := newTestClient(t)

	ref, err := client.Create(ctx, "users", "ada")
	require.NoError(t, err)
	assert.Equal(t, "users/ada", ref.Path())

	err = client.Set(ctx, ref, transport.Payload{
		"name":   "Ada",
		"visits": int64(1),
		"tags":   []any{"math"},
		"avatar": []byte{1, 2},
	})
	require.NoError(t, err)

	err = client.Update(ctx, ref, transport.Payload{
		"visits": fieldop.Increment{Amount: int64(2)},
		"tags":   fieldop.ArrayUnion{Values: []any{"logic"}},
		"avatar": fieldop.Delete,
	})
	require.NoError(t, err)

	snap, err := client.Get(ctx, ref)
	require.NoError(t, err)
	assert.True(t, snap.Exists)
	assert.Equal(t, map[string]any{
		"name":   "Ada",
		"visits": int64(3),
		"tags":   []any{"math", "logic"},
	}, snap.ToMap())

	local, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, local.ToMap(), snap.ToMap())

	require.NoError(t, client.Delete(ctx, ref))
	snap, err = client.Get(ctx, ref)
	require.NoError(t, err)
	assert.False(t, snap.Exists)
}

func TestClientEscapesPathSegments(t *testing.T) {
	ctx := context.Background()
	client, s := newTestClient(t)

	require.NoError(t, client.Set(ctx, mustRef(t, "users/a"), transport.Payload{"name": "a"}))

	ids := []string{"a?b", "a#b", "100%", "a b", "a%2Fb"}
	for _, id := range ids {
		t.Run(id, func(t *testing.T) {
			ref, err := client.Create(ctx, "users", id)
			require.NoError(t, err)
			assert.Equal(t, "users/"+id, ref.Path())

			require.NoError(t, client.Set(ctx, ref, transport.Payload{"id": id}))

			snap, err := client.Get(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"id": id}, snap.ToMap())

			local, err := s.Get(ctx, ref)
			require.NoError(t, err)
			assert.True(t, local.Exists)
		})
	}

	snap, err := s.Get(ctx, mustRef(t, "users/a"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "a"}, snap.ToMap())
	assert.Len(t, s.Paths(), len(ids)+1)

	for _, id := range ids {
		require.NoError(t, client.Delete(ctx, mustRef(t, "users/"+id)))
	}
	assert.Equal(t, []string{"users/a"}, s.Paths())
}

func TestClientCreateGeneratesID(t *testing.T) {
	client, _ := newTestClient(t)

	ref, err := client.Create(context.Background(), "users/ada/posts", "")
	require.NoError(t, err)
	assert.Equal(t, "users/ada/posts", ref.Collection())
	assert.NotEmpty(t, ref.ID())
}

func TestClientUpdateMissing(t *testing.T) {
	client, _ := newTestClient(t)

	err := client.Update(context.Background(), mustRef(t, "users/none"), transport.Payload{"x": int64(1)})
	assert.ErrorIs(t, err, transport.ErrNotFound)
}

func TestClientCancelled(t *testing.T) {
	client, _ := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Get(ctx, mustRef(t, "users/ada"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDocumentOverClient(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	users, err := core.NewCollection(client, "users")
	require.NoError(t, err)

	doc := users.New()
	require.NoError(t, doc.Set("name", "Ada"))
	require.NoError(t, doc.Save(ctx))
	require.True(t, doc.IsLoaded())

	require.NoError(t, doc.Increment("visits", 1))
	require.NoError(t, doc.Save(ctx))

	other, err := users.Doc(doc.ID())
	require.NoError(t, err)
	visits, err := other.Get(ctx, "visits")
	require.NoError(t, err)
	assert.Equal(t, int64(1), visits)

	require.NoError(t, other.Delete(ctx))
	assert.True(t, other.IsDeleted())
}

func TestHandlerBadRequests(t *testing.T) {
	handler := Handler(transport.Transport(nil), nil)

	tests := []struct {
		method string
		target string
		body   string
	}{
		{http.MethodGet, "/docs/users", ""},
		{http.MethodDelete, "/docs/users/ada/posts", ""},
		{http.MethodPost, "/collections/users/ada", ""},
		{http.MethodPost, "/collections/users?id=a/b", ""},
		{http.MethodPut, "/docs/users/ada", "not a payload"},
	}
	for _, test := range tests {
		t.Run(test.method+" "+test.target, func(t *testing.T) {
			req := httptest.NewRequest(test.method, test.target, strings.NewReader(test.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandlerBodyLimits(t *testing.T) {
	handler := Handler(transport.Transport(nil), nil)

	// a map with one key whose declared length is past MaxBodySize
	large := binary.LittleEndian.AppendUint64([]byte{6}, 1)
	large = binary.LittleEndian.AppendUint64(append(large, 1), MaxBodySize+1)
	large = append(large, bytes.Repeat([]byte{'a'}, MaxBodySize+1)...)

	req := httptest.NewRequest(http.MethodPut, "/docs/users/ada", bytes.NewReader(large))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	deep := binary.LittleEndian.AppendUint64([]byte{6}, 1)
	deep = append(binary.LittleEndian.AppendUint64(append(deep, 1), 1), 'a')
	for range codec.MaxDepth {
		deep = binary.LittleEndian.AppendUint64(append(deep, 7), 1)
	}
	deep = append(deep, 0)

	req = httptest.NewRequest(http.MethodPatch, "/docs/users/ada", bytes.NewReader(deep))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "depth")
}

func TestNewClientInvalidURL(t *testing.T) {
	_, err := NewClient("ftp://example.com", nil)
	assert.Error(t, err)
}

func TestListenAndServeStopsWithContext(t *testing.T) {
	_, s := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ListenAndServe(ctx, s, "127.0.0.1:0", nil)
	assert.NoError(t, err)
}
