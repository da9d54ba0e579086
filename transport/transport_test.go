package transport_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nasdf/docproxy/storage"
	"github.com/nasdf/docproxy/store"
	"github.com/nasdf/docproxy/transport"
	"github.com/nasdf/docproxy/transport/transporttest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *store.Store {
	s, err := store.Open(context.Background(), storage.NewMemory())
	require.NoError(t, err)
	return s
}

func mustRef(t *testing.T, path string) transport.Ref {
	ref, err := transport.NewRef(path)
	require.NoError(t, err)
	return ref
}

func TestNewRef(t *testing.T) {
	tests := map[string]bool{
		"users/ada":          true,
		"users/ada/posts/p1": true,
		"users":              false,
		"users/ada/posts":    false,
		"users//ada/x":       false,
		"":                   false,
		"/users/ada":         false,
	}
	for path, valid := range tests {
		_, err := transport.NewRef(path)
		if valid {
			assert.NoError(t, err, path)
		} else {
			assert.Error(t, err, path)
		}
	}
}

func TestValidateCollectionPath(t *testing.T) {
	assert.NoError(t, transport.ValidateCollectionPath("users"))
	assert.NoError(t, transport.ValidateCollectionPath("users/ada/posts"))
	assert.Error(t, transport.ValidateCollectionPath("users/ada"))
	assert.Error(t, transport.ValidateCollectionPath(""))
	assert.Error(t, transport.ValidateCollectionPath("users//posts"))
}

func TestRefAccessors(t *testing.T) {
	ref := mustRef(t, "users/ada/posts/p1")
	assert.Equal(t, "p1", ref.ID())
	assert.Equal(t, "users/ada/posts", ref.Collection())
	assert.Equal(t, "users/ada/posts/p1", ref.String())
	assert.False(t, ref.IsZero())
	assert.True(t, transport.Ref{}.IsZero())
	assert.Equal(t, "users/ada", transport.JoinPath("users", "ada"))
}

func TestSnapshotToMap(t *testing.T) {
	missing := &transport.Snapshot{Ref: mustRef(t, "users/none")}
	assert.Equal(t, map[string]any{}, missing.ToMap())

	data := map[string]any{"name": "Ada"}
	snap := &transport.Snapshot{Ref: mustRef(t, "users/ada"), Exists: true, Data: data}
	out := snap.ToMap()
	out["name"] = "Grace"
	assert.Equal(t, "Ada", data["name"])
}

func TestSuspendAwait(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	tr := transport.Await(transport.Suspend(s, 2))

	assert.True(t, transport.IsSuspending(tr))
	assert.False(t, transport.IsSuspending(s))

	ref, err := tr.Create(ctx, "users", "ada")
	require.NoError(t, err)
	require.NoError(t, tr.Set(ctx, ref, transport.Payload{"name": "Ada"}))
	require.NoError(t, tr.Update(ctx, ref, transport.Payload{"year": int64(1815)}))

	snap, err := tr.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ada", "year": int64(1815)}, snap.ToMap())

	require.NoError(t, tr.Delete(ctx, ref))
	snap, err = tr.Get(ctx, ref)
	require.NoError(t, err)
	assert.False(t, snap.Exists)

	err = tr.Update(ctx, ref, transport.Payload{"year": int64(1)})
	assert.ErrorIs(t, err, transport.ErrNotFound)
}

type blockingTransport struct {
	transport.Transport
	started chan struct{}
	release chan struct{}
}

func (b *blockingTransport) Get(ctx context.Context, ref transport.Ref) (*transport.Snapshot, error) {
	b.started <- struct{}{}
	<-b.release
	return &transport.Snapshot{Ref: ref}, nil
}

func TestSuspendLimitsInFlight(t *testing.T) {
	ctx := context.Background()
	b := &blockingTransport{started: make(chan struct{}, 1), release: make(chan struct{})}
	async := transport.Suspend(b, 1)
	ref := mustRef(t, "users/ada")

	first := async.GetAsync(ctx, ref)
	<-b.started

	waitCtx, cancel := context.WithCancel(ctx)
	second := async.GetAsync(waitCtx, ref)
	cancel()
	_, err := second.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(b.release)
	snap, err := first.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, ref, snap.Ref)
}

func TestAwaitCancelled(t *testing.T) {
	b := &blockingTransport{started: make(chan struct{}, 1), release: make(chan struct{})}
	defer close(b.release)
	tr := transport.Await(transport.Suspend(b, 1))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-b.started
		cancel()
	}()
	_, err := tr.Get(ctx, mustRef(t, "users/ada"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolved(t *testing.T) {
	f := transport.Resolved("done", nil)
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", v)

	// completed results win over a cancelled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range 100 {
		v, err = f.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, "done", v)
	}
}

func TestSuspendCancelledBeforeCall(t *testing.T) {
	b := &blockingTransport{started: make(chan struct{}, 1), release: make(chan struct{})}
	defer close(b.release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := transport.Suspend(b, 1).GetAsync(ctx, mustRef(t, "users/ada"))
	_, err := f.Await(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, b.started)
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	tr, err := transport.Instrument(newStore(t), reg)
	require.NoError(t, err)

	ref := mustRef(t, "users/ada")
	require.NoError(t, tr.Set(ctx, ref, transport.Payload{"name": "Ada"}))
	err = tr.Update(ctx, mustRef(t, "users/none"), transport.Payload{"name": "Grace"})
	require.ErrorIs(t, err, transport.ErrNotFound)

	expected := `
# HELP docproxy_transport_calls_total Number of transport calls by operation and result.
# TYPE docproxy_transport_calls_total counter
docproxy_transport_calls_total{op="set",result="ok"} 1
docproxy_transport_calls_total{op="update",result="error"} 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected), "docproxy_transport_calls_total")
	assert.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "docproxy_transport_call_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = transport.Instrument(newStore(t), reg)
	assert.Error(t, err)
}

func TestInstrumentKeepsSuspending(t *testing.T) {
	async := transport.Await(transport.Suspend(newStore(t), 1))
	tr, err := transport.Instrument(async, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.True(t, transport.IsSuspending(tr))
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	rec := transporttest.NewRecorder(newStore(t))
	ref := mustRef(t, "users/ada")

	_, err := rec.Create(ctx, "users", "ada")
	require.NoError(t, err)
	require.NoError(t, rec.Set(ctx, ref, transport.Payload{"name": "Ada"}))
	_, err = rec.Get(ctx, ref)
	require.NoError(t, err)

	failure := errors.New("unavailable")
	rec.Fail["delete"] = failure
	assert.ErrorIs(t, rec.Delete(ctx, ref), failure)

	calls := rec.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "create", calls[0].Op)
	assert.Equal(t, "users", calls[0].Collection)
	assert.Equal(t, "ada", calls[0].ID)

	writes := rec.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, "set", writes[0].Op)
	assert.Equal(t, transport.Payload{"name": "Ada"}, writes[0].Payload)
	assert.Equal(t, "delete", writes[1].Op)

	snap, err := rec.Next.Get(ctx, ref)
	require.NoError(t, err)
	assert.True(t, snap.Exists)

	rec.Reset()
	assert.Empty(t, rec.Calls())
}
