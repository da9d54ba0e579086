package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollection(t *testing.T) {
	col, _ := newTestCollection(t, "users")
	assert.Equal(t, "users", col.Path())
	assert.Equal(t, "users", col.ID())
	assert.Equal(t, "Collection(users)", col.String())

	_, err := NewCollection(nil, "users/ada")
	require.Error(t, err)
	_, err = NewCollection(nil, "")
	require.Error(t, err)
}

func TestCollectionDoc(t *testing.T) {
	col, rec := newTestCollection(t, "users")

	doc, err := col.Doc("ada")
	require.NoError(t, err)
	assert.True(t, doc.IsAttached())
	assert.False(t, doc.IsLoaded())
	assert.Equal(t, "ada", doc.ID())
	assert.Equal(t, "users/ada", doc.Path())
	assert.Empty(t, rec.Calls())

	_, err = col.Doc("")
	require.Error(t, err)
	_, err = col.Doc("ada/posts")
	require.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "DETACHED", Detached.String())
	assert.Equal(t, "ATTACHED", Attached.String())
	assert.Equal(t, "LOADED", Loaded.String())
	assert.Equal(t, "DELETED", Deleted.String())
	assert.Equal(t, "create", PlanCreate.String())
}
