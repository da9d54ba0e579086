// Package transport defines the interface between document proxies and the
// remote store that persists them.
package transport

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
)

// ErrNotFound is returned when an operation requires an existing document.
var ErrNotFound = errors.New("document not found")

// Ref is a reference to a document location in the remote store.
//
// Paths alternate collection and document segments, e.g. "users/ada/posts/p1".
type Ref struct {
	path string
}

// NewRef returns a reference for the given document path.
func NewRef(path string) (Ref, error) {
	segments := strings.Split(path, "/")
	if len(segments)%2 != 0 {
		return Ref{}, fmt.Errorf("invalid document path %q: expected an even number of segments", path)
	}
	for _, s := range segments {
		if s == "" {
			return Ref{}, fmt.Errorf("invalid document path %q: empty segment", path)
		}
	}
	return Ref{path: path}, nil
}

// JoinPath joins a collection path and a document id.
func JoinPath(collection, id string) string {
	return collection + "/" + id
}

// ValidateCollectionPath returns an error if the path does not name a collection.
func ValidateCollectionPath(path string) error {
	segments := strings.Split(path, "/")
	if len(segments)%2 != 1 {
		return fmt.Errorf("invalid collection path %q: expected an odd number of segments", path)
	}
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("invalid collection path %q: empty segment", path)
		}
	}
	return nil
}

// Path returns the full document path.
func (r Ref) Path() string {
	return r.path
}

// ID returns the last segment of the document path.
func (r Ref) ID() string {
	idx := strings.LastIndex(r.path, "/")
	return r.path[idx+1:]
}

// Collection returns the path of the collection containing the document.
func (r Ref) Collection() string {
	idx := strings.LastIndex(r.path, "/")
	if idx < 0 {
		return ""
	}
	return r.path[:idx]
}

// IsZero returns true if the reference does not point anywhere.
func (r Ref) IsZero() bool {
	return r.path == ""
}

func (r Ref) String() string {
	return r.path
}

// Payload is a set of field writes. Values are plain values or fieldop.Op sentinels.
type Payload map[string]any

// Snapshot is the state of a remote document at the time it was read.
type Snapshot struct {
	Ref    Ref
	Exists bool
	Data   map[string]any
}

// ToMap returns a shallow copy of the snapshot fields.
func (s *Snapshot) ToMap() map[string]any {
	if !s.Exists || s.Data == nil {
		return map[string]any{}
	}
	return maps.Clone(s.Data)
}

// Transport performs blocking calls against the remote store.
type Transport interface {
	// Get returns a snapshot of the referenced document.
	//
	// A missing document is reported with Exists set to false, not an error.
	Get(ctx context.Context, ref Ref) (*Snapshot, error)
	// Create mints a reference for a new document in the given collection.
	//
	// The store generates an id when id is empty.
	Create(ctx context.Context, collection string, id string) (Ref, error)
	// Set replaces the entire document with the payload.
	Set(ctx context.Context, ref Ref, data Payload) error
	// Update merges the payload into an existing document.
	Update(ctx context.Context, ref Ref, data Payload) error
	// Delete removes the document.
	Delete(ctx context.Context, ref Ref) error
}
