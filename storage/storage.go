package storage

import (
	"context"
	"errors"

	"github.com/ipld/go-ipld-prime/storage"
)

// ErrNotFound is returned by Get when the key is not present.
var ErrNotFound = errors.New("key not found")

// Storage is a key value store for encoded blocks and store metadata.
type Storage interface {
	storage.ReadableStorage
	storage.WritableStorage
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
