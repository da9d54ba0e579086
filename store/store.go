// Package store implements an in-process document store that persists
// documents as linked data and serves them through the transport interface.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/nasdf/docproxy/fieldop"
	"github.com/nasdf/docproxy/link"
	"github.com/nasdf/docproxy/storage"
	"github.com/nasdf/docproxy/transport"

	"github.com/google/uuid"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/fluent/qp"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"go.uber.org/zap"
)

// RootLinkKey is the name of the storage key for the root link.
const RootLinkKey = "root"

var _ transport.Transport = (*Store)(nil)

// Store is a document store that keeps an index of document paths to links.
type Store struct {
	storage  storage.Storage
	links    *link.Store
	log      *zap.Logger
	index    map[string]datamodel.Link
	rootLink datamodel.Link
	lock     sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used by the store.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// Open returns a store using the given storage, loading the existing index if present.
func Open(ctx context.Context, store storage.Storage, opts ...Option) (*Store, error) {
	s := &Store{
		storage: store,
		links:   link.NewStore(store),
		log:     zap.NewNop(),
		index:   make(map[string]datamodel.Link),
	}
	for _, opt := range opts {
		opt(s)
	}
	data, err := store.Get(ctx, RootLinkKey)
	if errors.Is(err, storage.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	rootLink, err := link.ParseLink(string(data))
	if err != nil {
		return nil, fmt.Errorf("invalid root link: %w", err)
	}
	rootNode, err := s.links.Load(ctx, rootLink, basicnode.Prototype.Map)
	if err != nil {
		return nil, err
	}
	for iter := rootNode.MapIterator(); !iter.Done(); {
		k, v, err := iter.Next()
		if err != nil {
			return nil, err
		}
		path, err := k.AsString()
		if err != nil {
			return nil, err
		}
		lnk, err := v.AsLink()
		if err != nil {
			return nil, err
		}
		s.index[path] = lnk
	}
	s.rootLink = rootLink
	s.log.Debug("opened store", zap.Int("documents", len(s.index)), zap.Stringer("root", rootLink))
	return s, nil
}

// Get returns a snapshot of the referenced document.
func (s *Store) Get(ctx context.Context, ref transport.Ref) (*transport.Snapshot, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	data, ok, err := s.read(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &transport.Snapshot{Ref: ref, Exists: ok, Data: data}, nil
}

// Create returns a reference for a new document in the given collection.
//
// A random id is generated when id is empty.
func (s *Store) Create(ctx context.Context, collection string, id string) (transport.Ref, error) {
	if err := transport.ValidateCollectionPath(collection); err != nil {
		return transport.Ref{}, err
	}
	if id == "" {
		uid, err := uuid.NewRandom()
		if err != nil {
			return transport.Ref{}, err
		}
		id = uid.String()
	}
	return transport.NewRef(transport.JoinPath(collection, id))
}

// Set replaces the referenced document with the payload.
func (s *Store) Set(ctx context.Context, ref transport.Ref, data transport.Payload) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	doc, err := merge(map[string]any{}, data)
	if err != nil {
		return err
	}
	s.log.Debug("set document", zap.Stringer("ref", ref), zap.Int("fields", len(data)))
	return s.write(ctx, ref, doc)
}

// Update merges the payload into the referenced document.
//
// transport.ErrNotFound is returned if the document does not exist.
func (s *Store) Update(ctx context.Context, ref transport.Ref, data transport.Payload) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	current, ok, err := s.read(ctx, ref)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", transport.ErrNotFound, ref)
	}
	doc, err := merge(current, data)
	if err != nil {
		return err
	}
	s.log.Debug("update document", zap.Stringer("ref", ref), zap.Strings("fields", slices.Sorted(maps.Keys(data))))
	return s.write(ctx, ref, doc)
}

// Delete removes the referenced document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, ref transport.Ref) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	prev, ok := s.index[ref.Path()]
	if !ok {
		return nil
	}
	delete(s.index, ref.Path())
	if err := s.commit(ctx); err != nil {
		s.index[ref.Path()] = prev
		return err
	}
	s.release(ctx, prev)
	s.log.Debug("delete document", zap.Stringer("ref", ref))
	return nil
}

// Paths returns the sorted paths of all stored documents.
func (s *Store) Paths() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return slices.Sorted(maps.Keys(s.index))
}

// RootLink returns the link of the current index, or nil if nothing was written.
func (s *Store) RootLink() datamodel.Link {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.rootLink
}

// Export writes a CAR containing the index and every stored document.
func (s *Store) Export(ctx context.Context, out io.Writer) error {
	rootLink := s.RootLink()
	if rootLink == nil {
		return errors.New("store is empty")
	}
	return s.links.Export(ctx, rootLink, out)
}

func (s *Store) read(ctx context.Context, ref transport.Ref) (map[string]any, bool, error) {
	lnk, ok := s.index[ref.Path()]
	if !ok {
		return nil, false, nil
	}
	data, err := s.links.LoadMap(ctx, lnk)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *Store) write(ctx context.Context, ref transport.Ref, doc map[string]any) error {
	lnk, err := s.links.StoreMap(ctx, doc)
	if err != nil {
		return err
	}
	prev, existed := s.index[ref.Path()]
	s.index[ref.Path()] = lnk
	if err := s.commit(ctx); err != nil {
		if existed {
			s.index[ref.Path()] = prev
		} else {
			delete(s.index, ref.Path())
		}
		s.release(ctx, lnk)
		return err
	}
	if existed {
		s.release(ctx, prev)
	}
	return nil
}

// release removes the block of a document link that no indexed path uses.
//
// Failures are only logged; the index is already consistent.
func (s *Store) release(ctx context.Context, lnk datamodel.Link) {
	for _, l := range s.index {
		if l.Binary() == lnk.Binary() {
			return
		}
	}
	if err := s.links.Remove(ctx, lnk); err != nil {
		s.log.Warn("failed to remove unreferenced block", zap.Stringer("link", lnk), zap.Error(err))
	}
}

// commit stores the index node and points the root key at it.
func (s *Store) commit(ctx context.Context) error {
	paths := slices.Sorted(maps.Keys(s.index))
	rootNode, err := qp.BuildMap(basicnode.Prototype.Map, int64(len(paths)), func(ma datamodel.MapAssembler) {
		for _, p := range paths {
			qp.MapEntry(ma, p, qp.Link(s.index[p]))
		}
	})
	if err != nil {
		return err
	}
	rootLink, err := s.links.Store(ctx, rootNode)
	if err != nil {
		return err
	}
	if err := s.storage.Put(ctx, RootLinkKey, []byte(rootLink.String())); err != nil {
		if s.rootLink == nil || s.rootLink.Binary() != rootLink.Binary() {
			if rerr := s.links.Remove(ctx, rootLink); rerr != nil {
				s.log.Warn("failed to remove uncommitted index", zap.Stringer("link", rootLink), zap.Error(rerr))
			}
		}
		return err
	}
	prev := s.rootLink
	s.rootLink = rootLink
	if prev != nil && prev.Binary() != rootLink.Binary() {
		if err := s.links.Remove(ctx, prev); err != nil {
			s.log.Warn("failed to remove previous index", zap.Stringer("link", prev), zap.Error(err))
		}
	}
	return nil
}

// merge applies the payload to the document fields.
func merge(doc map[string]any, data transport.Payload) (map[string]any, error) {
	for k, v := range data {
		op, ok := v.(fieldop.Op)
		if !ok {
			doc[k] = v
			continue
		}
		current, exists := doc[k]
		value, keep, err := fieldop.Apply(current, exists, op)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		if keep {
			doc[k] = value
		} else {
			delete(doc, k)
		}
	}
	return doc, nil
}
