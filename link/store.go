package link

import (
	"context"

	"github.com/nasdf/docproxy/node"
	"github.com/nasdf/docproxy/storage"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/linking"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/ipld/go-ipld-prime/node/basicnode"

	// codecs need to be initialized and registered
	_ "github.com/ipld/go-ipld-prime/codec/dagcbor"
)

var linkPrototype = cidlink.LinkPrototype{Prefix: cid.Prefix{
	Version:  1,    // Usually '1'.
	Codec:    0x71, // dag-cbor -- See the multicodecs table: https://github.com/multiformats/multicodec/
	MhType:   0x13, // sha2-512 -- See the multicodecs table: https://github.com/multiformats/multicodec/
	MhLength: 64,   // sha2-512 hash has a 64-byte sum.
}}

// Store is a content addressable data store.
type Store struct {
	lsys    linking.LinkSystem
	storage storage.Storage
}

// NewStore returns a new Store that uses the given storage to read and write content addressable data.
func NewStore(store storage.Storage) *Store {
	lsys := cidlink.DefaultLinkSystem()
	lsys.SetReadStorage(store)
	lsys.SetWriteStorage(store)

	return &Store{
		lsys:    lsys,
		storage: store,
	}
}

// Load returns the node matching the given link and built using the given prototype.
func (s *Store) Load(ctx context.Context, lnk datamodel.Link, np datamodel.NodePrototype) (datamodel.Node, error) {
	return s.lsys.Load(linking.LinkContext{Ctx: ctx}, lnk, np)
}

// Store writes the given node to the store and returns its link.
func (s *Store) Store(ctx context.Context, n datamodel.Node) (datamodel.Link, error) {
	return s.lsys.Store(linking.LinkContext{Ctx: ctx}, linkPrototype, n)
}

// LoadMap returns the go map stored at the given link.
func (s *Store) LoadMap(ctx context.Context, lnk datamodel.Link) (map[string]any, error) {
	n, err := s.Load(ctx, lnk, basicnode.Prototype.Map)
	if err != nil {
		return nil, err
	}
	return node.MapValue(n)
}

// StoreMap writes the given go map to the store and returns its link.
func (s *Store) StoreMap(ctx context.Context, value map[string]any) (datamodel.Link, error) {
	n, err := node.Build(value)
	if err != nil {
		return nil, err
	}
	return s.Store(ctx, n)
}

// Has returns true if the block for the given link is stored.
func (s *Store) Has(ctx context.Context, lnk datamodel.Link) (bool, error) {
	return s.storage.Has(ctx, lnk.Binary())
}

// Remove deletes the block for the given link. Links to it are left dangling.
func (s *Store) Remove(ctx context.Context, lnk datamodel.Link) error {
	return s.storage.Delete(ctx, lnk.Binary())
}

// ParseLink returns the link encoded in the given string.
func ParseLink(value string) (datamodel.Link, error) {
	id, err := cid.Decode(value)
	if err != nil {
		return nil, err
	}
	return cidlink.Link{Cid: id}, nil
}
