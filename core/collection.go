package core

import (
	"fmt"
	"strings"

	"github.com/nasdf/docproxy/transport"

	"go.uber.org/zap"
)

type config struct {
	log *zap.Logger
}

// Option configures collections and documents.
type Option func(*config)

// WithLogger sets the logger used to report lifecycle changes.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.log = log
		}
	}
}

func newConfig(opts []Option) config {
	cfg := config{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Collection is a collection of documents in the remote store.
//
// It is the parent context used to mint identities for new documents.
type Collection struct {
	path      string
	transport transport.Transport
	cfg       config
}

// NewCollection returns the collection at the given path.
func NewCollection(t transport.Transport, path string, opts ...Option) (*Collection, error) {
	if err := transport.ValidateCollectionPath(path); err != nil {
		return nil, err
	}
	return &Collection{
		path:      path,
		transport: t,
		cfg:       newConfig(opts),
	}, nil
}

// Path returns the full collection path.
func (c *Collection) Path() string {
	return c.path
}

// ID returns the last segment of the collection path.
func (c *Collection) ID() string {
	return c.path[strings.LastIndex(c.path, "/")+1:]
}

// New returns a detached document that is created in this collection when saved.
func (c *Collection) New() *Document {
	return newDocument(c.transport, c.cfg, c.path, transport.Ref{}, Detached)
}

// Doc returns an attached document referencing the given id.
func (c *Collection) Doc(id string) (*Document, error) {
	if strings.Contains(id, "/") {
		return nil, fmt.Errorf("invalid document id %q: contains a path separator", id)
	}
	ref, err := transport.NewRef(transport.JoinPath(c.path, id))
	if err != nil {
		return nil, err
	}
	return newDocument(c.transport, c.cfg, c.path, ref, Attached), nil
}

// FromSnapshot returns a loaded document containing the snapshot data.
func (c *Collection) FromSnapshot(snap *transport.Snapshot) (*Document, error) {
	if snap.Ref.Collection() != c.path {
		return nil, fmt.Errorf("snapshot %s does not belong to collection %s", snap.Ref, c.path)
	}
	d := newDocument(c.transport, c.cfg, c.path, snap.Ref, Attached)
	if err := d.materialize(snap.ToMap()); err != nil {
		return nil, err
	}
	return d, nil
}

func (c *Collection) String() string {
	return fmt.Sprintf("Collection(%s)", c.path)
}
