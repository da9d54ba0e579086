// Package docproxy tracks local changes to documents and saves them to a
// document store with the smallest write that reproduces them.
package docproxy

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nasdf/docproxy/config"
	"github.com/nasdf/docproxy/core"
	dphttp "github.com/nasdf/docproxy/http"
	"github.com/nasdf/docproxy/storage"
	"github.com/nasdf/docproxy/store"
	"github.com/nasdf/docproxy/transport"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DB is the entry point for collections and documents.
type DB struct {
	transport transport.Transport
	store     *store.Store
	log       *zap.Logger
	closers   []io.Closer
}

// New returns a DB using the given transport.
func New(t transport.Transport, log *zap.Logger) *DB {
	if log == nil {
		log = zap.NewNop()
	}
	return &DB{
		transport: t,
		log:       log,
	}
}

// Open returns a DB backed by an in-process store built from the configuration,
// or by a remote server when cfg.Transport.Remote is set.
//
// Transport metrics are registered in reg when enabled. A nil reg uses the
// default registerer.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger, reg prometheus.Registerer) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db := &DB{log: log}

	t, err := db.openTransport(ctx, cfg)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	if cfg.Metrics.Enabled {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		t, err = transport.Instrument(t, reg)
		if err != nil {
			return nil, errors.Join(err, db.Close())
		}
	}
	if cfg.Transport.Async {
		t = transport.Await(transport.Suspend(t, cfg.Transport.MaxInFlight))
	}
	db.transport = t

	log.Debug("opened database",
		zap.String("backend", cfg.Storage.Backend),
		zap.String("remote", cfg.Transport.Remote),
		zap.Bool("async", cfg.Transport.Async),
		zap.Bool("metrics", cfg.Metrics.Enabled))
	return db, nil
}

func (db *DB) openTransport(ctx context.Context, cfg config.Config) (transport.Transport, error) {
	if cfg.Transport.Remote != "" {
		return dphttp.NewClient(cfg.Transport.Remote, nil)
	}

	var st storage.Storage
	switch cfg.Storage.Backend {
	case "badger":
		b, err := storage.OpenBadger(storage.BadgerConfig{
			Path:       cfg.Storage.Path,
			SyncWrites: cfg.Storage.SyncWrites,
			Logger:     db.log.Named("badger"),
		})
		if err != nil {
			return nil, err
		}
		db.closers = append(db.closers, b)
		st = b
	case "memory", "":
		st = storage.NewMemory()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	s, err := store.Open(ctx, st, store.WithLogger(db.log.Named("store")))
	if err != nil {
		return nil, err
	}
	db.store = s
	return s, nil
}

// Close releases the storage held by the DB.
func (db *DB) Close() error {
	var errs []error
	for _, c := range db.closers {
		errs = append(errs, c.Close())
	}
	db.closers = nil
	return errors.Join(errs...)
}

// Transport returns the transport used by documents of this DB.
func (db *DB) Transport() transport.Transport {
	return db.transport
}

// Store returns the in-process store, or nil if the DB was created with New
// or uses a remote server.
func (db *DB) Store() *store.Store {
	return db.store
}

// Collection returns the collection at the given path.
func (db *DB) Collection(path string) (*core.Collection, error) {
	return core.NewCollection(db.transport, path, core.WithLogger(db.log))
}

// Doc returns an attached document for the given document path.
func (db *DB) Doc(path string) (*core.Document, error) {
	ref, err := transport.NewRef(path)
	if err != nil {
		return nil, err
	}
	col, err := db.Collection(ref.Collection())
	if err != nil {
		return nil, err
	}
	return col.Doc(ref.ID())
}
