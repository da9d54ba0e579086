package core

import (
	"context"
	"fmt"
	"slices"
)

// Fetch loads the document data from the store, replacing the local cache.
//
// A loaded document is only fetched again when force is true, which discards
// any unsaved changes.
func (d *Document) Fetch(ctx context.Context, force bool) error {
	switch d.state {
	case Deleted:
		return terminalError("fetch")
	case Detached:
		return identityError("fetch")
	case Loaded:
		if !force {
			return nil
		}
	}
	return d.fetch(ctx, true)
}

// fetch reads the snapshot and materializes it. A missing document is
// treated as empty unless mustExist is set.
func (d *Document) fetch(ctx context.Context, mustExist bool) error {
	snap, err := d.transport.Get(ctx, d.ref)
	if err != nil {
		return err
	}
	if !snap.Exists && mustExist {
		return fmt.Errorf("fetch %s: %w", d.ref, ErrNotFound)
	}
	return d.materialize(snap.ToMap())
}

// fetchKeepingChanges fetches the document and applies the pending field
// writes, deletions and operations on top of the fetched data.
func (d *Document) fetchKeepingChanges(ctx context.Context) error {
	if !d.hasChanges() {
		return d.fetch(ctx, false)
	}
	order := slices.Clone(d.order)
	fields := d.fields
	bindings := d.bindings
	dirty, deleted, ops := d.dirty, d.deleted, d.ops

	if err := d.fetch(ctx, false); err != nil {
		return err
	}
	for _, name := range order {
		if _, ok := dirty[name]; ok {
			d.store(name, fields[name], bindings[name])
		}
	}
	for name := range deleted {
		delete(d.fields, name)
		delete(d.bindings, name)
		d.order = slices.DeleteFunc(d.order, func(s string) bool { return s == name })
	}
	d.dirty, d.deleted, d.ops = dirty, deleted, ops
	return nil
}

// materialize replaces the cache with the given data and marks the document loaded.
//
// The cache is untouched if any value is rejected.
func (d *Document) materialize(data map[string]any) error {
	prepared := make(map[string]any, len(data))
	for name, v := range data {
		p, err := prepare(v, name, 0)
		if err != nil {
			return fmt.Errorf("materialize %s: %w", d.ref, err)
		}
		prepared[name] = p
	}
	d.reset()
	for _, name := range sortedKeys(prepared) {
		b := newBinding(d, name)
		d.store(name, wrap(prepared[name], b, 0), b)
	}
	d.setState(Loaded)
	return nil
}
