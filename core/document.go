package core

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/nasdf/docproxy/constraint"
	"github.com/nasdf/docproxy/fieldop"
	"github.com/nasdf/docproxy/transport"

	"go.uber.org/zap"
)

// Document is a local proxy for a remote document.
//
// Field writes are cached and tracked until they are saved. A Document is
// not safe for concurrent use.
type Document struct {
	ref        transport.Ref
	collection string
	state      State
	transport  transport.Transport
	log        *zap.Logger

	order    []string
	fields   map[string]any
	bindings map[string]*binding
	dirty    map[string]struct{}
	deleted  map[string]struct{}
	ops      map[string]fieldop.Op
}

// NewDocument returns a detached document that does not belong to a collection.
//
// It can only be saved after it is given an identity by a collection.
func NewDocument(t transport.Transport, opts ...Option) *Document {
	return newDocument(t, newConfig(opts), "", transport.Ref{}, Detached)
}

func newDocument(t transport.Transport, cfg config, collection string, ref transport.Ref, state State) *Document {
	d := &Document{
		ref:        ref,
		collection: collection,
		state:      state,
		transport:  t,
		log:        cfg.log,
	}
	d.reset()
	return d
}

func (d *Document) reset() {
	d.order = nil
	d.fields = make(map[string]any)
	d.bindings = make(map[string]*binding)
	d.markClean()
}

func (d *Document) markClean() {
	d.dirty = make(map[string]struct{})
	d.deleted = make(map[string]struct{})
	d.ops = make(map[string]fieldop.Op)
}

func (d *Document) setState(state State) {
	if d.state == state {
		return
	}
	d.log.Debug("document state changed",
		zap.String("path", d.ref.Path()),
		zap.Stringer("from", d.state),
		zap.Stringer("to", state))
	d.state = state
}

// State returns the lifecycle state of the document.
func (d *Document) State() State {
	return d.state
}

// ID returns the document id, or an empty string if the document is detached.
func (d *Document) ID() string {
	if d.ref.IsZero() {
		return ""
	}
	return d.ref.ID()
}

// Path returns the full document path, or an empty string if the document is detached.
func (d *Document) Path() string {
	return d.ref.Path()
}

// Ref returns the reference of the document.
func (d *Document) Ref() transport.Ref {
	return d.ref
}

// IsDetached returns true if the document has no identity.
func (d *Document) IsDetached() bool {
	return d.state == Detached
}

// IsAttached returns true if the document has an identity and is not deleted.
func (d *Document) IsAttached() bool {
	return d.state == Attached || d.state == Loaded
}

// IsLoaded returns true if the document data is cached locally.
func (d *Document) IsLoaded() bool {
	return d.state == Loaded
}

// IsDeleted returns true if the document was deleted.
func (d *Document) IsDeleted() bool {
	return d.state == Deleted
}

// IsDirty returns true if the document has changes that are not saved.
//
// Detached documents are always dirty.
func (d *Document) IsDirty() bool {
	if d.state == Detached {
		return true
	}
	return d.hasChanges()
}

func (d *Document) hasChanges() bool {
	return len(d.dirty) > 0 || len(d.deleted) > 0 || len(d.ops) > 0
}

// DirtyFields returns the sorted names of fields written since the last fetch or save.
func (d *Document) DirtyFields() []string {
	return slices.Sorted(maps.Keys(d.dirty))
}

// DeletedFields returns the sorted names of fields removed since the last fetch or save.
func (d *Document) DeletedFields() []string {
	return slices.Sorted(maps.Keys(d.deleted))
}

// PendingOps returns a copy of the field operations registered since the last fetch or save.
func (d *Document) PendingOps() map[string]fieldop.Op {
	return maps.Clone(d.ops)
}

// Fields returns the names of the cached fields in insertion order.
func (d *Document) Fields() []string {
	return slices.Clone(d.order)
}

// Get returns the value of the named field.
//
// An attached document is fetched first unless its transport suspends.
// Unsaved changes are kept on top of the fetched data.
func (d *Document) Get(ctx context.Context, name string) (any, error) {
	switch d.state {
	case Deleted:
		return nil, terminalError("get field")
	case Attached:
		if v, ok := d.fields[name]; ok {
			return v, nil
		}
		if transport.IsSuspending(d.transport) {
			return nil, fmt.Errorf("fetch %s before reading fields: %w", d.ref, ErrNotLoaded)
		}
		if err := d.fetchKeepingChanges(ctx); err != nil {
			return nil, err
		}
	}
	v, ok := d.fields[name]
	if !ok {
		return nil, missingFieldError(name)
	}
	return v, nil
}

// Has returns true if the named field is cached locally.
func (d *Document) Has(name string) bool {
	_, ok := d.fields[name]
	return ok
}

// Set stores the value in the named field.
//
// Maps and slices are validated and converted into live containers. A
// field operation registered for the same field is discarded.
func (d *Document) Set(name string, value any) error {
	if d.state == Deleted {
		return terminalError("set field")
	}
	if err := constraint.ValidateFieldName(name, 0); err != nil {
		return err
	}
	p, err := prepare(value, name, 0)
	if err != nil {
		return err
	}
	b := newBinding(d, name)
	d.store(name, wrap(p, b, 0), b)
	d.dirty[name] = struct{}{}
	delete(d.deleted, name)
	delete(d.ops, name)
	return nil
}

func (d *Document) store(name string, value any, b *binding) {
	if _, ok := d.fields[name]; !ok {
		d.order = append(d.order, name)
	}
	d.fields[name] = value
	d.bindings[name] = b
}

// DeleteField removes the named field from the document.
func (d *Document) DeleteField(name string) error {
	if d.state == Deleted {
		return terminalError("delete field")
	}
	if _, ok := d.fields[name]; !ok {
		return missingFieldError(name)
	}
	delete(d.fields, name)
	delete(d.bindings, name)
	d.order = slices.DeleteFunc(d.order, func(s string) bool { return s == name })
	d.deleted[name] = struct{}{}
	delete(d.dirty, name)
	delete(d.ops, name)
	return nil
}

// ArrayUnion registers an operation adding the values missing from the array field.
func (d *Document) ArrayUnion(name string, values ...any) error {
	p, err := d.prepareOpValues(name, values)
	if err != nil {
		return err
	}
	return d.registerOp(name, fieldop.ArrayUnion{Values: p})
}

// ArrayRemove registers an operation removing the values from the array field.
func (d *Document) ArrayRemove(name string, values ...any) error {
	p, err := d.prepareOpValues(name, values)
	if err != nil {
		return err
	}
	return d.registerOp(name, fieldop.ArrayRemove{Values: p})
}

// Increment registers an operation adding amount to the numeric field.
func (d *Document) Increment(name string, amount any) error {
	op, err := fieldop.NewIncrement(amount)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedValue, err)
	}
	return d.registerOp(name, op)
}

func (d *Document) prepareOpValues(name string, values []any) ([]any, error) {
	if d.state == Deleted {
		return nil, terminalError("register field operation")
	}
	if err := constraint.ValidateFieldName(name, 0); err != nil {
		return nil, err
	}
	p, err := prepare(values, name, 0)
	if err != nil {
		return nil, err
	}
	return p.([]any), nil
}

// registerOp stores the operation for the field. The cached value is left
// as is and becomes stale once the operation is saved.
func (d *Document) registerOp(name string, op fieldop.Op) error {
	if d.state == Deleted {
		return terminalError("register field operation")
	}
	if err := constraint.ValidateFieldName(name, 0); err != nil {
		return err
	}
	d.ops[name] = op
	delete(d.dirty, name)
	delete(d.deleted, name)
	return nil
}

// markFieldDirty is called by containers when their contents change.
func (d *Document) markFieldDirty(b *binding) {
	if d.state == Deleted || d.bindings[b.field] != b {
		return
	}
	d.dirty[b.field] = struct{}{}
	delete(d.deleted, b.field)
	delete(d.ops, b.field)
}

// ToMap returns a deep copy of the cached fields without containers.
func (d *Document) ToMap() (map[string]any, error) {
	switch d.state {
	case Deleted:
		return nil, terminalError("read fields")
	case Attached:
		return nil, fmt.Errorf("fetch %s before reading fields: %w", d.ref, ErrNotLoaded)
	}
	return d.plainFields(), nil
}

func (d *Document) plainFields() map[string]any {
	out := make(map[string]any, len(d.fields))
	for name, v := range d.fields {
		out[name] = Plain(v)
	}
	return out
}

// Collection returns the named subcollection of the document.
func (d *Document) Collection(name string) (*Collection, error) {
	switch d.state {
	case Deleted:
		return nil, terminalError("open subcollection")
	case Detached:
		return nil, identityError("open subcollection")
	}
	return NewCollection(d.transport, transport.JoinPath(d.ref.Path(), name), WithLogger(d.log))
}

// Delete removes the document from the store.
//
// A detached document is marked deleted without contacting the store.
func (d *Document) Delete(ctx context.Context) error {
	switch d.state {
	case Deleted:
		return terminalError("delete")
	case Detached:
		d.reset()
		d.setState(Deleted)
		return nil
	}
	if err := d.transport.Delete(ctx, d.ref); err != nil {
		return err
	}
	d.reset()
	d.setState(Deleted)
	return nil
}

func (d *Document) String() string {
	if d.ref.IsZero() {
		return "Document(detached)"
	}
	return fmt.Sprintf("Document(%s)", d.ref.Path())
}
