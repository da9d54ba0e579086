package core

import (
	"context"
	"fmt"

	"github.com/nasdf/docproxy/fieldop"
	"github.com/nasdf/docproxy/transport"

	"go.uber.org/zap"
)

// PlanKind is the kind of write a save performs.
type PlanKind int

const (
	// PlanNone means there is nothing to write.
	PlanNone PlanKind = iota
	// PlanCreate mints an identity and writes all fields.
	PlanCreate
	// PlanOverwrite replaces the remote document with all fields.
	PlanOverwrite
	// PlanUpdate writes only the changed fields.
	PlanUpdate
)

func (k PlanKind) String() string {
	switch k {
	case PlanNone:
		return "none"
	case PlanCreate:
		return "create"
	case PlanOverwrite:
		return "overwrite"
	case PlanUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Plan describes the write a save would perform.
type Plan struct {
	Kind PlanKind
	// Collection is the collection a created document is minted in.
	Collection string
	// ID is the explicit id of a created document. The store generates one when empty.
	ID string
	// Ref is the document written by an overwrite or update.
	Ref     transport.Ref
	Payload transport.Payload
}

type saveOptions struct {
	id string
}

// SaveOption configures a save.
type SaveOption func(*saveOptions)

// WithID sets the id used when a detached document is created.
//
// It has no effect on documents that already have an identity.
func WithID(id string) SaveOption {
	return func(o *saveOptions) {
		o.id = id
	}
}

// Plan returns the write that Save would perform without performing it.
func (d *Document) Plan(opts ...SaveOption) (Plan, error) {
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}
	switch d.state {
	case Deleted:
		return Plan{}, terminalError("save")
	case Detached:
		if d.collection == "" {
			return Plan{}, fmt.Errorf("cannot save detached document: %w", ErrMissingContext)
		}
		return Plan{
			Kind:       PlanCreate,
			Collection: d.collection,
			ID:         o.id,
			Payload:    d.fullPayload(),
		}, nil
	case Attached:
		if !d.hasChanges() {
			return Plan{Kind: PlanNone, Ref: d.ref}, nil
		}
		return Plan{
			Kind:    PlanOverwrite,
			Ref:     d.ref,
			Payload: d.fullPayload(),
		}, nil
	default:
		if !d.hasChanges() {
			return Plan{Kind: PlanNone, Ref: d.ref}, nil
		}
		return Plan{
			Kind:    PlanUpdate,
			Ref:     d.ref,
			Payload: d.updatePayload(),
		}, nil
	}
}

func (d *Document) fullPayload() transport.Payload {
	payload := make(transport.Payload, len(d.fields)+len(d.ops))
	for name, v := range d.fields {
		payload[name] = Plain(v)
	}
	for name, op := range d.ops {
		payload[name] = op
	}
	return payload
}

func (d *Document) updatePayload() transport.Payload {
	payload := make(transport.Payload, len(d.dirty)+len(d.deleted)+len(d.ops))
	for name := range d.dirty {
		payload[name] = Plain(d.fields[name])
	}
	for name := range d.deleted {
		payload[name] = fieldop.Delete
	}
	for name, op := range d.ops {
		payload[name] = op
	}
	return payload
}

// Save writes the local changes of the document to the store.
//
// If the write fails the pending changes are kept so that the save can be retried.
func (d *Document) Save(ctx context.Context, opts ...SaveOption) error {
	plan, err := d.Plan(opts...)
	if err != nil {
		return err
	}
	switch plan.Kind {
	case PlanNone:
		return nil
	case PlanCreate:
		ref, err := d.transport.Create(ctx, plan.Collection, plan.ID)
		if err != nil {
			return err
		}
		if err := d.transport.Set(ctx, ref, plan.Payload); err != nil {
			return err
		}
		d.ref = ref
	case PlanOverwrite:
		if err := d.transport.Set(ctx, plan.Ref, plan.Payload); err != nil {
			return err
		}
	case PlanUpdate:
		if err := d.transport.Update(ctx, plan.Ref, plan.Payload); err != nil {
			return err
		}
	}
	d.log.Debug("document saved",
		zap.String("path", d.ref.Path()),
		zap.Stringer("plan", plan.Kind),
		zap.Int("fields", len(plan.Payload)))
	d.markClean()
	d.setState(Loaded)
	return nil
}
