// Package transporttest provides transport helpers for tests.
package transporttest

import (
	"context"
	"sync"

	"github.com/nasdf/docproxy/transport"
)

// Call is a single recorded transport call.
type Call struct {
	Op         string
	Ref        transport.Ref
	Collection string
	ID         string
	Payload    transport.Payload
}

// Recorder is a Transport that records every call before passing it to Next.
//
// Calls to an op with an entry in Fail return that error without reaching Next.
type Recorder struct {
	Next transport.Transport
	Fail map[string]error

	mu    sync.Mutex
	calls []Call
}

// NewRecorder returns a Recorder wrapping the given transport.
func NewRecorder(next transport.Transport) *Recorder {
	return &Recorder{
		Next: next,
		Fail: make(map[string]error),
	}
}

// Calls returns the recorded calls in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Writes returns the recorded set, update, and delete calls in order.
func (r *Recorder) Writes() []Call {
	var out []Call
	for _, c := range r.Calls() {
		switch c.Op {
		case "set", "update", "delete":
			out = append(out, c)
		}
	}
	return out
}

// Reset clears the recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = nil
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, c)
	return r.Fail[c.Op]
}

func (r *Recorder) Get(ctx context.Context, ref transport.Ref) (*transport.Snapshot, error) {
	if err := r.record(Call{Op: "get", Ref: ref}); err != nil {
		return nil, err
	}
	return r.Next.Get(ctx, ref)
}

func (r *Recorder) Create(ctx context.Context, collection string, id string) (transport.Ref, error) {
	if err := r.record(Call{Op: "create", Collection: collection, ID: id}); err != nil {
		return transport.Ref{}, err
	}
	return r.Next.Create(ctx, collection, id)
}

func (r *Recorder) Set(ctx context.Context, ref transport.Ref, data transport.Payload) error {
	if err := r.record(Call{Op: "set", Ref: ref, Payload: data}); err != nil {
		return err
	}
	return r.Next.Set(ctx, ref, data)
}

func (r *Recorder) Update(ctx context.Context, ref transport.Ref, data transport.Payload) error {
	if err := r.record(Call{Op: "update", Ref: ref, Payload: data}); err != nil {
		return err
	}
	return r.Next.Update(ctx, ref, data)
}

func (r *Recorder) Delete(ctx context.Context, ref transport.Ref) error {
	if err := r.record(Call{Op: "delete", Ref: ref}); err != nil {
		return err
	}
	return r.Next.Delete(ctx, ref)
}
