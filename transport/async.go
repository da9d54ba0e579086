package transport

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Future is the pending result of a suspended transport call.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future that is already complete.
func Resolved[T any](value T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(value, err)
	return f
}

func (f *Future[T]) resolve(value T, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Await blocks until the call completes or the context is cancelled.
//
// A completed call returns its result even if the context is already done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AsyncTransport performs calls against the remote store without blocking the caller.
type AsyncTransport interface {
	GetAsync(ctx context.Context, ref Ref) *Future[*Snapshot]
	CreateAsync(ctx context.Context, collection string, id string) *Future[Ref]
	SetAsync(ctx context.Context, ref Ref, data Payload) *Future[struct{}]
	UpdateAsync(ctx context.Context, ref Ref, data Payload) *Future[struct{}]
	DeleteAsync(ctx context.Context, ref Ref) *Future[struct{}]
}

// Suspender is implemented by transports whose calls suspend on another goroutine.
type Suspender interface {
	Suspends() bool
}

// IsSuspending returns true if the transport completes calls asynchronously.
func IsSuspending(t Transport) bool {
	s, ok := t.(Suspender)
	return ok && s.Suspends()
}

type suspended struct {
	next Transport
	sem  *semaphore.Weighted
}

// Suspend returns an AsyncTransport that runs the calls of the given transport
// on separate goroutines with at most maxInFlight calls running at once.
func Suspend(next Transport, maxInFlight int64) AsyncTransport {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &suspended{
		next: next,
		sem:  semaphore.NewWeighted(maxInFlight),
	}
}

func run[T any](ctx context.Context, sem *semaphore.Weighted, fn func() (T, error)) *Future[T] {
	if err := ctx.Err(); err != nil {
		var zero T
		return Resolved(zero, err)
	}
	f := newFuture[T]()
	go func() {
		if err := sem.Acquire(ctx, 1); err != nil {
			var zero T
			f.resolve(zero, err)
			return
		}
		defer sem.Release(1)
		f.resolve(fn())
	}()
	return f
}

func (s *suspended) GetAsync(ctx context.Context, ref Ref) *Future[*Snapshot] {
	return run(ctx, s.sem, func() (*Snapshot, error) {
		return s.next.Get(ctx, ref)
	})
}

func (s *suspended) CreateAsync(ctx context.Context, collection string, id string) *Future[Ref] {
	return run(ctx, s.sem, func() (Ref, error) {
		return s.next.Create(ctx, collection, id)
	})
}

func (s *suspended) SetAsync(ctx context.Context, ref Ref, data Payload) *Future[struct{}] {
	return run(ctx, s.sem, func() (struct{}, error) {
		return struct{}{}, s.next.Set(ctx, ref, data)
	})
}

func (s *suspended) UpdateAsync(ctx context.Context, ref Ref, data Payload) *Future[struct{}] {
	return run(ctx, s.sem, func() (struct{}, error) {
		return struct{}{}, s.next.Update(ctx, ref, data)
	})
}

func (s *suspended) DeleteAsync(ctx context.Context, ref Ref) *Future[struct{}] {
	return run(ctx, s.sem, func() (struct{}, error) {
		return struct{}{}, s.next.Delete(ctx, ref)
	})
}

type awaiting struct {
	async AsyncTransport
}

// Await returns a Transport that waits on the futures of the given AsyncTransport.
//
// The returned transport reports itself as suspending.
func Await(async AsyncTransport) Transport {
	return &awaiting{async: async}
}

func (a *awaiting) Suspends() bool {
	return true
}

func (a *awaiting) Get(ctx context.Context, ref Ref) (*Snapshot, error) {
	return a.async.GetAsync(ctx, ref).Await(ctx)
}

func (a *awaiting) Create(ctx context.Context, collection string, id string) (Ref, error) {
	return a.async.CreateAsync(ctx, collection, id).Await(ctx)
}

func (a *awaiting) Set(ctx context.Context, ref Ref, data Payload) error {
	_, err := a.async.SetAsync(ctx, ref, data).Await(ctx)
	return err
}

func (a *awaiting) Update(ctx context.Context, ref Ref, data Payload) error {
	_, err := a.async.UpdateAsync(ctx, ref, data).Await(ctx)
	return err
}

func (a *awaiting) Delete(ctx context.Context, ref Ref) error {
	_, err := a.async.DeleteAsync(ctx, ref).Await(ctx)
	return err
}
