package transport

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type instrumented struct {
	next     Transport
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// Instrument returns a Transport that records call counts and latencies for
// every operation of the given transport in the registerer.
func Instrument(next Transport, reg prometheus.Registerer) (Transport, error) {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docproxy",
		Subsystem: "transport",
		Name:      "calls_total",
		Help:      "Number of transport calls by operation and result.",
	}, []string{"op", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "docproxy",
		Subsystem: "transport",
		Name:      "call_duration_seconds",
		Help:      "Latency of transport calls by operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	if err := reg.Register(calls); err != nil {
		return nil, err
	}
	if err := reg.Register(duration); err != nil {
		return nil, err
	}
	return &instrumented{
		next:     next,
		calls:    calls,
		duration: duration,
	}, nil
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	i.calls.WithLabelValues(op, result).Inc()
	i.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (i *instrumented) Suspends() bool {
	return IsSuspending(i.next)
}

func (i *instrumented) Get(ctx context.Context, ref Ref) (*Snapshot, error) {
	start := time.Now()
	snap, err := i.next.Get(ctx, ref)
	i.observe("get", start, err)
	return snap, err
}

func (i *instrumented) Create(ctx context.Context, collection string, id string) (Ref, error) {
	start := time.Now()
	ref, err := i.next.Create(ctx, collection, id)
	i.observe("create", start, err)
	return ref, err
}

func (i *instrumented) Set(ctx context.Context, ref Ref, data Payload) error {
	start := time.Now()
	err := i.next.Set(ctx, ref, data)
	i.observe("set", start, err)
	return err
}

func (i *instrumented) Update(ctx context.Context, ref Ref, data Payload) error {
	start := time.Now()
	err := i.next.Update(ctx, ref, data)
	i.observe("update", start, err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, ref Ref) error {
	start := time.Now()
	err := i.next.Delete(ctx, ref)
	i.observe("delete", start, err)
	return err
}
