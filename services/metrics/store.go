// Package metrics instruments the tree store with prometheus collectors.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/hazira/core"
)

type Store struct {
	next core.TreeStore

	ops           *prometheus.CounterVec
	failures      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	subscriptions prometheus.Gauge
	deliveries    prometheus.Counter
}

var _ core.TreeStore = (*Store)(nil)

// NewStore wraps next and registers its collectors with reg.
func NewStore(next core.TreeStore, reg prometheus.Registerer) (*Store, error) {
	s := &Store{
		next: next,
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazira",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Tree store operations by kind.",
		}, []string{"op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazira",
			Subsystem: "store",
			Name:      "failures_total",
			Help:      "Tree store operations that returned an error.",
		}, []string{"op"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hazira",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Tree store operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"op"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazira",
			Subsystem: "store",
			Name:      "subscriptions",
			Help:      "Live tree store subscriptions.",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazira",
			Subsystem: "store",
			Name:      "deliveries_total",
			Help:      "Snapshots delivered to subscribers.",
		}),
	}

	for _, c := range []prometheus.Collector{s.ops, s.failures, s.latency, s.subscriptions, s.deliveries} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering store metrics")
		}
	}
	return s, nil
}

// Operations returns the operation counter for op, e.g. "get", "set" or "transaction".
func (s *Store) Operations(op string) prometheus.Counter { return s.ops.WithLabelValues(op) }

func (s *Store) Failures(op string) prometheus.Counter { return s.failures.WithLabelValues(op) }

func (s *Store) Subscriptions() prometheus.Gauge { return s.subscriptions }

func (s *Store) Deliveries() prometheus.Counter { return s.deliveries }

func (s *Store) observe(op string, start time.Time, err error) {
	s.ops.WithLabelValues(op).Inc()
	s.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, core.ErrAbortTransaction) {
		s.failures.WithLabelValues(op).Inc()
	}
}

func (s *Store) Get(ctx context.Context, path string) (snap core.Snapshot, err error) {
	defer func(start time.Time) { s.observe("get", start, err) }(time.Now())
	return s.next.Get(ctx, path)
}

func (s *Store) Set(ctx context.Context, path string, value interface{}) (err error) {
	defer func(start time.Time) { s.observe("set", start, err) }(time.Now())
	return s.next.Set(ctx, path, value)
}

func (s *Store) Delete(ctx context.Context, path string) (err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())
	return s.next.Delete(ctx, path)
}

func (s *Store) NewKey(ctx context.Context, path string) (key string, err error) {
	defer func(start time.Time) { s.observe("new_key", start, err) }(time.Now())
	return s.next.NewKey(ctx, path)
}

func (s *Store) Transaction(ctx context.Context, path string, fn core.UpdateFunc) (err error) {
	defer func(start time.Time) { s.observe("transaction", start, err) }(time.Now())
	return s.next.Transaction(ctx, path, fn)
}

func (s *Store) Subscribe(ctx context.Context, path string, fn core.SnapshotFunc) (core.Subscription, error) {
	var err error
	defer func(start time.Time) { s.observe("subscribe", start, err) }(time.Now())

	sub, err := s.next.Subscribe(ctx, path, func(snap core.Snapshot) {
		s.deliveries.Inc()
		fn(snap)
	})
	if err != nil {
		return nil, err
	}
	s.subscriptions.Inc()
	wrapped := &subscription{Subscription: sub, gauge: s.subscriptions}
	context.AfterFunc(ctx, wrapped.Unsubscribe)
	return wrapped, nil
}

func (s *Store) Close() error {
	return s.next.Close()
}

type subscription struct {
	core.Subscription
	gauge prometheus.Gauge
	once  sync.Once
}

func (sub *subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.gauge.Dec()
		sub.Subscription.Unsubscribe()
	})
}
