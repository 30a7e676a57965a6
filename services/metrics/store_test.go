package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/services/metrics"
	inmemdb "github.com/trezcool/hazira/storage/database/inmem"
)

func newStore(t *testing.T) (*metrics.Store, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	store, err := metrics.NewStore(inmemdb.NewDB(nil), reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, reg
}

func TestStore_operations(t *testing.T) {
	ctx := context.Background()
	store, reg := newStore(t)

	require.NoError(t, store.Set(ctx, "counters/CS/3/Maths", 4))
	snap, err := store.Get(ctx, "counters/CS/3/Maths")
	require.NoError(t, err)
	assert.Equal(t, core.Snapshot("4"), snap)

	err = store.Transaction(ctx, "counters/CS/3/Maths", func(core.Snapshot) (interface{}, error) {
		return nil, core.ErrAbortTransaction
	})
	require.NoError(t, err)
	assert.Error(t, store.Set(ctx, "counters/CS/3/Physics", make(chan int)))

	assert.Equal(t, float64(2), testutil.ToFloat64(store.Operations("set")))
	assert.Equal(t, float64(1), testutil.ToFloat64(store.Operations("get")))
	assert.Equal(t, float64(1), testutil.ToFloat64(store.Failures("set")))
	assert.Equal(t, float64(0), testutil.ToFloat64(store.Failures("transaction")), "aborts are not failures")
	assert.Equal(t, 3, testutil.CollectAndCount(reg, "hazira_store_operations_total"))
}

func TestStore_subscriptions(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	var got []core.Snapshot
	sub, err := store.Subscribe(ctx, "markers", func(snap core.Snapshot) { got = append(got, snap) })
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(store.Subscriptions()))

	require.NoError(t, store.Set(ctx, "markers/CS", "x"))
	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, float64(0), testutil.ToFloat64(store.Subscriptions()))
	assert.Len(t, got, 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(store.Deliveries()))

	cctx, cancel := context.WithCancel(ctx)
	_, err = store.Subscribe(cctx, "markers", func(core.Snapshot) {})
	require.NoError(t, err)
	cancel()
	assert.Eventually(t, func() bool { return testutil.ToFloat64(store.Subscriptions()) == 0 }, time.Second, 10*time.Millisecond)
}

func TestNewStore_duplicate(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.NewStore(inmemdb.NewDB(nil), reg)
	require.NoError(t, err)
	_, err = metrics.NewStore(inmemdb.NewDB(nil), reg)
	assert.Error(t, err)
}
