package gateway_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/whiskey-cellar/internal/adapter/storage"
	"github.com/rl1809/whiskey-cellar/internal/core/domain"
	"github.com/rl1809/whiskey-cellar/internal/core/gateway"
	"github.com/rl1809/whiskey-cellar/internal/port"
)

const store = "whiskeyStore"

var migrations = []gateway.Migration{
	{Version: 1, Name: "create whiskeyStore", Up: gateway.CreateObjectStore(store)},
}

func openMemory(t *testing.T, opts ...gateway.Option) *gateway.Gateway {
	t.Helper()
	opts = append([]gateway.Option{gateway.WithLogger(zaptest.NewLogger(t))}, opts...)
	g, err := gateway.Open(context.Background(), storage.NewMemoryStore(), "WhiskeyDB", 1, migrations, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func openBolt(t *testing.T, path string, version int, ms []gateway.Migration) (*gateway.Gateway, error) {
	t.Helper()
	kv := storage.NewBoltStore(path)
	require.NoError(t, kv.Open(context.Background()))
	g, err := gateway.Open(context.Background(), kv, "WhiskeyDB", version, ms, gateway.WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		_ = kv.Close()
	}
	return g, err
}

func TestReadWriteRoundTrip(t *testing.T) {
	g := openMemory(t)
	ctx := context.Background()

	tx := g.Begin(ctx, store, gateway.ReadWrite)
	tx.Add("b", []byte("2"))
	tx.Add("a", []byte("1"))
	put := tx.Put("c", []byte("3"))
	tx.Commit()
	_, err := put.Wait(ctx)
	require.NoError(t, err)

	tx = g.Begin(ctx, store, gateway.ReadWrite)
	tx.Put("b", []byte("22"))
	del := tx.Delete("c")
	tx.Commit()
	_, err = del.Wait(ctx)
	require.NoError(t, err)

	tx = g.Begin(ctx, store, gateway.ReadOnly)
	one := tx.Get("b")
	missing := tx.Get("c")
	all := tx.GetAll()
	tx.Commit()

	v, err := one.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "22", string(v))

	v, err = missing.Wait(ctx)
	require.NoError(t, err)
	assert.Nil(t, v)

	entries, err := all.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, []gateway.Entry{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("22")},
	}, entries)
}

func TestGetAllEmpty(t *testing.T) {
	g := openMemory(t)
	ctx := context.Background()

	tx := g.Begin(ctx, store, gateway.ReadOnly)
	all := tx.GetAll()
	tx.Commit()

	entries, err := all.Wait(ctx)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestRequestResolvesBeforeTransaction(t *testing.T) {
	g := openMemory(t)
	ctx := context.Background()

	tx := g.Begin(ctx, store, gateway.ReadWrite)
	first := tx.Add("a", []byte("1"))
	release := make(chan struct{})
	checked := make(chan bool, 1)
	gateway.Do(tx, func(b port.Bucket) (struct{}, error) {
		<-release
		return struct{}{}, nil
	})
	tx.Commit()

	go func() {
		_, err := first.Result(ctx)
		select {
		case <-tx.Done():
			checked <- false
		default:
			checked <- err == nil
		}
		close(release)
	}()

	assert.True(t, <-checked, "request should resolve while its transaction is still running")
	require.NoError(t, tx.Wait(ctx))
}

func TestMapResolvesBeforeTransaction(t *testing.T) {
	g := openMemory(t)
	ctx := context.Background()

	tx := g.Begin(ctx, store, gateway.ReadWrite)
	var doneEarly atomic.Bool
	length := gateway.Map(tx.Put("a", []byte("abc")), func(struct{}) (int, error) {
		select {
		case <-tx.Done():
		default:
			doneEarly.Store(true)
		}
		return 3, nil
	})
	tx.Commit()

	n, err := length.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, doneEarly.Load(), "mapped request should resolve while its transaction is still running")
}

func TestMapErrors(t *testing.T) {
	g := openMemory(t)
	ctx := context.Background()
	errDecode := errors.New("decode")

	tx := g.Begin(ctx, store, gateway.ReadWrite)
	tx.Add("a", []byte("1"))
	called := false
	dup := gateway.Map(tx.Add("a", []byte("2")), func(struct{}) (string, error) {
		called = true
		return "unreachable", nil
	})
	tx.Commit()

	_, err := dup.Result(ctx)
	require.ErrorIs(t, err, domain.ErrDuplicateKey)
	require.ErrorIs(t, tx.Wait(ctx), domain.ErrTransactionAborted)
	assert.False(t, called)

	tx = g.Begin(ctx, store, gateway.ReadWrite)
	bad := gateway.Map(tx.Put("b", []byte("2")), func(struct{}) (string, error) {
		return "", errDecode
	})
	tx.Commit()

	_, err = bad.Wait(ctx)
	require.ErrorIs(t, err, errDecode)
	require.NoError(t, tx.Err(), "a failing map does not abort the transaction")

	read := g.Begin(ctx, store, gateway.ReadOnly)
	got := read.Get("b")
	read.Commit()
	v, err := got.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", string(v))
}

func TestMapAfterCommit(t *testing.T) {
	g := openMemory(t)
	ctx := context.Background()

	tx := g.Begin(ctx, store, gateway.ReadOnly)
	tx.Commit()
	late := gateway.Map(tx.Get("a"), func(v []byte) (string, error) { return string(v), nil })

	_, err := late.Result(ctx)
	require.ErrorIs(t, err, gateway.ErrTransactionInactive)
}

func TestAbortRollsBackEveryRequest(t *testing.T) {
	g := openMemory(t)
	ctx := context.Background()

	var handled atomic.Int32
	tx := g.Begin(ctx, store, gateway.ReadWrite)
	tx.OnError(func(err error) { handled.Add(1) })
	first := tx.Add("a", []byte("1"))
	dup := tx.Add("a", []byte("2"))
	after := tx.Put("z", []byte("never"))
	tx.Commit()

	_, err := first.Result(ctx)
	require.NoError(t, err)

	_, err = first.Wait(ctx)
	require.ErrorIs(t, err, domain.ErrTransactionAborted)
	require.ErrorIs(t, err, domain.ErrDuplicateKey)

	_, err = dup.Result(ctx)
	require.ErrorIs(t, err, domain.ErrDuplicateKey)

	_, err = after.Result(ctx)
	require.Error(t, err)

	assert.Equal(t, int32(1), handled.Load())
	require.ErrorIs(t, tx.Err(), domain.ErrTransactionAborted)

	read := g.Begin(ctx, store, gateway.ReadOnly)
	all := read.GetAll()
	read.Commit()
	entries, err := all.Wait(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOnErrorAfterFinish(t *testing.T) {
	g := openMemory(t)
	ctx := context.Background()

	tx := g.Begin(ctx, store, gateway.ReadOnly)
	tx.Put("a", []byte("1"))
	tx.Commit()
	require.Error(t, tx.Wait(ctx))

	called := false
	tx.OnError(func(err error) {
		called = true
		assert.ErrorIs(t, err, port.ErrTxNotWritable)
	})
	assert.True(t, called)
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	g := openMemory(t)
	ctx := context.Background()

	tx := g.Begin(ctx, store, gateway.ReadOnly)
	req := tx.Delete("a")
	tx.Commit()

	_, err := req.Wait(ctx)
	require.ErrorIs(t, err, domain.ErrTransactionAborted)
	require.ErrorIs(t, err, port.ErrTxNotWritable)
}

func TestEmptyKey(t *testing.T) {
	g := openMemory(t)
	ctx := context.Background()

	tx := g.Begin(ctx, store, gateway.ReadWrite)
	req := tx.Put("", []byte("1"))
	tx.Commit()

	_, err := req.Wait(ctx)
	require.ErrorIs(t, err, port.ErrInvalidKey)
}

func TestUnknownObjectStore(t *testing.T) {
	g := openMemory(t)
	ctx := context.Background()

	tx := g.Begin(ctx, "cellar", gateway.ReadOnly)
	req := tx.GetAll()
	tx.Commit()

	_, err := req.Wait(ctx)
	require.ErrorIs(t, err, port.ErrObjectStoreNotFound)
}

func TestRequestAfterCommit(t *testing.T) {
	g := openMemory(t)
	ctx := context.Background()

	tx := g.Begin(ctx, store, gateway.ReadWrite)
	tx.Commit()
	tx.Commit()

	_, err := tx.Put("a", []byte("1")).Result(ctx)
	require.ErrorIs(t, err, gateway.ErrTransactionInactive)
	require.NoError(t, tx.Wait(ctx))
}

func TestCommitAfterClose(t *testing.T) {
	g := openMemory(t)
	require.NoError(t, g.Close())
	require.NoError(t, g.Close())

	ctx := context.Background()
	tx := g.Begin(ctx, store, gateway.ReadWrite)
	req := tx.Put("a", []byte("1"))
	tx.Commit()

	_, err := req.Wait(ctx)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestCloseDrainsQueue(t *testing.T) {
	g, err := gateway.Open(context.Background(), storage.NewMemoryStore(), "WhiskeyDB", 1, migrations,
		gateway.WithQueueSize(16))
	require.NoError(t, err)
	ctx := context.Background()

	var reqs []*gateway.Request[struct{}]
	for i := 0; i < 10; i++ {
		tx := g.Begin(ctx, store, gateway.ReadWrite)
		reqs = append(reqs, tx.Put(string(rune('a'+i)), []byte("v")))
		tx.Commit()
	}
	require.NoError(t, g.Close())

	for _, r := range reqs {
		_, err := r.Wait(ctx)
		assert.NoError(t, err)
	}
}

func TestResultHonoursContext(t *testing.T) {
	g := openMemory(t)

	tx := g.Begin(context.Background(), store, gateway.ReadOnly)
	req := tx.GetAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := req.Result(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	tx.Commit()
	_, err = req.Wait(context.Background())
	require.NoError(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "WhiskeyDB.db")

	var runs int
	ms := []gateway.Migration{{
		Version: 1,
		Name:    "create whiskeyStore",
		Up: func(s port.SchemaTx) error {
			runs++
			return gateway.CreateObjectStore(store)(s)
		},
	}}

	g, err := openBolt(t, path, 1, ms)
	require.NoError(t, err)
	tx := g.Begin(context.Background(), store, gateway.ReadWrite)
	tx.Add("a", []byte("1"))
	tx.Commit()
	require.NoError(t, tx.Wait(context.Background()))
	require.NoError(t, g.Close())

	g, err = openBolt(t, path, 1, ms)
	require.NoError(t, err)
	defer g.Close()
	assert.Equal(t, 1, runs)

	tx = g.Begin(context.Background(), store, gateway.ReadOnly)
	v, err := func() ([]byte, error) {
		r := tx.Get("a")
		tx.Commit()
		return r.Wait(context.Background())
	}()
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))
}

func TestOpenRejectsDowngrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "WhiskeyDB.db")

	g, err := openBolt(t, path, 2, migrations)
	require.NoError(t, err)
	require.NoError(t, g.Close())

	_, err = openBolt(t, path, 1, migrations)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.ErrorIs(t, err, gateway.ErrVersion)
}

func TestOpenFailedMigration(t *testing.T) {
	boom := errors.New("boom")
	ms := []gateway.Migration{{Version: 1, Name: "explode", Up: func(port.SchemaTx) error { return boom }}}

	_, err := gateway.Open(context.Background(), storage.NewMemoryStore(), "WhiskeyDB", 1, ms)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.ErrorIs(t, err, boom)
}

func TestOpenInvalidArguments(t *testing.T) {
	_, err := gateway.Open(context.Background(), nil, "WhiskeyDB", 1, migrations)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = gateway.Open(context.Background(), storage.NewMemoryStore(), "WhiskeyDB", 0, migrations)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := openMemory(t, gateway.WithRegisterer(reg))
	ctx := context.Background()

	tx := g.Begin(ctx, store, gateway.ReadWrite)
	tx.Add("a", []byte("1"))
	tx.Commit()
	require.NoError(t, tx.Wait(ctx))

	tx = g.Begin(ctx, store, gateway.ReadWrite)
	tx.Add("a", []byte("1"))
	tx.Commit()
	require.Error(t, tx.Wait(ctx))

	tx = g.Begin(ctx, store, gateway.ReadOnly)
	tx.GetAll()
	tx.Commit()
	require.NoError(t, tx.Wait(ctx))

	expected := `
# HELP whiskey_gateway_transactions_total Number of transactions executed, by mode and outcome.
# TYPE whiskey_gateway_transactions_total counter
whiskey_gateway_transactions_total{mode="readonly",outcome="committed"} 1
whiskey_gateway_transactions_total{mode="readwrite",outcome="aborted"} 1
whiskey_gateway_transactions_total{mode="readwrite",outcome="committed"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "whiskey_gateway_transactions_total"))
	assert.Equal(t, 0.0, gaugeValue(t, reg, "whiskey_gateway_queue_depth"))
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
