package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/whiskey-cellar/internal/adapter/storage"
	"github.com/rl1809/whiskey-cellar/internal/core/domain"
	"github.com/rl1809/whiskey-cellar/internal/core/gateway"
	"github.com/rl1809/whiskey-cellar/internal/port"
)

// backends opens a fresh whiskey database on every embedded backend.
var backends = map[string]func(t *testing.T) port.KVStore{
	"memory": func(t *testing.T) port.KVStore {
		return storage.NewMemoryStore()
	},
	"bolt": func(t *testing.T) port.KVStore {
		s := storage.NewBoltStore(filepath.Join(t.TempDir(), "WhiskeyDB.db"))
		require.NoError(t, s.Open(context.Background()))
		return s
	},
	"sqlite": func(t *testing.T) port.KVStore {
		s, err := storage.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "WhiskeyDB.sqlite"))
		require.NoError(t, err)
		return s
	},
}

func eachBackend(t *testing.T, fn func(t *testing.T, gw *gateway.Gateway)) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, openGateway(t, open(t)))
		})
	}
}

func openGateway(t *testing.T, kv port.KVStore) *gateway.Gateway {
	t.Helper()
	gw, err := OpenWhiskeyDB(context.Background(), kv, gateway.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

// sequence hands out id-1, id-2, ...
func sequence() port.IDSupplier {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	}
}

// fixedID always hands out id.
func fixedID(id string) port.IDSupplier {
	return func() string { return id }
}

type fakeView struct {
	mu     sync.Mutex
	rows   [][]domain.Row
	forms  []domain.Form
	alerts []string
}

func (v *fakeView) Render(rows []domain.Row) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rows = append(v.rows, rows)
}

func (v *fakeView) Fill(form domain.Form) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.forms = append(v.forms, form)
}

func (v *fakeView) Alert(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alerts = append(v.alerts, message)
}

func (v *fakeView) lastRows() []domain.Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.rows) == 0 {
		return nil
	}
	return v.rows[len(v.rows)-1]
}

func (v *fakeView) lastForm() domain.Form {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.forms) == 0 {
		return domain.Form{}
	}
	return v.forms[len(v.forms)-1]
}

// countingRepository counts every store call made through it.
type countingRepository struct {
	Repository
	calls atomic.Int32
}

func (r *countingRepository) Create(ctx context.Context, f domain.WhiskeyFields) *gateway.Request[domain.Whiskey] {
	r.calls.Add(1)
	return r.Repository.Create(ctx, f)
}

func (r *countingRepository) Update(ctx context.Context, id string, f domain.WhiskeyFields) *gateway.Request[domain.Whiskey] {
	r.calls.Add(1)
	return r.Repository.Update(ctx, id, f)
}

func (r *countingRepository) Delete(ctx context.Context, id string) *gateway.Request[struct{}] {
	r.calls.Add(1)
	return r.Repository.Delete(ctx, id)
}

func (r *countingRepository) GetOne(ctx context.Context, id string) *gateway.Request[*domain.Whiskey] {
	r.calls.Add(1)
	return r.Repository.GetOne(ctx, id)
}

func (r *countingRepository) GetAll(ctx context.Context) *gateway.Request[[]domain.Whiskey] {
	r.calls.Add(1)
	return r.Repository.GetAll(ctx)
}
