package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/rl1809/whiskey-cellar/internal/core/domain"
	"github.com/rl1809/whiskey-cellar/internal/core/gateway"
	"github.com/rl1809/whiskey-cellar/internal/port"
)

// WhiskeyMigrations creates the whiskey object store on a fresh database.
var WhiskeyMigrations = []gateway.Migration{
	{
		Version: 1,
		Name:    "create " + domain.WhiskeyStoreName,
		Up:      gateway.CreateObjectStore(domain.WhiskeyStoreName),
	},
}

// OpenWhiskeyDB opens the whiskey database on kv at the current schema version.
func OpenWhiskeyDB(ctx context.Context, kv port.KVStore, opts ...gateway.Option) (*gateway.Gateway, error) {
	return gateway.Open(ctx, kv, domain.DatabaseName, domain.SchemaVersion, WhiskeyMigrations, opts...)
}

// NewUUIDSupplier mints time ordered ids, so key order follows creation order.
func NewUUIDSupplier() port.IDSupplier {
	return func() string {
		id, err := uuid.NewV7()
		if err != nil {
			return uuid.NewString()
		}
		return id.String()
	}
}

// Repository is the record access used by the controllers.
type Repository interface {
	Create(ctx context.Context, fields domain.WhiskeyFields) *gateway.Request[domain.Whiskey]
	Update(ctx context.Context, id string, fields domain.WhiskeyFields) *gateway.Request[domain.Whiskey]
	Delete(ctx context.Context, id string) *gateway.Request[struct{}]
	GetOne(ctx context.Context, id string) *gateway.Request[*domain.Whiskey]
	GetAll(ctx context.Context) *gateway.Request[[]domain.Whiskey]
}

var _ Repository = (*WhiskeyRepository)(nil)

// WhiskeyRepository stores whiskeys as JSON documents keyed by id. Every
// call runs in its own transaction, which is committed before returning.
type WhiskeyRepository struct {
	gw     *gateway.Gateway
	nextID port.IDSupplier
}

func NewWhiskeyRepository(gw *gateway.Gateway, nextID port.IDSupplier) *WhiskeyRepository {
	if nextID == nil {
		nextID = NewUUIDSupplier()
	}
	return &WhiskeyRepository{gw: gw, nextID: nextID}
}

func (r *WhiskeyRepository) begin(ctx context.Context, mode gateway.Mode) *gateway.Transaction {
	return r.gw.Begin(ctx, domain.WhiskeyStoreName, mode)
}

// Create inserts a new record under a fresh id. An id collision aborts with
// domain.ErrDuplicateKey.
func (r *WhiskeyRepository) Create(ctx context.Context, fields domain.WhiskeyFields) *gateway.Request[domain.Whiskey] {
	w := fields.WithID(r.nextID())

	tx := r.begin(ctx, gateway.ReadWrite)
	req := gateway.Map(tx.Add(w.ID, encode(w)), func(struct{}) (domain.Whiskey, error) {
		return w, nil
	})
	tx.Commit()
	return req
}

// Update replaces the record stored under id. A missing id is created.
func (r *WhiskeyRepository) Update(ctx context.Context, id string, fields domain.WhiskeyFields) *gateway.Request[domain.Whiskey] {
	w := fields.WithID(id)

	tx := r.begin(ctx, gateway.ReadWrite)
	req := gateway.Map(tx.Put(w.ID, encode(w)), func(struct{}) (domain.Whiskey, error) {
		return w, nil
	})
	tx.Commit()
	return req
}

// Delete removes id. Deleting a missing id succeeds.
func (r *WhiskeyRepository) Delete(ctx context.Context, id string) *gateway.Request[struct{}] {
	tx := r.begin(ctx, gateway.ReadWrite)
	req := tx.Delete(id)
	tx.Commit()
	return req
}

// GetOne resolves to nil when id is not stored.
func (r *WhiskeyRepository) GetOne(ctx context.Context, id string) *gateway.Request[*domain.Whiskey] {
	tx := r.begin(ctx, gateway.ReadOnly)
	req := gateway.Map(tx.Get(id), func(data []byte) (*domain.Whiskey, error) {
		if data == nil {
			return nil, nil
		}
		w, err := decode(id, data)
		if err != nil {
			return nil, err
		}
		return &w, nil
	})
	tx.Commit()
	return req
}

// GetAll resolves to every record in key order.
func (r *WhiskeyRepository) GetAll(ctx context.Context) *gateway.Request[[]domain.Whiskey] {
	tx := r.begin(ctx, gateway.ReadOnly)
	req := gateway.Map(tx.GetAll(), func(entries []gateway.Entry) ([]domain.Whiskey, error) {
		all := make([]domain.Whiskey, 0, len(entries))
		for _, e := range entries {
			w, err := decode(e.Key, e.Value)
			if err != nil {
				return nil, err
			}
			all = append(all, w)
		}
		return all, nil
	})
	tx.Commit()
	return req
}

// PutAll writes every record in one transaction and resolves to the number
// written. Nothing is written if any record fails.
func (r *WhiskeyRepository) PutAll(ctx context.Context, whiskeys []domain.Whiskey) *gateway.Request[int] {
	tx := r.begin(ctx, gateway.ReadWrite)
	var last *gateway.Request[struct{}]
	for _, w := range whiskeys {
		last = tx.Put(w.ID, encode(w))
	}
	if last == nil {
		last = gateway.Do(tx, func(port.Bucket) (struct{}, error) { return struct{}{}, nil })
	}
	req := gateway.Map(last, func(struct{}) (int, error) {
		return len(whiskeys), nil
	})
	tx.Commit()
	return req
}

// encode cannot fail: Whiskey holds only strings, an int and a bool.
func encode(w domain.Whiskey) []byte {
	data, _ := json.Marshal(w)
	return data
}

func decode(key string, data []byte) (domain.Whiskey, error) {
	var w domain.Whiskey
	if err := json.Unmarshal(data, &w); err != nil {
		return domain.Whiskey{}, fmt.Errorf("decode whiskey %s: %w", key, err)
	}
	w.ID = key
	return w, nil
}
