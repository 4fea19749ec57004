package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rl1809/whiskey-cellar/internal/core/domain"
	"github.com/rl1809/whiskey-cellar/internal/port"
)

var _ port.KVStore = (*SQLStore)(nil)

// dialect holds what differs between the SQL engines behind SQLStore.
type dialect struct {
	name         string
	createTables []string
	upsertMeta   string
	upsertRecord string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered    bool
	isDuplicate func(err error) bool
}

// SQLStore keeps every object store in one kv_records table keyed by
// (store_name, id). Object stores are registered in kv_object_stores and the
// schema version lives in kv_meta.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	for _, stmt := range d.createTables {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("%w: create %s tables: %v", domain.ErrStoreUnavailable, d.name, err)
		}
	}
	return &SQLStore{db: db, d: d}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Upgrade(ctx context.Context, fn func(tx port.SchemaTx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&sqlSchemaTx{ctx: ctx, tx: tx, s: s})
	})
}

func (s *SQLStore) View(ctx context.Context, fn func(tx port.Tx) error) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// Nothing to keep from a read-only transaction.
	defer func() { _ = tx.Rollback() }()

	return fn(&sqlTx{ctx: ctx, tx: tx, s: s})
}

func (s *SQLStore) Update(ctx context.Context, fn func(tx port.Tx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&sqlTx{ctx: ctx, tx: tx, s: s, writable: true})
	})
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// q rewrites ? placeholders for dialects that number them.
func (s *SQLStore) q(query string) string {
	if !s.d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type sqlSchemaTx struct {
	ctx context.Context
	tx  *sql.Tx
	s   *SQLStore
}

func (t *sqlSchemaTx) Version() (int, error) {
	var v string
	err := t.tx.QueryRowContext(t.ctx, t.s.q(`SELECT value FROM kv_meta WHERE name = ?`), "version").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query version: %w", err)
	}
	version, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("corrupt schema version %q: %w", v, err)
	}
	return version, nil
}

func (t *sqlSchemaTx) SetVersion(version int) error {
	if _, err := t.tx.ExecContext(t.ctx, t.s.q(t.s.d.upsertMeta), "version", strconv.Itoa(version)); err != nil {
		return fmt.Errorf("set version: %w", err)
	}
	return nil
}

func (t *sqlSchemaTx) HasObjectStore(name string) (bool, error) {
	return hasObjectStore(t.ctx, t.tx, t.s, name)
}

func (t *sqlSchemaTx) CreateObjectStore(name string) error {
	if _, err := t.tx.ExecContext(t.ctx, t.s.q(`INSERT INTO kv_object_stores (name) VALUES (?)`), name); err != nil {
		return fmt.Errorf("create object store %s: %w", name, err)
	}
	return nil
}

func hasObjectStore(ctx context.Context, tx *sql.Tx, s *SQLStore, name string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM kv_object_stores WHERE name = ?`), name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query object store: %w", err)
	}
	return n > 0, nil
}

type sqlTx struct {
	ctx      context.Context
	tx       *sql.Tx
	s        *SQLStore
	writable bool
}

func (t *sqlTx) Bucket(name string) (port.Bucket, error) {
	ok, err := hasObjectStore(t.ctx, t.tx, t.s, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrObjectStoreNotFound, name)
	}
	return &sqlBucket{sqlTx: t, store: name}, nil
}

type sqlBucket struct {
	*sqlTx
	store string
}

func (b *sqlBucket) Get(key []byte) ([]byte, error) {
	var payload []byte
	err := b.tx.QueryRowContext(b.ctx,
		b.s.q(`SELECT payload FROM kv_records WHERE store_name = ? AND id = ?`),
		b.store, string(key),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}
	return payload, nil
}

func (b *sqlBucket) ForEach(fn func(key, value []byte) error) error {
	records, err := b.load()
	if err != nil {
		return err
	}
	// Collations differ between engines; the contract is byte order.
	sort.SliceStable(records, func(i, j int) bool {
		return bytes.Compare(records[i].id, records[j].id) < 0
	})

	for _, r := range records {
		if err := fn(r.id, r.payload); err != nil {
			return err
		}
	}
	return nil
}

type sqlRecord struct {
	id      []byte
	payload []byte
}

func (b *sqlBucket) load() ([]sqlRecord, error) {
	rows, err := b.tx.QueryContext(b.ctx,
		b.s.q(`SELECT id, payload FROM kv_records WHERE store_name = ? ORDER BY id`), b.store)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []sqlRecord
	for rows.Next() {
		var id string
		var r sqlRecord
		if err := rows.Scan(&id, &r.payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		r.id = []byte(id)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (b *sqlBucket) Insert(key, value []byte) error {
	if !b.writable {
		return port.ErrTxNotWritable
	}
	if _, err := b.Get(key); err == nil {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateKey, key)
	} else if !errors.Is(err, port.ErrKeyNotFound) {
		return err
	}

	_, err := b.tx.ExecContext(b.ctx,
		b.s.q(`INSERT INTO kv_records (store_name, id, payload) VALUES (?, ?, ?)`),
		b.store, string(key), value)
	if err != nil {
		if b.s.d.isDuplicate != nil && b.s.d.isDuplicate(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateKey, key)
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (b *sqlBucket) Put(key, value []byte) error {
	if !b.writable {
		return port.ErrTxNotWritable
	}
	if _, err := b.tx.ExecContext(b.ctx, b.s.q(b.s.d.upsertRecord), b.store, string(key), value); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

func (b *sqlBucket) Delete(key []byte) error {
	if !b.writable {
		return port.ErrTxNotWritable
	}
	_, err := b.tx.ExecContext(b.ctx,
		b.s.q(`DELETE FROM kv_records WHERE store_name = ? AND id = ?`), b.store, string(key))
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}
