package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"modernc.org/sqlite" // pure go sqlite driver
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rl1809/whiskey-cellar/internal/core/domain"
)

var sqliteDialect = dialect{
	name: "sqlite",
	createTables: []string{
		`CREATE TABLE IF NOT EXISTS kv_meta (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS kv_object_stores (
			name TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS kv_records (
			store_name TEXT NOT NULL,
			id TEXT NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (store_name, id)
		)`,
	},
	upsertMeta: `INSERT INTO kv_meta (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
	upsertRecord: `INSERT INTO kv_records (store_name, id, payload) VALUES (?, ?, ?)
		ON CONFLICT(store_name, id) DO UPDATE SET payload = excluded.payload`,
	isDuplicate: func(err error) bool {
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	},
}

// NewSQLiteStore opens (or creates) the sqlite file at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: create dirs: %v", domain.ErrStoreUnavailable, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", domain.ErrStoreUnavailable, err)
	}
	// sqlite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s, err := newSQLStore(ctx, db, sqliteDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
