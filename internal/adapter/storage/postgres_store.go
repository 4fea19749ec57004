package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver

	"github.com/rl1809/whiskey-cellar/internal/core/domain"
)

const pgUniqueViolation = "23505"

var postgresDialect = dialect{
	name:     "postgres",
	numbered: true,
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
			payload BYTEA NOT NULL,
			PRIMARY KEY (store_name, id)
		)`,
	},
	upsertMeta: `INSERT INTO kv_meta (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`,
	upsertRecord: `INSERT INTO kv_records (store_name, id, payload) VALUES (?, ?, ?)
		ON CONFLICT (store_name, id) DO UPDATE SET payload = EXCLUDED.payload`,
	isDuplicate: func(err error) bool {
		var pe *pgconn.PgError
		return errors.As(err, &pe) && pe.Code == pgUniqueViolation
	},
}

// NewPostgresStore connects with the pgx driver and creates the kv tables
// when missing.
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn required", domain.ErrStoreUnavailable)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %v", domain.ErrStoreUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %v", domain.ErrStoreUnavailable, err)
	}

	s, err := newSQLStore(ctx, db, postgresDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
