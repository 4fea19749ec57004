package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/whiskey-cellar/internal/core/domain"
)

const mysqlErrDupEntry = 1062

var mysqlDialect = dialect{
	name: "mysql",
	createTables: []string{
		`CREATE TABLE IF NOT EXISTS kv_meta (
			name VARCHAR(64) NOT NULL PRIMARY KEY,
			value VARCHAR(64) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS kv_object_stores (
			name VARCHAR(191) NOT NULL PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS kv_records (
			store_name VARCHAR(191) NOT NULL,
			id VARBINARY(191) NOT NULL,
			payload LONGBLOB NOT NULL,
			PRIMARY KEY (store_name, id)
		)`,
	},
	upsertMeta: `INSERT INTO kv_meta (name, value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)`,
	upsertRecord: `INSERT INTO kv_records (store_name, id, payload) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE payload = VALUES(payload)`,
	isDuplicate: func(err error) bool {
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == mysqlErrDupEntry
	},
}

// NewMySQLStore connects to the database named in dsn and creates the kv
// tables when missing.
func NewMySQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open mysql: %v", domain.ErrStoreUnavailable, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping mysql: %v", domain.ErrStoreUnavailable, err)
	}

	s, err := newSQLStore(ctx, db, mysqlDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
