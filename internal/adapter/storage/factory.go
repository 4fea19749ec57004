package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/rl1809/whiskey-cellar/internal/core/domain"
	"github.com/rl1809/whiskey-cellar/internal/port"
)

// Driver identifies a concrete object store backend.
type Driver string

const (
	DriverBolt     Driver = "bolt"     // embedded boltdb file (default)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverMySQL    Driver = "mysql"    // MySQL server
	DriverPostgres Driver = "postgres" // PostgreSQL server
	DriverRedis    Driver = "redis"    // Redis server
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
)

type Config struct {
	Driver      Driver
	DBName      string
	DataDir     string
	MySQLDSN    string
	PostgresDSN string
	RedisAddr   string
}

// Open connects the backend selected by cfg.Driver. Embedded backends keep
// their file under DataDir named after DBName; Redis keys are prefixed with it.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (port.KVStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.DBName
	if name == "" {
		name = domain.DatabaseName
	}
	driver := cfg.Driver
	if driver == "" {
		driver = DriverBolt
	}

	switch driver {
	case DriverBolt:
		s := NewBoltStore(filepath.Join(cfg.DataDir, name+".db"))
		s.WithLogger(logger.With(zap.String("service", "bolt")))
		if err := s.Open(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		return NewSQLiteStore(ctx, filepath.Join(cfg.DataDir, name+".sqlite"))
	case DriverMySQL:
		return NewMySQLStore(ctx, cfg.MySQLDSN)
	case DriverPostgres:
		return NewPostgresStore(ctx, cfg.PostgresDSN)
	case DriverRedis:
		return OpenRedisStore(ctx, cfg.RedisAddr, name+":")
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", domain.ErrStoreUnavailable, driver)
	}
}
