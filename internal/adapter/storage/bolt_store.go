package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/rl1809/whiskey-cellar/internal/core/domain"
	"github.com/rl1809/whiskey-cellar/internal/port"
)

var (
	_ port.KVStore         = (*BoltStore)(nil)
	_ prometheus.Collector = (*BoltStore)(nil)
)

var (
	boltMetaBucket = []byte("__meta")
	boltVersionKey = []byte("version")
)

// BoltStore is a port.KVStore backed by a single boltdb file. Every object
// store is a top level bucket; the schema version lives in a meta bucket.
type BoltStore struct {
	path   string
	db     *bolt.DB
	logger *zap.Logger
}

// NewBoltStore returns a store for the file at path. Call Open before use.
func NewBoltStore(path string) *BoltStore {
	return &BoltStore{
		path:   path,
		logger: zap.NewNop(),
	}
}

// WithLogger sets the logger on the store.
func (s *BoltStore) WithLogger(l *zap.Logger) {
	s.logger = l
}

// Open creates the boltdb file if it doesn't exist and opens it otherwise.
func (s *BoltStore) Open(ctx context.Context) error {
	// Ensure the required directory structure exists.
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("%w: unable to create directory %s: %v", domain.ErrStoreUnavailable, s.path, err)
	}

	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("%w: unable to open boltdb file: %v", domain.ErrStoreUnavailable, err)
	}
	s.db = db

	s.logger.Info("Resources opened", zap.String("path", s.path))
	return nil
}

func (s *BoltStore) Path() string { return s.path }

func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *BoltStore) Upgrade(ctx context.Context, fn func(tx port.SchemaTx) error) error {
	if s.db == nil {
		return errBoltNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltSchemaTx{tx: tx})
	})
}

func (s *BoltStore) View(ctx context.Context, fn func(tx port.Tx) error) error {
	if s.db == nil {
		return errBoltNotOpen
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

func (s *BoltStore) Update(ctx context.Context, fn func(tx port.Tx) error) error {
	if s.db == nil {
		return errBoltNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

var errBoltNotOpen = fmt.Errorf("%w: boltdb is not open", domain.ErrStoreUnavailable)

type boltSchemaTx struct {
	tx *bolt.Tx
}

func (s *boltSchemaTx) Version() (int, error) {
	meta := s.tx.Bucket(boltMetaBucket)
	if meta == nil {
		return 0, nil
	}
	v := meta.Get(boltVersionKey)
	if v == nil {
		return 0, nil
	}
	version, err := strconv.Atoi(string(v))
	if err != nil {
		return 0, fmt.Errorf("corrupt schema version %q: %w", v, err)
	}
	return version, nil
}

func (s *boltSchemaTx) SetVersion(version int) error {
	meta, err := s.tx.CreateBucketIfNotExists(boltMetaBucket)
	if err != nil {
		return err
	}
	return meta.Put(boltVersionKey, []byte(strconv.Itoa(version)))
}

func (s *boltSchemaTx) HasObjectStore(name string) (bool, error) {
	if isBoltReserved(name) {
		return false, nil
	}
	return s.tx.Bucket([]byte(name)) != nil, nil
}

func (s *boltSchemaTx) CreateObjectStore(name string) error {
	if isBoltReserved(name) {
		return fmt.Errorf("object store name %q is reserved", name)
	}
	_, err := s.tx.CreateBucket([]byte(name))
	return err
}

func isBoltReserved(name string) bool {
	return bytes.Equal([]byte(name), boltMetaBucket)
}

// boltTx is a light wrapper around a boltdb transaction. It implements port.Tx.
type boltTx struct {
	tx *bolt.Tx
}

func (tx *boltTx) Bucket(name string) (port.Bucket, error) {
	if isBoltReserved(name) {
		return nil, fmt.Errorf("%w: %s", port.ErrObjectStoreNotFound, name)
	}
	b := tx.tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("%w: %s", port.ErrObjectStoreNotFound, name)
	}
	return &boltBucket{bucket: b}, nil
}

type boltBucket struct {
	bucket *bolt.Bucket
}

func (b *boltBucket) Get(key []byte) ([]byte, error) {
	val := b.bucket.Get(key)
	if val == nil {
		return nil, port.ErrKeyNotFound
	}
	return val, nil
}

func (b *boltBucket) ForEach(fn func(key, value []byte) error) error {
	return b.bucket.ForEach(fn)
}

func (b *boltBucket) Insert(key, value []byte) error {
	if b.bucket.Get(key) != nil {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateKey, key)
	}
	return b.Put(key, value)
}

func (b *boltBucket) Put(key, value []byte) error {
	return boltErr(b.bucket.Put(key, value))
}

func (b *boltBucket) Delete(key []byte) error {
	return boltErr(b.bucket.Delete(key))
}

func boltErr(err error) error {
	if errors.Is(err, bolt.ErrTxNotWritable) {
		return port.ErrTxNotWritable
	}
	return err
}
