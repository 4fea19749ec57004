package port

import (
	"context"
	"errors"
)

var (
	ErrKeyNotFound         = errors.New("key not found")
	ErrInvalidKey          = errors.New("invalid key")
	ErrTxNotWritable       = errors.New("transaction is not writable")
	ErrObjectStoreNotFound = errors.New("object store not found")
)

// KVStore is a transactional key value store holding named object stores.
// It is modeled after the boltdb database struct.
type KVStore interface {
	// Upgrade runs fn in a single write transaction that may change the schema
	Upgrade(ctx context.Context, fn func(tx SchemaTx) error) error

	// View runs fn in a read-only transaction
	View(ctx context.Context, fn func(tx Tx) error) error

	// Update runs fn in a read-write transaction, rolled back when fn returns an error
	Update(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}

type SchemaTx interface {
	Version() (int, error)
	SetVersion(version int) error
	HasObjectStore(name string) (bool, error)
	CreateObjectStore(name string) error
}

type Tx interface {
	// Bucket returns ErrObjectStoreNotFound if the object store was never created
	Bucket(name string) (Bucket, error)
}

type Bucket interface {
	// Get returns ErrKeyNotFound when the key is absent
	Get(key []byte) ([]byte, error)

	// ForEach visits every pair in ascending byte order of keys
	ForEach(fn func(key, value []byte) error) error

	// Insert fails with domain.ErrDuplicateKey if the key already exists
	Insert(key, value []byte) error

	// Put inserts or replaces the value at key
	Put(key, value []byte) error

	// Delete removes key; absent keys are not an error
	Delete(key []byte) error
}
