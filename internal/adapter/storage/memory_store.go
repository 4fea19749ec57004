package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rl1809/whiskey-cellar/internal/core/domain"
	"github.com/rl1809/whiskey-cellar/internal/port"
)

var _ port.KVStore = (*MemoryStore)(nil)

// MemoryStore keeps object stores in process memory. Write transactions work
// on a copy that replaces the live state only when fn succeeds.
type MemoryStore struct {
	mu     sync.RWMutex
	state  memoryState
	closed bool
}

type memoryState struct {
	version int
	stores  map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memoryState{stores: make(map[string]map[string][]byte)},
	}
}

func (s memoryState) clone() memoryState {
	c := memoryState{
		version: s.version,
		stores:  make(map[string]map[string][]byte, len(s.stores)),
	}
	for name, records := range s.stores {
		cp := make(map[string][]byte, len(records))
		for k, v := range records {
			cp[k] = v
		}
		c.stores[name] = cp
	}
	return c
}

func (m *MemoryStore) Upgrade(ctx context.Context, fn func(tx port.SchemaTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errMemoryClosed
	}
	next := m.state.clone()
	if err := fn(&memorySchemaTx{state: &next}); err != nil {
		return err
	}
	m.state = next
	return nil
}

func (m *MemoryStore) View(ctx context.Context, fn func(tx port.Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return errMemoryClosed
	}
	return fn(&memoryTx{state: &m.state})
}

func (m *MemoryStore) Update(ctx context.Context, fn func(tx port.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errMemoryClosed
	}
	next := m.state.clone()
	if err := fn(&memoryTx{state: &next, writable: true}); err != nil {
		return err
	}
	m.state = next
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var errMemoryClosed = fmt.Errorf("%w: memory store closed", domain.ErrStoreUnavailable)

type memorySchemaTx struct {
	state *memoryState
}

func (tx *memorySchemaTx) Version() (int, error) {
	return tx.state.version, nil
}

func (tx *memorySchemaTx) SetVersion(version int) error {
	tx.state.version = version
	return nil
}

func (tx *memorySchemaTx) HasObjectStore(name string) (bool, error) {
	_, ok := tx.state.stores[name]
	return ok, nil
}

func (tx *memorySchemaTx) CreateObjectStore(name string) error {
	if _, ok := tx.state.stores[name]; ok {
		return fmt.Errorf("object store %q already exists", name)
	}
	tx.state.stores[name] = make(map[string][]byte)
	return nil
}

type memoryTx struct {
	state    *memoryState
	writable bool
}

func (tx *memoryTx) Bucket(name string) (port.Bucket, error) {
	records, ok := tx.state.stores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrObjectStoreNotFound, name)
	}
	return &memoryBucket{records: records, writable: tx.writable}, nil
}

type memoryBucket struct {
	records  map[string][]byte
	writable bool
}

func (b *memoryBucket) Get(key []byte) ([]byte, error) {
	v, ok := b.records[string(key)]
	if !ok {
		return nil, port.ErrKeyNotFound
	}
	return v, nil
}

func (b *memoryBucket) ForEach(fn func(key, value []byte) error) error {
	keys := make([]string, 0, len(b.records))
	for k := range b.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := fn([]byte(k), b.records[k]); err != nil {
			return err
		}
	}
	return nil
}

func (b *memoryBucket) Insert(key, value []byte) error {
	if !b.writable {
		return port.ErrTxNotWritable
	}
	if _, ok := b.records[string(key)]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateKey, key)
	}
	b.records[string(key)] = append([]byte(nil), value...)
	return nil
}

func (b *memoryBucket) Put(key, value []byte) error {
	if !b.writable {
		return port.ErrTxNotWritable
	}
	b.records[string(key)] = append([]byte(nil), value...)
	return nil
}

func (b *memoryBucket) Delete(key []byte) error {
	if !b.writable {
		return port.ErrTxNotWritable
	}
	delete(b.records, string(key))
	return nil
}
