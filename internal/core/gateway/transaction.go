package gateway

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/rl1809/whiskey-cellar/internal/port"
)

type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "readwrite"
	}
	return "readonly"
}

// Entry is one key/value pair returned by GetAll.
type Entry struct {
	Key   string
	Value []byte
}

type operation struct {
	run   func(b port.Bucket) error
	abort func(err error)
}

// Transaction groups requests against one object store. Requests are queued
// until Commit hands the transaction to the dispatcher; they then run inside a
// single backend transaction and either all commit or none do.
type Transaction struct {
	gw    *Gateway
	ctx   context.Context
	store string
	mode  Mode

	mu       sync.Mutex
	ops      []operation
	active   bool
	finished bool
	onError  []func(error)
	err      error
	done     chan struct{}
}

func newTransaction(gw *Gateway, ctx context.Context, store string, mode Mode) *Transaction {
	return &Transaction{
		gw:     gw,
		ctx:    ctx,
		store:  store,
		mode:   mode,
		active: true,
		done:   make(chan struct{}),
	}
}

func (tx *Transaction) Store() string { return tx.store }

func (tx *Transaction) Mode() Mode { return tx.mode }

func (tx *Transaction) enqueue(op operation) bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if !tx.active {
		return false
	}
	tx.ops = append(tx.ops, op)
	return true
}

// Get resolves to nil when key is absent.
func (tx *Transaction) Get(key string) *Request[[]byte] {
	return Do(tx, func(b port.Bucket) ([]byte, error) {
		if key == "" {
			return nil, port.ErrInvalidKey
		}
		v, err := b.Get([]byte(key))
		if errors.Is(err, port.ErrKeyNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return bytes.Clone(v), nil
	})
}

// GetAll resolves to every entry of the object store in key order.
func (tx *Transaction) GetAll() *Request[[]Entry] {
	return Do(tx, func(b port.Bucket) ([]Entry, error) {
		entries := []Entry{}
		err := b.ForEach(func(k, v []byte) error {
			entries = append(entries, Entry{Key: string(k), Value: bytes.Clone(v)})
			return nil
		})
		if err != nil {
			return nil, err
		}
		return entries, nil
	})
}

// Add inserts value and fails with domain.ErrDuplicateKey if key exists.
func (tx *Transaction) Add(key string, value []byte) *Request[struct{}] {
	return Do(tx, func(b port.Bucket) (struct{}, error) {
		if key == "" {
			return struct{}{}, port.ErrInvalidKey
		}
		return struct{}{}, b.Insert([]byte(key), value)
	})
}

// Put inserts or replaces value.
func (tx *Transaction) Put(key string, value []byte) *Request[struct{}] {
	return Do(tx, func(b port.Bucket) (struct{}, error) {
		if key == "" {
			return struct{}{}, port.ErrInvalidKey
		}
		return struct{}{}, b.Put([]byte(key), value)
	})
}

// Delete removes key. Deleting an absent key succeeds.
func (tx *Transaction) Delete(key string) *Request[struct{}] {
	return Do(tx, func(b port.Bucket) (struct{}, error) {
		if key == "" {
			return struct{}{}, port.ErrInvalidKey
		}
		return struct{}{}, b.Delete([]byte(key))
	})
}

// OnError registers a failure handler. Handlers run on the dispatcher before
// Done is closed and must not block.
func (tx *Transaction) OnError(fn func(err error)) {
	tx.mu.Lock()
	if !tx.finished {
		tx.onError = append(tx.onError, fn)
		tx.mu.Unlock()
		return
	}
	err := tx.err
	tx.mu.Unlock()

	if err != nil {
		fn(err)
	}
}

// Commit submits the transaction. Requests made afterwards fail with
// ErrTransactionInactive. Committing twice is a no-op.
func (tx *Transaction) Commit() {
	tx.mu.Lock()
	if !tx.active {
		tx.mu.Unlock()
		return
	}
	tx.active = false
	tx.mu.Unlock()

	tx.gw.submit(tx)
}

// Done is closed once the transaction committed or aborted.
func (tx *Transaction) Done() <-chan struct{} {
	return tx.done
}

// Err is nil until Done is closed, then nil on commit or the abort error.
func (tx *Transaction) Err() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.err
}

func (tx *Transaction) Wait(ctx context.Context) error {
	select {
	case <-tx.done:
		return tx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (tx *Transaction) finish(err error) {
	for _, op := range tx.ops {
		op.abort(err)
	}

	tx.mu.Lock()
	tx.err = err
	tx.finished = true
	handlers := tx.onError
	tx.onError = nil
	tx.mu.Unlock()

	if err != nil {
		for _, h := range handlers {
			h(err)
		}
	}
	close(tx.done)
}
