// Package gateway owns the connection to the object store backend. It runs
// schema migrations on open and executes transactions one at a time on a
// single dispatcher goroutine, so there is never more than one in-flight
// mutation.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rl1809/whiskey-cellar/internal/core/domain"
	"github.com/rl1809/whiskey-cellar/internal/port"
)

const defaultQueueSize = 64

var (
	// ErrVersion is returned when the stored schema is newer than requested.
	ErrVersion = errors.New("requested version is lower than the stored version")
	// ErrTransactionInactive is returned for requests made after Commit.
	ErrTransactionInactive = errors.New("transaction is not active")
)

type Gateway struct {
	kv      port.KVStore
	name    string
	version int
	logger  *zap.Logger
	metrics *metrics

	queueSize int
	queue     chan *Transaction
	mu        sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
}

type Option func(*Gateway)

func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithRegisterer registers the gateway metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(g *Gateway) {
		g.metrics = newMetrics(reg)
	}
}

func WithQueueSize(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.queueSize = n
		}
	}
}

// Open brings the database behind kv to version and starts the dispatcher.
// Opening an already migrated database at the same version changes nothing.
func Open(ctx context.Context, kv port.KVStore, name string, version int, migrations []Migration, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		kv:        kv,
		name:      name,
		version:   version,
		logger:    zap.NewNop(),
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = newMetrics(nil)
	}

	if kv == nil {
		return nil, fmt.Errorf("%w: %s has no backend", domain.ErrStoreUnavailable, name)
	}
	if version < 1 {
		return nil, fmt.Errorf("%w: invalid version %d", domain.ErrStoreUnavailable, version)
	}

	err := kv.Upgrade(ctx, func(s port.SchemaTx) error {
		current, err := s.Version()
		if err != nil {
			return err
		}
		if current > version {
			return fmt.Errorf("%w: stored %d, requested %d", ErrVersion, current, version)
		}
		if current == version {
			return nil
		}
		if err := Migrate(s, current, version, migrations); err != nil {
			return err
		}
		if err := s.SetVersion(version); err != nil {
			return err
		}
		g.logger.Info("Database upgraded",
			zap.String("database", name),
			zap.Int("old_version", current),
			zap.Int("new_version", version))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s v%d: %w", domain.ErrStoreUnavailable, name, version, err)
	}

	g.queue = make(chan *Transaction, g.queueSize)
	g.wg.Add(1)
	go g.run()

	g.logger.Info("Database opened", zap.String("database", name), zap.Int("version", version))
	return g, nil
}

func (g *Gateway) Name() string { return g.name }

func (g *Gateway) Version() int { return g.version }

// Begin returns a transaction scoped to the object store named store. The
// transaction logs its failure through the gateway logger; callers can add
// handlers with OnError. Nothing runs until Commit.
func (g *Gateway) Begin(ctx context.Context, store string, mode Mode) *Transaction {
	tx := newTransaction(g, ctx, store, mode)
	tx.OnError(func(err error) {
		g.logger.Warn("Transaction failed",
			zap.String("store", store),
			zap.Stringer("mode", mode),
			zap.Error(err))
	})
	return tx
}

func (g *Gateway) submit(tx *Transaction) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		tx.finish(fmt.Errorf("%w: %w", domain.ErrTransactionAborted, domain.ErrStoreUnavailable))
		return
	}
	g.metrics.queueDepth.Inc()
	g.queue <- tx
}

func (g *Gateway) run() {
	defer g.wg.Done()
	for tx := range g.queue {
		g.metrics.queueDepth.Dec()
		g.execute(tx)
	}
}

func (g *Gateway) execute(tx *Transaction) {
	start := time.Now()

	fn := func(t port.Tx) error {
		b, err := t.Bucket(tx.store)
		if err != nil {
			return err
		}
		for _, op := range tx.ops {
			if err := op.run(b); err != nil {
				return err
			}
		}
		return nil
	}

	// A transaction that started always runs to completion.
	ctx := context.WithoutCancel(tx.ctx)

	var err error
	if tx.mode == ReadWrite {
		err = g.kv.Update(ctx, fn)
	} else {
		err = g.kv.View(ctx, fn)
	}
	if err != nil {
		err = fmt.Errorf("%w: %s %s: %w", domain.ErrTransactionAborted, tx.mode, tx.store, err)
	}

	g.metrics.observe(tx.mode, err, time.Since(start))
	tx.finish(err)
}

// Close stops accepting transactions, waits for queued ones and closes the
// backend.
func (g *Gateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	close(g.queue)
	g.mu.Unlock()

	g.wg.Wait()
	g.logger.Info("Database closed", zap.String("database", g.name))
	return g.kv.Close()
}
