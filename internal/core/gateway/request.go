package gateway

import (
	"context"
	"sync"

	"github.com/rl1809/whiskey-cellar/internal/port"
)

// Request is the pending result of one operation queued on a Transaction.
//
// The operation result is resolved first; the owning transaction completes
// afterwards. Callers that depend on committed state must use Wait.
type Request[T any] struct {
	tx   *Transaction
	done chan struct{}

	mu       sync.Mutex
	resolved bool
	value    T
	err      error
	next     []func(T, error)
}

func newRequest[T any](tx *Transaction) *Request[T] {
	return &Request[T]{tx: tx, done: make(chan struct{})}
}

// Do queues fn as a single operation of tx. fn runs on the dispatcher inside
// the backend transaction; slices handed to it by the bucket are only valid
// until it returns. An error from fn aborts the whole transaction.
func Do[T any](tx *Transaction, fn func(b port.Bucket) (T, error)) *Request[T] {
	req := newRequest[T](tx)
	ok := tx.enqueue(operation{
		run: func(b port.Bucket) error {
			v, err := fn(b)
			req.resolve(v, err)
			return err
		},
		abort: req.abort,
	})
	if !ok {
		req.abort(ErrTransactionInactive)
	}
	return req
}

// Map derives a request resolving to fn applied to req's value. It resolves
// right after req, still before the transaction completes. An error from req
// is passed on without calling fn; an error from fn fails only the derived
// request, never the transaction.
func Map[T, U any](req *Request[T], fn func(T) (U, error)) *Request[U] {
	out := newRequest[U](req.tx)
	req.then(func(v T, err error) {
		if err != nil {
			out.abort(err)
			return
		}
		out.resolve(fn(v))
	})
	return out
}

func (r *Request[T]) resolve(v T, err error) {
	r.mu.Lock()
	if r.resolved {
		r.mu.Unlock()
		return
	}
	r.resolved = true
	r.value = v
	r.err = err
	next := r.next
	r.next = nil
	close(r.done)
	r.mu.Unlock()

	for _, fn := range next {
		fn(v, err)
	}
}

// then runs fn once r resolved, on the goroutine that resolves it.
func (r *Request[T]) then(fn func(T, error)) {
	r.mu.Lock()
	if !r.resolved {
		r.next = append(r.next, fn)
		r.mu.Unlock()
		return
	}
	v, err := r.value, r.err
	r.mu.Unlock()
	fn(v, err)
}

func (r *Request[T]) abort(err error) {
	var zero T
	r.resolve(zero, err)
}

// Done is closed when the operation finished.
func (r *Request[T]) Done() <-chan struct{} {
	return r.done
}

// Result waits for the operation itself. A successful result can still be
// rolled back when a later operation of the same transaction fails.
func (r *Request[T]) Result(ctx context.Context) (T, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait blocks until the owning transaction completed and returns the value
// only if it committed.
func (r *Request[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	if err := r.tx.Wait(ctx); err != nil {
		return zero, err
	}
	<-r.done
	if r.err != nil {
		return zero, r.err
	}
	return r.value, nil
}

func (r *Request[T]) Transaction() *Transaction {
	return r.tx
}
