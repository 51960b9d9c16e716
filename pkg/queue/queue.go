// Package queue serializes transport operations onto a single consumer.
//
// Producers may submit from any goroutine. A producer that needs several
// operations to reach the wire back to back (a command header followed by
// image lines) holds the submit lock for the whole sequence; the consumer
// then runs them contiguously because nobody else could enqueue in between.
package queue

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var ErrStopped = errors.New("queue stopped")

type Op func() error

type Entry struct {
	ID   xid.ID
	Name string
	Op   Op
	done chan error
}

func New(size int, logger *zap.Logger) *Queue {
	q := &Queue{
		entries: make(chan *Entry, size),
		exited:  make(chan struct{}),
		logger:  logger,
	}
	go q.consume()
	return q
}

type Queue struct {
	// submit is the per-handle mutex held across multi-frame submission.
	submit sync.Mutex
	// state guards entries against a concurrent close.
	state   sync.RWMutex
	stopped atomic.Bool
	entries chan *Entry
	exited  chan struct{}

	executed atomic.Int64
	failed   atomic.Int64

	logger *zap.Logger
}

// Lock takes the submit lock. Everything enqueued until Unlock runs
// contiguously.
func (q *Queue) Lock() {
	q.submit.Lock()
}

func (q *Queue) Unlock() {
	q.submit.Unlock()
}

// Enqueue appends an operation. The caller must hold the submit lock when it
// is part of a multi-operation sequence.
func (q *Queue) Enqueue(name string, op Op) error {
	_, err := q.enqueue(name, op, false)
	return err
}

// Submit enqueues a single operation under the submit lock.
func (q *Queue) Submit(name string, op Op) error {
	q.Lock()
	defer q.Unlock()
	return q.Enqueue(name, op)
}

// Batch enqueues ops as one uninterrupted run.
func (q *Queue) Batch(name string, ops ...Op) error {
	q.Lock()
	defer q.Unlock()

	for _, op := range ops {
		if err := q.Enqueue(name, op); err != nil {
			return err
		}
	}
	return nil
}

// Call enqueues op and waits until the consumer has run it, returning its
// error. Used by flows that need the device's reply.
func (q *Queue) Call(name string, op Op) error {
	q.Lock()
	e, err := q.enqueue(name, op, true)
	q.Unlock()
	if err != nil {
		return err
	}
	return <-e.done
}

func (q *Queue) enqueue(name string, op Op, wait bool) (*Entry, error) {
	q.state.RLock()
	defer q.state.RUnlock()

	if q.stopped.Load() {
		return nil, ErrStopped
	}

	e := &Entry{ID: xid.New(), Name: name, Op: op}
	if wait {
		e.done = make(chan error, 1)
	}
	q.entries <- e
	return e, nil
}

func (q *Queue) consume() {
	defer close(q.exited)

	for e := range q.entries {
		err := e.Op()
		q.executed.Inc()
		if err != nil {
			q.failed.Inc()
			q.logger.With(
				zap.String("id", e.ID.String()),
				zap.String("op", e.Name),
				zap.Error(err),
			).Warn("queued operation failed")
		}
		if e.done != nil {
			e.done <- err
		}
	}
}

// Stop refuses new operations, waits for an in-progress batch to finish
// enqueueing, then runs everything already queued before returning. ctx only
// bounds the wait; queued operations are never discarded.
func (q *Queue) Stop(ctx context.Context) error {
	q.submit.Lock()
	q.state.Lock()
	if !q.stopped.Load() {
		q.stopped.Store(true)
		close(q.entries)
	}
	q.state.Unlock()
	q.submit.Unlock()

	select {
	case <-q.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Stopped() bool {
	return q.stopped.Load()
}

// Pending is the number of queued, not yet executed operations.
func (q *Queue) Pending() int {
	return len(q.entries)
}

func (q *Queue) Executed() int64 {
	return q.executed.Load()
}

func (q *Queue) Failed() int64 {
	return q.failed.Load()
}
