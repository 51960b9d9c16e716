package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) op(name string) Op {
	return func() error {
		r.mu.Lock()
		r.got = append(r.got, name)
		r.mu.Unlock()
		// give the other producer a chance to slip in if it could
		time.Sleep(time.Microsecond)
		return nil
	}
}

func (r *recorder) joined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.got, ",")
}

func TestBatchesNeverInterleave(t *testing.T) {
	for i := 0; i < 50; i++ {
		q := New(2, zap.NewNop())
		rec := &recorder{}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, q.Batch("a", rec.op("a1"), rec.op("a2"), rec.op("a3")))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, q.Batch("b", rec.op("b1"), rec.op("b2")))
		}()
		wg.Wait()
		require.NoError(t, q.Stop(context.Background()))

		got := rec.joined()
		assert.Contains(t, []string{"a1,a2,a3,b1,b2", "b1,b2,a1,a2,a3"}, got)
	}
}

func TestManualLockKeepsSequenceTogether(t *testing.T) {
	q := New(1, zap.NewNop())
	rec := &recorder{}

	q.Lock()
	require.NoError(t, q.Enqueue("header", rec.op("h")))

	other := make(chan struct{})
	go func() {
		_ = q.Submit("other", rec.op("x"))
		close(other)
	}()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue("line", rec.op(fmt.Sprintf("l%d", i))))
	}
	q.Unlock()

	<-other
	require.NoError(t, q.Stop(context.Background()))
	assert.Equal(t, "h,l0,l1,l2,l3,l4,x", rec.joined())
}

func TestStopDrainsQueuedEntries(t *testing.T) {
	q := New(100, zap.NewNop())
	rec := &recorder{}

	block, started := make(chan struct{}), make(chan struct{})
	require.NoError(t, q.Submit("block", func() error { close(started); <-block; return nil }))
	<-started
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Submit("n", rec.op(fmt.Sprint(i))))
	}
	assert.Equal(t, 10, q.Pending())

	stopped := make(chan error)
	go func() { stopped <- q.Stop(context.Background()) }()

	close(block)
	require.NoError(t, <-stopped)
	assert.Equal(t, "0,1,2,3,4,5,6,7,8,9", rec.joined())
	assert.Equal(t, int64(11), q.Executed())
	assert.Zero(t, q.Pending())

	assert.ErrorIs(t, q.Submit("late", rec.op("late")), ErrStopped)
	assert.True(t, q.Stopped())
	// stopping twice is harmless
	assert.NoError(t, q.Stop(context.Background()))
}

func TestCallReturnsOperationError(t *testing.T) {
	q := New(4, zap.NewNop())
	defer func() { _ = q.Stop(context.Background()) }()

	boom := errors.New("boom")
	assert.Equal(t, boom, q.Call("fail", func() error { return boom }))
	assert.NoError(t, q.Call("ok", func() error { return nil }))
	assert.Equal(t, int64(1), q.Failed())
}

func TestStopHonorsContext(t *testing.T) {
	q := New(4, zap.NewNop())
	block := make(chan struct{})
	require.NoError(t, q.Submit("block", func() error { <-block; return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Stop(ctx), context.DeadlineExceeded)

	close(block)
	assert.NoError(t, q.Stop(context.Background()))
}
