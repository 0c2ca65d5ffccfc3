package eventloop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

func quietLoop(opts ...Option) *Loop {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(opts...)
}

func startLoop(t *testing.T, l *Loop) {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- l.Run(context.Background()) }()
	t.Cleanup(func() {
		l.Stop()
		select {
		case err := <-errc:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("loop did not stop")
		}
	})
}

func TestQueue_FIFO(t *testing.T) {
	q := newTaskQueue()
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		require.True(t, q.Enqueue(func() { order = append(order, i) }))
	}
	assert.Equal(t, 3, q.Len())

	for {
		fn, ok := q.TryDequeue()
		if !ok {
			break
		}
		fn()
	}
	assert.Equal(t, []int{1, 2, 3}, order)

	q.Close()
	q.Close()
	assert.False(t, q.Enqueue(func() {}))
	assert.True(t, q.Closed())
}

func TestRun_DrainsQueuedTurnsOnStop(t *testing.T) {
	l := quietLoop()
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		l.Post(func() { order = append(order, i) })
	}
	l.Stop()

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.False(t, l.Post(func() {}))
}

func TestRun_ContextCancel(t *testing.T) {
	l := quietLoop()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRun_SurvivesPanickingTurn(t *testing.T) {
	l := quietLoop()
	startLoop(t, l)

	l.Post(func() { panic("boom") })
	ran := false
	require.NoError(t, l.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestDo_StoppedLoop(t *testing.T) {
	l := quietLoop()
	l.Stop()
	assert.ErrorIs(t, l.Do(context.Background(), func() {}), ErrStopped)
}

func TestDispatch_DeliversOnLoop(t *testing.T) {
	l := quietLoop()
	startLoop(t, l)

	got := make(chan error, 1)
	var calls int32
	l.Dispatch("toggle_like", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, func(err error) { got <- err })

	select {
	case err := <-got:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("completion not delivered")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDispatch_PropagatesError(t *testing.T) {
	l := quietLoop()
	startLoop(t, l)

	boom := errors.New("boom")
	got := make(chan error, 1)
	l.Dispatch("post_comment", func(ctx context.Context) error { return boom }, func(err error) { got <- err })

	select {
	case err := <-got:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("completion not delivered")
	}
}

func TestDispatch_TimeoutResolvesOnce(t *testing.T) {
	l := quietLoop(WithTimeout(20 * time.Millisecond))
	startLoop(t, l)

	release := make(chan struct{})
	var deliveries int32
	got := make(chan error, 2)
	l.Dispatch("fetch_page", func(ctx context.Context) error {
		<-release
		return nil
	}, func(err error) {
		atomic.AddInt32(&deliveries, 1)
		got <- err
	})

	select {
	case err := <-got:
		assert.True(t, model.IsTimeout(err))
	case <-time.After(2 * time.Second):
		t.Fatal("timeout not delivered")
	}

	close(release)
	// Flush the loop; a late second delivery would be queued before this.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&deliveries))
}

func TestDispatch_CallSeesCancellationOnTimeout(t *testing.T) {
	l := quietLoop(WithTimeout(10 * time.Millisecond))
	startLoop(t, l)

	cancelled := make(chan struct{})
	done := make(chan struct{})
	l.Dispatch("get_comments", func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}, func(error) { close(done) })

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("call context was not cancelled")
	}
	<-done
}
