// Package eventloop runs every feed handler on one goroutine.
//
// The grid, the comment board, the ledger and the scroll controllers are
// not locked. They stay consistent because only the loop goroutine touches
// them: callers post handler turns, and collaborator calls run on their own
// goroutines and post their completion back as another turn. A turn is
// never preempted, so intervening events always observe whole state.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

// DefaultTimeout bounds a dispatched collaborator call.
const DefaultTimeout = 5 * time.Second

// ErrStopped is returned when posting to a stopped loop.
var ErrStopped = errors.New("event loop stopped")

// Loop is a single-writer event loop.
type Loop struct {
	queue   *taskQueue
	timeout time.Duration
	logger  *slog.Logger

	// base is cancelled by Stop so abandoned calls do not linger.
	base   context.Context
	cancel context.CancelFunc
}

// Option configures a Loop.
type Option func(*Loop)

// WithTimeout bounds dispatched calls. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d >= 0 {
			l.timeout = d
		}
	}
}

// WithLogger sets the loop's logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Loop) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// New creates a stopped-until-Run loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		queue:   newTaskQueue(),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	l.base, l.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Timeout returns the dispatch bound.
func (l *Loop) Timeout() time.Duration {
	return l.timeout
}

// Post queues fn to run on the loop. Safe from any goroutine.
func (l *Loop) Post(fn func()) bool {
	return l.queue.Enqueue(fn)
}

// Len returns the number of queued turns.
func (l *Loop) Len() int {
	return l.queue.Len()
}

// Run executes queued turns until ctx is cancelled or Stop is called. After
// Stop, turns already queued are drained before Run returns nil.
func (l *Loop) Run(ctx context.Context) error {
	for {
		for {
			fn, ok := l.queue.TryDequeue()
			if !ok {
				break
			}
			if err := l.runTurn(fn); err != nil {
				l.logger.Error("handler panicked", "error", err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		if l.queue.Closed() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.queue.Wait():
			// A closed signal channel fires immediately; the next
			// iteration drains and then returns.
		}
	}
}

func (l *Loop) runTurn(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}

// Stop rejects new turns, cancels in-flight calls and lets Run return once
// the queue is drained.
func (l *Loop) Stop() {
	l.queue.Close()
	l.cancel()
}

// Do runs fn on the loop and waits for it. It must not be called from the
// loop goroutine itself.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch runs call on its own goroutine and posts done to the loop with
// the result, exactly once. A call still running after the timeout is
// abandoned: done receives a TIMEOUT error and the late result is dropped.
func (l *Loop) Dispatch(op string, call func(ctx context.Context) error, done func(err error)) {
	ctx := l.base
	cancel := context.CancelFunc(func() {})
	if l.timeout > 0 {
		ctx, cancel = context.WithTimeout(l.base, l.timeout)
	}

	go func() {
		defer cancel()
		result := make(chan error, 1)
		go func() {
			result <- call(ctx)
		}()

		var err error
		select {
		case err = <-result:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = model.NewTimeoutError(op, ctx.Err())
			} else {
				err = ctx.Err()
			}
			l.logger.Warn("collaborator call abandoned", "op", op, "error", err)
		}

		if !l.Post(func() { done(err) }) {
			l.logger.Debug("completion dropped after stop", "op", op)
		}
	}()
}
