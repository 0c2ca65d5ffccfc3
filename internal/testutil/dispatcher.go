package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

// ManualDispatcher holds dispatched collaborator calls until the test
// releases them. It satisfies ledger.Dispatcher.
//
// This lets tests observe the optimistic state between apply and
// confirmation, and decide the order in which in-flight calls resolve.
// Calls and completions both run on the test goroutine, so the dispatcher
// reproduces the single event-loop model without any real concurrency.
type ManualDispatcher struct {
	mu      sync.Mutex
	pending []*PendingCall
}

// PendingCall is a dispatched call that has not resolved yet.
type PendingCall struct {
	Op   string
	call func(context.Context) error
	done func(error)

	// ran is set once call has executed with its completion still held.
	ran    bool
	result error
}

func (p *PendingCall) resolve() {
	if !p.ran {
		p.result = p.call(context.Background())
	}
	p.done(p.result)
}

// NewManualDispatcher creates an empty dispatcher.
func NewManualDispatcher() *ManualDispatcher {
	return &ManualDispatcher{}
}

// Dispatch records the call without running it.
func (d *ManualDispatcher) Dispatch(op string, call func(context.Context) error, done func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, &PendingCall{Op: op, call: call, done: done})
}

// Pending returns the number of unresolved calls.
func (d *ManualDispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Ops lists the operations of unresolved calls in dispatch order.
func (d *ManualDispatcher) Ops() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ops := make([]string, len(d.pending))
	for i, p := range d.pending {
		ops[i] = p.Op
	}
	return ops
}

func (d *ManualDispatcher) take(i int) (*PendingCall, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.pending) {
		return nil, false
	}
	p := d.pending[i]
	d.pending = append(d.pending[:i], d.pending[i+1:]...)
	return p, true
}

// RunNext executes the oldest pending call and delivers its completion.
// Returns false if nothing was pending.
func (d *ManualDispatcher) RunNext() bool {
	p, ok := d.take(0)
	if !ok {
		return false
	}
	p.resolve()
	return true
}

// RunAll drains pending calls, including calls dispatched by completions.
// Returns the number of calls run.
func (d *ManualDispatcher) RunAll() int {
	n := 0
	for d.RunNext() {
		n++
	}
	return n
}

// FailNext resolves the oldest pending call with err without running it.
func (d *ManualDispatcher) FailNext(err error) bool {
	p, ok := d.take(0)
	if !ok {
		return false
	}
	p.done(err)
	return true
}

// TimeoutNext resolves the oldest pending call as a timeout, the way the
// event loop does when a call outlives its bound.
func (d *ManualDispatcher) TimeoutNext() bool {
	p, ok := d.take(0)
	if !ok {
		return false
	}
	p.done(model.NewTimeoutError(p.Op, context.DeadlineExceeded))
	return true
}

// RunOp runs the oldest pending call for op, leaving others queued.
func (d *ManualDispatcher) RunOp(op string) error {
	d.mu.Lock()
	idx := -1
	for i, p := range d.pending {
		if p.Op == op {
			idx = i
			break
		}
	}
	d.mu.Unlock()
	if idx < 0 {
		return fmt.Errorf("no pending call for %s", op)
	}
	p, _ := d.take(idx)
	p.resolve()
	return nil
}

// CallOp executes the oldest not yet executed call for op against the
// collaborator but holds its completion. A later RunNext, RunOp or RunAll
// delivers the recorded result.
func (d *ManualDispatcher) CallOp(op string) error {
	d.mu.Lock()
	var p *PendingCall
	for _, c := range d.pending {
		if c.Op == op && !c.ran {
			p = c
			break
		}
	}
	d.mu.Unlock()
	if p == nil {
		return fmt.Errorf("no pending call for %s", op)
	}
	p.result = p.call(context.Background())
	p.ran = true
	return nil
}

// ErrInjected is the default error used by failure injection.
var ErrInjected = errors.New("injected failure")
