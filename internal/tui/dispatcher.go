package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pawelekbyra/gridfeed/internal/eventloop"
	"github.com/pawelekbyra/gridfeed/internal/model"
)

// Dispatcher runs collaborator calls as tea commands. Completions come back
// as messages, so they execute inside Update like every other handler.
// It satisfies ledger.Dispatcher.
type Dispatcher struct {
	timeout time.Duration
	queue   []tea.Cmd
}

// NewDispatcher creates a dispatcher bounding each call by timeout.
// A non-positive timeout uses eventloop.DefaultTimeout.
func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = eventloop.DefaultTimeout
	}
	return &Dispatcher{timeout: timeout}
}

// callDoneMsg carries a finished call back to Update.
type callDoneMsg struct {
	op   string
	done func(error)
	err  error
}

// Dispatch queues the call. It starts once Flush hands it to the program.
func (d *Dispatcher) Dispatch(op string, call func(context.Context) error, done func(error)) {
	timeout := d.timeout
	d.queue = append(d.queue, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		result := make(chan error, 1)
		go func() { result <- call(ctx) }()

		select {
		case err := <-result:
			return callDoneMsg{op: op, done: done, err: err}
		case <-ctx.Done():
			return callDoneMsg{op: op, done: done, err: model.NewTimeoutError(op, ctx.Err())}
		}
	})
}

// Flush returns the queued calls as one command, or nil if none.
func (d *Dispatcher) Flush() tea.Cmd {
	if len(d.queue) == 0 {
		return nil
	}
	cmds := d.queue
	d.queue = nil
	return tea.Batch(cmds...)
}

// Queued returns the number of calls waiting for Flush.
func (d *Dispatcher) Queued() int {
	return len(d.queue)
}
