package feed

import (
	"context"
	"time"

	"github.com/pawelekbyra/gridfeed/internal/eventloop"
)

// pollInterval paces waits that have no completion to block on.
const pollInterval = 10 * time.Millisecond

// Runner drives a Controller on an event loop and lets callers block until
// an operation has completed. It must not be used from the loop goroutine.
type Runner struct {
	ctl  *Controller
	loop *eventloop.Loop
}

// NewRunner pairs ctl with the loop that owns it.
func NewRunner(ctl *Controller, loop *eventloop.Loop) *Runner {
	return &Runner{ctl: ctl, loop: loop}
}

// Controller returns the wrapped controller. Only touch it on the loop.
func (r *Runner) Controller() *Controller {
	return r.ctl
}

// Do runs fn against the controller on the loop and waits for it.
func (r *Runner) Do(ctx context.Context, fn func(*Controller)) error {
	return r.loop.Do(ctx, func() { fn(r.ctl) })
}

func (r *Runner) await(ctx context.Context, result <-chan error) error {
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadColumns lists the populated columns and waits for the answer.
func (r *Runner) LoadColumns(ctx context.Context) ([]int, error) {
	result := make(chan error, 1)
	var cols []int
	err := r.loop.Do(ctx, func() {
		r.ctl.loadColumns(func(c []int, err error) {
			cols = c
			result <- err
		})
	})
	if err != nil {
		return nil, err
	}
	if err := r.await(ctx, result); err != nil {
		return nil, err
	}
	return cols, nil
}

// FetchNext requests the next page of column and waits for it to merge.
func (r *Runner) FetchNext(ctx context.Context, column int) (FetchStatus, error) {
	result := make(chan error, 1)
	var status FetchStatus
	err := r.loop.Do(ctx, func() {
		status = r.ctl.fetchNext(column, func(err error) { result <- err })
	})
	if err != nil {
		return status, err
	}
	if status != FetchStarted {
		return status, nil
	}
	return status, r.await(ctx, result)
}

// FetchAll pages column to exhaustion and returns the number of pages
// fetched. The first error stops it; the cursor stays at the failed page.
func (r *Runner) FetchAll(ctx context.Context, column int) (int, error) {
	pages := 0
	for {
		status, err := r.FetchNext(ctx, column)
		if err != nil {
			return pages, err
		}
		switch status {
		case FetchDone:
			return pages, nil
		case FetchStarted:
			pages++
		case FetchBusy:
			select {
			case <-time.After(pollInterval):
			case <-ctx.Done():
				return pages, ctx.Err()
			}
		}
	}
}

// LoadComments fetches an item's comments and waits for them to load.
func (r *Runner) LoadComments(ctx context.Context, itemID string) error {
	result := make(chan error, 1)
	var syncErr error
	err := r.loop.Do(ctx, func() {
		syncErr = r.ctl.loadComments(itemID, func(err error) { result <- err })
	})
	if err != nil {
		return err
	}
	if syncErr != nil {
		return syncErr
	}
	return r.await(ctx, result)
}

// Settle waits until no optimistic mutation is pending.
func (r *Runner) Settle(ctx context.Context) error {
	for {
		var pending int
		if err := r.Do(ctx, func(c *Controller) { pending = c.Pending() }); err != nil {
			return err
		}
		if pending == 0 {
			return nil
		}
		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
