package feed

import (
	"github.com/pawelekbyra/gridfeed/internal/ledger"
	"github.com/pawelekbyra/gridfeed/internal/scroll"
)

// EventKind names a controller notification.
type EventKind string

const (
	EventColumnsLoaded  EventKind = "columns_loaded"
	EventColumnsFailed  EventKind = "columns_failed"
	EventColumnSelected EventKind = "column_selected"
	EventPageMerged     EventKind = "page_merged"
	EventFetchFailed    EventKind = "fetch_failed"
	EventExhausted      EventKind = "exhausted"
	EventLooped         EventKind = "looped"
	EventJumped         EventKind = "jumped"
	EventMutation       EventKind = "mutation"
	EventCommentsLoaded EventKind = "comments_loaded"
	EventCommentsFailed EventKind = "comments_failed"
)

// Event is delivered to subscribers on the event loop.
type Event struct {
	Kind     EventKind
	Column   int
	Count    int
	Position int
	ItemID   string
	Jump     *scroll.Jump
	Outcome  *ledger.Outcome
	Err      error
}

// Subscribe registers fn for every event and returns a function that
// removes it.
func (c *Controller) Subscribe(fn func(Event)) func() {
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() { delete(c.subs, id) }
}

func (c *Controller) emit(ev Event) {
	for id := 0; id < c.nextSub; id++ {
		if fn, ok := c.subs[id]; ok {
			fn(ev)
		}
	}
}
