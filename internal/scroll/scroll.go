// Package scroll implements the looped vertical scroll of one column.
//
// A column that has been paged to exhaustion and holds at least one item is
// rendered as three back-to-back copies of its sequence, with the viewport
// parked on the middle copy. Two sentinels bound the middle copy. Scrolling
// above the top one jumps the position down by one copy; scrolling past the
// bottom one jumps it up by one copy. The viewer sees the same items at the
// same offset, so the seam is invisible.
//
// A jump produces a scroll event of its own, which would land next to the
// opposite sentinel. A settle window after every jump swallows sentinel
// crossings until the jump has taken effect.
package scroll

import (
	"fmt"
	"time"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

// DefaultSettleWindow is how long sentinel crossings are ignored after a jump.
const DefaultSettleWindow = 100 * time.Millisecond

// State is the lifecycle of a column's scroll.
type State int

const (
	// Paging means more pages may still arrive.
	Paging State = iota
	// ExhaustedNotLooped means the last page arrived but the surface has
	// not reported its item extent yet.
	ExhaustedNotLooped
	// Looped is terminal for the controller instance.
	Looped
)

func (s State) String() string {
	switch s {
	case Paging:
		return "PAGING"
	case ExhaustedNotLooped:
		return "EXHAUSTED_NOT_LOOPED"
	case Looped:
		return "LOOPED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Clock supplies the time used by the settle window.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Jump is a non-animated scroll-position correction.
type Jump struct {
	From  int `json:"from"`
	To    int `json:"to"`
	Delta int `json:"delta"`
}

// Controller tracks one column instance. It is not safe for concurrent use.
type Controller struct {
	state    State
	length   int
	extent   int
	position int

	settle   time.Duration
	clock    Clock
	lastJump time.Time
	jumped   bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(ctl *Controller) {
		if c != nil {
			ctl.clock = c
		}
	}
}

// WithSettleWindow overrides DefaultSettleWindow. Negative values are ignored.
func WithSettleWindow(d time.Duration) Option {
	return func(ctl *Controller) {
		if d >= 0 {
			ctl.settle = d
		}
	}
}

// New creates a controller in the Paging state.
func New(opts ...Option) *Controller {
	c := &Controller{
		state:  Paging,
		settle: DefaultSettleWindow,
		clock:  systemClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Length returns the number of items the loop is built over.
func (c *Controller) Length() int { return c.length }

// Extent returns the measured item extent, zero before Measure.
func (c *Controller) Extent() int { return c.extent }

// Position returns the last known scroll position.
func (c *Controller) Position() int { return c.position }

// MarkExhausted records that the column's final page has merged and the
// column holds n items. It only acts in Paging and reports whether the
// state changed.
func (c *Controller) MarkExhausted(n int) bool {
	if c.state != Paging {
		return false
	}
	if n < 0 {
		n = 0
	}
	c.length = n
	c.state = ExhaustedNotLooped
	return true
}

// Measure reports the render surface's item extent. When the column is
// exhausted and non-empty it enters Looped and returns the start of the
// middle copy as the position to scroll to. Otherwise ok is false and the
// call only records the extent for later.
func (c *Controller) Measure(extent int) (position int, ok bool) {
	if extent <= 0 || c.state == Looped {
		return c.position, false
	}
	c.extent = extent
	if c.state != ExhaustedNotLooped || c.length == 0 {
		return c.position, false
	}
	c.state = Looped
	c.position = c.span()
	return c.position, true
}

func (c *Controller) span() int {
	return c.length * c.extent
}

// OnScroll reports a scroll position. While looped, crossing a sentinel
// returns the jump to apply and moves the tracked position by it. Crossings
// inside the settle window of the previous jump are ignored.
func (c *Controller) OnScroll(position int) (Jump, bool) {
	c.position = position
	if c.state != Looped {
		return Jump{}, false
	}

	span := c.span()
	var delta int
	switch {
	case position < span:
		delta = span
	case position >= 2*span:
		delta = -span
	default:
		return Jump{}, false
	}

	now := c.clock.Now()
	if c.jumped && now.Sub(c.lastJump) < c.settle {
		return Jump{}, false
	}
	c.jumped = true
	c.lastJump = now
	c.position = position + delta
	return Jump{From: position, To: c.position, Delta: delta}, true
}

// Settling reports whether a jump's settle window is still open.
func (c *Controller) Settling() bool {
	return c.jumped && c.clock.Now().Sub(c.lastJump) < c.settle
}

// Sequence returns the render sequence for items: the tripled list while
// looped, a copy of items otherwise.
//
// A looped controller only repeats the first Length items. Rows appended
// after the loop formed are not spliced in; they show up once the column is
// re-entered with a fresh controller.
func (c *Controller) Sequence(items []model.GridItem) []model.GridItem {
	if c.state != Looped || len(items) == 0 {
		return append([]model.GridItem(nil), items...)
	}
	if len(items) > c.length {
		items = items[:c.length]
	}
	out := make([]model.GridItem, 0, 3*len(items))
	for i := 0; i < 3; i++ {
		out = append(out, items...)
	}
	return out
}

// Sentinels returns the top and bottom sentinel positions, or ok false
// when not looped.
func (c *Controller) Sentinels() (top, bottom int, ok bool) {
	if c.state != Looped {
		return 0, 0, false
	}
	return c.span(), 2 * c.span(), true
}
