package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pawelekbyra/gridfeed/internal/grid"
	"github.com/pawelekbyra/gridfeed/internal/ledger"
	"github.com/pawelekbyra/gridfeed/internal/model"
	"github.com/pawelekbyra/gridfeed/internal/pager"
	"github.com/pawelekbyra/gridfeed/internal/scroll"
)

// Operation names passed to the Dispatcher for reads.
const (
	OpListColumns = "list_columns"
	OpFetchPage   = "fetch_page"
	OpGetComments = "get_comments"
)

// prefetchItems is how close to the end of the loaded rows a scroll
// position must come before the next page is requested.
const prefetchItems = 2

// FetchStatus reports what FetchNext did.
type FetchStatus int

const (
	// FetchStarted means a page request was dispatched.
	FetchStarted FetchStatus = iota
	// FetchBusy means a request for the column is already in flight.
	FetchBusy
	// FetchDone means the column is exhausted.
	FetchDone
)

func (s FetchStatus) String() string {
	switch s {
	case FetchStarted:
		return "started"
	case FetchBusy:
		return "busy"
	case FetchDone:
		return "done"
	default:
		return fmt.Sprintf("FetchStatus(%d)", int(s))
	}
}

// ColumnStatus is a read-only view of one column.
type ColumnStatus struct {
	Column    int           `json:"column"`
	State     string        `json:"state"`
	Loaded    int           `json:"loaded"`
	Pages     int           `json:"pages"`
	Next      *model.Cursor `json:"next,omitempty"`
	Exhausted bool          `json:"exhausted"`
	Fetching  bool          `json:"fetching"`
	Position  int           `json:"position"`
	LastError error         `json:"-"`
}

type columnState struct {
	next      model.Cursor
	exhausted bool
	fetching  bool
	reloading bool
	pages     int
	lastErr   error
	scroll    *scroll.Controller
}

// Controller orchestrates pager, grid, scroll and ledger for one session.
type Controller struct {
	pager    *pager.Pager
	remote   ledger.Remote
	dispatch ledger.Dispatcher
	viewer   model.Viewer

	grid     *grid.Grid
	comments *grid.Comments
	ledger   *ledger.Ledger

	columns []int
	active  int
	states  map[int]*columnState
	extent  int

	clock    scroll.Clock
	settle   time.Duration
	pageSize int
	tempIDs  func() string
	logger   *slog.Logger

	subs    map[int]func(Event)
	nextSub int
}

// Option configures a Controller.
type Option func(*Controller)

// WithPageSize sets the pager's page size.
func WithPageSize(n int) Option {
	return func(c *Controller) { c.pageSize = n }
}

// WithClock sets the clock used by scroll settle windows and comment stamps.
func WithClock(clock scroll.Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithSettleWindow sets the post-jump settle window.
func WithSettleWindow(d time.Duration) Option {
	return func(c *Controller) { c.settle = d }
}

// WithTempIDs sets the generator of tentative comment IDs.
func WithTempIDs(gen func() string) Option {
	return func(c *Controller) { c.tempIDs = gen }
}

// WithLogger sets the logger shared by the controller's components.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// New creates a controller reading from source and mutating through remote.
// Every collaborator call goes through dispatch.
func New(source pager.Source, remote ledger.Remote, dispatch ledger.Dispatcher, viewer model.Viewer, opts ...Option) *Controller {
	c := &Controller{
		remote:   remote,
		dispatch: dispatch,
		viewer:   viewer,
		grid:     grid.New(),
		comments: grid.NewComments(),
		active:   -1,
		states:   make(map[int]*columnState),
		clock:    wallClock{},
		settle:   scroll.DefaultSettleWindow,
		pageSize: pager.DefaultPageSize,
		logger:   slog.Default(),
		subs:     make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.pager = pager.New(source, pager.WithPageSize(c.pageSize), pager.WithLogger(c.logger))
	ledgerOpts := []ledger.Option{
		ledger.WithLogger(c.logger),
		ledger.WithNow(c.clock.Now),
		ledger.WithObserver(c.onOutcome),
	}
	if c.tempIDs != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithTempIDs(c.tempIDs))
	}
	c.ledger = ledger.New(c.grid, c.comments, remote, dispatch, viewer, ledgerOpts...)
	return c
}

// Viewer returns the session's viewer.
func (c *Controller) Viewer() model.Viewer { return c.viewer }

// PageSize returns the page size in use.
func (c *Controller) PageSize() int { return c.pager.PageSize() }

// Columns returns the populated columns from the last LoadColumns.
func (c *Controller) Columns() []int { return append([]int(nil), c.columns...) }

// Active returns the selected column, or -1.
func (c *Controller) Active() int { return c.active }

// Pending returns the number of unresolved optimistic mutations.
func (c *Controller) Pending() int { return c.ledger.Pending() }

// Tentatives snapshots the unresolved optimistic mutations.
func (c *Controller) Tentatives() []ledger.Tentative { return c.ledger.Tentatives() }

func (c *Controller) newScroll() *scroll.Controller {
	return scroll.New(scroll.WithClock(c.clock), scroll.WithSettleWindow(c.settle))
}

func (c *Controller) state(column int) *columnState {
	st, ok := c.states[column]
	if !ok {
		st = &columnState{scroll: c.newScroll()}
		c.states[column] = st
	}
	return st
}

// LoadColumns requests the list of populated columns.
func (c *Controller) LoadColumns() {
	c.loadColumns(nil)
}

func (c *Controller) loadColumns(then func([]int, error)) {
	var cols []int
	c.dispatch.Dispatch(OpListColumns,
		func(ctx context.Context) error {
			var err error
			cols, err = c.pager.Columns(ctx)
			return err
		},
		func(err error) {
			if err != nil {
				c.logger.Warn("column listing failed", "error", err)
				c.emit(Event{Kind: EventColumnsFailed, Err: err})
				if then != nil {
					then(nil, err)
				}
				return
			}
			c.columns = cols
			c.logger.Debug("columns loaded", "count", len(cols))
			c.emit(Event{Kind: EventColumnsLoaded, Count: len(cols)})
			if then != nil {
				then(c.Columns(), nil)
			}
		},
	)
}

// SelectColumn makes column the active one and fetches its first page if
// nothing has been requested yet. Re-entering a column rebuilds its scroll
// controller, which is when rows appended after looping become visible.
func (c *Controller) SelectColumn(column int) error {
	if column < 0 {
		return model.NewValidationError("select_column", fmt.Sprintf("column=%d", column), "column must be non-negative")
	}
	if column == c.active {
		return nil
	}
	c.active = column

	st, seen := c.states[column]
	if seen {
		c.rebuildScroll(column, st)
	} else {
		st = c.state(column)
	}
	c.emit(Event{Kind: EventColumnSelected, Column: column, Count: c.grid.ColumnLen(column)})

	if !seen || (st.pages == 0 && !st.fetching && !st.exhausted) {
		c.FetchNext(column)
	}
	return nil
}

func (c *Controller) rebuildScroll(column int, st *columnState) {
	st.scroll = c.newScroll()
	if !st.exhausted {
		return
	}
	st.scroll.MarkExhausted(c.grid.ColumnLen(column))
	if c.extent > 0 {
		if pos, ok := st.scroll.Measure(c.extent); ok {
			c.emit(Event{Kind: EventLooped, Column: column, Count: st.scroll.Length(), Position: pos})
		}
	}
}

// FetchNext requests the next page of column.
func (c *Controller) FetchNext(column int) FetchStatus {
	return c.fetchNext(column, nil)
}

func (c *Controller) fetchNext(column int, then func(error)) FetchStatus {
	st := c.state(column)
	if st.fetching {
		return FetchBusy
	}
	if st.exhausted {
		return FetchDone
	}

	st.fetching = true
	cursor := st.next
	since := c.grid.Stamp()
	var page model.Page
	c.dispatch.Dispatch(OpFetchPage,
		func(ctx context.Context) error {
			var err error
			page, err = c.pager.FetchPage(ctx, column, cursor)
			return err
		},
		func(err error) {
			st.fetching = false
			if err != nil {
				st.lastErr = err
				c.logger.Warn("page fetch failed", "column", column, "offset", cursor.Offset, "error", err)
				c.emit(Event{Kind: EventFetchFailed, Column: column, Err: err})
			} else {
				c.applyPage(column, st, page, since)
			}
			if then != nil {
				then(err)
			}
		},
	)
	return FetchStarted
}

// applyPage merges a page read at grid stamp since. Rows the viewer changed
// after since keep their local fields.
func (c *Controller) applyPage(column int, st *columnState, page model.Page, since uint64) {
	if st.reloading {
		st.reloading = false
		dropped := c.grid.ClearColumnSince(column, since)
		c.logger.Debug("column cleared for reload", "column", column, "dropped", dropped)
	}
	st.lastErr = nil
	st.pages++
	res := c.grid.MergeSince(column, page, since)
	c.logger.Debug("page merged",
		"column", column,
		"items", len(page.Items),
		"added", res.Added,
		"updated", res.Updated,
	)
	c.emit(Event{Kind: EventPageMerged, Column: column, Count: len(page.Items)})

	if page.Next != nil {
		st.next = *page.Next
		return
	}
	st.exhausted = true
	n := c.grid.ColumnLen(column)
	st.scroll.MarkExhausted(n)
	c.logger.Info("column exhausted", "column", column, "items", n)
	c.emit(Event{Kind: EventExhausted, Column: column, Count: n})
	if column == c.active && c.extent > 0 {
		c.measureActive()
	}
}

// Measure reports the render surface's item extent for the active column.
// It returns the scroll position to jump to when the column enters LOOPED.
func (c *Controller) Measure(extent int) (int, bool) {
	if extent <= 0 {
		return 0, false
	}
	c.extent = extent
	return c.measureActive()
}

func (c *Controller) measureActive() (int, bool) {
	st, ok := c.states[c.active]
	if !ok {
		return 0, false
	}
	pos, looped := st.scroll.Measure(c.extent)
	if looped {
		c.logger.Info("column looped", "column", c.active, "items", st.scroll.Length(), "position", pos)
		c.emit(Event{Kind: EventLooped, Column: c.active, Count: st.scroll.Length(), Position: pos})
	}
	return pos, looped
}

// OnScroll reports the active column's scroll position. It returns a jump
// when a loop sentinel was crossed, and requests the next page when a
// column still paging is scrolled near its last loaded row.
func (c *Controller) OnScroll(position int) (scroll.Jump, bool) {
	st, ok := c.states[c.active]
	if !ok {
		return scroll.Jump{}, false
	}
	jump, jumped := st.scroll.OnScroll(position)
	if jumped {
		c.logger.Debug("loop jump", "column", c.active, "from", jump.From, "delta", jump.Delta)
		j := jump
		c.emit(Event{Kind: EventJumped, Column: c.active, Position: jump.To, Jump: &j})
		return jump, true
	}

	if !st.exhausted && c.extent > 0 {
		loaded := c.grid.ColumnLen(c.active)
		if position+prefetchItems*c.extent >= loaded*c.extent {
			c.FetchNext(c.active)
		}
	}
	return scroll.Jump{}, false
}

// RenderSequence returns the active column's render sequence: the tripled
// list once looped, the loaded rows otherwise.
func (c *Controller) RenderSequence() []model.GridItem {
	st, ok := c.states[c.active]
	if !ok {
		return []model.GridItem{}
	}
	return st.scroll.Sequence(c.grid.ItemsForColumn(c.active))
}

// Items returns the loaded rows of column.
func (c *Controller) Items(column int) []model.GridItem {
	return c.grid.ItemsForColumn(column)
}

// Item returns the current view of an item.
func (c *Controller) Item(id string) (model.GridItem, bool) {
	return c.grid.Item(id)
}

// State reports the status of column.
func (c *Controller) State(column int) ColumnStatus {
	s := ColumnStatus{Column: column, State: scroll.Paging.String()}
	st, ok := c.states[column]
	if !ok {
		return s
	}
	s.State = st.scroll.State().String()
	s.Loaded = c.grid.ColumnLen(column)
	s.Pages = st.pages
	s.Exhausted = st.exhausted
	s.Fetching = st.fetching
	s.Position = st.scroll.Position()
	s.LastError = st.lastErr
	if !st.exhausted {
		next := st.next
		s.Next = &next
	}
	return s
}

// Reload restarts pagination of column from the initial cursor. Loaded rows
// stay visible until the first page of the reload arrives, then rows the
// server no longer returns are dropped. Returns FetchBusy if a fetch for the
// column is already in flight.
func (c *Controller) Reload(column int) FetchStatus {
	st := c.state(column)
	if st.fetching {
		return FetchBusy
	}
	st.next = model.InitialCursor
	st.exhausted = false
	st.reloading = true
	st.pages = 0
	st.lastErr = nil
	st.scroll = c.newScroll()
	c.logger.Info("column reload", "column", column)
	return c.FetchNext(column)
}

// ToggleLike flips the viewer's like on an item optimistically.
func (c *Controller) ToggleLike(itemID string) error {
	return c.ledger.ToggleLike(itemID)
}

// SubmitComment posts a comment optimistically and returns its temporary ID.
func (c *Controller) SubmitComment(itemID, text, parentID string) (string, error) {
	return c.ledger.SubmitComment(itemID, text, parentID)
}

// ToggleCommentLike flips the viewer's like on a comment optimistically.
func (c *Controller) ToggleCommentLike(commentID string) error {
	return c.ledger.ToggleCommentLike(commentID)
}

// LoadComments fetches the comment list of an item.
func (c *Controller) LoadComments(itemID string) error {
	return c.loadComments(itemID, nil)
}

func (c *Controller) loadComments(itemID string, then func(error)) error {
	if itemID == "" {
		return model.NewValidationError(OpGetComments, "", "item id is required")
	}
	var list []*model.Comment
	c.dispatch.Dispatch(OpGetComments,
		func(ctx context.Context) error {
			var err error
			list, err = c.remote.GetComments(ctx, itemID)
			return err
		},
		func(err error) {
			if err != nil {
				if !model.IsTimeout(err) {
					err = &model.FeedError{
						Code:    model.ErrCodeFetchFailed,
						Op:      OpGetComments,
						Key:     "item=" + itemID,
						Message: "comment load failed",
						Err:     err,
					}
				}
				c.logger.Warn("comment load failed", "item_id", itemID, "error", err)
				c.emit(Event{Kind: EventCommentsFailed, ItemID: itemID, Err: err})
			} else {
				c.comments.Load(itemID, list)
				c.ledger.Reapply()
				if !c.grid.Pinned(itemID) {
					n := c.comments.Count(itemID)
					c.grid.Update(itemID, func(it *model.GridItem) { it.CommentCount = n })
				}
				c.emit(Event{Kind: EventCommentsLoaded, ItemID: itemID, Count: len(list)})
			}
			if then != nil {
				then(err)
			}
		},
	)
	return nil
}

// Comments returns copies of an item's loaded top-level comments.
func (c *Controller) Comments(itemID string) []*model.Comment {
	return c.comments.TopLevel(itemID)
}

func (c *Controller) onOutcome(o ledger.Outcome) {
	c.emit(Event{Kind: EventMutation, ItemID: o.Key, Outcome: &o, Err: o.Err})
}
