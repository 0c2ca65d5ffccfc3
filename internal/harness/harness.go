package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pawelekbyra/gridfeed/internal/feed"
	"github.com/pawelekbyra/gridfeed/internal/model"
	"github.com/pawelekbyra/gridfeed/internal/testutil"
)

// Epoch is the fake clock's start time in every scenario.
var Epoch = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

// Harness executes one scenario. Calls are held by a manual dispatcher and
// only resolve on explicit run, fail and timeout steps, so a flow fully
// determines the interleaving of optimistic state and server replies.
type Harness struct {
	remote   *testutil.FakeRemote
	dispatch *testutil.ManualDispatcher
	clock    *testutil.FakeClock
	seq      *testutil.DeterministicClock
	ctl      *feed.Controller
	result   *Result
	logger   *slog.Logger
}

// Option configures Run.
type Option func(*Harness)

// WithLogger routes controller logs to l. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario gets a fresh fake server, dispatcher and clock.
// Execution flow:
//  1. Seed the fake server from Setup
//  2. Execute flow steps, checking expect clauses
//  3. Evaluate assertions against the trace and final state
//
// The returned error reports a malformed scenario (bad arguments); a failing
// scenario is reported through Result.Pass.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	viewer := model.Viewer{ID: scenario.Viewer.ID, DisplayName: scenario.Viewer.DisplayName}
	if viewer.ID == "" {
		viewer = model.Viewer{ID: "me", DisplayName: "Me"}
	}

	h := &Harness{
		remote:   testutil.NewFakeRemote(viewer),
		dispatch: testutil.NewManualDispatcher(),
		clock:    testutil.NewFakeClock(Epoch),
		seq:      testutil.NewDeterministicClock(),
		result:   NewResult(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	ctlOpts := []feed.Option{
		feed.WithClock(h.clock),
		feed.WithTempIDs(testutil.SequenceIDs("tmp-")),
		feed.WithLogger(h.logger),
	}
	if scenario.PageSize > 0 {
		ctlOpts = append(ctlOpts, feed.WithPageSize(scenario.PageSize))
	}
	if scenario.SettleWindowMS > 0 {
		ctlOpts = append(ctlOpts, feed.WithSettleWindow(time.Duration(scenario.SettleWindowMS)*time.Millisecond))
	}
	h.ctl = feed.New(h.remote, h.remote, h.dispatch, viewer, ctlOpts...)
	h.ctl.Subscribe(h.record)

	h.seed(scenario.Setup)
	if err := h.executeFlow(scenario.Flow); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{Controller: h.ctl, Remote: h.remote}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) seed(setup Setup) {
	for _, c := range setup.Columns {
		h.remote.AddColumn(c.Column, c.Count, c.Step, c.Prefix)
	}
	for _, it := range setup.Items {
		h.remote.AddItem(itemFromFixture(it))
	}
	for _, c := range setup.Comments {
		author := c.Author
		if author == "" {
			author = "someone"
		}
		h.remote.AddComment(&model.Comment{
			ID:        c.ID,
			ItemID:    c.Item,
			ParentID:  c.Parent,
			Author:    model.Author{ID: author, DisplayName: author},
			Text:      c.Text,
			CreatedAt: Epoch,
			LikedBy:   model.NewUserSet(c.LikedBy...),
		})
	}
	h.logger.Debug("scenario seeded",
		"columns", len(setup.Columns),
		"items", len(setup.Items),
		"comments", len(setup.Comments),
	)
}

func itemFromFixture(it ItemFixture) model.GridItem {
	kind := model.ItemKind(it.Kind)
	if kind == "" {
		kind = model.KindVideo
	}
	access := model.AccessLevel(it.Access)
	if access == "" {
		access = model.AccessPublic
	}
	return model.GridItem{
		ID:            it.ID,
		Kind:          kind,
		OwnerID:       "owner",
		Access:        access,
		LikeCount:     it.LikeCount,
		LikedByViewer: it.Liked,
		Coordinate:    model.Coordinate{Column: it.Column, Row: it.Row},
	}
}

// executeFlow runs all flow steps and validates expect clauses.
func (h *Harness) executeFlow(flow []FlowStep) error {
	for i, step := range flow {
		idx := h.result.addStep(step.Invoke, step.Args, h.seq.Next())

		res, stepErr, err := h.execute(step)
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
		}
		if stepErr != nil {
			if res == nil {
				res = map[string]interface{}{}
			}
			res["error"] = errorCode(stepErr)
		}
		if len(res) > 0 {
			h.result.Trace[idx].Result = res
		}

		h.check(i, step, res, stepErr)
		h.logger.Debug("flow step completed", "step", i, "action", step.Invoke)
	}
	return nil
}

func (h *Harness) check(i int, step FlowStep, res map[string]interface{}, stepErr error) {
	if step.Expect == nil || step.Expect.Error == "" {
		if stepErr != nil {
			h.result.AddError(fmt.Sprintf("flow[%d] %s: unexpected error: %v", i, step.Invoke, stepErr))
			return
		}
	} else {
		got := ""
		if stepErr != nil {
			got = errorCode(stepErr)
		}
		if got != step.Expect.Error {
			h.result.AddError(fmt.Sprintf("flow[%d] %s: expected error %s, got %q", i, step.Invoke, step.Expect.Error, got))
			return
		}
	}
	if step.Expect != nil && !matchArgs(res, step.Expect.Result) {
		h.result.AddError(fmt.Sprintf("flow[%d] %s: expected result %v, got %v", i, step.Invoke, step.Expect.Result, res))
	}
}

// execute runs one step. stepErr is the error returned by the controller
// or a fixture and is checked against the expect clause; err means the step
// itself is malformed.
func (h *Harness) execute(step FlowStep) (res map[string]interface{}, stepErr, err error) {
	a := argReader{args: step.Args}

	switch step.Invoke {
	case ActionLoadColumns:
		h.ctl.LoadColumns()

	case ActionSelect:
		col := a.mustInt("column")
		if a.err != nil {
			return nil, nil, a.err
		}
		stepErr = h.ctl.SelectColumn(col)

	case ActionFetch, ActionReload:
		col := a.mustInt("column")
		if a.err != nil {
			return nil, nil, a.err
		}
		var status feed.FetchStatus
		if step.Invoke == ActionFetch {
			status = h.ctl.FetchNext(col)
		} else {
			status = h.ctl.Reload(col)
		}
		res = map[string]interface{}{"status": status.String()}

	case ActionMeasure:
		extent := a.mustInt("extent")
		if a.err != nil {
			return nil, nil, a.err
		}
		pos, looped := h.ctl.Measure(extent)
		res = map[string]interface{}{"looped": looped, "position": pos}

	case ActionScroll:
		pos := a.mustInt("position")
		if a.err != nil {
			return nil, nil, a.err
		}
		jump, jumped := h.ctl.OnScroll(pos)
		res = map[string]interface{}{"jumped": jumped}
		if jumped {
			res["delta"] = jump.Delta
			res["to"] = jump.To
		}

	case ActionAdvance:
		ms := a.mustInt("ms")
		if a.err != nil {
			return nil, nil, a.err
		}
		h.clock.Advance(time.Duration(ms) * time.Millisecond)

	case ActionLike:
		id := a.mustString("item")
		if a.err != nil {
			return nil, nil, a.err
		}
		stepErr = h.ctl.ToggleLike(id)

	case ActionComment:
		id := a.mustString("item")
		text := a.mustString("text")
		parent := a.optString("parent")
		if a.err != nil {
			return nil, nil, a.err
		}
		var tempID string
		tempID, stepErr = h.ctl.SubmitComment(id, text, parent)
		if stepErr == nil {
			res = map[string]interface{}{"temp_id": tempID}
		}

	case ActionCommentLike:
		id := a.mustString("comment")
		if a.err != nil {
			return nil, nil, a.err
		}
		stepErr = h.ctl.ToggleCommentLike(id)

	case ActionLoadComments:
		id := a.optString("item")
		if a.err != nil {
			return nil, nil, a.err
		}
		stepErr = h.ctl.LoadComments(id)

	case ActionRun:
		op := a.optString("op")
		count := a.optInt("count")
		if a.err != nil {
			return nil, nil, a.err
		}
		res, stepErr = h.run(op, count)

	case ActionFail:
		if !h.dispatch.FailNext(testutil.ErrInjected) {
			stepErr = errNothingPending
		}

	case ActionTimeout:
		if !h.dispatch.TimeoutNext() {
			stepErr = errNothingPending
		}

	case ActionInject:
		op := a.mustString("op")
		always := a.optBool("always")
		if a.err != nil {
			return nil, nil, a.err
		}
		if always {
			h.remote.FailAlways(op, testutil.ErrInjected)
		} else {
			h.remote.FailNext(op, nil)
		}

	case ActionHeal:
		op := a.mustString("op")
		if a.err != nil {
			return nil, nil, a.err
		}
		h.remote.FailAlways(op, nil)

	case ActionAddItem:
		it := ItemFixture{
			ID:        a.mustString("id"),
			Column:    a.mustInt("column"),
			Row:       a.mustInt("row"),
			LikeCount: a.optInt("like_count"),
		}
		if a.err != nil {
			return nil, nil, a.err
		}
		h.remote.AddItem(itemFromFixture(it))

	case ActionRemoveItem:
		id := a.mustString("item")
		if a.err != nil {
			return nil, nil, a.err
		}
		if !h.remote.RemoveItem(id) {
			stepErr = fmt.Errorf("item %s: %w", id, errUnknownItem)
		}

	default:
		return nil, nil, fmt.Errorf("unknown action %q", step.Invoke)
	}
	return res, stepErr, nil
}

var (
	errNothingPending = errors.New("no pending call")
	errUnknownItem    = errors.New("not on the server")
)

// run releases held calls: the oldest pending call for op, or count calls
// in dispatch order, or everything (including calls dispatched by
// completions) when neither is given.
func (h *Harness) run(op string, count int) (map[string]interface{}, error) {
	if op != "" {
		if err := h.dispatch.RunOp(op); err != nil {
			return nil, errNothingPending
		}
		return nil, nil
	}
	if count <= 0 {
		return map[string]interface{}{"ran": h.dispatch.RunAll()}, nil
	}
	for i := 0; i < count; i++ {
		if !h.dispatch.RunNext() {
			return map[string]interface{}{"ran": i}, errNothingPending
		}
	}
	return nil, nil
}

// record turns controller events into trace entries.
func (h *Harness) record(ev feed.Event) {
	fields := map[string]interface{}{}
	switch ev.Kind {
	case feed.EventColumnsLoaded:
		fields["count"] = ev.Count
	case feed.EventColumnSelected, feed.EventPageMerged, feed.EventExhausted:
		fields["column"] = ev.Column
		fields["count"] = ev.Count
	case feed.EventLooped:
		fields["column"] = ev.Column
		fields["count"] = ev.Count
		fields["position"] = ev.Position
	case feed.EventJumped:
		fields["column"] = ev.Column
		if ev.Jump != nil {
			fields["from"] = ev.Jump.From
			fields["to"] = ev.Jump.To
			fields["delta"] = ev.Jump.Delta
		}
	case feed.EventFetchFailed:
		fields["column"] = ev.Column
	case feed.EventCommentsLoaded:
		fields["item"] = ev.ItemID
		fields["count"] = ev.Count
	case feed.EventCommentsFailed:
		fields["item"] = ev.ItemID
	case feed.EventMutation:
		if o := ev.Outcome; o != nil {
			fields["kind"] = string(o.Kind)
			fields["key"] = o.Key
			if o.State != "" {
				fields["state"] = string(o.State)
			}
			if o.TempID != "" {
				fields["temp_id"] = o.TempID
			}
			if o.CommentID != "" {
				fields["comment_id"] = o.CommentID
			}
		}
	}
	if ev.Err != nil {
		fields["error"] = errorCode(ev.Err)
	}
	h.result.addEvent(string(ev.Kind), fields, h.seq.Next())
}

// errorCode is the FeedError code of err, or "ERROR" for anything else.
func errorCode(err error) string {
	var fe *model.FeedError
	if errors.As(err, &fe) {
		return string(fe.Code)
	}
	return "ERROR"
}

// argReader extracts typed step arguments and keeps the first error.
type argReader struct {
	args map[string]interface{}
	err  error
}

func (a *argReader) fail(format string, v ...interface{}) {
	if a.err == nil {
		a.err = fmt.Errorf(format, v...)
	}
}

func (a *argReader) mustInt(key string) int {
	v, ok := a.args[key]
	if !ok {
		a.fail("argument %q is required", key)
		return 0
	}
	return a.toInt(key, v)
}

func (a *argReader) optInt(key string) int {
	v, ok := a.args[key]
	if !ok {
		return 0
	}
	return a.toInt(key, v)
}

func (a *argReader) toInt(key string, v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if n == float64(int64(n)) {
			return int(n)
		}
	}
	a.fail("argument %q: expected integer, got %T", key, v)
	return 0
}

// mustString requires the key to be present; the value may be empty so
// validation of empty IDs can be exercised.
func (a *argReader) mustString(key string) string {
	if _, ok := a.args[key]; !ok {
		a.fail("argument %q is required", key)
		return ""
	}
	return a.optString(key)
}

func (a *argReader) optString(key string) string {
	v, ok := a.args[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		a.fail("argument %q: expected string, got %T", key, v)
	}
	return s
}

func (a *argReader) optBool(key string) bool {
	v, ok := a.args[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		a.fail("argument %q: expected bool, got %T", key, v)
	}
	return b
}
