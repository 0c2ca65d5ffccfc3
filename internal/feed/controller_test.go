package feed

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawelekbyra/gridfeed/internal/model"
	"github.com/pawelekbyra/gridfeed/internal/scroll"
	"github.com/pawelekbyra/gridfeed/internal/testutil"
)

var viewer = model.Viewer{ID: "me", DisplayName: "Me"}

type fixture struct {
	remote   *testutil.FakeRemote
	dispatch *testutil.ManualDispatcher
	clock    *testutil.FakeClock
	ctl      *Controller
	events   []Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		remote:   testutil.NewFakeRemote(viewer),
		dispatch: testutil.NewManualDispatcher(),
		clock:    testutil.NewFakeClock(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)),
	}
	f.ctl = New(f.remote, f.remote, f.dispatch, viewer,
		WithClock(f.clock),
		WithTempIDs(testutil.SequenceIDs("tmp-")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	f.ctl.Subscribe(func(ev Event) { f.events = append(f.events, ev) })
	return f
}

func (f *fixture) kinds() []EventKind {
	out := make([]EventKind, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Kind
	}
	return out
}

func (f *fixture) has(kind EventKind) bool {
	for _, ev := range f.events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

func TestTwentyThreeItemColumn(t *testing.T) {
	f := newFixture(t)
	f.remote.AddColumn(0, 23, 1, "v")

	require.NoError(t, f.ctl.SelectColumn(0))
	require.True(t, f.dispatch.RunNext())
	st := f.ctl.State(0)
	assert.Equal(t, 10, st.Loaded)
	require.NotNil(t, st.Next)
	assert.Equal(t, 10, st.Next.Offset)
	assert.Equal(t, "PAGING", st.State)

	require.Equal(t, FetchStarted, f.ctl.FetchNext(0))
	require.True(t, f.dispatch.RunNext())
	assert.Equal(t, 20, f.ctl.State(0).Loaded)
	assert.Equal(t, "PAGING", f.ctl.State(0).State)

	require.Equal(t, FetchStarted, f.ctl.FetchNext(0))
	require.True(t, f.dispatch.RunNext())
	st = f.ctl.State(0)
	assert.Equal(t, 23, st.Loaded)
	assert.Nil(t, st.Next)
	assert.True(t, st.Exhausted)
	assert.Equal(t, "EXHAUSTED_NOT_LOOPED", st.State)
	assert.Equal(t, 3, st.Pages)

	assert.Equal(t, FetchDone, f.ctl.FetchNext(0))
	assert.Equal(t, []string{"fetch_page 0@0", "fetch_page 0@10", "fetch_page 0@20"}, f.remote.Calls())

	pos, ok := f.ctl.Measure(800)
	require.True(t, ok)
	assert.Equal(t, 23*800, pos)
	assert.Equal(t, "LOOPED", f.ctl.State(0).State)
	assert.Len(t, f.ctl.RenderSequence(), 69)
}

func TestFetchNext_OnePerColumnInFlight(t *testing.T) {
	f := newFixture(t)
	f.remote.AddColumn(0, 15, 1, "a")
	f.remote.AddColumn(1, 15, 1, "b")

	require.NoError(t, f.ctl.SelectColumn(0))
	assert.Equal(t, FetchBusy, f.ctl.FetchNext(0))
	assert.Equal(t, FetchStarted, f.ctl.FetchNext(1), "other columns are independent")
	assert.Equal(t, 2, f.dispatch.Pending())

	f.dispatch.RunAll()
	assert.Equal(t, 10, f.ctl.State(0).Loaded)
	assert.Equal(t, 10, f.ctl.State(1).Loaded)
}

func TestFetchFailureKeepsCursor(t *testing.T) {
	f := newFixture(t)
	f.remote.AddColumn(0, 12, 1, "v")
	require.NoError(t, f.ctl.SelectColumn(0))
	f.dispatch.RunAll()

	f.remote.FailNext(testutil.OpFetchPage, nil)
	require.Equal(t, FetchStarted, f.ctl.FetchNext(0))
	f.dispatch.RunAll()

	st := f.ctl.State(0)
	assert.Equal(t, 10, st.Loaded, "feed stays at its last loaded extent")
	require.NotNil(t, st.Next)
	assert.Equal(t, 10, st.Next.Offset)
	assert.True(t, model.IsFetchError(st.LastError))
	assert.True(t, f.has(EventFetchFailed))

	require.Equal(t, FetchStarted, f.ctl.FetchNext(0))
	f.dispatch.RunAll()
	st = f.ctl.State(0)
	assert.Equal(t, 12, st.Loaded)
	assert.NoError(t, st.LastError)
	assert.Equal(t, 2, f.remote.CallCount(testutil.OpFetchPage+" 0@10"))
}

func TestFetchTimeoutKeepsCursor(t *testing.T) {
	f := newFixture(t)
	f.remote.AddColumn(0, 3, 1, "v")
	require.NoError(t, f.ctl.SelectColumn(0))

	f.dispatch.TimeoutNext()

	st := f.ctl.State(0)
	assert.True(t, model.IsTimeout(st.LastError))
	assert.False(t, st.Fetching)
	assert.Equal(t, 0, st.Loaded)
	assert.Equal(t, FetchStarted, f.ctl.FetchNext(0))
}

func TestMeasureBeforeExhaustionLoopsOnLastPage(t *testing.T) {
	f := newFixture(t)
	f.remote.AddColumn(0, 7, 1, "v")
	require.NoError(t, f.ctl.SelectColumn(0))

	_, ok := f.ctl.Measure(800)
	assert.False(t, ok)

	f.dispatch.RunAll()
	st := f.ctl.State(0)
	assert.Equal(t, "LOOPED", st.State)
	assert.Equal(t, 5600, st.Position)
	assert.Equal(t, []EventKind{EventColumnSelected, EventPageMerged, EventExhausted, EventLooped}, f.kinds())
}

func TestEmptyColumnNeverLoops(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctl.SelectColumn(4))
	f.dispatch.RunAll()
	f.ctl.Measure(800)

	st := f.ctl.State(4)
	assert.True(t, st.Exhausted)
	assert.Equal(t, "EXHAUSTED_NOT_LOOPED", st.State)
	assert.Empty(t, f.ctl.RenderSequence())
}

func TestOnScroll_JumpsAndSettles(t *testing.T) {
	f := newFixture(t)
	f.remote.AddColumn(0, 7, 1, "v")
	require.NoError(t, f.ctl.SelectColumn(0))
	f.dispatch.RunAll()
	f.ctl.Measure(800)

	jump, ok := f.ctl.OnScroll(5000)
	require.True(t, ok)
	assert.Equal(t, 5600, jump.Delta)

	_, ok = f.ctl.OnScroll(11300)
	assert.False(t, ok, "suppressed inside the settle window")

	f.clock.Advance(scroll.DefaultSettleWindow)
	jump, ok = f.ctl.OnScroll(11300)
	require.True(t, ok)
	assert.Equal(t, -5600, jump.Delta)
	assert.Equal(t, 5700, f.ctl.State(0).Position)
}

func TestOnScroll_PrefetchesNearEnd(t *testing.T) {
	f := newFixture(t)
	f.remote.AddColumn(0, 25, 1, "v")
	require.NoError(t, f.ctl.SelectColumn(0))
	f.dispatch.RunAll()
	f.ctl.Measure(100)

	f.ctl.OnScroll(500)
	assert.Equal(t, 0, f.dispatch.Pending())

	f.ctl.OnScroll(800)
	assert.Equal(t, []string{OpFetchPage}, f.dispatch.Ops())
	f.ctl.OnScroll(850)
	assert.Equal(t, 1, f.dispatch.Pending(), "no second fetch while one is in flight")
}

func TestReselectRebuildsLoop(t *testing.T) {
	f := newFixture(t)
	f.remote.AddColumn(0, 3, 1, "a")
	f.remote.AddColumn(1, 2, 1, "b")
	f.ctl.Measure(100)

	require.NoError(t, f.ctl.SelectColumn(0))
	f.dispatch.RunAll()
	f.ctl.OnScroll(50)
	require.NoError(t, f.ctl.SelectColumn(1))
	f.dispatch.RunAll()
	assert.Equal(t, "LOOPED", f.ctl.State(1).State)

	require.NoError(t, f.ctl.SelectColumn(0))
	assert.Equal(t, 0, f.dispatch.Pending(), "exhausted column is not refetched")
	st := f.ctl.State(0)
	assert.Equal(t, "LOOPED", st.State)
	assert.Equal(t, 300, st.Position, "fresh controller parks on the middle copy")
}

func TestReloadAppliesGrowthAndDropsRemovedRows(t *testing.T) {
	f := newFixture(t)
	f.remote.AddColumn(0, 3, 1, "v")
	f.ctl.Measure(100)
	require.NoError(t, f.ctl.SelectColumn(0))
	f.dispatch.RunAll()
	require.Equal(t, "LOOPED", f.ctl.State(0).State)
	assert.Len(t, f.ctl.RenderSequence(), 9)

	f.remote.AddItem(model.GridItem{ID: "late", Coordinate: model.Coordinate{Column: 0, Row: 10}})
	require.True(t, f.remote.RemoveItem("v2"))

	require.Equal(t, FetchStarted, f.ctl.Reload(0))
	assert.Len(t, f.ctl.Items(0), 3, "rows stay until the reload lands")
	f.dispatch.RunAll()

	ids := []string{}
	for _, it := range f.ctl.Items(0) {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"v1", "v3", "late"}, ids)
	st := f.ctl.State(0)
	assert.Equal(t, "LOOPED", st.State)
	assert.Equal(t, 300, st.Position)
	assert.Len(t, f.ctl.RenderSequence(), 9)
}

func TestSelectColumnValidation(t *testing.T) {
	f := newFixture(t)
	assert.True(t, model.IsValidationError(f.ctl.SelectColumn(-1)))
	assert.Equal(t, -1, f.ctl.Active())
}

func TestLoadColumns(t *testing.T) {
	f := newFixture(t)
	f.remote.AddColumn(2, 1, 1, "a")
	f.remote.AddColumn(0, 1, 1, "b")

	f.ctl.LoadColumns()
	f.dispatch.RunAll()
	assert.Equal(t, []int{0, 2}, f.ctl.Columns())

	f.remote.FailNext(testutil.OpListColumns, nil)
	f.ctl.LoadColumns()
	f.dispatch.RunAll()
	assert.True(t, f.has(EventColumnsFailed))
	assert.Equal(t, []int{0, 2}, f.ctl.Columns())
}

func TestToggleLikeScenario(t *testing.T) {
	f := newFixture(t)
	f.remote.AddItem(model.GridItem{ID: "v1", LikeCount: 5, Coordinate: model.Coordinate{Column: 0, Row: 0}})
	require.NoError(t, f.ctl.SelectColumn(0))
	f.dispatch.RunAll()

	require.NoError(t, f.ctl.ToggleLike("v1"))
	it, _ := f.ctl.Item("v1")
	assert.True(t, it.LikedByViewer)
	assert.Equal(t, 6, it.LikeCount)

	f.dispatch.FailNext(testutil.ErrInjected)
	it, _ = f.ctl.Item("v1")
	assert.False(t, it.LikedByViewer)
	assert.Equal(t, 5, it.LikeCount)

	require.True(t, f.has(EventMutation))
	last := f.events[len(f.events)-1]
	require.NotNil(t, last.Outcome)
	assert.Equal(t, "v1", last.ItemID)
	assert.Error(t, last.Err)
}

func TestRefetchDuringLikeKeepsOverlay(t *testing.T) {
	f := newFixture(t)
	f.remote.AddItem(model.GridItem{ID: "v1", LikeCount: 5, Coordinate: model.Coordinate{Column: 0, Row: 0}})
	require.NoError(t, f.ctl.SelectColumn(0))
	f.dispatch.RunAll()

	require.NoError(t, f.ctl.ToggleLike("v1"))
	require.Equal(t, FetchStarted, f.ctl.Reload(0))
	require.NoError(t, f.dispatch.RunOp(OpFetchPage))

	it, _ := f.ctl.Item("v1")
	assert.True(t, it.LikedByViewer)
	assert.Equal(t, 6, it.LikeCount)

	f.dispatch.RunAll()
	it, _ = f.ctl.Item("v1")
	assert.Equal(t, 6, it.LikeCount)
	assert.Equal(t, 0, f.ctl.Pending())
}

func TestStalePageAfterLikeConfirmationKeepsLike(t *testing.T) {
	f := newFixture(t)
	f.remote.AddItem(model.GridItem{ID: "v1", LikeCount: 5, Coordinate: model.Coordinate{Column: 0, Row: 0}})
	require.NoError(t, f.ctl.SelectColumn(0))
	f.dispatch.RunAll()

	require.Equal(t, FetchStarted, f.ctl.Reload(0))
	require.NoError(t, f.dispatch.CallOp(OpFetchPage))

	require.NoError(t, f.ctl.ToggleLike("v1"))
	require.NoError(t, f.dispatch.RunOp(testutil.OpToggleLike))
	require.Equal(t, 0, f.ctl.Pending())

	f.dispatch.RunAll()
	it, ok := f.ctl.Item("v1")
	require.True(t, ok)
	assert.True(t, it.LikedByViewer)
	assert.Equal(t, 6, it.LikeCount)

	require.Equal(t, FetchStarted, f.ctl.Reload(0))
	f.dispatch.RunAll()
	it, _ = f.ctl.Item("v1")
	assert.True(t, it.LikedByViewer)
	assert.Equal(t, 6, it.LikeCount)
}

func TestCommentReloadBeforeConfirmationShowsOneRecord(t *testing.T) {
	f := newFixture(t)
	f.remote.AddItem(model.GridItem{ID: "v1", Coordinate: model.Coordinate{Column: 0, Row: 0}})
	require.NoError(t, f.ctl.SelectColumn(0))
	f.dispatch.RunAll()

	tempID, err := f.ctl.SubmitComment("v1", "hello", "")
	require.NoError(t, err)
	require.NoError(t, f.dispatch.CallOp(testutil.OpPostComment))

	require.NoError(t, f.ctl.LoadComments("v1"))
	require.NoError(t, f.dispatch.RunOp(OpGetComments))
	top := f.ctl.Comments("v1")
	require.Len(t, top, 1)
	assert.NotEqual(t, tempID, top[0].ID)
	assert.False(t, top[0].Pending)

	f.dispatch.RunAll()
	top = f.ctl.Comments("v1")
	require.Len(t, top, 1)
	assert.Equal(t, "hello", top[0].Text)
	assert.Equal(t, 0, f.ctl.Pending())
	it, _ := f.ctl.Item("v1")
	assert.Equal(t, 1, it.CommentCount)
}

func TestCommentsFlow(t *testing.T) {
	f := newFixture(t)
	f.remote.AddItem(model.GridItem{ID: "v1", Coordinate: model.Coordinate{Column: 0, Row: 0}})
	f.remote.AddComment(&model.Comment{ID: "c1", ItemID: "v1", Text: "first"})
	require.NoError(t, f.ctl.SelectColumn(0))
	f.dispatch.RunAll()

	require.NoError(t, f.ctl.LoadComments("v1"))
	f.dispatch.RunAll()
	require.Len(t, f.ctl.Comments("v1"), 1)

	tempID, err := f.ctl.SubmitComment("v1", "hello", "")
	require.NoError(t, err)
	top := f.ctl.Comments("v1")
	require.Len(t, top, 2)
	assert.Equal(t, tempID, top[0].ID)
	it, _ := f.ctl.Item("v1")
	assert.Equal(t, 2, it.CommentCount)

	f.dispatch.FailNext(testutil.ErrInjected)
	assert.Len(t, f.ctl.Comments("v1"), 1)
	it, _ = f.ctl.Item("v1")
	assert.Equal(t, 1, it.CommentCount)

	require.NoError(t, f.ctl.ToggleCommentLike("c1"))
	f.dispatch.RunAll()
	top = f.ctl.Comments("v1")
	assert.Equal(t, 1, top[0].LikeCount())

	_, err = f.ctl.SubmitComment("v1", "   ", "")
	assert.True(t, model.IsValidationError(err))
}

func TestLoadCommentsFailure(t *testing.T) {
	f := newFixture(t)
	assert.True(t, model.IsValidationError(f.ctl.LoadComments("")))

	f.remote.FailNext(testutil.OpGetComments, nil)
	require.NoError(t, f.ctl.LoadComments("v9"))
	f.dispatch.RunAll()

	require.True(t, f.has(EventCommentsFailed))
	last := f.events[len(f.events)-1]
	assert.True(t, model.IsFetchError(last.Err))
	assert.Equal(t, "v9", last.ItemID)
}

func TestUnsubscribe(t *testing.T) {
	f := newFixture(t)
	count := 0
	stop := f.ctl.Subscribe(func(Event) { count++ })
	require.NoError(t, f.ctl.SelectColumn(0))
	stop()
	f.dispatch.RunAll()
	assert.Equal(t, 1, count)
}
