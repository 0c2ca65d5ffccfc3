package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

func TestManualDispatcher_HoldsUntilReleased(t *testing.T) {
	d := NewManualDispatcher()
	ran := false
	var got error

	d.Dispatch("op", func(ctx context.Context) error {
		ran = true
		return nil
	}, func(err error) { got = err })

	assert.False(t, ran)
	assert.Equal(t, []string{"op"}, d.Ops())

	require.True(t, d.RunNext())
	assert.True(t, ran)
	assert.NoError(t, got)
	assert.False(t, d.RunNext())
}

func TestManualDispatcher_FailAndTimeout(t *testing.T) {
	d := NewManualDispatcher()
	var errs []error
	call := func(ctx context.Context) error { t.Fatal("call must not run"); return nil }
	done := func(err error) { errs = append(errs, err) }

	d.Dispatch("a", call, done)
	d.Dispatch("b", call, done)

	d.FailNext(ErrInjected)
	d.TimeoutNext()

	require.Len(t, errs, 2)
	assert.True(t, errors.Is(errs[0], ErrInjected))
	assert.True(t, model.IsTimeout(errs[1]))
}

func TestManualDispatcher_RunOpAndChained(t *testing.T) {
	d := NewManualDispatcher()
	order := []string{}
	d.Dispatch("first", func(ctx context.Context) error { order = append(order, "first"); return nil }, func(error) {})
	d.Dispatch("second", func(ctx context.Context) error { order = append(order, "second"); return nil }, func(error) {
		d.Dispatch("third", func(ctx context.Context) error { order = append(order, "third"); return nil }, func(error) {})
	})

	require.NoError(t, d.RunOp("second"))
	assert.Equal(t, 2, d.RunAll())
	assert.Equal(t, []string{"second", "first", "third"}, order)
	assert.Error(t, d.RunOp("missing"))
}

func TestFakeRemote_PagingAndFailures(t *testing.T) {
	f := NewFakeRemote(model.Viewer{ID: "me"})
	f.AddColumn(0, 12, 2, "v")
	ctx := context.Background()

	win, err := f.FetchColumnPage(ctx, 0, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, win.TotalReturned)
	assert.Equal(t, "v11", win.Items[0].ID)

	f.FailNext(OpFetchPage, nil)
	_, err = f.FetchColumnPage(ctx, 0, 0, 10)
	assert.ErrorIs(t, err, ErrInjected)

	_, err = f.FetchColumnPage(ctx, 0, 0, 10)
	assert.NoError(t, err)
	assert.Equal(t, 3, f.CallCount(OpFetchPage))
}

func TestFakeRemote_LikesAndComments(t *testing.T) {
	f := NewFakeRemote(model.Viewer{ID: "me", DisplayName: "Me"})
	f.AddItem(model.GridItem{ID: "v1", LikeCount: 5, Coordinate: model.Coordinate{Column: 0, Row: 0}})
	ctx := context.Background()

	res, err := f.PostLikeToggle(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, model.LikeResult{State: model.StateLiked, Count: 6}, res)

	top, err := f.PostComment(ctx, "v1", "hello", "")
	require.NoError(t, err)
	reply, err := f.PostComment(ctx, "v1", "re", top.ID)
	require.NoError(t, err)
	nested, err := f.PostComment(ctx, "v1", "re re", reply.ID)
	require.NoError(t, err)
	assert.Equal(t, top.ID, nested.ParentID)

	list, err := f.GetComments(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Replies, 2)

	res, err = f.PostCommentLikeToggle(ctx, reply.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateLiked, res.State)
}

func TestManualDispatcher_CallOpHoldsCompletion(t *testing.T) {
	d := NewManualDispatcher()
	calls := 0
	var got error
	delivered := false
	d.Dispatch("read", func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	}, func(err error) { got, delivered = err, true })

	require.NoError(t, d.CallOp("read"))
	assert.Equal(t, 1, calls)
	assert.False(t, delivered)
	assert.Error(t, d.CallOp("read"), "already executed")

	require.True(t, d.RunNext())
	assert.Equal(t, 1, calls, "the call is not repeated")
	assert.True(t, delivered)
	assert.EqualError(t, got, "boom")
}
