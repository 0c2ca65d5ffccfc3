package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawelekbyra/gridfeed/internal/api"
	"github.com/pawelekbyra/gridfeed/internal/eventloop"
	"github.com/pawelekbyra/gridfeed/internal/feed"
	"github.com/pawelekbyra/gridfeed/internal/model"
	"github.com/pawelekbyra/gridfeed/internal/store"
)

var alice = model.Viewer{ID: "alice", DisplayName: "Alice"}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBackend(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	srv := httptest.NewServer(api.NewServer(s, quiet()))
	t.Cleanup(srv.Close)
	return srv, s
}

func seed(t *testing.T, s *store.Store, column, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := s.InsertItem(context.Background(), model.GridItem{
			ID:         fmt.Sprintf("v%d", i+1),
			Kind:       model.KindVideo,
			OwnerID:    "owner",
			Coordinate: model.Coordinate{Column: column, Row: i},
		})
		require.NoError(t, err)
	}
}

func TestClient_Collaborators(t *testing.T) {
	srv, s := newBackend(t)
	seed(t, s, 0, 3)
	c := New(srv.URL, alice, WithHTTPClient(srv.Client()))
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	cols, err := c.ListPopulatedColumns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, cols)

	win, err := c.FetchColumnPage(ctx, 0, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, win.TotalReturned)
	assert.Equal(t, "v2", win.Items[0].ID)

	win, err = c.FetchColumnPage(ctx, 5, 0, 10)
	require.NoError(t, err)
	assert.NotNil(t, win.Items)
	assert.Empty(t, win.Items)

	res, err := c.PostLikeToggle(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, model.LikeResult{State: model.StateLiked, Count: 1}, res)

	top, err := c.PostComment(ctx, "v1", "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "Alice", top.Author.DisplayName)

	reply, err := c.PostComment(ctx, "v1", "re", top.ID)
	require.NoError(t, err)
	assert.Equal(t, top.ID, reply.ParentID)

	res, err = c.PostCommentLikeToggle(ctx, top.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateLiked, res.State)

	list, err := c.GetComments(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].LikedBy.Has("alice"))
	assert.Len(t, list[0].Replies, 1)
}

func TestClient_Errors(t *testing.T) {
	srv, s := newBackend(t)
	seed(t, s, 0, 1)
	ctx := context.Background()

	anon := New(srv.URL, model.Viewer{})
	_, err := anon.PostLikeToggle(ctx, "v1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, api.CodeUnauthorized, apiErr.Code)

	c := New(srv.URL+"/", alice)
	_, err = c.PostLikeToggle(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.PostComment(ctx, "v1", "   ", "")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
}

func TestClient_PathEscaping(t *testing.T) {
	srv, s := newBackend(t)
	_, err := s.InsertItem(context.Background(), model.GridItem{
		ID:         "odd id/with slash",
		Kind:       model.KindImage,
		Coordinate: model.Coordinate{Column: 0, Row: 0},
	})
	require.NoError(t, err)

	c := New(srv.URL, alice)
	res, err := c.PostLikeToggle(context.Background(), "odd id/with slash")
	require.NoError(t, err)
	assert.Equal(t, model.StateLiked, res.State)
}

// TestFeedOverHTTP drives the full client stack: controller on an event
// loop, collaborator calls over HTTP, SQLite behind the server.
func TestFeedOverHTTP(t *testing.T) {
	srv, s := newBackend(t)
	seed(t, s, 0, 23)

	loop := eventloop.New(eventloop.WithLogger(quiet()), eventloop.WithTimeout(5*time.Second))
	go func() { _ = loop.Run(context.Background()) }()
	t.Cleanup(loop.Stop)

	remote := New(srv.URL, alice)
	ctl := feed.New(remote, remote, loop, alice, feed.WithLogger(quiet()))
	runner := feed.NewRunner(ctl, loop)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cols, err := runner.LoadColumns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, cols)

	var opErr error
	require.NoError(t, runner.Do(ctx, func(c *feed.Controller) {
		opErr = c.SelectColumn(0)
	}))
	require.NoError(t, opErr)
	pages, err := runner.FetchAll(ctx, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pages, 2)

	var status feed.ColumnStatus
	var pos int
	require.NoError(t, runner.Do(ctx, func(c *feed.Controller) {
		pos, _ = c.Measure(800)
		status = c.State(0)
	}))
	assert.Equal(t, 23, status.Loaded)
	assert.Equal(t, "LOOPED", status.State)
	assert.Equal(t, 23*800, pos)

	require.NoError(t, runner.Do(ctx, func(c *feed.Controller) {
		opErr = c.ToggleLike("v1")
	}))
	require.NoError(t, opErr)
	require.NoError(t, runner.Settle(ctx))

	var item model.GridItem
	require.NoError(t, runner.Do(ctx, func(c *feed.Controller) {
		item, _ = c.Item("v1")
	}))
	assert.True(t, item.LikedByViewer)
	assert.Equal(t, 1, item.LikeCount)

	got, err := s.ReadItem(ctx, "alice", "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikeCount)
}
