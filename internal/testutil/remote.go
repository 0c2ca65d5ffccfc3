package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

// Collaborator operation names used for failure injection and call logs.
const (
	OpListColumns       = "list_columns"
	OpFetchPage         = "fetch_page"
	OpToggleLike        = "toggle_like"
	OpPostComment       = "post_comment"
	OpToggleCommentLike = "toggle_comment_like"
	OpGetComments       = "get_comments"
)

// FakeRemote is an in-memory collaborator. It satisfies pager.Source and
// ledger.Remote, keeps authoritative like and comment state, and can be told
// to fail specific operations.
type FakeRemote struct {
	mu       sync.Mutex
	viewer   model.Viewer
	columns  map[int][]model.GridItem
	likes    map[string]model.UserSet
	comments map[string][]*model.Comment
	failNext map[string][]error
	failAll  map[string]error
	calls    []string
	newID    func() string
	now      time.Time
}

// NewFakeRemote creates an empty fake acting for viewer.
func NewFakeRemote(viewer model.Viewer) *FakeRemote {
	return &FakeRemote{
		viewer:   viewer,
		columns:  map[int][]model.GridItem{},
		likes:    map[string]model.UserSet{},
		comments: map[string][]*model.Comment{},
		failNext: map[string][]error{},
		failAll:  map[string]error{},
		newID:    SequenceIDs("srv-"),
		now:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// AddItem places an item in the fake grid.
func (f *FakeRemote) AddItem(item model.GridItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	col := item.Coordinate.Column
	f.columns[col] = append(f.columns[col], item)
	model.SortByRow(f.columns[col])
	if _, ok := f.likes[item.ID]; !ok {
		f.likes[item.ID] = model.NewUserSet()
	}
	if item.LikedByViewer {
		f.likes[item.ID][f.viewer.ID] = struct{}{}
	}
	// Pad with anonymous likers so the count matches the fixture.
	for i := len(f.likes[item.ID]); i < item.LikeCount; i++ {
		f.likes[item.ID][fmt.Sprintf("anon-%d", i)] = struct{}{}
	}
}

// AddColumn fills column with n items at rows 0, step, 2*step, ... whose IDs
// are "<prefix><index>" starting at 1.
func (f *FakeRemote) AddColumn(column, n, step int, prefix string) {
	if step <= 0 {
		step = 1
	}
	for i := 0; i < n; i++ {
		f.AddItem(model.GridItem{
			ID:         fmt.Sprintf("%s%d", prefix, i+1),
			Kind:       model.KindVideo,
			OwnerID:    "owner",
			Access:     model.AccessPublic,
			Coordinate: model.Coordinate{Column: column, Row: i * step},
		})
	}
}

// RemoveItem deletes an item from the fake grid.
func (f *FakeRemote) RemoveItem(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for col, items := range f.columns {
		for i, it := range items {
			if it.ID == id {
				f.columns[col] = append(items[:i:i], items[i+1:]...)
				delete(f.likes, id)
				return true
			}
		}
	}
	return false
}

// AddComment seeds an authoritative comment.
func (f *FakeRemote) AddComment(c *model.Comment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.LikedBy == nil {
		c.LikedBy = model.NewUserSet()
	}
	if c.ParentID == "" {
		f.comments[c.ItemID] = append([]*model.Comment{c}, f.comments[c.ItemID]...)
		return
	}
	for _, top := range f.comments[c.ItemID] {
		if top.ID == c.ParentID {
			top.Replies = append([]*model.Comment{c}, top.Replies...)
			return
		}
	}
}

// FailNext makes the next call of op fail with err (ErrInjected if nil).
// Multiple calls queue multiple failures.
func (f *FakeRemote) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	f.failNext[op] = append(f.failNext[op], err)
}

// FailAlways makes every call of op fail with err until cleared with nil.
func (f *FakeRemote) FailAlways(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failAll, op)
		return
	}
	f.failAll[op] = err
}

// Calls returns the call log ("op key" entries) in order.
func (f *FakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount counts logged calls of op.
func (f *FakeRemote) CallCount(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, op+" ") || c == op {
			n++
		}
	}
	return n
}

// LikeCount returns the authoritative like count of an item.
func (f *FakeRemote) LikeCount(itemID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.likes[itemID])
}

// record logs a call and returns any injected failure. Caller holds mu.
func (f *FakeRemote) record(op, key string) error {
	f.calls = append(f.calls, strings.TrimSpace(op+" "+key))
	if queued := f.failNext[op]; len(queued) > 0 {
		f.failNext[op] = queued[1:]
		return queued[0]
	}
	return f.failAll[op]
}

// ListPopulatedColumns implements pager.Source.
func (f *FakeRemote) ListPopulatedColumns(ctx context.Context) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpListColumns, ""); err != nil {
		return nil, err
	}
	cols := make([]int, 0, len(f.columns))
	for c, items := range f.columns {
		if len(items) > 0 {
			cols = append(cols, c)
		}
	}
	sort.Ints(cols)
	return cols, nil
}

// FetchColumnPage implements pager.Source.
func (f *FakeRemote) FetchColumnPage(ctx context.Context, column, offset, limit int) (model.ColumnWindow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpFetchPage, fmt.Sprintf("%d@%d", column, offset)); err != nil {
		return model.ColumnWindow{}, err
	}
	all := f.columns[column]
	if offset >= len(all) {
		return model.ColumnWindow{Items: []model.GridItem{}}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	items := make([]model.GridItem, 0, end-offset)
	for _, it := range all[offset:end] {
		it.LikeCount = len(f.likes[it.ID])
		it.LikedByViewer = f.likes[it.ID].Has(f.viewer.ID)
		it.CommentCount = f.countComments(it.ID)
		items = append(items, it)
	}
	return model.ColumnWindow{Items: items, TotalReturned: len(items)}, nil
}

func (f *FakeRemote) countComments(itemID string) int {
	n := 0
	for _, c := range f.comments[itemID] {
		n += 1 + len(c.Replies)
	}
	return n
}

// PostLikeToggle implements ledger.Remote.
func (f *FakeRemote) PostLikeToggle(ctx context.Context, itemID string) (model.LikeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpToggleLike, itemID); err != nil {
		return model.LikeResult{}, err
	}
	set, ok := f.likes[itemID]
	if !ok {
		return model.LikeResult{}, fmt.Errorf("item %s: not found", itemID)
	}
	liked := set.Toggle(f.viewer.ID)
	return model.LikeResult{State: model.LikeStateOf(liked), Count: len(set)}, nil
}

// PostComment implements ledger.Remote.
func (f *FakeRemote) PostComment(ctx context.Context, itemID, text, parentID string) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpPostComment, itemID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("comment text is empty")
	}
	c := &model.Comment{
		ID:        f.newID(),
		ItemID:    itemID,
		Author:    f.viewer.Author(),
		Text:      strings.TrimSpace(text),
		CreatedAt: f.now,
		LikedBy:   model.NewUserSet(),
	}
	if parentID == "" {
		f.comments[itemID] = append([]*model.Comment{c}, f.comments[itemID]...)
		return c.Clone(), nil
	}
	for _, top := range f.comments[itemID] {
		if top.ID == parentID {
			c.ParentID = top.ID
			top.Replies = append([]*model.Comment{c}, top.Replies...)
			return c.Clone(), nil
		}
		for _, r := range top.Replies {
			if r.ID == parentID {
				c.ParentID = top.ID
				top.Replies = append([]*model.Comment{c}, top.Replies...)
				return c.Clone(), nil
			}
		}
	}
	return nil, fmt.Errorf("parent %s: not found", parentID)
}

// PostCommentLikeToggle implements ledger.Remote.
func (f *FakeRemote) PostCommentLikeToggle(ctx context.Context, commentID string) (model.LikeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpToggleCommentLike, commentID); err != nil {
		return model.LikeResult{}, err
	}
	for _, list := range f.comments {
		for _, top := range list {
			if c := findComment(top, commentID); c != nil {
				liked := c.LikedBy.Toggle(f.viewer.ID)
				return model.LikeResult{State: model.LikeStateOf(liked), Count: len(c.LikedBy)}, nil
			}
		}
	}
	return model.LikeResult{}, fmt.Errorf("comment %s: not found", commentID)
}

func findComment(top *model.Comment, id string) *model.Comment {
	if top.ID == id {
		return top
	}
	for _, r := range top.Replies {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// GetComments implements ledger.Remote.
func (f *FakeRemote) GetComments(ctx context.Context, itemID string) ([]*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpGetComments, itemID); err != nil {
		return nil, err
	}
	out := make([]*model.Comment, 0, len(f.comments[itemID]))
	for _, c := range f.comments[itemID] {
		out = append(out, c.Clone())
	}
	return out, nil
}
