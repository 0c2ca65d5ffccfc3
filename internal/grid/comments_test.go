package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

func comment(id, parent, text string, replies ...*model.Comment) *model.Comment {
	return &model.Comment{
		ID:       id,
		ItemID:   "v1",
		ParentID: parent,
		Text:     text,
		LikedBy:  model.NewUserSet(),
		Replies:  replies,
	}
}

func texts(list []*model.Comment) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.Text
	}
	return out
}

func loadedBoard() *Comments {
	b := NewComments()
	b.Load("v1", []*model.Comment{
		comment("c2", "", "second", comment("r1", "c2", "reply")),
		comment("c1", "", "first"),
	})
	return b
}

func TestComments_LoadAndFind(t *testing.T) {
	b := loadedBoard()

	assert.True(t, b.Loaded("v1"))
	assert.False(t, b.Loaded("v2"))
	assert.Equal(t, []string{"second", "first"}, texts(b.TopLevel("v1")))
	assert.Equal(t, 3, b.Count("v1"))

	r, ok := b.Find("r1")
	require.True(t, ok)
	assert.Equal(t, "c2", r.ParentID)

	item, ok := b.ItemOf("r1")
	require.True(t, ok)
	assert.Equal(t, "v1", item)
}

func TestComments_InsertHeadTopLevel(t *testing.T) {
	b := loadedBoard()
	require.NoError(t, b.InsertHead("v1", "", comment("tmp-1", "", "hello")))

	top := b.TopLevel("v1")
	require.Len(t, top, 3)
	assert.Equal(t, "hello", top[0].Text)
	assert.Equal(t, "v1", top[0].ItemID)
}

func TestComments_ReplyToReplyFlattens(t *testing.T) {
	b := loadedBoard()
	require.NoError(t, b.InsertHead("v1", "r1", comment("tmp-1", "", "nested")))

	c2, ok := b.Find("c2")
	require.True(t, ok)
	require.Len(t, c2.Replies, 2)
	assert.Equal(t, "nested", c2.Replies[0].Text)
	assert.Equal(t, "c2", c2.Replies[0].ParentID)
}

func TestComments_InsertHeadUnknownParent(t *testing.T) {
	b := loadedBoard()
	assert.Error(t, b.InsertHead("v1", "nope", comment("tmp-1", "", "x")))
	assert.Error(t, b.InsertHead("v2", "c1", comment("tmp-2", "", "x")), "parent on another item")
	assert.Equal(t, 3, b.Count("v1"))
}

func TestComments_ReplaceKeepsPosition(t *testing.T) {
	b := loadedBoard()
	require.NoError(t, b.InsertHead("v1", "", comment("tmp-1", "", "hello")))
	require.NoError(t, b.InsertHead("v1", "", comment("tmp-2", "", "later")))

	require.True(t, b.Replace("tmp-1", comment("srv-1", "", "hello")))

	assert.Equal(t, []string{"later", "hello", "second", "first"}, texts(b.TopLevel("v1")))
	_, ok := b.Find("tmp-1")
	assert.False(t, ok)
	got, ok := b.Find("srv-1")
	require.True(t, ok)
	assert.Equal(t, "hello", got.Text)
	assert.False(t, b.Replace("tmp-1", comment("srv-9", "", "x")))
}

func TestComments_ReplaceReply(t *testing.T) {
	b := loadedBoard()
	require.NoError(t, b.InsertHead("v1", "c1", comment("tmp-1", "", "re")))

	require.True(t, b.Replace("tmp-1", comment("srv-1", "", "re")))

	c1, _ := b.Find("c1")
	require.Len(t, c1.Replies, 1)
	assert.Equal(t, "srv-1", c1.Replies[0].ID)
	assert.Equal(t, "c1", c1.Replies[0].ParentID)
}

func TestComments_RemoveSearchesBothLevels(t *testing.T) {
	b := loadedBoard()
	require.NoError(t, b.InsertHead("v1", "", comment("tmp-top", "", "a")))
	require.NoError(t, b.InsertHead("v1", "c2", comment("tmp-reply", "", "b")))
	require.Equal(t, 5, b.Count("v1"))

	_, ok := b.Remove("tmp-reply")
	require.True(t, ok)
	_, ok = b.Remove("tmp-top")
	require.True(t, ok)

	assert.Equal(t, 3, b.Count("v1"))
	assert.Equal(t, []string{"second", "first"}, texts(b.TopLevel("v1")))
	_, ok = b.Remove("tmp-top")
	assert.False(t, ok)
}

func TestComments_LoadKeepsPending(t *testing.T) {
	b := loadedBoard()
	top := comment("tmp-1", "", "pending top")
	top.Pending = true
	reply := comment("tmp-2", "", "pending reply")
	reply.Pending = true
	require.NoError(t, b.InsertHead("v1", "", top))
	require.NoError(t, b.InsertHead("v1", "c1", reply))

	b.Load("v1", []*model.Comment{
		comment("c3", "", "third"),
		comment("c1", "", "first"),
	})

	assert.Equal(t, []string{"pending top", "third", "first"}, texts(b.TopLevel("v1")))
	c1, ok := b.Find("c1")
	require.True(t, ok)
	require.Len(t, c1.Replies, 1)
	assert.Equal(t, "tmp-2", c1.Replies[0].ID)
	_, ok = b.Find("c2")
	assert.False(t, ok)
}

func TestComments_LoadSwapsDraftForServerCopy(t *testing.T) {
	b := loadedBoard()
	top := comment("tmp-1", "", "hello")
	top.Pending = true
	reply := comment("tmp-2", "", "re")
	reply.Pending = true
	require.NoError(t, b.InsertHead("v1", "", top))
	require.NoError(t, b.InsertHead("v1", "c1", reply))

	b.Load("v1", []*model.Comment{
		comment("c2", "", "second"),
		comment("srv-1", "", "hello"),
		comment("c1", "", "first", comment("srv-2", "c1", "re")),
	})

	assert.Equal(t, []string{"hello", "second", "first"}, texts(b.TopLevel("v1")))
	assert.Equal(t, 4, b.Count("v1"))
	_, ok := b.Find("tmp-1")
	assert.False(t, ok)
	_, ok = b.Find("tmp-2")
	assert.False(t, ok)
	c1, _ := b.Find("c1")
	require.Len(t, c1.Replies, 1)
	assert.Equal(t, "srv-2", c1.Replies[0].ID)
}

func TestComments_LoadKeepsDraftMatchingOlderComment(t *testing.T) {
	b := loadedBoard()
	draft := comment("tmp-1", "", "first")
	draft.Pending = true
	require.NoError(t, b.InsertHead("v1", "", draft))

	b.Load("v1", []*model.Comment{comment("c1", "", "first")})

	top := b.TopLevel("v1")
	require.Len(t, top, 2)
	assert.Equal(t, "tmp-1", top[0].ID)
	assert.Equal(t, "c1", top[1].ID)
}

func TestComments_ReplaceDropsSlotWhenAlreadyLoaded(t *testing.T) {
	b := loadedBoard()
	require.NoError(t, b.InsertHead("v1", "", comment("tmp-1", "", "again")))

	require.True(t, b.Replace("tmp-1", comment("c1", "", "first")))

	assert.Equal(t, []string{"second", "first"}, texts(b.TopLevel("v1")))
	_, ok := b.Find("tmp-1")
	assert.False(t, ok)
	assert.Equal(t, 3, b.Count("v1"))
}

func TestComments_UpdateRestoresIdentity(t *testing.T) {
	b := loadedBoard()
	ok := b.Update("r1", func(c *model.Comment) {
		c.ID = "other"
		c.ParentID = ""
		c.LikedBy.Toggle("me")
	})
	require.True(t, ok)

	r, ok := b.Find("r1")
	require.True(t, ok)
	assert.Equal(t, "c2", r.ParentID)
	assert.Equal(t, 1, r.LikeCount())
}

func TestComments_TopLevelReturnsCopies(t *testing.T) {
	b := loadedBoard()
	top := b.TopLevel("v1")
	top[0].Text = "mutated"
	top[0].Replies[0].Text = "mutated"

	assert.Equal(t, []string{"second", "first"}, texts(b.TopLevel("v1")))
	r, _ := b.Find("r1")
	assert.Equal(t, "reply", r.Text)
}
