package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortByRow(t *testing.T) {
	items := []GridItem{
		{ID: "c", Coordinate: Coordinate{Row: 7}},
		{ID: "a", Coordinate: Coordinate{Row: 2}},
		{ID: "b", Coordinate: Coordinate{Row: 2}},
		{ID: "d", Coordinate: Coordinate{Row: 0}},
	}

	SortByRow(items)

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids)
}

func TestPageExhausted(t *testing.T) {
	assert.True(t, Page{}.Exhausted())
	assert.False(t, Page{Next: &Cursor{Offset: 10}}.Exhausted())
}

func TestUserSet_Toggle(t *testing.T) {
	s := NewUserSet("u1")

	assert.False(t, s.Toggle("u1"))
	assert.False(t, s.Has("u1"))
	assert.True(t, s.Toggle("u2"))
	assert.Equal(t, []string{"u2"}, s.Sorted())
}

func TestUserSet_JSON(t *testing.T) {
	data, err := json.Marshal(NewUserSet("b", "a"))
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(data))

	var s UserSet
	require.NoError(t, json.Unmarshal([]byte(`["x","y"]`), &s))
	assert.True(t, s.Has("x"))
	assert.Len(t, s, 2)
}

func TestComment_CloneIsDeep(t *testing.T) {
	c := &Comment{
		ID:      "c1",
		LikedBy: NewUserSet("u1"),
		Replies: []*Comment{{ID: "r1", ParentID: "c1", LikedBy: NewUserSet()}},
	}

	cp := c.Clone()
	cp.LikedBy.Toggle("u2")
	cp.Replies[0].Text = "changed"

	assert.Equal(t, 1, c.LikeCount())
	assert.Equal(t, 2, cp.LikeCount())
	assert.Empty(t, c.Replies[0].Text)
	assert.True(t, cp.Replies[0].IsReply())
}

func TestFeedError_Helpers(t *testing.T) {
	base := errors.New("connection reset")
	fetch := fmt.Errorf("load: %w", NewFetchError("fetch_page", 3, base))

	assert.True(t, IsFetchError(fetch))
	assert.False(t, IsValidationError(fetch))
	assert.ErrorIs(t, fetch, base)
	assert.Contains(t, fetch.Error(), "column=3")

	assert.True(t, IsValidationError(NewValidationError("submit_comment", "v1", "text is empty")))
	assert.True(t, IsMutationError(NewMutationError("toggle_like", "v1", base)))
	assert.True(t, IsTimeout(NewTimeoutError("toggle_like", nil)))
	assert.True(t, IsNotFound(NewNotFoundError("get_comments", "v9")))
	assert.False(t, IsTimeout(base))
}

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"sorted keys", map[string]any{"b": 1, "a": true}, `{"a":true,"b":1}`},
		{"no html escape", map[string]any{"t": "<b>&"}, `{"t":"<b>&"}`},
		{"nested", map[string]any{"x": []any{"a", int64(2)}}, `{"x":["a",2]}`},
		{"string slice", []string{"q", "r"}, `["q","r"]`},
		{"nfc", "e\u0301", "\"\u00e9\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"f": 1.5})
	assert.Error(t, err)

	_, err = MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(struct{}{})
	assert.Error(t, err)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "hello", NormalizeText("  hello \n"))
	assert.Equal(t, "\u00e9", NormalizeText("e\u0301"))
	assert.Equal(t, "", NormalizeText(" \t  "))
}
