package model

import (
	"fmt"
	"sort"
	"time"
)

// Coordinate uniquely identifies a grid cell.
type Coordinate struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}

// String renders the coordinate as "column:row".
func (c Coordinate) String() string {
	return fmt.Sprintf("%d:%d", c.Column, c.Row)
}

// ItemKind tags the content carried by a GridItem.
type ItemKind string

const (
	KindVideo ItemKind = "video"
	KindHTML  ItemKind = "html"
	KindImage ItemKind = "image"
)

// ValidKinds defines allowed item kinds.
var ValidKinds = map[ItemKind]bool{
	KindVideo: true,
	KindHTML:  true,
	KindImage: true,
}

// AccessLevel gates whether an item may be rendered to a viewer.
type AccessLevel string

const (
	AccessPublic AccessLevel = "public"
	AccessSecret AccessLevel = "secret"
)

// GridItem is one cell of the content grid.
//
// The kind payload fields are optional: video items carry MediaURL (an HLS
// playlist), image items carry MediaURL, html items carry Body.
type GridItem struct {
	ID            string      `json:"id"`
	Kind          ItemKind    `json:"kind"`
	OwnerID       string      `json:"owner_id"`
	Access        AccessLevel `json:"access"`
	CreatedAt     time.Time   `json:"created_at"`
	LikeCount     int         `json:"like_count"`
	LikedByViewer bool        `json:"liked_by_viewer"`
	CommentCount  int         `json:"comment_count"`
	Coordinate    Coordinate  `json:"coordinate"`

	Title    string `json:"title,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
	Body     string `json:"body,omitempty"`
}

// Cursor records how far pagination has progressed in a column.
// The zero value is the initial cursor.
type Cursor struct {
	Offset int `json:"offset"`
}

// InitialCursor starts pagination at the head of a column.
var InitialCursor = Cursor{}

// Page is an ordered window of one column.
// Next is nil once the column is exhausted.
type Page struct {
	Column int        `json:"column"`
	Items  []GridItem `json:"items"`
	Next   *Cursor    `json:"next,omitempty"`
}

// ColumnWindow is the raw result of an offset/limit read of one column.
type ColumnWindow struct {
	Items         []GridItem `json:"items"`
	TotalReturned int        `json:"total_returned"`
}

// Exhausted reports whether this page is the last one for its column.
func (p Page) Exhausted() bool {
	return p.Next == nil
}

// SortByRow orders items by row ascending, breaking ties by ID so the
// result is deterministic.
func SortByRow(items []GridItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Coordinate.Row != items[j].Coordinate.Row {
			return items[i].Coordinate.Row < items[j].Coordinate.Row
		}
		return items[i].ID < items[j].ID
	})
}

// LikeState is the authoritative outcome of a like toggle.
type LikeState string

const (
	StateLiked   LikeState = "liked"
	StateUnliked LikeState = "unliked"
)

// LikeStateOf converts a boolean membership into a LikeState.
func LikeStateOf(liked bool) LikeState {
	if liked {
		return StateLiked
	}
	return StateUnliked
}

// LikeResult is returned by the like-toggle collaborators.
// Comment likes may leave Count zero; their count derives from LikedBy.
type LikeResult struct {
	State LikeState `json:"state"`
	Count int       `json:"count,omitempty"`
}

// Author is the display info attached to a comment.
type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Viewer identifies the current session's user.
type Viewer struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Author returns the viewer as comment author info.
func (v Viewer) Author() Author {
	return Author{ID: v.ID, DisplayName: v.DisplayName}
}
