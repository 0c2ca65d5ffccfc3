package grid

import (
	"sort"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

// Grid maps coordinates to items and keeps a per-column row index.
type Grid struct {
	cells   map[model.Coordinate]model.GridItem
	byID    map[string]model.Coordinate
	columns map[int]map[int]struct{}
	pins    map[string]int

	// seq counts local updates; touched holds the seq of each item's
	// latest one.
	seq     uint64
	touched map[string]uint64
}

// MergeResult summarises what a merge did.
type MergeResult struct {
	Added   int
	Updated int
	Moved   int
	Skipped int
}

// New creates an empty grid.
func New() *Grid {
	return &Grid{
		cells:   make(map[model.Coordinate]model.GridItem),
		byID:    make(map[string]model.Coordinate),
		columns: make(map[int]map[int]struct{}),
		pins:    make(map[string]int),
		touched: make(map[string]uint64),
	}
}

// Stamp returns the current local update stamp. A read dispatched at stamp
// s passes s to MergeSince and ClearColumnSince when it resolves.
func (g *Grid) Stamp() uint64 {
	return g.seq
}

// Merge folds a page of column into the grid.
//
// Items without an ID or whose coordinate lies in another column are
// skipped. An item already present by ID is overwritten; if it now sits at a
// different coordinate its old cell is dropped. An item landing on a cell
// held by a different ID evicts that ID. Pinned items keep their local
// LikedByViewer, LikeCount and CommentCount.
func (g *Grid) Merge(column int, page model.Page) MergeResult {
	return g.MergeSince(column, page, g.seq)
}

// MergeSince is Merge for a page read at stamp since. Items updated locally
// after since also keep their local fields, since the page predates them.
func (g *Grid) MergeSince(column int, page model.Page, since uint64) MergeResult {
	var res MergeResult
	for _, item := range page.Items {
		if item.ID == "" || item.Coordinate.Column != column {
			res.Skipped++
			continue
		}
		at := item.Coordinate

		prev, hadPrev := g.lookup(item.ID)
		keep := hadPrev && g.protected(item.ID, since)
		if hadPrev && prev.Coordinate != at {
			g.drop(prev.Coordinate)
			res.Moved++
		}
		if occupant, ok := g.cells[at]; ok && occupant.ID != item.ID {
			delete(g.byID, occupant.ID)
			delete(g.touched, occupant.ID)
		}

		if keep {
			item.LikedByViewer = prev.LikedByViewer
			item.LikeCount = prev.LikeCount
			item.CommentCount = prev.CommentCount
		}

		g.put(item)
		if hadPrev {
			res.Updated++
		} else {
			res.Added++
		}
	}
	return res
}

// protected reports whether id's local fields must survive a page read at
// stamp since.
func (g *Grid) protected(id string, since uint64) bool {
	return g.pins[id] > 0 || g.touched[id] > since
}

func (g *Grid) lookup(id string) (model.GridItem, bool) {
	at, ok := g.byID[id]
	if !ok {
		return model.GridItem{}, false
	}
	item, ok := g.cells[at]
	return item, ok
}

func (g *Grid) put(item model.GridItem) {
	at := item.Coordinate
	g.cells[at] = item
	g.byID[item.ID] = at
	rows, ok := g.columns[at.Column]
	if !ok {
		rows = make(map[int]struct{})
		g.columns[at.Column] = rows
	}
	rows[at.Row] = struct{}{}
}

func (g *Grid) drop(at model.Coordinate) {
	item, ok := g.cells[at]
	if !ok {
		return
	}
	delete(g.cells, at)
	if g.byID[item.ID] == at {
		delete(g.byID, item.ID)
	}
	if rows := g.columns[at.Column]; rows != nil {
		delete(rows, at.Row)
		if len(rows) == 0 {
			delete(g.columns, at.Column)
		}
	}
}

// ItemsForColumn returns copies of the column's items in row order.
func (g *Grid) ItemsForColumn(column int) []model.GridItem {
	rows := g.columns[column]
	items := make([]model.GridItem, 0, len(rows))
	for row := range rows {
		items = append(items, g.cells[model.Coordinate{Column: column, Row: row}])
	}
	model.SortByRow(items)
	return items
}

// Item returns a copy of the item with id.
func (g *Grid) Item(id string) (model.GridItem, bool) {
	return g.lookup(id)
}

// Update applies fn to the item with id. The ID and coordinate cannot be
// changed through fn. Returns false if the item is not in the grid.
func (g *Grid) Update(id string, fn func(*model.GridItem)) bool {
	item, ok := g.lookup(id)
	if !ok {
		return false
	}
	at := item.Coordinate
	fn(&item)
	item.ID = id
	item.Coordinate = at
	g.cells[at] = item
	g.seq++
	g.touched[id] = g.seq
	return true
}

// Pin protects the counters of id from being overwritten by merges.
// Pins are reference counted.
func (g *Grid) Pin(id string) {
	g.pins[id]++
}

// Unpin releases one pin on id.
func (g *Grid) Unpin(id string) {
	switch n := g.pins[id]; {
	case n > 1:
		g.pins[id] = n - 1
	case n == 1:
		delete(g.pins, id)
	}
}

// Pinned reports whether id has at least one pin.
func (g *Grid) Pinned(id string) bool {
	return g.pins[id] > 0
}

// ClearColumn drops every unpinned item of column and returns how many
// were removed.
func (g *Grid) ClearColumn(column int) int {
	return g.ClearColumnSince(column, g.seq)
}

// ClearColumnSince is ClearColumn ahead of a reload read at stamp since.
// Items updated locally after since are kept as well.
func (g *Grid) ClearColumnSince(column int, since uint64) int {
	n := 0
	for row := range g.columns[column] {
		at := model.Coordinate{Column: column, Row: row}
		id := g.cells[at].ID
		if g.protected(id, since) {
			continue
		}
		g.drop(at)
		delete(g.touched, id)
		n++
	}
	return n
}

// Columns lists the columns holding at least one item, ascending.
func (g *Grid) Columns() []int {
	cols := make([]int, 0, len(g.columns))
	for c := range g.columns {
		cols = append(cols, c)
	}
	sort.Ints(cols)
	return cols
}

// Len returns the number of occupied cells.
func (g *Grid) Len() int {
	return len(g.cells)
}

// ColumnLen returns the number of items held for column.
func (g *Grid) ColumnLen(column int) int {
	return len(g.columns[column])
}
