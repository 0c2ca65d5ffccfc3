// Package pager turns a column of the backing grid into cursor-based pages.
//
// The pager owns the pagination contract: a fixed page size P, an
// offset-style cursor that advances by exactly the number of items returned,
// and the end-of-data signal (a page shorter than P carries a nil next
// cursor). It never retries; retry policy belongs to the caller.
//
// Reads are not snapshot-isolated. If items are inserted ahead of a cursor
// while a column is being paged, later pages shift and an item may be seen
// twice or skipped. That anomaly is tolerated: the grid assembler keys by
// coordinate, so a repeat is absorbed as an overwrite.
package pager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

// DefaultPageSize is the page size of the reference deployment.
const DefaultPageSize = 10

// Source is the paginated data source behind the pager.
// Implemented by store.Session (in-process), client.Client (HTTP) and
// testutil.FakeRemote (tests).
type Source interface {
	ListPopulatedColumns(ctx context.Context) ([]int, error)
	FetchColumnPage(ctx context.Context, column, offset, limit int) (model.ColumnWindow, error)
}

// Pager fetches pages of one grid column at a time.
type Pager struct {
	source   Source
	pageSize int
	logger   *slog.Logger
}

// Option configures a Pager.
type Option func(*Pager)

// WithPageSize sets P. Values below 1 are ignored.
func WithPageSize(n int) Option {
	return func(p *Pager) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// WithLogger sets the logger used for page diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pager) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a pager over source.
func New(source Source, opts ...Option) *Pager {
	p := &Pager{
		source:   source,
		pageSize: DefaultPageSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PageSize returns P.
func (p *Pager) PageSize() int {
	return p.pageSize
}

// Columns lists the populated column indices.
// A source failure is returned as a fetch error.
func (p *Pager) Columns(ctx context.Context) ([]int, error) {
	cols, err := p.source.ListPopulatedColumns(ctx)
	if err != nil {
		return nil, &model.FeedError{
			Code:    model.ErrCodeFetchFailed,
			Op:      "list_columns",
			Message: "column listing failed",
			Err:     err,
		}
	}
	if cols == nil {
		cols = []int{}
	}
	return cols, nil
}

// FetchPage returns the page of column starting at cursor.
//
// Items are ordered by row ascending. If fewer than P items come back the
// column is exhausted and Next is nil; otherwise Next advances the offset by
// exactly the number of items returned. A negative or unknown column yields
// an empty, exhausted page. A source failure is returned as a retryable fetch
// error and no page is produced.
func (p *Pager) FetchPage(ctx context.Context, column int, cursor model.Cursor) (model.Page, error) {
	page := model.Page{Column: column, Items: []model.GridItem{}}
	if column < 0 {
		return page, nil
	}
	if cursor.Offset < 0 {
		return page, fmt.Errorf("fetch page: negative cursor offset %d", cursor.Offset)
	}

	win, err := p.source.FetchColumnPage(ctx, column, cursor.Offset, p.pageSize)
	if err != nil {
		return model.Page{}, model.NewFetchError("fetch_page", column, err)
	}

	items := win.Items
	if len(items) > p.pageSize {
		// A source returning more than asked would break cursor arithmetic.
		p.logger.Warn("source returned oversized page",
			"column", column,
			"offset", cursor.Offset,
			"returned", len(items),
			"page_size", p.pageSize,
		)
		items = items[:p.pageSize]
	}
	items = append([]model.GridItem(nil), items...)
	model.SortByRow(items)
	if items == nil {
		items = []model.GridItem{}
	}
	page.Items = items

	if len(items) == p.pageSize {
		page.Next = &model.Cursor{Offset: cursor.Offset + len(items)}
	}

	p.logger.Debug("page fetched",
		"column", column,
		"offset", cursor.Offset,
		"returned", len(items),
		"exhausted", page.Exhausted(),
	)
	return page, nil
}
