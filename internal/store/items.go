package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

// InsertItem writes an item into the grid.
// Assigns a UUIDv7 ID and a created_at stamp when they are empty.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - re-inserting the same ID
// is silently ignored. A second item at an occupied coordinate is an error.
func (s *Store) InsertItem(ctx context.Context, item model.GridItem) (model.GridItem, error) {
	if item.ID == "" {
		item.ID = s.newID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	if item.Access == "" {
		item.Access = model.AccessPublic
	}
	if !model.ValidKinds[item.Kind] {
		return model.GridItem{}, fmt.Errorf("insert item: invalid kind %q", item.Kind)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items
		(id, kind, owner_id, access, grid_column, grid_row, title, media_url, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		item.ID,
		string(item.Kind),
		item.OwnerID,
		string(item.Access),
		item.Coordinate.Column,
		item.Coordinate.Row,
		item.Title,
		item.MediaURL,
		item.Body,
		toMillis(item.CreatedAt),
	)
	if err != nil {
		return model.GridItem{}, fmt.Errorf("insert item: %w", err)
	}

	item.CreatedAt = fromMillis(toMillis(item.CreatedAt))
	return item, nil
}

// ListPopulatedColumns returns every column index holding at least one item,
// ascending.
//
// Returns an empty slice (not nil) for an empty grid.
func (s *Store) ListPopulatedColumns(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT grid_column FROM items
		ORDER BY grid_column ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	columns := []int{}
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// FetchColumnPage reads up to limit items of a column starting at offset,
// ordered by row ascending. viewerID is used only to evaluate LikedByViewer.
//
// An unknown column yields an empty slice, not an error.
func (s *Store) FetchColumnPage(ctx context.Context, viewerID string, column, offset, limit int) ([]model.GridItem, error) {
	if column < 0 || limit <= 0 {
		return []model.GridItem{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.kind, i.owner_id, i.access, i.grid_column, i.grid_row,
		       i.title, i.media_url, i.body, i.created_at,
		       (SELECT COUNT(*) FROM item_likes l WHERE l.item_id = i.id),
		       EXISTS (SELECT 1 FROM item_likes l WHERE l.item_id = i.id AND l.user_id = ?),
		       (SELECT COUNT(*) FROM comments c WHERE c.item_id = i.id)
		FROM items i
		WHERE i.grid_column = ?
		ORDER BY i.grid_row ASC, i.id COLLATE BINARY ASC
		LIMIT ? OFFSET ?
	`, viewerID, column, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query column page: %w", err)
	}
	defer rows.Close()

	items := []model.GridItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column page: %w", err)
	}
	return items, nil
}

// ReadItem retrieves a single item by ID as seen by viewerID.
// Returns ErrNotFound if the item does not exist.
func (s *Store) ReadItem(ctx context.Context, viewerID, id string) (model.GridItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.kind, i.owner_id, i.access, i.grid_column, i.grid_row,
		       i.title, i.media_url, i.body, i.created_at,
		       (SELECT COUNT(*) FROM item_likes l WHERE l.item_id = i.id),
		       EXISTS (SELECT 1 FROM item_likes l WHERE l.item_id = i.id AND l.user_id = ?),
		       (SELECT COUNT(*) FROM comments c WHERE c.item_id = i.id)
		FROM items i
		WHERE i.id = ?
	`, viewerID, id)
	if err != nil {
		return model.GridItem{}, fmt.Errorf("read item: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.GridItem{}, fmt.Errorf("read item: %w", err)
		}
		return model.GridItem{}, fmt.Errorf("read item %s: %w", id, ErrNotFound)
	}
	return scanItem(rows)
}

// CountColumn returns how many items a column holds.
func (s *Store) CountColumn(ctx context.Context, column int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM items WHERE grid_column = ?
	`, column).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count column: %w", err)
	}
	return n, nil
}

// itemExists checks an item ID inside a query scope.
func itemExists(ctx context.Context, q queryer, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup item: %w", err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanItem scans a row produced by the item SELECT list.
func scanItem(rows *sql.Rows) (model.GridItem, error) {
	var item model.GridItem
	var kind, access string
	var createdAt int64
	var liked bool

	if err := rows.Scan(
		&item.ID, &kind, &item.OwnerID, &access,
		&item.Coordinate.Column, &item.Coordinate.Row,
		&item.Title, &item.MediaURL, &item.Body, &createdAt,
		&item.LikeCount, &liked, &item.CommentCount,
	); err != nil {
		return model.GridItem{}, fmt.Errorf("scan item: %w", err)
	}

	item.Kind = model.ItemKind(kind)
	item.Access = model.AccessLevel(access)
	item.CreatedAt = fromMillis(createdAt)
	item.LikedByViewer = liked
	return item, nil
}
