package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

// ToggleItemLike flips userID's like on an item and returns the new state and
// aggregate count. Delete-then-insert runs in one transaction so two toggles
// never interleave.
func (s *Store) ToggleItemLike(ctx context.Context, userID, itemID string) (model.LikeResult, error) {
	if userID == "" {
		return model.LikeResult{}, fmt.Errorf("toggle item like: user id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.LikeResult{}, fmt.Errorf("toggle item like: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := itemExists(ctx, tx, itemID); err != nil {
		return model.LikeResult{}, fmt.Errorf("toggle item like: %w", err)
	}

	liked, err := toggleRow(ctx, tx, "item_likes", "item_id", itemID, userID)
	if err != nil {
		return model.LikeResult{}, fmt.Errorf("toggle item like: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM item_likes WHERE item_id = ?
	`, itemID).Scan(&count); err != nil {
		return model.LikeResult{}, fmt.Errorf("toggle item like: count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.LikeResult{}, fmt.Errorf("toggle item like: commit: %w", err)
	}

	return model.LikeResult{State: model.LikeStateOf(liked), Count: count}, nil
}

// ToggleCommentLike flips userID's membership in a comment's liking set.
// The returned Count is the set size after the toggle.
func (s *Store) ToggleCommentLike(ctx context.Context, userID, commentID string) (model.LikeResult, error) {
	if userID == "" {
		return model.LikeResult{}, fmt.Errorf("toggle comment like: user id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.LikeResult{}, fmt.Errorf("toggle comment like: begin tx: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM comments WHERE id = ?`, commentID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LikeResult{}, fmt.Errorf("toggle comment like: comment %s: %w", commentID, ErrNotFound)
	}
	if err != nil {
		return model.LikeResult{}, fmt.Errorf("toggle comment like: lookup: %w", err)
	}

	liked, err := toggleRow(ctx, tx, "comment_likes", "comment_id", commentID, userID)
	if err != nil {
		return model.LikeResult{}, fmt.Errorf("toggle comment like: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM comment_likes WHERE comment_id = ?
	`, commentID).Scan(&count); err != nil {
		return model.LikeResult{}, fmt.Errorf("toggle comment like: count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.LikeResult{}, fmt.Errorf("toggle comment like: commit: %w", err)
	}

	return model.LikeResult{State: model.LikeStateOf(liked), Count: count}, nil
}

// toggleRow deletes the (key, user) row if present, otherwise inserts it.
// Returns true when the row exists afterwards. table and keyColumn are
// package constants, never user input.
func toggleRow(ctx context.Context, tx *sql.Tx, table, keyColumn, key, userID string) (bool, error) {
	result, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = ? AND user_id = ?`, table, keyColumn),
		key, userID,
	)
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if removed > 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, user_id) VALUES (?, ?)`, table, keyColumn),
		key, userID,
	); err != nil {
		return false, fmt.Errorf("insert like: %w", err)
	}
	return true, nil
}
