package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

// PostComment stores a comment on an item, optionally as a reply.
//
// Replies are one level deep: when parentID names a reply, the new comment is
// attached to that reply's top-level parent instead. Returns ErrEmptyText if
// the text is empty after trimming and ErrNotFound for an unknown item or
// parent.
func (s *Store) PostComment(ctx context.Context, author model.Author, itemID, text, parentID string) (*model.Comment, error) {
	text = model.NormalizeText(text)
	if text == "" {
		return nil, fmt.Errorf("post comment: %w", ErrEmptyText)
	}
	if author.ID == "" {
		return nil, fmt.Errorf("post comment: author id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("post comment: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := itemExists(ctx, tx, itemID); err != nil {
		return nil, fmt.Errorf("post comment: %w", err)
	}

	var parent sql.NullString
	if parentID != "" {
		topID, err := resolveTopLevel(ctx, tx, itemID, parentID)
		if err != nil {
			return nil, fmt.Errorf("post comment: %w", err)
		}
		parent = sql.NullString{String: topID, Valid: true}
	}

	c := &model.Comment{
		ID:        s.newID(),
		ItemID:    itemID,
		ParentID:  parent.String,
		Author:    author,
		Text:      text,
		CreatedAt: fromMillis(toMillis(s.now())),
		LikedBy:   model.NewUserSet(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO comments
		(id, item_id, parent_id, author_id, author_name, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.ItemID,
		parent,
		c.Author.ID,
		c.Author.DisplayName,
		c.Text,
		toMillis(c.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("post comment: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("post comment: commit: %w", err)
	}
	return c, nil
}

// resolveTopLevel returns the top-level ancestor of parentID, verifying it
// belongs to itemID.
func resolveTopLevel(ctx context.Context, tx *sql.Tx, itemID, parentID string) (string, error) {
	var owner string
	var grand sql.NullString
	err := tx.QueryRowContext(ctx, `
		SELECT item_id, parent_id FROM comments WHERE id = ?
	`, parentID).Scan(&owner, &grand)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("parent %s: %w", parentID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lookup parent: %w", err)
	}
	if owner != itemID {
		return "", ErrParentMismatch
	}
	if grand.Valid {
		return grand.String, nil
	}
	return parentID, nil
}

// GetComments returns an item's comments: top-level comments newest-first,
// each carrying its replies newest-first. Ordering uses seq, never created_at.
//
// Returns ErrNotFound for an unknown item and an empty slice (not nil) for an
// item without comments.
func (s *Store) GetComments(ctx context.Context, itemID string) ([]*model.Comment, error) {
	if err := itemExists(ctx, s.db, itemID); err != nil {
		return nil, fmt.Errorf("get comments: %w", err)
	}

	likes, err := s.commentLikes(ctx, itemID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, parent_id, author_id, author_name, text, created_at
		FROM comments
		WHERE item_id = ?
		ORDER BY seq DESC
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	top := []*model.Comment{}
	byID := map[string]*model.Comment{}
	var replies []*model.Comment
	for rows.Next() {
		var c model.Comment
		var parent sql.NullString
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.ItemID, &parent, &c.Author.ID, &c.Author.DisplayName, &c.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.ParentID = parent.String
		c.CreatedAt = fromMillis(createdAt)
		c.LikedBy = likes[c.ID]
		if c.LikedBy == nil {
			c.LikedBy = model.NewUserSet()
		}

		byID[c.ID] = &c
		if c.IsReply() {
			replies = append(replies, &c)
		} else {
			top = append(top, &c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}

	// replies is already newest-first, so appending keeps that order per parent.
	for _, r := range replies {
		if p, ok := byID[r.ParentID]; ok {
			p.Replies = append(p.Replies, r)
		}
	}
	return top, nil
}

// commentLikes loads the liking sets for every comment on an item.
func (s *Store) commentLikes(ctx context.Context, itemID string) (map[string]model.UserSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.comment_id, l.user_id
		FROM comment_likes l
		JOIN comments c ON c.id = l.comment_id
		WHERE c.item_id = ?
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query comment likes: %w", err)
	}
	defer rows.Close()

	out := map[string]model.UserSet{}
	for rows.Next() {
		var commentID, userID string
		if err := rows.Scan(&commentID, &userID); err != nil {
			return nil, fmt.Errorf("scan comment like: %w", err)
		}
		set, ok := out[commentID]
		if !ok {
			set = model.NewUserSet()
			out[commentID] = set
		}
		set[userID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comment likes: %w", err)
	}
	return out, nil
}
