package store

import (
	"context"

	"github.com/pawelekbyra/gridfeed/internal/model"
)

// Session binds the store to one viewer so it can serve as the feed's
// collaborator in-process: it satisfies both pager.Source and ledger.Remote.
type Session struct {
	store  *Store
	viewer model.Viewer
}

// NewSession creates a viewer-bound session.
func NewSession(s *Store, viewer model.Viewer) *Session {
	return &Session{store: s, viewer: viewer}
}

// Viewer returns the session's viewer.
func (s *Session) Viewer() model.Viewer {
	return s.viewer
}

// ListPopulatedColumns implements pager.Source.
func (s *Session) ListPopulatedColumns(ctx context.Context) ([]int, error) {
	return s.store.ListPopulatedColumns(ctx)
}

// FetchColumnPage implements pager.Source.
func (s *Session) FetchColumnPage(ctx context.Context, column, offset, limit int) (model.ColumnWindow, error) {
	items, err := s.store.FetchColumnPage(ctx, s.viewer.ID, column, offset, limit)
	if err != nil {
		return model.ColumnWindow{}, err
	}
	return model.ColumnWindow{Items: items, TotalReturned: len(items)}, nil
}

// PostLikeToggle implements ledger.Remote.
func (s *Session) PostLikeToggle(ctx context.Context, itemID string) (model.LikeResult, error) {
	return s.store.ToggleItemLike(ctx, s.viewer.ID, itemID)
}

// PostComment implements ledger.Remote.
func (s *Session) PostComment(ctx context.Context, itemID, text, parentID string) (*model.Comment, error) {
	return s.store.PostComment(ctx, s.viewer.Author(), itemID, text, parentID)
}

// PostCommentLikeToggle implements ledger.Remote.
func (s *Session) PostCommentLikeToggle(ctx context.Context, commentID string) (model.LikeResult, error) {
	return s.store.ToggleCommentLike(ctx, s.viewer.ID, commentID)
}

// GetComments implements ledger.Remote.
func (s *Session) GetComments(ctx context.Context, itemID string) ([]*model.Comment, error) {
	return s.store.GetComments(ctx, itemID)
}
