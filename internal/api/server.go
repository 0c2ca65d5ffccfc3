// Package api exposes the feed collaborators over HTTP.
//
// The routes mirror the pagination and mutation primitives the client core
// consumes: column listing, offset/limit column pages, like toggles, comment
// posting and listing. Viewer identity travels in the X-Viewer-ID header;
// reads work anonymously, mutations require it.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pawelekbyra/gridfeed/internal/model"
	"github.com/pawelekbyra/gridfeed/internal/store"
)

// Backend is the storage the API serves from. *store.Store implements it.
type Backend interface {
	Ping(ctx context.Context) error
	ListPopulatedColumns(ctx context.Context) ([]int, error)
	FetchColumnPage(ctx context.Context, viewerID string, column, offset, limit int) ([]model.GridItem, error)
	ToggleItemLike(ctx context.Context, userID, itemID string) (model.LikeResult, error)
	PostComment(ctx context.Context, author model.Author, itemID, text, parentID string) (*model.Comment, error)
	ToggleCommentLike(ctx context.Context, userID, commentID string) (model.LikeResult, error)
	GetComments(ctx context.Context, itemID string) ([]*model.Comment, error)
}

// Server implements ServerInterface over a Backend.
type Server struct {
	backend Backend
	logger  *slog.Logger
}

var _ ServerInterface = (*Server)(nil)

// NewServer builds the HTTP handler: request IDs, panic recovery, request
// logging and the feed routes.
func NewServer(backend Backend, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{backend: backend, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	return HandlerWithOptions(s, ChiServerOptions{
		BaseRouter: r,
		ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			s.writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		},
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func viewerFrom(r *http.Request) model.Viewer {
	id := strings.TrimSpace(r.Header.Get(HeaderViewerID))
	name := strings.TrimSpace(r.Header.Get(HeaderViewerName))
	if name == "" {
		name = id
	}
	return model.Viewer{ID: id, DisplayName: name}
}

func (s *Server) requireViewer(w http.ResponseWriter, r *http.Request) (model.Viewer, bool) {
	v := viewerFrom(r)
	if v.ID == "" {
		s.writeError(w, http.StatusUnauthorized, CodeUnauthorized, HeaderViewerID+" header is required")
		return v, false
	}
	return v, true
}

// GetHealth pings the backend.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "backend unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// ListColumns returns the populated column indices.
func (s *Server) ListColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := s.backend.ListPopulatedColumns(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ColumnsResponse{Columns: cols})
}

// ListColumnItems returns one offset/limit window of a column. An unknown or
// negative column yields an empty window.
func (s *Server) ListColumnItems(w http.ResponseWriter, r *http.Request, column int, params ListColumnItemsParams) {
	offset, limit := 0, DefaultLimit
	if params.Offset != nil {
		offset = *params.Offset
	}
	if params.Limit != nil {
		limit = *params.Limit
	}
	if offset < 0 {
		s.writeError(w, http.StatusBadRequest, CodeBadRequest, "offset must be non-negative")
		return
	}
	if limit < 1 || limit > MaxLimit {
		s.writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be between 1 and 100")
		return
	}

	items := []model.GridItem{}
	if column >= 0 {
		var err error
		items, err = s.backend.FetchColumnPage(r.Context(), viewerFrom(r).ID, column, offset, limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, ItemsResponse{Items: items, TotalReturned: len(items)})
}

// ToggleItemLike flips the viewer's like on an item.
func (s *Server) ToggleItemLike(w http.ResponseWriter, r *http.Request, itemID string) {
	v, ok := s.requireViewer(w, r)
	if !ok {
		return
	}
	res, err := s.backend.ToggleItemLike(r.Context(), v.ID, itemID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("item like toggled", "item_id", itemID, "viewer", v.ID, "state", res.State, "count", res.Count)
	s.writeJSON(w, http.StatusOK, res)
}

// ListComments returns an item's comments, newest first with replies.
func (s *Server) ListComments(w http.ResponseWriter, r *http.Request, itemID string) {
	list, err := s.backend.GetComments(r.Context(), itemID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, CommentsResponse{Comments: list})
}

// PostComment stores a comment or reply by the viewer.
func (s *Server) PostComment(w http.ResponseWriter, r *http.Request, itemID string) {
	v, ok := s.requireViewer(w, r)
	if !ok {
		return
	}
	var req CommentRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	c, err := s.backend.PostComment(r.Context(), v.Author(), itemID, req.Text, req.ParentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("comment posted", "item_id", itemID, "comment_id", c.ID, "parent_id", c.ParentID)
	s.writeJSON(w, http.StatusCreated, c)
}

// ToggleCommentLike flips the viewer's like on a comment.
func (s *Server) ToggleCommentLike(w http.ResponseWriter, r *http.Request, commentID string) {
	v, ok := s.requireViewer(w, r)
	if !ok {
		return
	}
	res, err := s.backend.ToggleCommentLike(r.Context(), v.ID, commentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// fail maps a backend error to a status code.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, store.ErrEmptyText), errors.Is(err, store.ErrParentMismatch):
		s.writeError(w, http.StatusUnprocessableEntity, CodeValidation, err.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		s.writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("response encode failed", "status", status, "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
