package api

import "github.com/pawelekbyra/gridfeed/internal/model"

// Header names carrying the viewer identity.
const (
	HeaderViewerID   = "X-Viewer-ID"
	HeaderViewerName = "X-Viewer-Name"
)

// Limits on ListColumnItems.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ColumnsResponse is the body of GET /columns.
type ColumnsResponse struct {
	Columns []int `json:"columns"`
}

// ItemsResponse is the body of GET /columns/{column}/items.
type ItemsResponse struct {
	Items         []model.GridItem `json:"items"`
	TotalReturned int              `json:"total_returned"`
}

// CommentRequest is the body of POST /items/{itemID}/comments.
type CommentRequest struct {
	Text     string `json:"text"`
	ParentID string `json:"parent_id,omitempty"`
}

// CommentsResponse is the body of GET /items/{itemID}/comments.
type CommentsResponse struct {
	Comments []*model.Comment `json:"comments"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried by ErrorResponse.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION"
	CodeInternal     = "INTERNAL"
	CodeUnavailable  = "UNAVAILABLE"
)
