// Package client talks to the feed API over HTTP. A Client is bound to one
// viewer and satisfies both pager.Source and ledger.Remote, so a feed
// controller can run against a remote server exactly as it runs in-process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/pawelekbyra/gridfeed/internal/api"
	"github.com/pawelekbyra/gridfeed/internal/model"
)

// ErrNotFound matches API errors with status 404.
var ErrNotFound = errors.New("not found")

// APIError surfaces non-2xx responses from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Message)
}

//nolint:errorlint
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client is a viewer-bound HTTP collaborator.
type Client struct {
	baseURL string
	http    *http.Client
	viewer  model.Viewer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, viewer model.Viewer, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		viewer:  viewer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Viewer returns the bound viewer.
func (c *Client) Viewer() model.Viewer {
	return c.viewer
}

func pathParam(name string, value any) (string, error) {
	return runtime.StyleParamWithLocation("simple", false, name, runtime.ParamLocationPath, value)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.viewer.ID != "" {
		req.Header.Set(api.HeaderViewerID, c.viewer.ID)
		req.Header.Set(api.HeaderViewerName, c.viewer.DisplayName)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newAPIError(status int, body []byte) error {
	var e api.ErrorResponse
	if json.Unmarshal(body, &e) == nil && e.Code != "" {
		return &APIError{StatusCode: status, Code: e.Code, Message: e.Message}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// ListPopulatedColumns implements pager.Source.
func (c *Client) ListPopulatedColumns(ctx context.Context) ([]int, error) {
	var out api.ColumnsResponse
	if err := c.do(ctx, http.MethodGet, "/columns", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	if out.Columns == nil {
		out.Columns = []int{}
	}
	return out.Columns, nil
}

// FetchColumnPage implements pager.Source.
func (c *Client) FetchColumnPage(ctx context.Context, column, offset, limit int) (model.ColumnWindow, error) {
	col, err := pathParam("column", column)
	if err != nil {
		return model.ColumnWindow{}, err
	}
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var out api.ItemsResponse
	if err := c.do(ctx, http.MethodGet, "/columns/"+col+"/items", q, nil, &out); err != nil {
		return model.ColumnWindow{}, fmt.Errorf("fetch column %d page: %w", column, err)
	}
	if out.Items == nil {
		out.Items = []model.GridItem{}
	}
	return model.ColumnWindow{Items: out.Items, TotalReturned: out.TotalReturned}, nil
}

// PostLikeToggle implements ledger.Remote.
func (c *Client) PostLikeToggle(ctx context.Context, itemID string) (model.LikeResult, error) {
	id, err := pathParam("itemID", itemID)
	if err != nil {
		return model.LikeResult{}, err
	}
	var out model.LikeResult
	if err := c.do(ctx, http.MethodPost, "/items/"+id+"/like", nil, nil, &out); err != nil {
		return model.LikeResult{}, fmt.Errorf("toggle like %s: %w", itemID, err)
	}
	return out, nil
}

// PostComment implements ledger.Remote.
func (c *Client) PostComment(ctx context.Context, itemID, text, parentID string) (*model.Comment, error) {
	id, err := pathParam("itemID", itemID)
	if err != nil {
		return nil, err
	}
	var out model.Comment
	body := api.CommentRequest{Text: text, ParentID: parentID}
	if err := c.do(ctx, http.MethodPost, "/items/"+id+"/comments", nil, body, &out); err != nil {
		return nil, fmt.Errorf("post comment on %s: %w", itemID, err)
	}
	return &out, nil
}

// PostCommentLikeToggle implements ledger.Remote.
func (c *Client) PostCommentLikeToggle(ctx context.Context, commentID string) (model.LikeResult, error) {
	id, err := pathParam("commentID", commentID)
	if err != nil {
		return model.LikeResult{}, err
	}
	var out model.LikeResult
	if err := c.do(ctx, http.MethodPost, "/comments/"+id+"/like", nil, nil, &out); err != nil {
		return model.LikeResult{}, fmt.Errorf("toggle comment like %s: %w", commentID, err)
	}
	return out, nil
}

// GetComments implements ledger.Remote.
func (c *Client) GetComments(ctx context.Context, itemID string) ([]*model.Comment, error) {
	id, err := pathParam("itemID", itemID)
	if err != nil {
		return nil, err
	}
	var out api.CommentsResponse
	if err := c.do(ctx, http.MethodGet, "/items/"+id+"/comments", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get comments of %s: %w", itemID, err)
	}
	if out.Comments == nil {
		out.Comments = []*model.Comment{}
	}
	return out.Comments, nil
}
