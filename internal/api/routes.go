package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface is the set of handlers behind the feed API. Path and
// query parameters arrive already bound and typed.
type ServerInterface interface {
	// GET /health
	GetHealth(w http.ResponseWriter, r *http.Request)
	// GET /columns
	ListColumns(w http.ResponseWriter, r *http.Request)
	// GET /columns/{column}/items
	ListColumnItems(w http.ResponseWriter, r *http.Request, column int, params ListColumnItemsParams)
	// POST /items/{itemID}/like
	ToggleItemLike(w http.ResponseWriter, r *http.Request, itemID string)
	// GET /items/{itemID}/comments
	ListComments(w http.ResponseWriter, r *http.Request, itemID string)
	// POST /items/{itemID}/comments
	PostComment(w http.ResponseWriter, r *http.Request, itemID string)
	// POST /comments/{commentID}/like
	ToggleCommentLike(w http.ResponseWriter, r *http.Request, commentID string)
}

// ListColumnItemsParams are the query parameters of ListColumnItems.
type ListColumnItemsParams struct {
	Offset *int `form:"offset,omitempty" json:"offset,omitempty"`
	Limit  *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// MiddlewareFunc wraps a single bound handler.
type MiddlewareFunc func(http.Handler) http.Handler

// InvalidParamFormatError reports a parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// ServerInterfaceWrapper binds parameters and calls the ServerInterface.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, h http.Handler) {
	for _, middleware := range siw.HandlerMiddlewares {
		h = middleware(h)
	}
	h.ServeHTTP(w, r)
}

func (siw *ServerInterfaceWrapper) GetHealth(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.GetHealth))
}

func (siw *ServerInterfaceWrapper) ListColumns(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.ListColumns))
}

func (siw *ServerInterfaceWrapper) ListColumnItems(w http.ResponseWriter, r *http.Request) {
	var column int
	err := runtime.BindStyledParameterWithLocation("simple", false, "column", runtime.ParamLocationPath, chi.URLParam(r, "column"), &column)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "column", Err: err})
		return
	}

	var params ListColumnItemsParams
	if err := runtime.BindQueryParameter("form", true, false, "offset", r.URL.Query(), &params.Offset); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "offset", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}

	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListColumnItems(w, r, column, params)
	}))
}

func (siw *ServerInterfaceWrapper) bindID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithLocation("simple", false, name, runtime.ParamLocationPath, chi.URLParam(r, name), &id)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return "", false
	}
	return id, true
}

func (siw *ServerInterfaceWrapper) ToggleItemLike(w http.ResponseWriter, r *http.Request) {
	itemID, ok := siw.bindID(w, r, "itemID")
	if !ok {
		return
	}
	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ToggleItemLike(w, r, itemID)
	}))
}

func (siw *ServerInterfaceWrapper) ListComments(w http.ResponseWriter, r *http.Request) {
	itemID, ok := siw.bindID(w, r, "itemID")
	if !ok {
		return
	}
	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListComments(w, r, itemID)
	}))
}

func (siw *ServerInterfaceWrapper) PostComment(w http.ResponseWriter, r *http.Request) {
	itemID, ok := siw.bindID(w, r, "itemID")
	if !ok {
		return
	}
	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.PostComment(w, r, itemID)
	}))
}

func (siw *ServerInterfaceWrapper) ToggleCommentLike(w http.ResponseWriter, r *http.Request) {
	commentID, ok := siw.bindID(w, r, "commentID")
	if !ok {
		return
	}
	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ToggleCommentLike(w, r, commentID)
	}))
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerWithOptions mounts si on a chi router.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health", wrapper.GetHealth)
		r.Get(options.BaseURL+"/columns", wrapper.ListColumns)
		r.Get(options.BaseURL+"/columns/{column}/items", wrapper.ListColumnItems)
		r.Post(options.BaseURL+"/items/{itemID}/like", wrapper.ToggleItemLike)
		r.Get(options.BaseURL+"/items/{itemID}/comments", wrapper.ListComments)
		r.Post(options.BaseURL+"/items/{itemID}/comments", wrapper.PostComment)
		r.Post(options.BaseURL+"/comments/{commentID}/like", wrapper.ToggleCommentLike)
	})
	return r
}
