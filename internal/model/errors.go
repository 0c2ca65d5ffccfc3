package model

import (
	"errors"
	"fmt"
)

// FeedError is the error taxonomy shared by the pager, the ledger and the
// controller.
//
// Feed errors include:
//   - Fetch failures: a page or column listing could not be retrieved
//   - Validation failures: rejected before any network call or state change
//   - Mutation rejections: the server refused a like or comment
//   - Timeouts: a collaborator call did not resolve within its bound
//
// FeedError carries structured fields for diagnostics and user feedback.
type FeedError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the operation that failed (e.g. "fetch_page", "toggle_like").
	Op string

	// Key identifies the affected column, item or comment.
	Key string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes feed errors.
type ErrorCode string

const (
	// ErrCodeFetchFailed indicates a retryable page or column retrieval failure.
	ErrCodeFetchFailed ErrorCode = "FETCH_FAILED"

	// ErrCodeValidation indicates input rejected locally.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeMutationRejected indicates the server refused a mutation.
	ErrCodeMutationRejected ErrorCode = "MUTATION_REJECTED"

	// ErrCodeTimeout indicates a collaborator call exceeded its bound.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeNotFound indicates the referenced item or comment does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Error implements the error interface.
func (e *FeedError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" && e.Key != "" {
		return fmt.Sprintf("%s: %s (op=%s, key=%s)", e.Code, msg, e.Op, e.Key)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, msg, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *FeedError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var fe *FeedError
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// IsFetchError returns true if err is a fetch failure.
func IsFetchError(err error) bool { return hasCode(err, ErrCodeFetchFailed) }

// IsValidationError returns true if err was rejected locally.
func IsValidationError(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsMutationError returns true if the server rejected a mutation.
func IsMutationError(err error) bool { return hasCode(err, ErrCodeMutationRejected) }

// IsTimeout returns true if a collaborator call timed out.
func IsTimeout(err error) bool { return hasCode(err, ErrCodeTimeout) }

// IsNotFound returns true if the referenced record does not exist.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// NewFetchError wraps a source failure for the given column.
func NewFetchError(op string, column int, err error) *FeedError {
	return &FeedError{
		Code:    ErrCodeFetchFailed,
		Op:      op,
		Key:     fmt.Sprintf("column=%d", column),
		Message: "column load failed",
		Err:     err,
	}
}

// NewValidationError reports input rejected before any state change.
func NewValidationError(op, key, message string) *FeedError {
	return &FeedError{
		Code:    ErrCodeValidation,
		Op:      op,
		Key:     key,
		Message: message,
	}
}

// NewMutationError wraps a server-side rejection of a mutation.
func NewMutationError(op, key string, err error) *FeedError {
	return &FeedError{
		Code:    ErrCodeMutationRejected,
		Op:      op,
		Key:     key,
		Message: "mutation rejected",
		Err:     err,
	}
}

// NewTimeoutError reports a call that did not resolve in time.
func NewTimeoutError(op string, err error) *FeedError {
	return &FeedError{
		Code:    ErrCodeTimeout,
		Op:      op,
		Message: "request timed out",
		Err:     err,
	}
}

// NewNotFoundError reports a missing item or comment.
func NewNotFoundError(op, key string) *FeedError {
	return &FeedError{
		Code:    ErrCodeNotFound,
		Op:      op,
		Key:     key,
		Message: "not found",
	}
}
