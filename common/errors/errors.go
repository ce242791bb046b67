package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an application error independently of its message.
type Kind string

const (
	KindInvalidArgument Kind = "invalid_argument"
	KindUnauthorized    Kind = "unauthorized"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindStorageFailure  Kind = "storage_failure"
	KindInternal        Kind = "internal"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so
// errors.Is(err, ErrNotFound) matches any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error of the given kind. The HTTP code is derived from the kind.
func New(kind Kind, message string, err error) *Error {
	return &Error{
		Code:    statusFor(kind),
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

func InvalidArgument(message string) *Error { return New(KindInvalidArgument, message, nil) }

func Unauthorized(message string) *Error { return New(KindUnauthorized, message, nil) }

func Forbidden(message string) *Error { return New(KindForbidden, message, nil) }

func NotFound(message string, err error) *Error { return New(KindNotFound, message, err) }

func Conflict(message string) *Error { return New(KindConflict, message, nil) }

func StorageFailure(message string, err error) *Error {
	return New(KindStorageFailure, message, err)
}

// Common error types
var (
	ErrInvalidArgument = New(KindInvalidArgument, "Invalid argument", nil)
	ErrUnauthorized    = New(KindUnauthorized, "Unauthorized", nil)
	ErrForbidden       = New(KindForbidden, "Forbidden", nil)
	ErrNotFound        = New(KindNotFound, "Not found", nil)
	ErrConflict        = New(KindConflict, "Conflict", nil)
	ErrStorageFailure  = New(KindStorageFailure, "Storage failure", nil)
	ErrInternalServer  = New(KindInternal, "Internal server error", nil)
)

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus maps any error to the status code a handler should answer with.
func HTTPStatus(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

func statusFor(kind Kind) int {
	switch kind {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error middleware for Gin
//
// Handlers report failures with c.Error(err) and return. Rejections (4xx) are
// rendered with their reason; anything else is answered with an opaque 500.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr, ok := As(err)
		if !ok || appErr.Code >= http.StatusInternalServerError {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": ErrInternalServer.Message,
				"kind":  KindInternal,
			})
			return
		}

		c.AbortWithStatusJSON(appErr.Code, gin.H{
			"error": appErr.Message,
			"kind":  appErr.Kind,
		})
	}
}
