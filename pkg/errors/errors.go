// Package errors defines the sentinel errors shared by the matching engine and
// the services hosting it, plus an AppError carrying an HTTP status code.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidUTF8       = errors.New("invalid utf-8")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrDuplicateIdentity = errors.New("duplicate identity in snapshot")
	ErrStaleSnapshot     = errors.New("snapshot is stale")
	ErrEngineClosed      = errors.New("engine is closed")
	ErrUnknownSource     = errors.New("unknown source")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// OutOfRange builds the error returned by snapshot readers for a bad index.
func OutOfRange(what string, index, limit uint32) *AppError {
	return Newf(ErrIndexOutOfRange, http.StatusBadRequest, "%s %d out of range (len %d)", what, index, limit)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrUnknownSource):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidUTF8), errors.Is(err, ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, ErrStaleSnapshot), errors.Is(err, ErrDuplicateIdentity):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrEngineClosed), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
