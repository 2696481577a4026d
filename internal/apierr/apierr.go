package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation   = "validation_error"
	CodeNotFound     = "not_found"
	CodeUnauthorized = "unauthorized"
	CodeInternal     = "internal_error"
)

// Error is an error that knows which HTTP status it maps to.
type Error struct {
	Status int
	Code   string
	Err    error
	Detail string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(msg string) *Error {
	return New(http.StatusBadRequest, CodeValidation, errors.New(msg))
}

func NotFound(msg string) *Error {
	return New(http.StatusNotFound, CodeNotFound, errors.New(msg))
}

func Unauthorized(msg string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, errors.New(msg))
}

// Internal hides cause behind msg and keeps cause's text as Detail.
func Internal(msg string, cause error) *Error {
	e := New(http.StatusInternalServerError, CodeInternal, errors.New(msg))
	if cause != nil {
		e.Detail = cause.Error()
	}
	return e
}

// From returns err as an *Error, treating anything untyped as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("internal server error", err)
}

func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
