package datastore

import (
	"errors"
	"net/http"
)

// StatusError attaches an HTTP-like status code to an error reported by a client.
type StatusError struct {
	Code int
	Err  error
}

// Error returns the message of the wrapped error.
func (e *StatusError) Error() string {
	if e.Err == nil {
		return http.StatusText(e.Code)
	}
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// WithStatus wraps err with a status code. A nil err stays nil.
func WithStatus(code int, err error) error {
	if err == nil {
		return nil
	}
	return &StatusError{Code: code, Err: err}
}

// httpStatusCoder is implemented by the AWS SDK response errors.
type httpStatusCoder interface {
	HTTPStatusCode() int
}

// StatusOf returns the status code carried by err.
// It looks for a StatusError first, then for any error exposing HTTPStatusCode,
// and falls back to 500.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) && se.Code != 0 {
		return se.Code
	}
	var hc httpStatusCoder
	if errors.As(err, &hc) && hc.HTTPStatusCode() != 0 {
		return hc.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}
