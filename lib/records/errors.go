package records

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ValentinKolb/recstore/lib/datastore"
)

// Error is the only error type returned by the record operations.
// Status follows HTTP semantics so callers can forward it unchanged.
type Error struct {
	Status  int    // The status code
	Message string // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("RecordError (status %d): %s", e.Status, e.Message)
}

// NewError creates a new Error with the given status and message.
func NewError(status int, msg string) *Error {
	return &Error{
		Status:  status,
		Message: msg,
	}
}

// NewNotFoundError is returned by Read when no entity exists for the id.
func NewNotFoundError() *Error {
	return NewError(http.StatusNotFound, "Not found")
}

// NewServiceError converts an error reported by the datastore client.
// The status is taken from the error (see datastore.StatusOf) and defaults to 500.
func NewServiceError(err error) *Error {
	return NewError(datastore.StatusOf(err), err.Error())
}

// IsNotFound reports whether err is an Error with status 404.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusNotFound
}
