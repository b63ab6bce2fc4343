package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNilTransport signals that a nil transport has been provided
var ErrNilTransport = errors.New("nil transport")

// ErrNilLimiter signals that a nil limiter has been provided
var ErrNilLimiter = errors.New("nil limiter")

// ErrNilObserver signals that a nil request observer has been provided
var ErrNilObserver = errors.New("nil request observer")

type errStatusNotOK int

func (e errStatusNotOK) Error() string {
	return "non-2xx HTTP status code: " + http.StatusText(int(e))
}

type errPathNotFound string

func (e errPathNotFound) Error() string {
	return "JSON path not found in response: " + string(e)
}

// NewPathNotFoundError returns the error used when an expected JSON path is missing from a response
func NewPathNotFoundError(path string) error {
	return errPathNotFound(path)
}

// FetchError is returned for any failed upstream call: transport failure, non-2xx status,
// malformed body or a missing expected field
type FetchError struct {
	Namespace string
	Subject   string
	Action    string
	Err       error
}

// Error returns the error message including the call context
func (e *FetchError) Error() string {
	if len(e.Subject) > 0 {
		return fmt.Sprintf("fetch %s for %s/%s failed: %v", e.Action, e.Namespace, e.Subject, e.Err)
	}

	return fmt.Sprintf("fetch %s for %s failed: %v", e.Action, e.Namespace, e.Err)
}

// Unwrap returns the underlying error
func (e *FetchError) Unwrap() error {
	return e.Err
}
