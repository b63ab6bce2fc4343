package collector

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNilConfig signals that a nil configuration has been provided
var ErrNilConfig = errors.New("nil config")

// ErrNilClient signals that a nil metric client has been provided
var ErrNilClient = errors.New("nil metric client")

// ErrNilInfoFetcher signals that a nil metadata fetcher has been provided
var ErrNilInfoFetcher = errors.New("nil info fetcher")

// ErrNilDatapointCache signals that a nil datapoint cache has been provided
var ErrNilDatapointCache = errors.New("nil datapoint cache")

// ErrNilJoinCache signals that a nil join table cache has been provided
var ErrNilJoinCache = errors.New("nil join cache")

// ErrInvalidJoinTTL signals a non-positive join table ttl
var ErrInvalidJoinTTL = errors.New("invalid join table ttl")

// ErrInvalidPoolSize signals a non-positive worker pool size
var ErrInvalidPoolSize = errors.New("invalid pool size")

var errMalformedBody = errors.New("malformed response body")

// MeasureNotFoundError is returned when a datapoint lacks the configured measure field
type MeasureNotFoundError struct {
	Namespace string
	Metric    string
	Measure   string
	Keys      []string
}

// Error returns the error message
func (e *MeasureNotFoundError) Error() string {
	return fmt.Sprintf("measure %s is not in datapoint %s_%s, available keys: [%s]",
		e.Measure, e.Namespace, e.Metric, strings.Join(e.Keys, ", "))
}

// DuplicateLabelError is returned when an extra label has the name of a datapoint dimension
type DuplicateLabelError struct {
	Namespace string
	Metric    string
	Label     string
}

// Error returns the error message
func (e *DuplicateLabelError) Error() string {
	return fmt.Sprintf("label %s of %s_%s is both a datapoint dimension and an extra label", e.Label, e.Namespace, e.Metric)
}
