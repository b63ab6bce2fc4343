package metrics

import "errors"

// ErrNilContext signals that a nil context has been provided
var ErrNilContext = errors.New("nil context")

// ErrNilFamilySource signals that a nil family source has been provided
var ErrNilFamilySource = errors.New("nil family source")

// ErrNilRegisterer signals that a nil prometheus registerer has been provided
var ErrNilRegisterer = errors.New("nil registerer")
