package client

import (
	"context"
	"time"
)

// Transport performs a single signed upstream call
type Transport interface {
	Do(ctx context.Context, req Request) ([]byte, error)
	Close() error
	IsInterfaceNil() bool
}

// Limiter admits outbound calls according to a process-wide quota
type Limiter interface {
	// Wait blocks until the call may proceed and reports whether it had to wait
	Wait(ctx context.Context) (bool, error)
	IsInterfaceNil() bool
}

// RequestObserver records call latencies
type RequestObserver interface {
	ObserveRequest(namespace string, limited bool, call time.Duration, total time.Duration)
	IsInterfaceNil() bool
}
