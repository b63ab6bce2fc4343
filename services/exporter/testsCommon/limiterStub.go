package testsCommon

import (
	"context"
	"time"
)

// LimiterStub -
type LimiterStub struct {
	WaitHandler func(ctx context.Context) (bool, error)
}

// Wait -
func (stub *LimiterStub) Wait(ctx context.Context) (bool, error) {
	if stub.WaitHandler != nil {
		return stub.WaitHandler(ctx)
	}

	return false, nil
}

// IsInterfaceNil -
func (stub *LimiterStub) IsInterfaceNil() bool {
	return stub == nil
}

// RequestObserverStub -
type RequestObserverStub struct {
	ObserveRequestHandler func(namespace string, limited bool, call time.Duration, total time.Duration)
}

// ObserveRequest -
func (stub *RequestObserverStub) ObserveRequest(namespace string, limited bool, call time.Duration, total time.Duration) {
	if stub.ObserveRequestHandler != nil {
		stub.ObserveRequestHandler(namespace, limited, call, total)
	}
}

// IsInterfaceNil -
func (stub *RequestObserverStub) IsInterfaceNil() bool {
	return stub == nil
}
