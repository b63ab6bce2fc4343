package client

import (
	"context"
	"time"

	"github.com/multiversx/mx-chain-core-go/core/check"
)

// ArgsLimitedClient holds the arguments needed to create a rate limited client
type ArgsLimitedClient struct {
	Transport Transport
	Limiter   Limiter
	Observer  RequestObserver
}

type limitedClient struct {
	transport Transport
	limiter   Limiter
	observer  RequestObserver
}

// NewLimitedClient creates a client that acquires a limiter slot before every upstream call
func NewLimitedClient(args ArgsLimitedClient) (*limitedClient, error) {
	if check.IfNil(args.Transport) {
		return nil, ErrNilTransport
	}
	if check.IfNil(args.Limiter) {
		return nil, ErrNilLimiter
	}
	if check.IfNil(args.Observer) {
		return nil, ErrNilObserver
	}

	return &limitedClient{
		transport: args.Transport,
		limiter:   args.Limiter,
		observer:  args.Observer,
	}, nil
}

// Fetch waits for a free slot, performs the call and records both the raw and the total latency.
// Upstream failures are returned as *FetchError and are not retried.
func (c *limitedClient) Fetch(ctx context.Context, namespace string, req Request) ([]byte, error) {
	start := time.Now()
	limited, err := c.limiter.Wait(ctx)
	if err != nil {
		return nil, &FetchError{
			Namespace: namespace,
			Subject:   req.Subject(),
			Action:    req.Name(),
			Err:       err,
		}
	}

	callStart := time.Now()
	body, err := c.transport.Do(ctx, req)
	end := time.Now()
	c.observer.ObserveRequest(namespace, limited, end.Sub(callStart), end.Sub(start))

	if err != nil {
		log.Debug("upstream call failed", "namespace", namespace, "action", req.Name(), "error", err)
		return nil, &FetchError{
			Namespace: namespace,
			Subject:   req.Subject(),
			Action:    req.Name(),
			Err:       err,
		}
	}

	return body, nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (c *limitedClient) IsInterfaceNil() bool {
	return c == nil
}
