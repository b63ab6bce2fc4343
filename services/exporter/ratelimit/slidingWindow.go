package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("ratelimit")

// ErrInvalidLimit signals a non-positive number of calls per window
var ErrInvalidLimit = errors.New("invalid rate limit")

// ErrInvalidPeriod signals a non-positive window length
var ErrInvalidPeriod = errors.New("invalid rate period")

// slidingWindow admits at most limit calls in any period-long window. Callers over the quota are
// held until the oldest admission leaves the window.
type slidingWindow struct {
	mut      sync.Mutex
	limit    int
	period   time.Duration
	admitted []time.Time
	now      func() time.Time
}

// NewSlidingWindow creates a process-wide sliding window limiter
func NewSlidingWindow(limit int, period time.Duration) (*slidingWindow, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}

	return &slidingWindow{
		limit:    limit,
		period:   period,
		admitted: make([]time.Time, 0, limit),
		now:      time.Now,
	}, nil
}

// Wait blocks until a slot is free. The returned flag is true if the call had to wait at all.
// The only error is the context one, in which case no slot was taken.
func (sw *slidingWindow) Wait(ctx context.Context) (bool, error) {
	limited := false
	for {
		delay := sw.tryAdmit()
		if delay == 0 {
			return limited, nil
		}

		limited = true
		log.Trace("rate limit reached, waiting for a free slot", "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return limited, ctx.Err()
		}
	}
}

// tryAdmit takes a slot and returns 0, or returns how long until the oldest admission expires
func (sw *slidingWindow) tryAdmit() time.Duration {
	sw.mut.Lock()
	defer sw.mut.Unlock()

	now := sw.now()
	cutoff := now.Add(-sw.period)

	expired := 0
	for expired < len(sw.admitted) && !sw.admitted[expired].After(cutoff) {
		expired++
	}
	sw.admitted = sw.admitted[expired:]

	if len(sw.admitted) < sw.limit {
		sw.admitted = append(sw.admitted, now)
		return 0
	}

	return sw.admitted[0].Sub(cutoff)
}

// IsInterfaceNil returns true if the value under the interface is nil
func (sw *slidingWindow) IsInterfaceNil() bool {
	return sw == nil
}
