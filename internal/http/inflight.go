package http

import (
	"context"
	"sync/atomic"
	"time"
)

// InFlightTracker counts requests being served so shutdown can drain them.
// The zero value is ready to use.
type InFlightTracker struct {
	count atomic.Int64
	peak  atomic.Int64
}

// Increment marks a request as started.
func (t *InFlightTracker) Increment() {
	n := t.count.Add(1)
	for {
		p := t.peak.Load()
		if n <= p || t.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

// Decrement marks a request as finished.
func (t *InFlightTracker) Decrement() {
	t.count.Add(-1)
}

func (t *InFlightTracker) Count() int64 { return t.count.Load() }

// Peak is the highest count seen since the tracker was created.
func (t *InFlightTracker) Peak() int64 { return t.peak.Load() }

// WaitForZero polls every checkInterval until the count is zero or ctx is done.
func (t *InFlightTracker) WaitForZero(ctx context.Context, checkInterval time.Duration) error {
	if t.Count() == 0 {
		return nil
	}
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if t.Count() == 0 {
				return nil
			}
		}
	}
}

// globalInFlightTracker counts requests passing through MetricsMiddleware.
var globalInFlightTracker = &InFlightTracker{}

// InFlightCount returns the number of requests the process is serving.
func InFlightCount() int64 {
	return globalInFlightTracker.Count()
}

// WaitForInFlight drains the process-wide tracker; see WaitForZero.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	return globalInFlightTracker.WaitForZero(ctx, checkInterval)
}
