package oracle

import (
	"context"
	"time"
)

// backoffDelay computes the wait before retry n (1-based):
// base + n*step + n² seconds. The quadratic term dominates quickly, which is
// what a strict requests-per-interval cap needs.
func backoffDelay(attempt int, base, step time.Duration) time.Duration {
	return base + time.Duration(attempt)*step + time.Duration(attempt*attempt)*time.Second
}

// sleepBackoff waits out a backoff delay, returning early if the context is
// cancelled.
func sleepBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
