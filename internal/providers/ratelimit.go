package providers

import (
	"context"
	"sync"
	"time"
)

// rateLimiter admits at most limit requests per sliding window.
type rateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	starts []time.Time
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait blocks until a request slot is available or ctx is done.
func (r *rateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.limit <= 0 {
		return nil
	}
	for {
		r.mu.Lock()
		now := r.now()
		cutoff := now.Add(-r.window)
		kept := r.starts[:0]
		for _, start := range r.starts {
			if start.After(cutoff) {
				kept = append(kept, start)
			}
		}
		r.starts = kept

		if len(r.starts) < r.limit {
			r.starts = append(r.starts, now)
			r.mu.Unlock()
			return nil
		}
		wait := r.starts[0].Sub(cutoff)
		r.mu.Unlock()

		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}
