package providers

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterAdmitsUpToLimit(t *testing.T) {
	limiter := newRateLimiter(3, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	slept := 0
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		slept++
		now = now.Add(d)
		return nil
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if slept != 0 {
		t.Fatalf("slept %d times before limit reached", slept)
	}

	if err := limiter.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if slept == 0 {
		t.Fatal("fourth request should have waited")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	limiter := newRateLimiter(1, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		t.Fatal("should not sleep after window expiry")
		return nil
	}

	ctx := context.Background()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	now = now.Add(61 * time.Second)
	if err := limiter.Wait(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestRateLimiterHonorsContext(t *testing.T) {
	limiter := newRateLimiter(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	if err := limiter.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("expected context error")
	}
}
