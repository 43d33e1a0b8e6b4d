package enrich

import (
	"context"
	"fmt"
	"time"
)

// Retry is an exponential backoff policy. After failure N the next attempt
// waits BaseDelay * 2^(N-1). At most MaxRetries+1 attempts are made.
type Retry struct {
	MaxRetries int
	BaseDelay  time.Duration
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry, when set, is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Delay returns the wait after failed attempt n (1-based).
func (r Retry) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	return r.BaseDelay << (n - 1)
}

// Attempts is the attempt ceiling.
func (r Retry) Attempts() int {
	return max(r.MaxRetries, 0) + 1
}

// Do calls fn until it succeeds or the attempts run out, returning the last
// error. A context cancelled while waiting ends the loop early.
func (r Retry) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	var err error
	for n := 1; n <= r.Attempts(); n++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if n == r.Attempts() {
			break
		}
		d := r.Delay(n)
		if r.OnRetry != nil {
			r.OnRetry(n, d, err)
		}
		if serr := sleep(ctx, d); serr != nil {
			return fmt.Errorf("retry interrupted after %d attempts: %w", n, err)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", r.Attempts(), err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
