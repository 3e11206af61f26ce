package mqttengine

import (
	"context"
	"time"
)

// Reconnect runs dial in a retry loop until it succeeds or ctx is done,
// waiting backoff(attempt) between failures. It mirrors the teacher's
// ConnectAndSubscribe retry loop, but takes a caller-supplied backoff
// instead of a fixed sleep so callers can plug in exponential or jittered
// schedules.
func Reconnect(ctx context.Context, dial func(context.Context) (*Engine, error), backoff func(attempt int) time.Duration) (*Engine, error) {
	for attempt := 1; ; attempt++ {
		e, err := dial(ctx)
		if err == nil {
			return e, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
}

// ExponentialBackoff returns a backoff function doubling from base up to
// max, matching the growth shape of the teacher's retry loop but without
// its hardcoded 3-second constant.
func ExponentialBackoff(base, max time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		return d
	}
}
