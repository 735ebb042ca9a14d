package fetcher

import (
	"context"
	"math/rand"
	"time"
)

type RetryPolicy struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

var DefaultRetry = RetryPolicy{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     8 * time.Second,
	Jitter:      true,
}

func (p RetryPolicy) delay(wait time.Duration) time.Duration {
	d := wait
	if p.Jitter {
		d = time.Duration(float64(wait) * (0.5 + rand.Float64()))
	}
	if p.MaxWait > 0 && d > p.MaxWait {
		d = p.MaxWait
	}
	return d
}

// Retry calls f until it succeeds, fails with a non transient error or
// MaxAttempts is reached. The wait between attempts doubles each time.
func Retry[T any](ctx context.Context, p RetryPolicy, f func(context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	wait := p.InitialWait

	var (
		res T
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err = f(ctx)
		if err == nil || !IsTransient(err) || attempt == attempts {
			return res, err
		}

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(p.delay(wait)):
		}
		wait *= 2
	}

	return res, err
}
