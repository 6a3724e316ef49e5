// Package retry provides the bounded exponential backoff used for flaky
// delivery calls.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded exponential backoff.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// MinWait is the delay before the first retry; later delays double.
	MinWait time.Duration
	// MaxWait caps the delay between retries.
	MaxWait time.Duration
	// Retryable reports whether an error is worth another attempt. A nil
	// classifier retries every error.
	Retryable func(error) bool
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.MinWait <= 0 {
		p.MinWait = time.Second
	}
	if p.MaxWait < p.MinWait {
		p.MaxWait = p.MinWait
	}
	return p
}

// Do runs op until it succeeds, the attempts are exhausted, a non-retryable
// error occurs, or the context is canceled. The last error is returned.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	policy = policy.normalized()

	delay := policy.MinWait
	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if policy.Retryable != nil && !policy.Retryable(lastErr) {
			return lastErr
		}
		if attempt == policy.Attempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= policy.MaxWait {
			delay = next
		} else {
			delay = policy.MaxWait
		}
	}
	return lastErr
}
