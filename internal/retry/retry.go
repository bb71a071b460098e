// Package retry runs operations under a retry policy that is plain data:
// how many attempts, how long to wait between them, and what to do once
// the attempts are exhausted.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// Backoff returns the delay before the next attempt. attempt is the
	// 1-based number of the attempt that just failed. Nil means no delay.
	Backoff func(attempt int) time.Duration
	// OnRetry, if set, is called before sleeping between attempts.
	OnRetry func(attempt int, err error)
	// OnExhausted, if set, is called once with the last error when every
	// attempt failed.
	OnExhausted func(err error)
}

// Fixed waits d between attempts.
func Fixed(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// Exponential waits base*2^(attempt-1) between attempts: base, 2*base, 4*base...
func Exponential(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base << (attempt - 1)
	}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// sleep is replaced in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
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

// Do calls op until it succeeds, returns a Permanent error, the attempts
// run out or ctx is done. The returned error is the last one op produced
// (unwrapped from Permanent), or the context error.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = op(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			err = perm.err
			break
		}
		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		var d time.Duration
		if p.Backoff != nil {
			d = p.Backoff(attempt)
		}
		if serr := sleep(ctx, d); serr != nil {
			return serr
		}
	}
	if p.OnExhausted != nil {
		p.OnExhausted(err)
	}
	return err
}
