// Package retry runs an operation under a bounded attempt policy.
package retry

import (
	"context"
	"errors"
	"time"
)

// Backoff returns the delay to wait after the given failed attempt (1-based).
type Backoff func(attempt int) time.Duration

// Fixed waits the same delay between every attempt.
func Fixed(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// Linear waits attempt*step between attempts.
func Linear(step time.Duration) Backoff {
	return func(attempt int) time.Duration { return time.Duration(attempt) * step }
}

type Policy struct {
	MaxAttempts int
	Backoff     Backoff

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// ScorePolicy is the policy used for score submission: 3 attempts, 1s apart.
func ScorePolicy() Policy {
	return Policy{MaxAttempts: 3, Backoff: Fixed(time.Second)}
}

// WithSleep returns a copy of p that waits with fn instead of a timer.
func (p Policy) WithSleep(fn func(ctx context.Context, d time.Duration) error) Policy {
	p.sleep = fn
	return p
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Do stops retrying immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped by Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Do calls fn until it succeeds, returns a permanent error, the context is
// done, or MaxAttempts is reached. It returns the number of attempts made and
// the last error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) (int, error) {
	max := p.MaxAttempts
	if max < 1 {
		max = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 1; attempt <= max; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			if err == nil {
				err = cerr
			}
			return attempt - 1, err
		}
		err = fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		var pe *permanentError
		if errors.As(err, &pe) {
			return attempt, pe.err
		}
		if attempt == max || p.Backoff == nil {
			if attempt == max {
				return attempt, err
			}
			continue
		}
		if serr := sleep(ctx, p.Backoff(attempt)); serr != nil {
			return attempt, err
		}
	}
	return max, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
