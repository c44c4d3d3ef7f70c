// Package retry implements retries with jittered exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

var (
	// ErrInvalidPolicyParam indicates that one or more Backoff parameters are
	// invalid (e.g., fall outside accepted intervals).
	ErrInvalidPolicyParam = errors.New("invalid policy param")
	// ErrAborted indicates that the Op provided to Do returned a Permanent
	// error.
	ErrAborted = errors.New("aborted")
	// ErrExhausted indicates that the Op provided to Do exhausted the attempt
	// budget without succeeding.
	ErrExhausted = errors.New("too many attempts")
)

// Op is a retryable operation. attempt is the 1-based index of the current
// attempt. Returning nil ends the retry loop successfully, returning an error
// wrapped with Permanent ends it with ErrAborted, and any other error is
// retried.
type Op func(ctx context.Context, attempt int) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	return &permanentError{err: err}
}

// Backoff paces retries with jittered exponential backoff. A Backoff value is
// stateless, and may be used by multiple goroutines concurrently.
type Backoff struct {
	// Base is the initial delay between attempts.
	Base time.Duration
	// Growth is the multiplicative growth factor used to increase the delay on
	// successive attempts, and must be greater than or equal to 1.
	Growth float64
	// Jitter is the fractional amplitude of the random jitter applied to each
	// delay, and must be in the interval [0, 1].
	Jitter float64
	// MaxDelay, if positive, caps the (pre-jitter) delay between attempts.
	MaxDelay time.Duration
	sleep    func(context.Context, time.Duration) error // overidden in tests
}

func (b Backoff) validate() error {
	switch {
	case b.Growth < 1.0:
		return fmt.Errorf("delay growth factor is less than 1: %w", ErrInvalidPolicyParam)
	case b.Jitter < 0.0:
		return fmt.Errorf("delay jitter amplitude is negative: %w", ErrInvalidPolicyParam)
	case b.Jitter > 1.0:
		return fmt.Errorf("delay jitter amplitude is greater than 1: %w", ErrInvalidPolicyParam)
	case b.MaxDelay < 0:
		return fmt.Errorf("max delay is negative: %w", ErrInvalidPolicyParam)
	}
	return nil
}

// next returns the (pre-jitter) delay that follows d.
func (b Backoff) next(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * b.Growth)
	if b.MaxDelay > 0 && d > b.MaxDelay {
		return b.MaxDelay
	}
	return d
}

// jittered spreads d uniformly over [(1-J)d, (1+J)d).
func (b Backoff) jittered(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (1.0 + b.Jitter*(2*rand.Float64()-1.0)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do invokes op up to n times, sleeping between attempts. When the budget is
// exhausted, the returned error wraps both ErrExhausted and the last error
// from op. If ctx is done before an attempt or while sleeping, Do returns the
// context error.
func (b Backoff) Do(ctx context.Context, n int, op Op) error {
	if err := b.validate(); err != nil {
		return err
	}
	sleep := b.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	var last error
	d := b.Base
	for attempt := 1; attempt <= n; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last = op(ctx, attempt)
		if last == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(last, &perm) {
			return fmt.Errorf("%w: %w", ErrAborted, perm.err)
		}
		if attempt == n {
			break
		}
		if err := sleep(ctx, b.jittered(d)); err != nil {
			return err
		}
		d = b.next(d)
	}
	if last == nil {
		return ErrExhausted
	}
	return fmt.Errorf("%w (%d): %w", ErrExhausted, n, last)
}
