// package retry polls an operation until the remote state it asserts on has converged.
//
// An attempt that returns a retryable error (by default a [*check.Failure]) is
// repeated after a backoff delay; any other error stops immediately. The loop
// ends when the operation succeeds, the attempt or elapsed bound is reached, or
// the context is cancelled.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jpillora/backoff"

	"github.com/desertthunder/gmx/internal/check"
	"github.com/desertthunder/gmx/internal/shared"
)

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
	// MaxElapsed stops the loop before a wait that would exceed it. Zero means no limit.
	MaxElapsed time.Duration

	// RetryIf reports whether an attempt's error is worth another try. Defaults to [check.IsFailure].
	RetryIf func(error) bool
	// OnRetry is called before each wait with the failed attempt number (1-based).
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy returns 5 attempts, 2s initial delay doubling up to 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// FromConfig builds a Policy from the [retry] config table.
func FromConfig(cfg shared.RetryConfig) Policy {
	return Policy{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   cfg.Multiplier,
		Jitter:       cfg.Jitter,
		MaxElapsed:   cfg.MaxElapsed,
	}
}

// WithOnRetry returns a copy of p with hook chained after any existing OnRetry.
func (p Policy) WithOnRetry(hook func(attempt int, err error, wait time.Duration)) Policy {
	prev := p.OnRetry
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		if prev != nil {
			prev(attempt, err, wait)
		}
		hook(attempt, err, wait)
	}
	return p
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	return p.backoff().ForAttempt(float64(attempt - 1))
}

func (p Policy) backoff() *backoff.Backoff {
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Duration(math.MaxInt64)
	}
	factor := p.Multiplier
	if factor < 1 {
		factor = 1
	}
	return &backoff.Backoff{
		Min:    p.InitialDelay,
		Max:    maxDelay,
		Factor: factor,
		Jitter: p.Jitter,
	}
}

func (p Policy) retryable(err error) bool {
	if p.RetryIf != nil {
		return p.RetryIf(err)
	}
	return check.IsFailure(err)
}

// ExhaustedError is returned when the bound is reached while attempts still fail.
type ExhaustedError struct {
	Attempts int
	Elapsed  time.Duration
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %s in %s: %v",
		shared.Pluralize(e.Attempts, "attempt"), shared.FormatDuration(e.Elapsed), e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do calls op until it returns without a retryable error and returns its value.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		b     = p.backoff()
		start = time.Now()
		last  error
	)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, errors.Join(err, last)
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !p.retryable(err) {
			return zero, err
		}
		last = err

		if attempt >= maxAttempts {
			return zero, &ExhaustedError{Attempts: attempt, Elapsed: time.Since(start), Last: last}
		}

		wait := b.Duration()
		if p.InitialDelay <= 0 {
			wait = 0
		}
		if p.MaxElapsed > 0 && time.Since(start)+wait > p.MaxElapsed {
			return zero, &ExhaustedError{Attempts: attempt, Elapsed: time.Since(start), Last: last}
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}

		if err := sleep(ctx, wait); err != nil {
			return zero, errors.Join(err, last)
		}
	}
}

// Until calls fn until it returns without a retryable error.
func Until(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
