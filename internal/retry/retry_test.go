package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/gmx/internal/check"
	"github.com/desertthunder/gmx/internal/shared"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestDo(t *testing.T) {
	t.Run("returns value on first success", func(t *testing.T) {
		calls := 0
		v, err := Do(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
			calls++
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if v != "ok" {
			t.Errorf("expected ok, got %s", v)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("retries failures until convergence", func(t *testing.T) {
		calls := 0
		v, err := Do(context.Background(), fastPolicy(5), func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, check.Equal(3, calls)
			}
			return calls, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if v != 3 || calls != 3 {
			t.Errorf("expected value 3 after 3 calls, got %d after %d", v, calls)
		}
	})

	t.Run("propagates last failure when exhausted", func(t *testing.T) {
		calls := 0
		_, err := Do(context.Background(), fastPolicy(4), func(context.Context) (int, error) {
			calls++
			return 0, check.True(false, "attempt %d", calls)
		})

		var exhausted *ExhaustedError
		if !errors.As(err, &exhausted) {
			t.Fatalf("expected *ExhaustedError, got %T: %v", err, err)
		}
		if exhausted.Attempts != 4 || calls != 4 {
			t.Errorf("expected 4 attempts, got %d (calls %d)", exhausted.Attempts, calls)
		}
		if !check.IsFailure(err) {
			t.Error("expected last failure reachable through Unwrap")
		}
		var f *check.Failure
		errors.As(err, &f)
		if f == nil || f.Message == "" {
			t.Fatalf("expected failure message, got %v", f)
		}
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		calls := 0
		_, err := Do(context.Background(), fastPolicy(5), func(context.Context) (int, error) {
			calls++
			return 0, shared.ErrNotLoggedIn
		})
		if !errors.Is(err, shared.ErrNotLoggedIn) {
			t.Errorf("expected ErrNotLoggedIn, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("custom RetryIf", func(t *testing.T) {
		p := fastPolicy(3)
		p.RetryIf = func(err error) bool { return errors.Is(err, shared.ErrServiceUnavailable) }

		calls := 0
		err := Until(context.Background(), p, func(context.Context) error {
			calls++
			return shared.ErrServiceUnavailable
		})
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected wrapped ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("OnRetry sees each failed attempt", func(t *testing.T) {
		var attempts []int
		p := fastPolicy(3).WithOnRetry(func(attempt int, err error, wait time.Duration) {
			attempts = append(attempts, attempt)
			if !check.IsFailure(err) {
				t.Errorf("expected failure passed to hook, got %v", err)
			}
		})

		_ = Until(context.Background(), p, func(context.Context) error {
			return check.Empty([]int{1})
		})

		if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
			t.Errorf("expected hook for attempts [1 2], got %v", attempts)
		}
	})

	t.Run("context cancellation stops waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := Policy{MaxAttempts: 10, InitialDelay: time.Hour, Multiplier: 2}
		p.OnRetry = func(int, error, time.Duration) { cancel() }

		start := time.Now()
		err := Until(ctx, p, func(context.Context) error {
			return check.True(false)
		})

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if !check.IsFailure(err) {
			t.Error("expected last failure joined with cancellation")
		}
		if time.Since(start) > time.Second {
			t.Error("expected cancellation to interrupt the wait")
		}
	})

	t.Run("MaxElapsed stops before a long wait", func(t *testing.T) {
		p := Policy{MaxAttempts: 10, InitialDelay: time.Hour, Multiplier: 2, MaxElapsed: time.Minute}
		calls := 0
		err := Until(context.Background(), p, func(context.Context) error {
			calls++
			return check.True(false)
		})

		var exhausted *ExhaustedError
		if !errors.As(err, &exhausted) {
			t.Fatalf("expected *ExhaustedError, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected a single attempt, got %d", calls)
		}
	})

	t.Run("zero attempts still runs once", func(t *testing.T) {
		calls := 0
		_ = Until(context.Background(), Policy{}, func(context.Context) error {
			calls++
			return check.True(false)
		})
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})
}

func TestPolicy(t *testing.T) {
	t.Run("DefaultPolicy", func(t *testing.T) {
		p := DefaultPolicy()
		if p.MaxAttempts != 5 || p.InitialDelay != 2*time.Second || p.Multiplier != 2 {
			t.Errorf("unexpected defaults: %+v", p)
		}
	})

	t.Run("Delay schedule", func(t *testing.T) {
		p := DefaultPolicy()
		want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second}
		for i, w := range want {
			if got := p.Delay(i + 1); got != w {
				t.Errorf("attempt %d: expected %s, got %s", i+1, w, got)
			}
		}
	})

	t.Run("Delay without initial delay", func(t *testing.T) {
		p := Policy{MaxAttempts: 3}
		if got := p.Delay(2); got != 0 {
			t.Errorf("expected no delay, got %s", got)
		}
	})

	t.Run("FromConfig", func(t *testing.T) {
		cfg := shared.DefaultConfig().Retry
		p := FromConfig(cfg)
		if p.MaxAttempts != cfg.MaxAttempts || p.InitialDelay != cfg.InitialDelay || p.MaxDelay != cfg.MaxDelay {
			t.Errorf("policy does not match config: %+v vs %+v", p, cfg)
		}
	})
}

func TestExhaustedError(t *testing.T) {
	err := &ExhaustedError{Attempts: 3, Elapsed: 1500 * time.Millisecond, Last: errors.New("boom")}
	if got := err.Error(); got != "gave up after 3 attempts in 1.5s: boom" {
		t.Errorf("unexpected message %q", got)
	}
}
