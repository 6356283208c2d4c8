package check

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestChecks(t *testing.T) {
	t.Run("passing checks return nil", func(t *testing.T) {
		errs := []error{
			Equal(1, 1),
			NotEqual("a", "b"),
			NotNil([]string{}),
			Len([]int{1, 2}, 2),
			Empty(map[string]int{}),
			NotEmpty("x"),
			True(true),
			ErrorIs(fmt.Errorf("wrapped: %w", errSentinel), errSentinel),
			Contains([]string{"a", "b"}, "b"),
		}
		for i, err := range errs {
			if err != nil {
				t.Errorf("check %d: expected nil, got %v", i, err)
			}
		}
	})

	t.Run("failing check returns Failure", func(t *testing.T) {
		err := Equal(1, 2)
		if err == nil {
			t.Fatal("expected failure")
		}

		var f *Failure
		if !errors.As(err, &f) {
			t.Fatalf("expected *Failure, got %T", err)
		}
		if f.Check != "equal" {
			t.Errorf("expected check name equal, got %s", f.Check)
		}
		if !strings.Contains(f.Message, "Not equal") {
			t.Errorf("expected testify message, got %q", f.Message)
		}
		if strings.Contains(f.Message, "Error Trace") {
			t.Errorf("expected trace to be dropped, got %q", f.Message)
		}
	})

	t.Run("messages are kept", func(t *testing.T) {
		err := Len([]int{1}, 2, "songs with id %s", "abc")
		if err == nil {
			t.Fatal("expected failure")
		}
		if !strings.Contains(err.Error(), "songs with id abc") {
			t.Errorf("expected message in error, got %q", err.Error())
		}
	})

	t.Run("nil slice is nil", func(t *testing.T) {
		var hits []string
		if err := NotNil(hits); err == nil {
			t.Error("expected nil slice to fail NotNil")
		}
	})
}

var errSentinel = errors.New("sentinel")

func TestIsFailure(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		if !IsFailure(True(false)) {
			t.Error("expected failure to be detected")
		}
	})

	t.Run("wrapped", func(t *testing.T) {
		err := fmt.Errorf("step: %w", Empty([]int{1}))
		if !IsFailure(err) {
			t.Error("expected wrapped failure to be detected")
		}
	})

	t.Run("other errors", func(t *testing.T) {
		if IsFailure(errSentinel) {
			t.Error("expected plain error not to be a failure")
		}
		if IsFailure(nil) {
			t.Error("expected nil not to be a failure")
		}
	})
}

func TestFirst(t *testing.T) {
	second := True(false)
	if got := First(nil, second, Equal(1, 2)); got != second {
		t.Errorf("expected first non-nil error, got %v", got)
	}
	if got := First(nil, nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestFailureError(t *testing.T) {
	f := &Failure{Check: "len"}
	if f.Error() != "len failed" {
		t.Errorf("expected 'len failed', got %q", f.Error())
	}
	f.Message = "want 2"
	if f.Error() != "len: want 2" {
		t.Errorf("expected 'len: want 2', got %q", f.Error())
	}
}
