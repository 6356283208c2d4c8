// package check provides assertions that return errors instead of failing a test.
//
// Each helper delegates to testify's assert package through a recording
// [assert.TestingT]; a failed assertion becomes a [*Failure]. Failures are the
// only errors the retry helper treats as "not converged yet".
package check

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/stretchr/testify/assert"
)

// Failure is an assertion that did not hold.
type Failure struct {
	Check   string
	Message string
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return f.Check + " failed"
	}
	return f.Check + ": " + f.Message
}

// IsFailure reports whether err is, or wraps, a [*Failure].
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

// recorder implements [assert.TestingT] by keeping every message.
type recorder struct {
	messages []string
}

func (r *recorder) Errorf(format string, args ...any) {
	r.messages = append(r.messages, fmt.Sprintf(format, args...))
}

func (r *recorder) Helper() {}

func run(name string, fn func(t assert.TestingT) bool) error {
	r := &recorder{}
	if fn(r) {
		return nil
	}
	return &Failure{Check: name, Message: summarize(strings.Join(r.messages, "\n"))}
}

var (
	labelLine        = regexp.MustCompile(`^\t([A-Za-z][A-Za-z ]*):\s*\t(.*)$`)
	continuationLine = regexp.MustCompile(`^\t +\t(.*)$`)
)

// summarize keeps the Error and Messages sections of testify's labeled output
// and drops the caller trace, which is meaningless outside a test binary.
func summarize(output string) string {
	var (
		parts   []string
		current string
		keep    bool
	)
	for _, line := range strings.Split(output, "\n") {
		if m := labelLine.FindStringSubmatch(line); m != nil {
			current = m[1]
			keep = current == "Error" || current == "Messages"
			if keep {
				parts = append(parts, strings.TrimSpace(m[2]))
			}
			continue
		}
		if m := continuationLine.FindStringSubmatch(line); m != nil && keep {
			parts[len(parts)-1] += "\n" + strings.TrimRight(m[1], " ")
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(output)
	}
	return strings.Join(parts, "; ")
}

// Equal checks that expected and actual are equal per [assert.ObjectsAreEqual].
func Equal(expected, actual any, msgAndArgs ...any) error {
	return run("equal", func(t assert.TestingT) bool {
		return assert.Equal(t, expected, actual, msgAndArgs...)
	})
}

// NotEqual checks that expected and actual differ.
func NotEqual(expected, actual any, msgAndArgs ...any) error {
	return run("not equal", func(t assert.TestingT) bool {
		return assert.NotEqual(t, expected, actual, msgAndArgs...)
	})
}

// NotNil checks that object is not nil. A nil slice or map counts as nil.
func NotNil(object any, msgAndArgs ...any) error {
	return run("not nil", func(t assert.TestingT) bool {
		return assert.NotNil(t, object, msgAndArgs...)
	})
}

func Len(object any, length int, msgAndArgs ...any) error {
	return run("len", func(t assert.TestingT) bool {
		return assert.Len(t, object, length, msgAndArgs...)
	})
}

func Empty(object any, msgAndArgs ...any) error {
	return run("empty", func(t assert.TestingT) bool {
		return assert.Empty(t, object, msgAndArgs...)
	})
}

func NotEmpty(object any, msgAndArgs ...any) error {
	return run("not empty", func(t assert.TestingT) bool {
		return assert.NotEmpty(t, object, msgAndArgs...)
	})
}

func True(value bool, msgAndArgs ...any) error {
	return run("true", func(t assert.TestingT) bool {
		return assert.True(t, value, msgAndArgs...)
	})
}

// ErrorIs checks that err wraps target.
func ErrorIs(err, target error, msgAndArgs ...any) error {
	return run("error is", func(t assert.TestingT) bool {
		return assert.ErrorIs(t, err, target, msgAndArgs...)
	})
}

// Contains checks that s contains the element (string, slice, array or map key).
func Contains(s, element any, msgAndArgs ...any) error {
	return run("contains", func(t assert.TestingT) bool {
		return assert.Contains(t, s, element, msgAndArgs...)
	})
}

// First returns the first non-nil error, so checks can be chained in order.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
