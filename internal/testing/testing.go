// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/desertthunder/gmx/internal/server"
	"github.com/desertthunder/gmx/internal/shared"
)

// Account used by [NewStub].
const (
	StubEmail    = "tester@example.com"
	StubPassword = "hunter2"
	StubToken    = "stub-token"
)

// NewStub starts an in-memory music library on a test server and closes it on cleanup.
func NewStub(t *testing.T, lag int) (*server.Library, *httptest.Server) {
	t.Helper()

	lib := server.NewLibrary(server.Options{
		Email:    StubEmail,
		Password: StubPassword,
		Token:    StubToken,
		Lag:      lag,
	})
	srv := httptest.NewServer(lib)
	lib.SetBaseURL(srv.URL)
	t.Cleanup(srv.Close)
	return lib, srv
}

// StubConfig returns a config pointed at srv with tiny retry delays and an in-memory ledger.
func StubConfig(srv *httptest.Server) *shared.Config {
	cfg := shared.DefaultConfig()
	cfg.Credentials.Email = StubEmail
	cfg.Credentials.Password = StubPassword
	cfg.Credentials.TokenURL = srv.URL + "/oauth/token"
	cfg.Service.BaseURL = srv.URL
	cfg.Service.RequestsPerSecond = 0
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond
	cfg.Retry.MaxAttempts = 8
	cfg.Database.Path = ":memory:"
	return cfg
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
	Requests []*http.Request
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.Requests = append(m.Requests, req)
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
