package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs each request at debug level.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("stub request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "took", time.Since(start))
		})
	}
}

// RequireBearer rejects requests whose Authorization header does not carry token.
func RequireBearer(token func() string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || got == "" || got != token() {
				writeError(w, http.StatusUnauthorized, "not logged in")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Faults injects error responses for selected "METHOD /path" keys.
type Faults struct {
	mu     sync.Mutex
	status map[string]int
}

// Set makes every request to method and path fail with status. A zero status clears it.
func (f *Faults) Set(method, path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status == nil {
		f.status = map[string]int{}
	}
	key := method + " " + path
	if status == 0 {
		delete(f.status, key)
		return
	}
	f.status[key] = status
}

func (f *Faults) lookup(r *http.Request) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.status[r.Method+" "+r.URL.Path]
	return status, ok
}

// Middleware returns the fault-injecting [Middleware].
func (f *Faults) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if status, ok := f.lookup(r); ok {
				writeError(w, status, "injected fault")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
