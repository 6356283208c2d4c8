// package server contains the router, middleware & handlers for the in-memory music library stub
package server

import (
	"encoding/json"
	"errors"
	"net/http"
)

var errNotFound = errors.New("not found")

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// The stub uses it for request logging, fault injection and bearer-token checks.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers registered as a unit.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the proxy's error shape, {"detail": "..."}.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
