package services

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/desertthunder/gmx/internal/shared"
)

// rateLimitedTransport paces outgoing requests with a token bucket.
type rateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// NewRateLimitedTransport wraps base so at most rps requests per second are sent.
// A non-positive rps disables pacing.
func NewRateLimitedTransport(base http.RoundTripper, rps float64) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &rateLimitedTransport{base: base, limiter: rate.NewLimiter(limit, 1)}
}

// NewHTTPClient builds the paced client used for every call to the service.
func NewHTTPClient(cfg shared.ServiceConfig) *http.Client {
	return &http.Client{
		Transport: NewRateLimitedTransport(http.DefaultTransport, cfg.RequestsPerSecond),
		Timeout:   cfg.Timeout,
	}
}
