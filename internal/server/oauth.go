package server

import (
	"net/http"
	"sync"
)

// TokenHandler serves the OAuth2 token endpoint for the resource-owner password grant.
// Implements the Handler interface for registration with a Router.
type TokenHandler struct {
	email    string
	password string
	token    string

	mu     sync.Mutex
	issued int
}

// NewTokenHandler creates a handler that issues token for the given account.
func NewTokenHandler(email, password, token string) *TokenHandler {
	return &TokenHandler{email: email, password: password, token: token}
}

// Routes returns the HTTP routes this handler serves.
func (h *TokenHandler) Routes() []string {
	return []string{"POST /oauth/token"}
}

// ServeHTTP validates the grant and writes a bearer token response.
//
// Errors follow RFC 6749 section 5.2 so oauth2 clients surface them as RetrieveError.
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	if grant := r.PostForm.Get("grant_type"); grant != "password" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	if r.PostForm.Get("username") != h.email || r.PostForm.Get("password") != h.password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":             "invalid_grant",
			"error_description": "bad credentials",
		})
		return
	}

	h.mu.Lock()
	h.issued++
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": h.token,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

// Issued returns how many tokens were handed out.
func (h *TokenHandler) Issued() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.issued
}
