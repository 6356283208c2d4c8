package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed  = fmt.Errorf("authentication failed")
	ErrNotLoggedIn = fmt.Errorf("not logged in")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrSongNotFound       = fmt.Errorf("song not found")

	// Ledger errors
	ErrRunNotFound      = fmt.Errorf("run not found")
	ErrResourceNotFound = fmt.Errorf("resource not found")

	// Suite errors
	ErrSuiteFailed  = fmt.Errorf("suite failed")
	ErrSweepPartial = fmt.Errorf("sweep left resources behind")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
