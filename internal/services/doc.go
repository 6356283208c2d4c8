// Package services defines the [Service] interface for the music library and implements it over the JSON proxy.
//
// # Service Interface
//
// [Service] is the surface the live suite exercises: session management, upload,
// library listing, playlists and search. Every call takes a context first.
//
// # Music Library Implementation
//
// [MusicService] communicates with the proxy in front of the library.
//
// Login uses [oauth2.Config.PasswordCredentialsToken] against the configured token URL,
// or wraps a static access token in [oauth2.StaticTokenSource]. The resulting
// [oauth2.Transport] adds the bearer header to every request.
//
// With upload auth the client registers an uploader id (a uuid) at POST /api/uploads/auth.
// Upload without it fails with [shared.ErrNotLoggedIn] before any file is read.
//
// # Request Pacing
//
// [NewHTTPClient] installs a [rate.Limiter] as an [http.RoundTripper], so every call,
// including token requests, is paced by requests_per_second from the config.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotLoggedIn] : no session, missing upload auth, or a 401 response
//   - [shared.ErrPlaylistNotFound] : 404 on a playlist route
//   - [shared.ErrSongNotFound] : 404 on a song route
//   - [shared.ErrServiceUnavailable] : 503 response
//   - [shared.ErrAPIRequest] : any other non-2xx response
//
// The proxy's {"detail": "..."} message is appended to the wrapped error.
//
// # Raw Requests
//
// [APIService] sends arbitrary GET/POST requests and returns the raw response,
// backing the `gmx api` command.
package services
