// Package server provides an in-memory music library that speaks the proxy's JSON API.
//
// It backs the end-to-end tests of the live suite and the `gmx stub` command,
// so a full run can be exercised without a real account.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so handlers read
// path wildcards with [http.Request.PathValue].
//
// # Token Endpoint
//
// [TokenHandler] implements the OAuth2 resource-owner password grant at POST /oauth/token.
// Every /api route requires the issued bearer token.
//
// # Eventual Consistency
//
// [Library] keeps a committed state and a visible state. After each write the
// next Options.Lag reads still observe the previous visible state; this is what
// the retry helper has to ride out against the real service.
//
// # Fault Injection
//
// [Library.Fail] answers a given method and path with a fixed status so error
// mapping and cleanup paths can be driven from tests.
package server
