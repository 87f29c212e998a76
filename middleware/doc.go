// Package middleware adapts portfolioAuth guards to net/http.
//
// # Request mapping
//
//   - Credentials: access token from the access cookie or an
//     "Authorization: Bearer" header, refresh token from the refresh cookie.
//   - Device: the X-Device-ID header, else the client host.
//   - Fingerprint: client host, Sec-CH-UA-Platform and User-Agent.
//
// # Guards
//
// [Guard] runs a [portfolioAuth.Guard] per request. Credentials rotated
// during the call are written back as cookies before the wrapped handler
// runs, and the authorization context is attached to the request context.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the engine).
//   - Access Redis.
//   - Decide access beyond mapping guard results to status codes.
package middleware
