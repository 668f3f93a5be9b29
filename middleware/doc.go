// Package middleware adapts token verification and rate limiting to net/http.
//
// # Guards
//
//   - [Guard]: requires a valid bearer access token and stores its claims in the request context.
//   - [RequireRoles]: rejects authenticated callers outside a role set with 403.
//   - [RequireFreshToken]: rejects tokens that are about to expire.
//
// # Request plumbing
//
//   - [RequestID]: propagates or generates X-Request-Id, optionally requiring it.
//   - [RateLimit]: per-client fixed-window limiting keyed by [ClientID].
//   - [AccessLog] and [HTTPMetrics]: zerolog access log and Prometheus RED metrics.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into calls on a [Verifier] or
// [Limiter]. It never parses tokens or touches Redis itself, and it never
// writes internal error text to a response.
package middleware
