// Package rate implements the per-client request counter that runs in front of
// every HTTP request.
//
// # Window semantics
//
// The default mode reproduces the historical limiter: the current count is read,
// the request is rejected when it exceeds the limit, and otherwise the counter is
// incremented and its expiry pushed out by a full window. Two toggles tighten
// this: LimitInclusive rejects at the limit instead of above it, and StrictWindow
// only sets the expiry on the first hit so the window does not slide.
//
// The read, the comparison and the increment run as one Lua script, so a burst
// of concurrent requests is admitted at most once per counted slot.
//
// Key prefix:
//   - ratelimit: per client identifier
//
// # What this package must NOT do
//
//   - Extract client identifiers from requests (the middleware does that).
//   - Decide what happens when Redis is unreachable (the caller chooses fail-open or fail-closed).
package rate
