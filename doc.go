// Package sessionguard issues, verifies, rotates and revokes the stateless JWT
// sessions shared by a fleet of independently deployed services.
//
// Tokens are HS256 JWTs signed with one shared secret, so any service can
// verify them locally. A Redis ledger shadows the stateless tokens: refresh
// tokens are recorded as active when issued and consumed when rotated, and
// access tokens are recorded as revoked on logout for the rest of their
// lifetime. A short-lived verification cache keeps hot tokens off the ledger,
// and a per-client fixed-window limiter sits in front of everything.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// sessionguard is the public surface. It exposes [Engine], [Builder], [Config]
// and value types. Flow orchestration, rate limiting and audit dispatch live
// under internal/ and are never exported.
//
// # Failure policy
//
// Every authentication failure matches [ErrUnauthorized]. When the ledger is
// unreachable after its retry budget, verification, refresh and logout fail
// closed with [ErrStoreUnavailable].
//
// # Performance contract
//
// Verify is the hot path: a local decode plus at most one Redis GET, and none
// on a cache hit. Login, Refresh and Logout use at most three Redis round trips.
package sessionguard
