// Package revocation implements the Redis ledger that shadows stateless tokens.
//
// # Markers
//
// Refresh tokens are recorded as "active" at login and rotation; access tokens
// are recorded as "revoked" at logout. Each key expires together with the token
// it describes, so the ledger never outgrows the set of live tokens.
//
// # Retry
//
// Every ledger operation runs under a bounded exponential backoff. Transport
// failures and failover replies are retried; a miss, a script reply or a
// cancelled context is final. Exhaustion surfaces as ErrStoreUnavailable and
// callers reject the request.
package revocation
