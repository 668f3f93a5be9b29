// Package flows contains the orchestration behind every Engine operation.
//
// Each flow function (RunLogin, RunVerify, RunRefresh, RunLogout) accepts a
// typed dependency struct and returns a result carrying a failure kind. The
// root package maps kinds onto public errors, metrics and audit events, which
// keeps flows free of any presentation concern.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import sessionguard (to avoid import cycles).
//   - Perform I/O directly; all I/O goes through the dependency structs.
package flows
