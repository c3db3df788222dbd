// Package flows contains the pure-function orchestrators behind Engine operations.
//
// [RunAuthorize] walks the session guard state machine: read the refresh
// credential, read and validate the access credential, fall back to a shared
// refresh round, and settle on one verdict. [RunLogout] clears a session.
// Each takes a dependency struct of closures and sentinels, so every branch can
// be driven from tests without a store or backend.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goGuard (to avoid import cycles).
//   - Perform I/O directly; all I/O goes through the dependency structs.
package flows
