// Package goGuard is a client-side session guard: for every request it decides
// whether the caller's credentials are good, transparently exchanges a
// long-lived refresh credential for a new short-lived access credential when
// they are not, and otherwise denies with a reason.
//
// The package is designed for concurrent workloads: Engine methods are safe to
// call from multiple goroutines after [Builder.Build]. Concurrent requests of
// one session never race to refresh it; they share one refresh round through
// [Refresher].
//
// # Architecture boundaries
//
// goGuard is the public surface: [Engine], [Builder], [Config], [Decision] and
// metric/audit value types. The state machine lives in internal/flows, storage
// in credential/, and the backend contract in probe/.
//
// # What this package must NOT do
//
//   - Evaluate roles, scopes or permissions.
//   - Issue credentials, or verify the backend's token signatures.
//   - Log, audit or print credential values.
//   - Retry backend calls; one Authorize makes at most one refresh round.
package goGuard
