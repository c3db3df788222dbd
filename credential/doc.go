// Package credential holds the two per-session secrets the guard works with: the
// long-lived refresh credential and the short-lived access credential.
//
// # Stores
//
//   - [MemoryStore]: process-local map, used by tests and single-user clients.
//   - [RedisStore]: one Redis hash per session, optional sliding TTL.
//   - [PostgresStore]: one row per session for durable deployments.
//
// Any store may be given a [Sealer] so values are encrypted at rest.
//
// # Architecture boundaries
//
// This package owns persistence only. It does NOT decide when credentials are
// written or cleared; that belongs to the guard engine.
//
// # What this package must NOT do
//
//   - Import goGuard, probe, or middleware (no upward imports).
//   - Log or return credential values inside errors.
//   - Keep superseded credential values (no history).
package credential
