// Package internal contains helpers private to goGuard: session ID minting and
// validation, and the credential digests used to key refresh rounds.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: the authorize state machine as a pure function over injected deps
//   - metrics: lock-free counters and latency histograms
//   - rate: per-session refresh throttles (Redis fixed window, local token bucket)
//
// # What this package must NOT do
//
//   - Export types that appear in the public goGuard API.
//   - Be imported by any package outside the goGuard module.
package internal
