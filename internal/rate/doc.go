// Package rate provides the per-session refresh throttle used by the guard's
// refresh leader.
//
// # Window semantics
//
// [RedisLimiter] uses fixed-window counters: INCR + conditional EXPIRE on first
// hit, key prefix "<prefix>:rr:<session>". [LocalLimiter] keeps one token bucket
// per session in process memory.
//
// # What this package must NOT do
//
//   - Decide what happens on a denial (the engine maps it to a maintenance decision).
//   - Be imported outside the goGuard module.
package rate
