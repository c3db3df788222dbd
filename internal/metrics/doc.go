// Package metrics holds the guard's counter and histogram storage.
//
// Each counter owns a padded uint64 slot so that hot counters on the
// Authorize path do not share cache lines. Histograms have eight fixed
// latency buckets (5ms up to +Inf) plus a nanosecond sum. Writes never
// allocate. Slot indices are assigned by the root package's MetricID.
//
// # What this package must NOT do
//
//   - Import goGuard or any sibling package.
//   - Keep global registries.
package metrics
