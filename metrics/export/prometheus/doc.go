// Package prometheus exports engine metrics through a client_golang
// [prometheus.Collector].
//
// The collector reads one engine snapshot per scrape and emits const metrics,
// so registering it adds no work to the Authorize path.
package prometheus
