// Package progress defines the event stream emitted by the crawl workload
// and the Hub that batches it out to sinks (logs, Prometheus, the status
// endpoint).
package progress
