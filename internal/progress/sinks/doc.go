// Package sinks provides the progress.Sink implementations shipped with the
// crawler: a zap log sink, a Prometheus sink, and an in-memory status store
// backing the status endpoint.
package sinks
