package sinks

import (
	"context"

	"github.com/JakeFAU/linkharvest/internal/metrics"
	"github.com/JakeFAU/linkharvest/internal/progress"
)

// Prometheus maps progress events onto the package-level Prometheus
// collectors. metrics.Init must have been called for the counters to move.
type Prometheus struct{}

// NewPrometheus builds the sink.
func NewPrometheus() *Prometheus {
	return &Prometheus{}
}

// Consume implements progress.Sink.
func (*Prometheus) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageFetchStart:
			metrics.FetchStarted()
		case progress.StageFetchDone:
			metrics.FetchFinished()
			metrics.IncVisited()
			metrics.ObserveFetchDuration(evt.Dur)
		case progress.StageCollect:
			metrics.IncCollected()
		case progress.StageRetry:
			metrics.FetchFinished()
			metrics.IncVisited()
			metrics.IncRetries()
		case progress.StageError:
			metrics.FetchFinished()
			metrics.IncVisited()
			metrics.IncErrors()
		}
	}
	return nil
}

// Close implements progress.Sink.
func (*Prometheus) Close(context.Context) error { return nil }
