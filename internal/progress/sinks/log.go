package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkharvest/internal/progress"
)

// Log writes progress events to a zap logger. Fetch-level events land at
// debug so the default output stays readable on large crawls.
type Log struct {
	logger *zap.Logger
}

// NewLog builds the sink.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Consume implements progress.Sink.
func (s *Log) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("crawl_id", evt.CrawlUUID().String()),
			zap.String("stage", string(evt.Stage)),
		}
		if evt.URL != "" {
			fields = append(fields, zap.String("url", evt.URL))
		}
		if evt.Engine >= 0 {
			fields = append(fields, zap.Int("engine", evt.Engine))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("duration", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}

		switch evt.Stage {
		case progress.StageCrawlStart, progress.StageCrawlDone:
			s.logger.Info("crawl progress", fields...)
		case progress.StageError:
			s.logger.Warn("crawl progress", fields...)
		default:
			s.logger.Debug("crawl progress", fields...)
		}
	}
	return nil
}

// Close implements progress.Sink.
func (s *Log) Close(context.Context) error {
	_ = s.logger.Sync()
	return nil
}
