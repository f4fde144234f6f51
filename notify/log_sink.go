package notify

import (
	"go.uber.org/zap"
)

// LogSink writes progress records to a structured logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.With(zap.String("component", "notify_log_sink"))}
}

// Emit implements Sink.
func (s *LogSink) Emit(p Progress) {
	s.logger.Info("run progress",
		zap.String("run_id", p.RunID),
		zap.String("stage", string(p.Stage)),
		zap.String("role", string(p.Role)),
		zap.String("event", string(p.Event)),
		zap.Bool("has_errors", p.Summary.HasErrors),
		zap.Time("timestamp", p.Timestamp),
	)
}
