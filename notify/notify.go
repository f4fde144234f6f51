// Package notify delivers run progress to interested observers. Emission is
// fire-and-forget: a broken sink never stalls or fails a run.
package notify

import (
	"time"

	"github.com/BaSui01/coordflow/state"
)

// Event 进度事件类型
type Event string

const (
	EventRunStarted    Event = "run_started"
	EventStageStarted  Event = "stage_started"
	EventStageFinished Event = "stage_finished"
	EventStageRetried  Event = "stage_retried"
	EventRunPaused     Event = "run_paused"
	EventRunResumed    Event = "run_resumed"
	EventRunCompleted  Event = "run_completed"
	EventRunFailed     Event = "run_failed"
	EventHealthReport  Event = "health_report"
)

// Progress is one observation of a run's state.
type Progress struct {
	RunID     string        `json:"run_id"`
	Stage     state.Stage   `json:"stage"`
	Role      state.Role    `json:"role,omitempty"`
	Event     Event         `json:"event"`
	Summary   state.Summary `json:"summary"`
	Timestamp time.Time     `json:"timestamp"`
}

// Sink receives progress records. Emit must not block for long and must
// swallow its own failures.
type Sink interface {
	Emit(p Progress)
}

// NopSink discards everything.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(Progress) {}

// MultiSink fans out to several sinks in order.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(p Progress) {
	for _, s := range m {
		s.Emit(p)
	}
}
