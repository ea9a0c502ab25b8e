package workflow

import (
	"time"

	"go.uber.org/zap"
)

// Workflow log events.
const (
	EventStarted   = "STARTED"
	EventCompleted = "COMPLETED"
	EventFailed    = "FAILED"
	EventSkipped   = "SKIPPED"
)

// RunName labels the run-level lines of the workflow stream.
const RunName = "workflow"

// RunLog writes the workflow stream: one line per step or run transition.
type RunLog struct {
	log *zap.Logger
}

// NewRunLog wraps l. A nil logger discards every line.
func NewRunLog(l *zap.Logger) *RunLog {
	if l == nil {
		l = zap.NewNop()
	}
	return &RunLog{log: l}
}

// Event logs "{EVENT} {name}" with the run identity, duration and detail.
func (r *RunLog) Event(event, name, ticker, threadID string, d time.Duration, detail string) {
	if r == nil {
		return
	}
	fields := []zap.Field{
		zap.String("event", event),
		zap.String("step", name),
		zap.String("ticker", ticker),
		zap.String("thread_id", threadID),
	}
	if event != EventStarted {
		fields = append(fields, zap.Duration("duration", d))
	}
	if detail != "" {
		fields = append(fields, zap.String("detail", detail))
	}

	msg := event + " " + name
	if event == EventFailed {
		r.log.Error(msg, fields...)
		return
	}
	r.log.Info(msg, fields...)
}
