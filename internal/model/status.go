package model

import "time"

// TotalSteps is the number of tracked steps in a research workflow: four
// gathering steps plus synthesis.
const TotalSteps = 5

// Stage is the lifecycle state of a workflow.
type Stage string

const (
	StagePending  Stage = "pending"
	StageRunning  Stage = "running"
	StageComplete Stage = "complete"
	StageFailed   Stage = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

// StepState is the outcome of one workflow step.
type StepState string

const (
	StepStarted   StepState = "started"
	StepCompleted StepState = "completed"
	StepFailed    StepState = "failed"
	StepSkipped   StepState = "skipped"
)

// Step names.
const (
	StepProfile   = "profile"
	StepNews      = "news"
	StepFilings   = "filings"
	StepAnalyst   = "analyst"
	StepSynthesis = "synthesis"
)

// StepStatus records one step of a workflow.
type StepStatus struct {
	Name     string    `json:"name"`
	State    StepState `json:"state"`
	Tag      DataTag   `json:"tag,omitempty"`
	Duration int64     `json:"duration_ms"`
	Detail   string    `json:"detail,omitempty"`
}

// WorkflowStatus is the tracked progress of one research workflow.
type WorkflowStatus struct {
	ThreadID       string       `json:"thread_id"`
	Ticker         string       `json:"ticker"`
	StepsCompleted int          `json:"steps_completed"`
	TotalSteps     int          `json:"total_steps"`
	Stage          Stage        `json:"stage"`
	StartTime      time.Time    `json:"start_time"`
	EndTime        *time.Time   `json:"end_time,omitempty"`
	Steps          []StepStatus `json:"steps,omitempty"`
	Error          string       `json:"error,omitempty"`
}

// Clone returns a deep copy safe to hand out of a lock.
func (w WorkflowStatus) Clone() WorkflowStatus {
	c := w
	if w.EndTime != nil {
		t := *w.EndTime
		c.EndTime = &t
	}
	if w.Steps != nil {
		c.Steps = append([]StepStatus(nil), w.Steps...)
	}
	return c
}

// Duration returns the elapsed time of the workflow, up to now if it is
// still running.
func (w WorkflowStatus) Duration(now time.Time) time.Duration {
	if w.EndTime != nil {
		return w.EndTime.Sub(w.StartTime)
	}
	return now.Sub(w.StartTime)
}
