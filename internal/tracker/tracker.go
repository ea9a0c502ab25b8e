// Package tracker records the progress of research workflows keyed by
// thread id.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-mcp/internal/model"
	"github.com/sells-group/research-mcp/internal/store"
)

// NotFoundError is returned for an unknown thread id, or a ticker that
// does not match the thread.
type NotFoundError struct {
	ThreadID string
	Ticker   string
}

func (e *NotFoundError) Error() string {
	if e.Ticker != "" {
		return fmt.Sprintf("workflow %s not found for ticker %s", e.ThreadID, e.Ticker)
	}
	return fmt.Sprintf("workflow %s not found", e.ThreadID)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ErrTerminal is returned when a transition is attempted on a finished run.
var ErrTerminal = eris.New("tracker: workflow already finished")

// Tracker holds workflow statuses in memory and optionally mirrors them to
// a store. The in-memory copy is authoritative while the process runs.
type Tracker struct {
	mu    sync.Mutex
	runs  map[string]*model.WorkflowStatus
	store store.Store
	now   func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStore persists every transition. A nil store disables persistence.
func WithStore(s store.Store) Option {
	return func(t *Tracker) { t.store = s }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		runs: make(map[string]*model.WorkflowStatus),
		now:  time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// NewThreadID returns research_{TICKER}_{unix}_{8 hex chars}.
func NewThreadID(ticker string, now time.Time) string {
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("research_%s_%d_%s", strings.ToUpper(ticker), now.Unix(), short)
}

// Start registers a pending workflow and returns its thread id.
func (t *Tracker) Start(ctx context.Context, ticker string) string {
	now := t.now()
	st := &model.WorkflowStatus{
		ThreadID:   NewThreadID(ticker, now),
		Ticker:     ticker,
		TotalSteps: model.TotalSteps,
		Stage:      model.StagePending,
		StartTime:  now,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[st.ThreadID] = st
	t.persist(ctx, st)
	return st.ThreadID
}

// MarkRunning moves a pending workflow to running.
func (t *Tracker) MarkRunning(ctx context.Context, threadID string) error {
	return t.update(ctx, threadID, func(st *model.WorkflowStatus) {
		st.Stage = model.StageRunning
	})
}

// Advance increments steps_completed, never past total_steps.
func (t *Tracker) Advance(ctx context.Context, threadID string) error {
	return t.update(ctx, threadID, func(st *model.WorkflowStatus) {
		if st.StepsCompleted < st.TotalSteps {
			st.StepsCompleted++
		}
	})
}

// RecordStep appends or replaces the status of one step. A completed or
// skipped step also advances the run.
func (t *Tracker) RecordStep(ctx context.Context, threadID string, step model.StepStatus) error {
	return t.update(ctx, threadID, func(st *model.WorkflowStatus) {
		replaced := false
		for i := range st.Steps {
			if st.Steps[i].Name == step.Name {
				st.Steps[i] = step
				replaced = true
				break
			}
		}
		if !replaced {
			st.Steps = append(st.Steps, step)
		}
		if step.State == model.StepCompleted || step.State == model.StepSkipped {
			if st.StepsCompleted < st.TotalSteps {
				st.StepsCompleted++
			}
		}
	})
}

// Complete marks the run complete.
func (t *Tracker) Complete(ctx context.Context, threadID string) error {
	return t.update(ctx, threadID, func(st *model.WorkflowStatus) {
		end := t.now()
		st.Stage = model.StageComplete
		st.EndTime = &end
	})
}

// Fail marks the run failed with cause.
func (t *Tracker) Fail(ctx context.Context, threadID string, cause error) error {
	return t.update(ctx, threadID, func(st *model.WorkflowStatus) {
		end := t.now()
		st.Stage = model.StageFailed
		st.EndTime = &end
		if cause != nil {
			st.Error = cause.Error()
		}
	})
}

// Status returns a copy of the run status. Runs not held in memory are
// read from the store when one is configured.
func (t *Tracker) Status(ctx context.Context, threadID string) (model.WorkflowStatus, error) {
	t.mu.Lock()
	st, ok := t.runs[threadID]
	if ok {
		c := st.Clone()
		t.mu.Unlock()
		return c, nil
	}
	t.mu.Unlock()

	if t.store == nil {
		return model.WorkflowStatus{}, &NotFoundError{ThreadID: threadID}
	}
	got, err := t.store.GetStatus(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return model.WorkflowStatus{}, &NotFoundError{ThreadID: threadID}
	}
	if err != nil {
		return model.WorkflowStatus{}, eris.Wrapf(err, "tracker: status %s", threadID)
	}
	return *got, nil
}

// Lookup returns the status of threadID, requiring it to belong to ticker.
func (t *Tracker) Lookup(ctx context.Context, ticker, threadID string) (model.WorkflowStatus, error) {
	st, err := t.Status(ctx, threadID)
	if err != nil {
		return st, err
	}
	if !strings.EqualFold(st.Ticker, ticker) {
		return model.WorkflowStatus{}, &NotFoundError{ThreadID: threadID, Ticker: ticker}
	}
	return st, nil
}

// List returns the most recent runs, newest first. With a store the
// persisted history is merged with in-memory runs.
func (t *Tracker) List(ctx context.Context, filter store.RunFilter) ([]model.WorkflowStatus, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	byID := make(map[string]model.WorkflowStatus)
	t.mu.Lock()
	for id, st := range t.runs {
		if matches(st, filter) {
			byID[id] = st.Clone()
		}
	}
	t.mu.Unlock()

	if t.store != nil {
		persisted, err := t.store.ListStatuses(ctx, store.RunFilter{Ticker: filter.Ticker, Stage: filter.Stage, Limit: limit})
		if err != nil {
			return nil, eris.Wrap(err, "tracker: list")
		}
		for _, st := range persisted {
			if _, ok := byID[st.ThreadID]; !ok {
				byID[st.ThreadID] = st
			}
		}
	}

	out := make([]model.WorkflowStatus, 0, len(byID))
	for _, st := range byID {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ThreadID > out[j].ThreadID
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaveRecord persists the final research record when a store is configured.
func (t *Tracker) SaveRecord(ctx context.Context, rec *model.ResearchRecord) {
	if t.store == nil || rec == nil {
		return
	}
	if err := t.store.SaveRecord(ctx, rec); err != nil {
		zap.L().Warn("tracker: save record failed", zap.String("thread_id", rec.ThreadID), zap.Error(err))
	}
}

func (t *Tracker) update(ctx context.Context, threadID string, fn func(st *model.WorkflowStatus)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.runs[threadID]
	if !ok {
		return &NotFoundError{ThreadID: threadID}
	}
	if st.Stage.Terminal() {
		return eris.Wrapf(ErrTerminal, "tracker: %s is %s", threadID, st.Stage)
	}
	fn(st)
	t.persist(ctx, st)
	return nil
}

// persist must be called with mu held. Store failures are logged only.
func (t *Tracker) persist(ctx context.Context, st *model.WorkflowStatus) {
	if t.store == nil {
		return
	}
	if err := t.store.SaveStatus(context.WithoutCancel(ctx), st.Clone()); err != nil {
		zap.L().Warn("tracker: persist status failed", zap.String("thread_id", st.ThreadID), zap.Error(err))
	}
}

func matches(st *model.WorkflowStatus, f store.RunFilter) bool {
	if f.Ticker != "" && !strings.EqualFold(st.Ticker, f.Ticker) {
		return false
	}
	return f.Stage == "" || st.Stage == f.Stage
}
