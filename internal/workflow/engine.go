// Package workflow runs the research workflow: the gathering steps fan out
// concurrently, then synthesis merges their sections once all have joined.
package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/research-mcp/internal/model"
	"github.com/sells-group/research-mcp/internal/research"
	"github.com/sells-group/research-mcp/internal/store"
	"github.com/sells-group/research-mcp/internal/synth"
	"github.com/sells-group/research-mcp/internal/tracker"
)

var tickerPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// ValidationError is returned for a malformed ticker before any step runs.
type ValidationError struct {
	Ticker string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid ticker %q: %s", e.Ticker, e.Reason)
}

// NormalizeTicker upper-cases and validates a ticker symbol.
func NormalizeTicker(raw string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if t == "" {
		return "", &ValidationError{Ticker: raw, Reason: "ticker is required"}
	}
	if !tickerPattern.MatchString(t) {
		return "", &ValidationError{Ticker: raw, Reason: "expected 1-10 letters, digits, dots or dashes starting with a letter"}
	}
	return t, nil
}

// Request describes one deep-research run.
type Request struct {
	Ticker         string
	IncludeFilings bool
}

// Result is the outcome of a run.
type Result struct {
	Record   *model.ResearchRecord
	Status   model.WorkflowStatus
	Duration time.Duration
}

// Engine orchestrates research runs.
type Engine struct {
	gatherer    *research.Gatherer
	synth       *synth.Synthesizer
	tracker     *tracker.Tracker
	datalog     *research.DataLog
	runlog      *RunLog
	telemetry   *Telemetry
	parallel    bool
	stepTimeout time.Duration
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallel toggles the concurrent fan-out. Sequential mode runs steps
// in reporting order.
func WithParallel(on bool) Option {
	return func(e *Engine) { e.parallel = on }
}

// WithStepTimeout bounds each gathering step. Zero disables the bound.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Engine) { e.stepTimeout = d }
}

// WithRunLog sets the workflow stream.
func WithRunLog(r *RunLog) Option {
	return func(e *Engine) { e.runlog = r }
}

// WithDataLog sets the datasource stream used for the run summary line.
func WithDataLog(d *research.DataLog) Option {
	return func(e *Engine) { e.datalog = d }
}

// WithTelemetry sets the metrics and tracing instruments.
func WithTelemetry(t *Telemetry) Option {
	return func(e *Engine) { e.telemetry = t }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(g *research.Gatherer, s *synth.Synthesizer, t *tracker.Tracker, opts ...Option) *Engine {
	e := &Engine{
		gatherer:    g,
		synth:       s,
		tracker:     t,
		datalog:     research.NewDataLog(nil),
		runlog:      NewRunLog(nil),
		parallel:    true,
		stepTimeout: 20 * time.Second,
		now:         time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.telemetry == nil {
		tel, err := NewTelemetry(nil, nil)
		if err != nil {
			zap.L().Warn("workflow: telemetry disabled", zap.Error(err))
		}
		e.telemetry = tel
	}
	return e
}

// Run executes a full research workflow. The returned record is always
// usable; err is non-nil only for an invalid ticker or a context cancelled
// before synthesis, in which case the run is marked failed.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	ticker, err := NormalizeTicker(req.Ticker)
	if err != nil {
		return nil, err
	}

	start := e.now()
	threadID := e.tracker.Start(ctx, ticker)
	log := zap.L().With(zap.String("ticker", ticker), zap.String("thread_id", threadID))
	if err := e.tracker.MarkRunning(ctx, threadID); err != nil {
		log.Warn("workflow: mark running", zap.Error(err))
	}
	e.runlog.Event(EventStarted, RunName, ticker, threadID, 0, fmt.Sprintf("include_sec_filings=%t", req.IncludeFilings))

	ctx, runSpan := e.startRun(ctx, ticker, threadID)
	rec := model.NewResearchRecord(ticker, threadID, req.IncludeFilings, start)

	if !req.IncludeFilings {
		e.recordStep(ctx, threadID, ticker, model.StepStatus{Name: model.StepFilings, State: model.StepSkipped}, "not requested")
	}

	outcomes := e.gather(ctx, threadID, ticker, rec)

	if cerr := ctx.Err(); cerr != nil {
		err := eris.Wrap(cerr, "workflow: cancelled before synthesis")
		return e.fail(ctx, runSpan, rec, threadID, ticker, start, err)
	}

	// Synthesis.
	synthStart := e.now()
	e.runlog.Event(EventStarted, model.StepSynthesis, ticker, threadID, 0, "")
	_, stepSpan := e.startStep(ctx, model.StepSynthesis)
	rec.Synthesis = e.synth.Synthesize(ctx, rec)
	endSpan(stepSpan, nil)
	e.recordStep(ctx, threadID, ticker, model.StepStatus{
		Name:     model.StepSynthesis,
		State:    model.StepCompleted,
		Tag:      model.DataTagCalc,
		Duration: e.now().Sub(synthStart).Milliseconds(),
		Detail:   fmt.Sprintf("%.0f%% data completeness", rec.Synthesis.Completeness.Or(0)),
	}, "")
	e.recordCall(ctx, model.SourceAlgorithm, model.DataTagCalc)

	tags := make([]model.DataTag, 0, len(outcomes)+1)
	for _, o := range outcomes {
		if o.Tag != "" {
			tags = append(tags, o.Tag)
		}
	}
	tags = append(tags, model.DataTagCalc)
	summary := model.Summarize(tags)
	rec.DataSources = &summary
	e.datalog.Summary(ticker, summary)

	if err := e.tracker.Complete(ctx, threadID); err != nil {
		log.Warn("workflow: complete", zap.Error(err))
	}
	e.tracker.SaveRecord(ctx, rec)

	duration := e.now().Sub(start)
	e.runlog.Event(EventCompleted, RunName, ticker, threadID, duration,
		fmt.Sprintf("%d live, %d mock, %d calc", summary.Live, summary.Mock, summary.Calc))
	if e.telemetry != nil {
		completeness, ok := rec.Synthesis.Completeness.Get()
		e.telemetry.recordRun(ctx, model.StageComplete, duration, completeness, ok)
	}
	endSpan(runSpan, nil)

	st, err := e.tracker.Status(ctx, threadID)
	if err != nil {
		return nil, eris.Wrap(err, "workflow: final status")
	}
	return &Result{Record: rec, Status: st, Duration: duration}, nil
}

// gather runs the gathering steps and returns their outcomes in step order.
func (e *Engine) gather(ctx context.Context, threadID, ticker string, rec *model.ResearchRecord) []research.Outcome {
	steps := e.gatherer.Steps(rec.IncludeFilings)
	outcomes := make([]research.Outcome, len(steps))

	if !e.parallel {
		for i, s := range steps {
			outcomes[i] = e.runStep(ctx, threadID, ticker, s, rec)
		}
		return outcomes
	}

	// Steps never return errors to the group; each writes its own section
	// of rec and its own slot of outcomes.
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range steps {
		g.Go(func() error {
			outcomes[i] = e.runStep(gctx, threadID, ticker, s, rec)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (e *Engine) runStep(ctx context.Context, threadID, ticker string, s research.Step, rec *model.ResearchRecord) research.Outcome {
	name := s.Name()
	start := e.now()
	e.runlog.Event(EventStarted, name, ticker, threadID, 0, "")
	if err := e.tracker.RecordStep(ctx, threadID, model.StepStatus{Name: name, State: model.StepStarted}); err != nil {
		zap.L().Debug("workflow: record step start", zap.String("step", name), zap.Error(err))
	}

	ctx, span := e.startStep(ctx, name)
	if e.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.stepTimeout)
		defer cancel()
	}

	out := e.safeRun(ctx, ticker, s, rec)
	endSpan(span, out.Err)

	detail := out.Detail
	if out.Mock() && out.Err != nil {
		detail = "fallback to mock data: " + research.StripCredentials(out.Err.Error())
	}
	e.recordStep(ctx, threadID, ticker, model.StepStatus{
		Name:     name,
		State:    model.StepCompleted,
		Tag:      out.Tag,
		Duration: e.now().Sub(start).Milliseconds(),
		Detail:   detail,
	}, "")
	e.recordCall(ctx, out.Provider, out.Tag)
	return out
}

// safeRun runs s and substitutes its mock section if it panics.
func (e *Engine) safeRun(ctx context.Context, ticker string, s research.Step, rec *model.ResearchRecord) (out research.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := eris.Errorf("workflow: step %s panicked: %v", s.Name(), r)
			zap.L().Error("workflow: step panicked", zap.String("step", s.Name()), zap.String("ticker", ticker), zap.Error(err))
			out = s.Fallback(ticker, rec, err)
		}
	}()
	return s.Run(ctx, ticker, rec)
}

// recordStep updates the tracker, the workflow stream and the step metrics
// for a finished step.
func (e *Engine) recordStep(ctx context.Context, threadID, ticker string, st model.StepStatus, detail string) {
	if err := e.tracker.RecordStep(context.WithoutCancel(ctx), threadID, st); err != nil {
		zap.L().Warn("workflow: record step", zap.String("step", st.Name), zap.Error(err))
	}
	if detail == "" {
		detail = st.Detail
	}
	d := time.Duration(st.Duration) * time.Millisecond
	switch st.State {
	case model.StepSkipped:
		e.runlog.Event(EventSkipped, st.Name, ticker, threadID, 0, detail)
	case model.StepFailed:
		e.runlog.Event(EventFailed, st.Name, ticker, threadID, d, detail)
	default:
		e.runlog.Event(EventCompleted, st.Name, ticker, threadID, d, detail)
	}
	if e.telemetry != nil {
		e.telemetry.recordStep(ctx, st.Name, st.State, st.Tag, d)
	}
}

func (e *Engine) startRun(ctx context.Context, ticker, threadID string) (context.Context, trace.Span) {
	if e.telemetry == nil {
		return ctx, noop.Span{}
	}
	return e.telemetry.startRun(ctx, ticker, threadID)
}

func (e *Engine) startStep(ctx context.Context, step string) (context.Context, trace.Span) {
	if e.telemetry == nil {
		return ctx, noop.Span{}
	}
	return e.telemetry.startStep(ctx, step)
}

func (e *Engine) recordCall(ctx context.Context, provider model.Source, tag model.DataTag) {
	if e.telemetry != nil && tag != "" {
		e.telemetry.recordCall(ctx, provider, tag)
	}
}

func (e *Engine) fail(ctx context.Context, runSpan trace.Span, rec *model.ResearchRecord, threadID, ticker string, start time.Time, err error) (*Result, error) {
	bg := context.WithoutCancel(ctx)
	if ferr := e.tracker.Fail(bg, threadID, err); ferr != nil {
		zap.L().Warn("workflow: mark failed", zap.String("thread_id", threadID), zap.Error(ferr))
	}
	duration := e.now().Sub(start)
	e.runlog.Event(EventFailed, RunName, ticker, threadID, duration, err.Error())
	if e.telemetry != nil {
		e.telemetry.recordRun(bg, model.StageFailed, duration, 0, false)
	}
	endSpan(runSpan, err)

	st, serr := e.tracker.Status(bg, threadID)
	if serr != nil {
		return nil, eris.Wrap(serr, "workflow: final status")
	}
	return &Result{Record: rec, Status: st, Duration: duration}, err
}

// Overview runs only the profile step. It is not tracked.
func (e *Engine) Overview(ctx context.Context, ticker string) (*model.ProfileSection, error) {
	t, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	p, out := e.gatherer.Profile(ctx, t)
	e.recordCall(ctx, out.Provider, out.Tag)
	return p, nil
}

// RecentFilings runs only the filings step with the given window. It is
// not tracked.
func (e *Engine) RecentFilings(ctx context.Context, ticker string, days, limit int) (*model.FilingsSection, error) {
	t, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	f, out := e.gatherer.Filings(ctx, t, days, limit)
	e.recordCall(ctx, out.Provider, out.Tag)
	return f, nil
}

// Status returns the status of threadID, which must belong to ticker.
func (e *Engine) Status(ctx context.Context, ticker, threadID string) (model.WorkflowStatus, error) {
	t, err := NormalizeTicker(ticker)
	if err != nil {
		return model.WorkflowStatus{}, err
	}
	return e.tracker.Lookup(ctx, t, strings.TrimSpace(threadID))
}

// Runs lists recent runs, newest first.
func (e *Engine) Runs(ctx context.Context, filter store.RunFilter) ([]model.WorkflowStatus, error) {
	if filter.Ticker != "" {
		t, err := NormalizeTicker(filter.Ticker)
		if err != nil {
			return nil, err
		}
		filter.Ticker = t
	}
	return e.tracker.List(ctx, filter)
}
