package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/research-mcp/internal/model"
	"github.com/sells-group/research-mcp/internal/research"
	"github.com/sells-group/research-mcp/internal/store"
	"github.com/sells-group/research-mcp/internal/synth"
	"github.com/sells-group/research-mcp/internal/tracker"
	"github.com/sells-group/research-mcp/pkg/edgar"
	edgarmocks "github.com/sells-group/research-mcp/pkg/edgar/mocks"
	"github.com/sells-group/research-mcp/pkg/finnhub"
	finnhubmocks "github.com/sells-group/research-mcp/pkg/finnhub/mocks"
)

func fptr(v float64) *float64 { return &v }

func healthyFinnhub(t *testing.T) *finnhubmocks.MockClient {
	t.Helper()
	fh := finnhubWithoutProfile(t)
	fh.On("CompanyProfile", mock.Anything, "MSFT").Return(&finnhub.Profile{
		Name: "Microsoft Corp", Ticker: "MSFT", Country: "US", Exchange: "NASDAQ",
		Industry: "Technology", WebURL: "https://www.microsoft.com", MarketCapitalization: 3100000,
	}, nil)
	fh.On("Quote", mock.Anything, "MSFT").Return(&finnhub.Quote{Current: 415.1, Change: 2.3, ChangePercent: 0.56, PreviousClose: 412.8}, nil)
	return fh
}

// finnhubWithoutProfile answers the news and analyst calls for MSFT only.
func finnhubWithoutProfile(t *testing.T) *finnhubmocks.MockClient {
	t.Helper()
	fh := finnhubmocks.NewMockClient(t)
	fh.On("CompanyNews", mock.Anything, "MSFT", mock.Anything, mock.Anything).Return([]finnhub.NewsArticle{
		{Datetime: time.Now().Add(-time.Hour).Unix(), Headline: "Microsoft beats estimates on cloud growth", Source: "Reuters", URL: "https://example.com/1"},
		{Datetime: time.Now().Add(-2 * time.Hour).Unix(), Headline: "Azure revenue surges", Source: "CNBC", URL: "https://example.com/2"},
		{Datetime: time.Now().Add(-3 * time.Hour).Unix(), Headline: "Regulators probe cloud deal", Source: "FT", URL: "https://example.com/3"},
	}, nil)
	fh.On("Recommendations", mock.Anything, "MSFT").Return([]finnhub.Recommendation{
		{Period: "2025-03-01", StrongBuy: 20, Buy: 30, Hold: 8, Sell: 1},
	}, nil)
	fh.On("Earnings", mock.Anything, "MSFT").Return([]finnhub.EarningsSurprise{
		{Period: "2024-12-31", Surprise: fptr(0.12)},
		{Period: "2024-09-30", Surprise: fptr(0.05)},
		{Period: "2024-06-30", Surprise: fptr(0.02)},
		{Period: "2024-03-31", Surprise: fptr(-0.01)},
	}, nil)
	return fh
}

func healthyEdgar(t *testing.T) *edgarmocks.MockClient {
	t.Helper()
	var sub edgar.Submissions
	today := time.Now().UTC().Format(time.DateOnly)
	raw := fmt.Sprintf(`{"cik":"789019","name":"MICROSOFT CORP","sic":"7372","sicDescription":"Services-Prepackaged Software",
		"filings":{"recent":{"accessionNumber":["0000950170-25-010491"],"filingDate":[%q],"reportDate":["2024-12-31"],
		"form":["10-Q"],"primaryDocument":["msft-20241231.htm"]}}}`, today)
	require.NoError(t, json.Unmarshal([]byte(raw), &sub))

	ed := edgarmocks.NewMockClient(t)
	ed.On("LookupCIK", mock.Anything, "MSFT").Return(789019, nil)
	ed.On("Submissions", mock.Anything, 789019).Return(&sub, nil)
	return ed
}

func newEngine(t *testing.T, fh finnhub.Client, ed edgar.Client, opts ...Option) (*Engine, *tracker.Tracker) {
	t.Helper()
	tr := tracker.New()
	return New(research.NewGatherer(fh, ed), synth.New(), tr, opts...), tr
}

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"msft", "MSFT", false},
		{"  BRK.B ", "BRK.B", false},
		{"RDS-A", "RDS-A", false},
		{"", "", true},
		{"1ABC", "", true},
		{"TOOLONGTICKER", "", true},
		{"MS FT", "", true},
		{"MSFT;DROP", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeTicker(tt.in)
		if tt.wantErr {
			var ve *ValidationError
			assert.True(t, errors.As(err, &ve), tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestRun_HealthyMSFT(t *testing.T) {
	e, tr := newEngine(t, healthyFinnhub(t), healthyEdgar(t))

	res, err := e.Run(context.Background(), Request{Ticker: "msft", IncludeFilings: true})
	require.NoError(t, err)

	assert.Equal(t, model.StageComplete, res.Status.Stage)
	assert.Equal(t, 5, res.Status.StepsCompleted)
	assert.Equal(t, 5, res.Status.TotalSteps)
	require.NotNil(t, res.Status.EndTime)
	assert.Len(t, res.Status.Steps, 5)

	rec := res.Record
	assert.Equal(t, "MSFT", rec.Ticker)
	assert.True(t, strings.HasPrefix(rec.ThreadID, "research_MSFT_"))
	require.NotNil(t, rec.Synthesis)
	score, ok := rec.Synthesis.AnalystScore.Get()
	require.True(t, ok)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
	assert.Equal(t, 100.0, rec.Synthesis.Completeness.Or(0))
	assert.Equal(t, model.ConfidenceHigh, rec.Profile.Name.Confidence)
	assert.Equal(t, 1, rec.Filings.TotalFilings.Or(0))

	require.NotNil(t, rec.DataSources)
	assert.Equal(t, 5, rec.DataSources.Total)
	assert.Equal(t, 4, rec.DataSources.Live)
	assert.Equal(t, 1, rec.DataSources.Calc)

	st, err := tr.Lookup(context.Background(), "MSFT", rec.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, model.StageComplete, st.Stage)
	assert.Equal(t, st.TotalSteps, st.StepsCompleted)
}

func TestRun_Sequential(t *testing.T) {
	e, _ := newEngine(t, healthyFinnhub(t), healthyEdgar(t), WithParallel(false))

	res, err := e.Run(context.Background(), Request{Ticker: "MSFT", IncludeFilings: true})
	require.NoError(t, err)
	assert.Equal(t, model.StageComplete, res.Status.Stage)

	names := make([]string, 0, len(res.Status.Steps))
	for _, s := range res.Status.Steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"profile", "news", "filings", "analyst", "synthesis"}, names)
}

func TestRun_FilingsUnconfigured(t *testing.T) {
	e, _ := newEngine(t, healthyFinnhub(t), edgar.NewClient(""))

	res, err := e.Run(context.Background(), Request{Ticker: "MSFT", IncludeFilings: true})
	require.NoError(t, err)

	rec := res.Record
	assert.Equal(t, model.SourceMock, rec.Filings.TotalFilings.Source)
	assert.Equal(t, model.ConfidenceLow, rec.Filings.TotalFilings.Confidence)
	assert.Equal(t, model.SourceFinnhub, rec.Profile.Name.Source)
	assert.Equal(t, model.ConfidenceHigh, rec.Profile.Name.Confidence)
	assert.Equal(t, model.ConfidenceHigh, rec.Analyst.TotalAnalysts.Confidence)
	assert.Equal(t, 75.0, rec.Synthesis.Completeness.Or(0))
	assert.Equal(t, 1, rec.DataSources.Mock)

	var filings model.StepStatus
	for _, s := range res.Status.Steps {
		if s.Name == model.StepFilings {
			filings = s
		}
	}
	assert.Equal(t, model.StepCompleted, filings.State)
	assert.Equal(t, model.DataTagMock, filings.Tag)
	assert.Contains(t, filings.Detail, "fallback to mock data")
	assert.Equal(t, 5, res.Status.StepsCompleted)
}

func TestRun_NoFilingsRequested(t *testing.T) {
	e, _ := newEngine(t, healthyFinnhub(t), nil)

	res, err := e.Run(context.Background(), Request{Ticker: "MSFT", IncludeFilings: false})
	require.NoError(t, err)

	assert.Nil(t, res.Record.Filings)
	assert.Equal(t, 5, res.Status.StepsCompleted)
	assert.Equal(t, 100.0, res.Record.Synthesis.Completeness.Or(0))

	var skipped bool
	for _, s := range res.Status.Steps {
		if s.Name == model.StepFilings {
			skipped = s.State == model.StepSkipped
		}
	}
	assert.True(t, skipped)
}

// assertTagged walks a JSON document and fails on any scalar that is not
// inside a value/source/confidence object.
func assertTagged(t *testing.T, v any, path string) {
	t.Helper()
	switch n := v.(type) {
	case map[string]any:
		if _, hasValue := n["value"]; hasValue {
			assert.NotEmpty(t, n["source"], "source at %s", path)
			assert.NotEmpty(t, n["confidence"], "confidence at %s", path)
			return
		}
		for k, child := range n {
			assertTagged(t, child, path+"."+k)
		}
	case nil:
		// empty lists marshal as null
	case []any:
		for i, child := range n {
			assertTagged(t, child, fmt.Sprintf("%s[%d]", path, i))
		}
	default:
		t.Errorf("untagged leaf at %s: %v", path, v)
	}
}

func TestRun_EveryLeafTaggedWhenAllProvidersFail(t *testing.T) {
	e, _ := newEngine(t, finnhub.NewClient(""), edgar.NewClient(""))

	res, err := e.Run(context.Background(), Request{Ticker: "ZZZZ", IncludeFilings: true})
	require.NoError(t, err)
	assert.Equal(t, model.StageComplete, res.Status.Stage)
	assert.Equal(t, 0.0, res.Record.Synthesis.Completeness.Or(-1))
	assert.Equal(t, 4, res.Record.DataSources.Mock)

	data, err := json.Marshal(res.Record)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	for _, section := range []string{"profile", "news", "filings", "analyst", "synthesis"} {
		require.Contains(t, doc, section)
		assertTagged(t, doc[section], section)
	}
}

func TestRun_EveryLeafTaggedWhenHealthy(t *testing.T) {
	e, _ := newEngine(t, healthyFinnhub(t), healthyEdgar(t))

	res, err := e.Run(context.Background(), Request{Ticker: "MSFT", IncludeFilings: true})
	require.NoError(t, err)

	data, err := json.Marshal(res.Record)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	for _, section := range []string{"profile", "news", "filings", "analyst", "synthesis"} {
		assertTagged(t, doc[section], section)
	}
}

func TestRun_InvalidTicker(t *testing.T) {
	e, tr := newEngine(t, nil, nil)

	_, err := e.Run(context.Background(), Request{Ticker: "not a ticker"})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))

	runs, err := tr.List(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs, "no run is started for an invalid ticker")
}

func TestRun_CancelledBeforeSynthesis(t *testing.T) {
	e, _ := newEngine(t, finnhub.NewClient(""), edgar.NewClient(""))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Run(ctx, Request{Ticker: "MSFT", IncludeFilings: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")
	require.NotNil(t, res)
	assert.Equal(t, model.StageFailed, res.Status.Stage)
	assert.Nil(t, res.Record.Synthesis)
	assert.Contains(t, res.Status.Error, "cancelled before synthesis")
}

type panicStep struct{}

func (panicStep) Name() string { return "exploding" }

func (panicStep) Run(context.Context, string, *model.ResearchRecord) research.Outcome {
	panic("boom")
}

func (panicStep) Fallback(_ string, rec *model.ResearchRecord, cause error) research.Outcome {
	rec.Profile = &model.ProfileSection{Name: model.Attr("placeholder", model.SourceMock, model.ConfidenceLow, time.Now())}
	return research.Outcome{Step: "exploding", Tag: model.DataTagMock, Provider: model.SourceFinnhub, Err: cause}
}

func TestRunStep_RecoversPanic(t *testing.T) {
	e, tr := newEngine(t, nil, nil)
	ctx := context.Background()
	id := tr.Start(ctx, "MSFT")
	rec := model.NewResearchRecord("MSFT", id, true, time.Now())

	out := e.runStep(ctx, id, "MSFT", panicStep{}, rec)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "boom")
	assert.True(t, out.Mock())
	require.NotNil(t, rec.Profile)
	assert.True(t, rec.Profile.Name.IsMock())

	st, err := tr.Status(ctx, id)
	require.NoError(t, err)
	require.Len(t, st.Steps, 1)
	assert.Equal(t, model.StepCompleted, st.Steps[0].State)
	assert.Equal(t, model.DataTagMock, st.Steps[0].Tag)
	assert.Contains(t, st.Steps[0].Detail, "fallback to mock data")
	assert.Equal(t, 1, st.StepsCompleted)
}

func TestRun_ProviderPanicFallsBackToMock(t *testing.T) {
	fh := finnhubWithoutProfile(t)
	fh.On("CompanyProfile", mock.Anything, "MSFT").Panic("provider exploded")
	e, _ := newEngine(t, fh, healthyEdgar(t))

	res, err := e.Run(context.Background(), Request{Ticker: "MSFT", IncludeFilings: true})
	require.NoError(t, err)
	assert.Equal(t, model.StageComplete, res.Status.Stage)
	assert.Equal(t, res.Status.TotalSteps, res.Status.StepsCompleted)

	require.NotNil(t, res.Record.Profile)
	assert.Equal(t, model.SourceMock, res.Record.Profile.Name.Source)
	assert.Equal(t, model.ConfidenceLow, res.Record.Profile.Name.Confidence)
	assert.Equal(t, model.SourceFinnhub, res.Record.News.TotalArticles.Source)
	assert.Equal(t, 1, res.Record.DataSources.Mock)

	data, err := json.Marshal(res.Record)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Contains(t, doc, "profile")
	assertTagged(t, doc["profile"], "profile")
}

func TestRun_StepTimeoutFallsBackToMock(t *testing.T) {
	fh := finnhubWithoutProfile(t)
	fh.On("CompanyProfile", mock.Anything, "MSFT").Return(func(ctx context.Context, _ string) (*finnhub.Profile, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	e, _ := newEngine(t, fh, healthyEdgar(t), WithStepTimeout(50*time.Millisecond))

	start := time.Now()
	res, err := e.Run(context.Background(), Request{Ticker: "MSFT", IncludeFilings: true})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.Equal(t, model.StageComplete, res.Status.Stage)
	assert.Equal(t, 5, res.Status.StepsCompleted)
	assert.Equal(t, model.SourceMock, res.Record.Profile.Name.Source)
	assert.Equal(t, model.SourceSECEdgar, res.Record.Filings.TotalFilings.Source)
	for _, st := range res.Status.Steps {
		if st.Name == model.StepProfile {
			assert.Equal(t, model.DataTagMock, st.Tag)
			assert.Contains(t, st.Detail, "deadline exceeded")
		}
	}
}

func TestRun_LogStreams(t *testing.T) {
	wcore, wlogs := observer.New(zapcore.DebugLevel)
	dcore, dlogs := observer.New(zapcore.DebugLevel)
	dl := research.NewDataLog(zap.New(dcore))

	tr := tracker.New()
	g := research.NewGatherer(healthyFinnhub(t), nil, research.WithDataLog(dl))
	e := New(g, synth.New(synth.WithDataLog(dl)), tr, WithRunLog(NewRunLog(zap.New(wcore))), WithDataLog(dl))

	_, err := e.Run(context.Background(), Request{Ticker: "MSFT", IncludeFilings: false})
	require.NoError(t, err)

	assert.Equal(t, 1, wlogs.FilterMessage("STARTED workflow").Len())
	assert.Equal(t, 1, wlogs.FilterMessage("COMPLETED workflow").Len())
	assert.Equal(t, 1, wlogs.FilterMessage("SKIPPED filings").Len())
	assert.Equal(t, 1, wlogs.FilterMessage("COMPLETED synthesis").Len())
	for _, step := range []string{"profile", "news", "analyst"} {
		assert.Equal(t, 1, wlogs.FilterMessage("STARTED "+step).Len(), step)
		assert.Equal(t, 1, wlogs.FilterMessage("COMPLETED "+step).Len(), step)
	}
	completed := wlogs.FilterMessage("COMPLETED workflow").All()[0].ContextMap()
	assert.Contains(t, completed, "duration")

	assert.Equal(t, 3, dlogs.FilterMessage("LIVE finnhub").Len())
	assert.Equal(t, 1, dlogs.FilterMessage("CALC algorithm").Len())
	summary := dlogs.FilterMessage("SUMMARY").All()
	require.Len(t, summary, 1)
	assert.Equal(t, int64(4), summary[0].ContextMap()["total"])
}

func TestOverview(t *testing.T) {
	fh := finnhubmocks.NewMockClient(t)
	fh.On("CompanyProfile", mock.Anything, "AAPL").Return(&finnhub.Profile{Name: "Apple Inc", Industry: "Technology"}, nil)
	fh.On("Quote", mock.Anything, "AAPL").Return(&finnhub.Quote{Current: 228.1}, nil)
	e, tr := newEngine(t, fh, nil)

	p, err := e.Overview(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc", p.Name.Or(""))

	runs, _ := tr.List(context.Background(), store.RunFilter{})
	assert.Empty(t, runs, "overview is not tracked")

	_, err = e.Overview(context.Background(), "")
	assert.Error(t, err)
}

func TestRecentFilings(t *testing.T) {
	e, _ := newEngine(t, nil, healthyEdgar(t))

	f, err := e.RecentFilings(context.Background(), "MSFT", 30, 5)
	require.NoError(t, err)
	assert.Equal(t, 30, f.WindowDays.Or(0))
	assert.Equal(t, 1, f.TotalFilings.Or(0))
}

func TestStatusAndRuns(t *testing.T) {
	e, _ := newEngine(t, healthyFinnhub(t), nil)
	ctx := context.Background()

	res, err := e.Run(ctx, Request{Ticker: "MSFT"})
	require.NoError(t, err)

	st, err := e.Status(ctx, "msft", res.Record.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, model.StageComplete, st.Stage)

	_, err = e.Status(ctx, "AAPL", res.Record.ThreadID)
	assert.True(t, tracker.IsNotFound(err))

	_, err = e.Status(ctx, "MSFT", "research_MSFT_0_unknown")
	assert.True(t, tracker.IsNotFound(err))

	runs, err := e.Runs(ctx, store.RunFilter{Ticker: "msft"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.Record.ThreadID, runs[0].ThreadID)
}
