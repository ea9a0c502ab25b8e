package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-mcp/internal/model"
	"github.com/sells-group/research-mcp/internal/research"
	"github.com/sells-group/research-mcp/internal/synth"
	"github.com/sells-group/research-mcp/internal/tracker"
	"github.com/sells-group/research-mcp/internal/workflow"
	"github.com/sells-group/research-mcp/pkg/edgar"
	"github.com/sells-group/research-mcp/pkg/finnhub"
	finnhubmocks "github.com/sells-group/research-mcp/pkg/finnhub/mocks"
)

// offlineEngine has no provider credentials, so every step falls back to
// mock data.
func offlineEngine() *workflow.Engine {
	g := research.NewGatherer(finnhub.NewClient(""), edgar.NewClient(""))
	return workflow.New(g, synth.New(), tracker.New())
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func TestDeepResearch(t *testing.T) {
	h := &handlers{r: offlineEngine()}

	res, err := h.deepResearch(context.Background(), callRequest(ToolDeepResearch, map[string]any{"ticker": "msft"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var out DeepResearchResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	require.NotNil(t, out.ResearchRecord)
	assert.Equal(t, "MSFT", out.Ticker)
	assert.True(t, out.IncludeFilings)
	require.NotNil(t, out.Filings)
	assert.Equal(t, model.SourceMock, out.Filings.TotalFilings.Source)
	require.NotNil(t, out.Synthesis)

	info := out.WorkflowInfo
	assert.Equal(t, out.ThreadID, info.ThreadID)
	assert.Equal(t, model.StageComplete, info.FinalStage)
	assert.Equal(t, 5, info.StepsCompleted)
	assert.Equal(t, 5, info.TotalSteps)
	assert.NotEmpty(t, info.Duration)
}

func TestDeepResearch_WithoutFilings(t *testing.T) {
	h := &handlers{r: offlineEngine()}

	res, err := h.deepResearch(context.Background(), callRequest(ToolDeepResearch, map[string]any{
		"ticker":              "AAPL",
		"include_sec_filings": false,
	}))
	require.NoError(t, err)

	var out DeepResearchResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.False(t, out.IncludeFilings)
	assert.Nil(t, out.Filings)
	assert.Equal(t, 5, out.WorkflowInfo.StepsCompleted)
}

func TestDeepResearch_InvalidTicker(t *testing.T) {
	h := &handlers{r: offlineEngine()}

	res, err := h.deepResearch(context.Background(), callRequest(ToolDeepResearch, map[string]any{"ticker": "$$$"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "invalid ticker")

	res, err = h.deepResearch(context.Background(), callRequest(ToolDeepResearch, map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestWorkflowStatus(t *testing.T) {
	h := &handlers{r: offlineEngine()}
	ctx := context.Background()

	res, err := h.deepResearch(ctx, callRequest(ToolDeepResearch, map[string]any{"ticker": "MSFT"}))
	require.NoError(t, err)
	var out DeepResearchResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))

	res, err = h.workflowStatus(ctx, callRequest(ToolWorkflowStatus, map[string]any{
		"ticker":    "MSFT",
		"thread_id": out.WorkflowInfo.ThreadID,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	var st model.WorkflowStatus
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &st))
	assert.Equal(t, model.StageComplete, st.Stage)
	assert.Equal(t, st.TotalSteps, st.StepsCompleted)

	res, err = h.workflowStatus(ctx, callRequest(ToolWorkflowStatus, map[string]any{
		"ticker":    "AAPL",
		"thread_id": out.WorkflowInfo.ThreadID,
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not found")

	res, err = h.workflowStatus(ctx, callRequest(ToolWorkflowStatus, map[string]any{"ticker": "MSFT"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestQuickOverview_Live(t *testing.T) {
	fh := finnhubmocks.NewMockClient(t)
	fh.On("CompanyProfile", mock.Anything, "MSFT").Return(&finnhub.Profile{Name: "Microsoft Corp", Industry: "Technology"}, nil)
	fh.On("Quote", mock.Anything, "MSFT").Return(&finnhub.Quote{Current: 415.1}, nil)
	e := workflow.New(research.NewGatherer(fh, nil), synth.New(), tracker.New())
	h := &handlers{r: e}

	res, err := h.quickOverview(context.Background(), callRequest(ToolQuickOverview, map[string]any{"ticker": "MSFT"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var p model.ProfileSection
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &p))
	assert.Equal(t, "Microsoft Corp", p.Name.Or(""))
	assert.Equal(t, model.SourceFinnhub, p.Name.Source)
	assert.Equal(t, model.ConfidenceHigh, p.Name.Confidence)
	assert.Equal(t, 415.1, p.Quote.Current.Or(0))
}

func TestRecentFilings_Defaults(t *testing.T) {
	h := &handlers{r: offlineEngine()}

	res, err := h.recentFilings(context.Background(), callRequest(ToolRecentFilings, map[string]any{"ticker": "MSFT"}))
	require.NoError(t, err)
	var f model.FilingsSection
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &f))
	assert.Equal(t, DefaultFilingsDays, f.WindowDays.Or(0))
	assert.Equal(t, model.ConfidenceLow, f.WindowDays.Confidence)

	res, err = h.recentFilings(context.Background(), callRequest(ToolRecentFilings, map[string]any{"ticker": "MSFT", "days": 9999}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &f))
	assert.Equal(t, MaxFilingsDays, f.WindowDays.Or(0))
}

func TestListRuns(t *testing.T) {
	h := &handlers{r: offlineEngine()}
	ctx := context.Background()

	res, err := h.listRuns(ctx, callRequest(ToolListRuns, nil))
	require.NoError(t, err)
	var out RunsResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, 0, out.Count)
	assert.NotNil(t, out.Runs)

	for _, ticker := range []string{"MSFT", "AAPL", "MSFT"} {
		_, err := h.deepResearch(ctx, callRequest(ToolDeepResearch, map[string]any{"ticker": ticker, "include_sec_filings": false}))
		require.NoError(t, err)
	}

	res, err = h.listRuns(ctx, callRequest(ToolListRuns, map[string]any{"limit": 2}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, 2, out.Count)

	res, err = h.listRuns(ctx, callRequest(ToolListRuns, map[string]any{"ticker": "aapl"}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "AAPL", out.Runs[0].Ticker)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 90, clamp(0, 90, 365))
	assert.Equal(t, 90, clamp(-4, 90, 365))
	assert.Equal(t, 30, clamp(30, 90, 365))
	assert.Equal(t, 365, clamp(1000, 90, 365))
}

func TestServer_ListAndCallTools(t *testing.T) {
	s := New(offlineEngine(), "test")
	ctx := context.Background()

	s.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`))

	resp := s.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{ToolQuickOverview, ToolDeepResearch, ToolWorkflowStatus, ToolRecentFilings, ToolListRuns} {
		assert.Contains(t, string(data), `"`+name+`"`)
	}

	resp = s.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"quick_company_overview","arguments":{"ticker":"MSFT"}}}`))
	data, err = json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), "MSFT Corporation")
	assert.Contains(t, string(data), `\"source\": \"mock\"`)
}

func TestServe_UnsupportedTransport(t *testing.T) {
	err := Serve(context.Background(), New(offlineEngine(), "test"), "carrier-pigeon", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported transport")
}
