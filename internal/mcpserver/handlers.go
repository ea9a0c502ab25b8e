package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-mcp/internal/model"
	"github.com/sells-group/research-mcp/internal/store"
	"github.com/sells-group/research-mcp/internal/tracker"
	"github.com/sells-group/research-mcp/internal/workflow"
)

type handlers struct {
	r Researcher
}

// WorkflowInfo is appended to every deep-research response.
type WorkflowInfo struct {
	ThreadID       string      `json:"thread_id"`
	StepsCompleted int         `json:"steps_completed"`
	TotalSteps     int         `json:"total_steps"`
	FinalStage     model.Stage `json:"final_stage"`
	Duration       string      `json:"duration"`
	DurationMs     int64       `json:"duration_ms"`
}

// DeepResearchResponse is the record with its workflow info.
type DeepResearchResponse struct {
	*model.ResearchRecord
	WorkflowInfo WorkflowInfo `json:"workflow_info"`
}

// RunsResponse lists recent runs.
type RunsResponse struct {
	Count int                    `json:"count"`
	Runs  []model.WorkflowStatus `json:"runs"`
}

func (h *handlers) quickOverview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ticker, err := req.RequireString("ticker")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := h.r.Overview(ctx, ticker)
	if err != nil {
		return toolError(ToolQuickOverview, err)
	}
	return jsonResult(p)
}

func (h *handlers) deepResearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ticker, err := req.RequireString("ticker")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	includeFilings := req.GetBool("include_sec_filings", true)

	res, err := h.r.Run(ctx, workflow.Request{Ticker: ticker, IncludeFilings: includeFilings})
	if err != nil {
		return toolError(ToolDeepResearch, err)
	}

	zap.L().Info("mcpserver: deep research complete",
		zap.String("ticker", res.Record.Ticker),
		zap.String("thread_id", res.Record.ThreadID),
		zap.Duration("duration", res.Duration),
	)
	return jsonResult(DeepResearchResponse{
		ResearchRecord: res.Record,
		WorkflowInfo: WorkflowInfo{
			ThreadID:       res.Status.ThreadID,
			StepsCompleted: res.Status.StepsCompleted,
			TotalSteps:     res.Status.TotalSteps,
			FinalStage:     res.Status.Stage,
			Duration:       res.Duration.Round(time.Millisecond).String(),
			DurationMs:     res.Duration.Milliseconds(),
		},
	})
}

func (h *handlers) workflowStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ticker, err := req.RequireString("ticker")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	threadID, err := req.RequireString("thread_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := h.r.Status(ctx, ticker, threadID)
	if err != nil {
		return toolError(ToolWorkflowStatus, err)
	}
	return jsonResult(st)
}

func (h *handlers) recentFilings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ticker, err := req.RequireString("ticker")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	days := clamp(req.GetInt("days", DefaultFilingsDays), DefaultFilingsDays, MaxFilingsDays)
	limit := clamp(req.GetInt("limit", DefaultFilingsLimit), DefaultFilingsLimit, MaxFilingsLimit)

	f, err := h.r.RecentFilings(ctx, ticker, days, limit)
	if err != nil {
		return toolError(ToolRecentFilings, err)
	}
	return jsonResult(f)
}

func (h *handlers) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := clamp(req.GetInt("limit", DefaultRunsLimit), DefaultRunsLimit, MaxRunsLimit)
	runs, err := h.r.Runs(ctx, store.RunFilter{
		Ticker: req.GetString("ticker", ""),
		Limit:  limit,
	})
	if err != nil {
		return toolError(ToolListRuns, err)
	}
	if runs == nil {
		runs = []model.WorkflowStatus{}
	}
	return jsonResult(RunsResponse{Count: len(runs), Runs: runs})
}

// clamp returns def for non-positive n and caps n at upper.
func clamp(n, def, upper int) int {
	if n <= 0 {
		return def
	}
	return min(n, upper)
}

// toolError turns caller errors into tool error results. Anything else is
// also reported as a tool result so the client sees the message, and is
// logged.
func toolError(tool string, err error) (*mcp.CallToolResult, error) {
	var ve *workflow.ValidationError
	switch {
	case errors.As(err, &ve):
		return mcp.NewToolResultError(ve.Error()), nil
	case tracker.IsNotFound(err):
		return mcp.NewToolResultError(err.Error()), nil
	}
	zap.L().Error("mcpserver: tool failed", zap.String("tool", tool), zap.Error(err))
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", tool, err)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "mcpserver: marshal result")
	}
	return mcp.NewToolResultText(string(data)), nil
}
