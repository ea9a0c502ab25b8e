package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool names.
const (
	ToolQuickOverview  = "quick_company_overview"
	ToolDeepResearch   = "company_deep_research"
	ToolWorkflowStatus = "workflow_status"
	ToolRecentFilings  = "recent_sec_filings"
	ToolListRuns       = "list_research_runs"
)

// Argument defaults and bounds.
const (
	DefaultFilingsDays  = 90
	MaxFilingsDays      = 365
	DefaultFilingsLimit = 10
	MaxFilingsLimit     = 50
	DefaultRunsLimit    = 20
	MaxRunsLimit        = 100
)

func tickerArg() mcp.ToolOption {
	return mcp.WithString("ticker",
		mcp.Required(),
		mcp.Description("Stock ticker symbol, e.g. MSFT"),
	)
}

func quickOverviewTool() mcp.Tool {
	return mcp.NewTool(ToolQuickOverview,
		mcp.WithDescription("Company profile and latest quote for a ticker. Every field carries its source, timestamp and confidence."),
		tickerArg(),
	)
}

func deepResearchTool() mcp.Tool {
	return mcp.NewTool(ToolDeepResearch,
		mcp.WithDescription("Run the full research workflow: profile, news sentiment, SEC filings and analyst data gathered concurrently, then a synthesized executive summary with data completeness."),
		tickerArg(),
		mcp.WithBoolean("include_sec_filings",
			mcp.Description("Gather recent SEC filings (default: true)"),
		),
	)
}

func workflowStatusTool() mcp.Tool {
	return mcp.NewTool(ToolWorkflowStatus,
		mcp.WithDescription("Progress of a research workflow started by company_deep_research"),
		tickerArg(),
		mcp.WithString("thread_id",
			mcp.Required(),
			mcp.Description("Thread id returned in workflow_info"),
		),
	)
}

func recentFilingsTool() mcp.Tool {
	return mcp.NewTool(ToolRecentFilings,
		mcp.WithDescription("Recent 10-K, 10-Q and 8-K filings from SEC EDGAR"),
		tickerArg(),
		mcp.WithNumber("days",
			mcp.Description("Look-back window in days (default: 90, max: 365)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum filings to return (default: 10, max: 50)"),
		),
	)
}

func listRunsTool() mcp.Tool {
	return mcp.NewTool(ToolListRuns,
		mcp.WithDescription("Recent research workflows, newest first"),
		mcp.WithString("ticker",
			mcp.Description("Only runs for this ticker"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum runs to return (default: 20, max: 100)"),
		),
	)
}
