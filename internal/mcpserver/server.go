// Package mcpserver exposes the research workflow as MCP tools.
package mcpserver

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-mcp/internal/model"
	"github.com/sells-group/research-mcp/internal/store"
	"github.com/sells-group/research-mcp/internal/workflow"
)

// Name is the server name announced during initialization.
const Name = "research-mcp"

// Transports.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// Researcher is the workflow surface the tools call.
type Researcher interface {
	Run(ctx context.Context, req workflow.Request) (*workflow.Result, error)
	Overview(ctx context.Context, ticker string) (*model.ProfileSection, error)
	RecentFilings(ctx context.Context, ticker string, days, limit int) (*model.FilingsSection, error)
	Status(ctx context.Context, ticker, threadID string) (model.WorkflowStatus, error)
	Runs(ctx context.Context, filter store.RunFilter) ([]model.WorkflowStatus, error)
}

// New builds the MCP server with every research tool registered.
func New(r Researcher, version string) *server.MCPServer {
	s := server.NewMCPServer(
		Name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	h := &handlers{r: r}
	s.AddTool(quickOverviewTool(), h.quickOverview)
	s.AddTool(deepResearchTool(), h.deepResearch)
	s.AddTool(workflowStatusTool(), h.workflowStatus)
	s.AddTool(recentFilingsTool(), h.recentFilings)
	s.AddTool(listRunsTool(), h.listRuns)
	return s
}

const instructions = `Financial research tools. Start with quick_company_overview for a fast profile, ` +
	`or company_deep_research for the full report. Every value is tagged with its source and ` +
	`confidence; values from source "mock" are placeholders used when a provider was unavailable.`

// Serve runs s on the given transport until ctx is cancelled or the
// transport fails. addr is ignored for stdio.
func Serve(ctx context.Context, s *server.MCPServer, transport, addr string) error {
	log := zap.L().With(zap.String("transport", transport))

	switch transport {
	case TransportStdio, "":
		log.Info("mcpserver: serving on stdio")
		err := server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return eris.Wrap(err, "mcpserver: stdio")
		}
		return nil

	case TransportSSE:
		sse := server.NewSSEServer(s)
		return serveHTTP(ctx, log, addr, sse.Start, sse.Shutdown)

	case TransportHTTP:
		h := server.NewStreamableHTTPServer(s)
		return serveHTTP(ctx, log, addr, h.Start, h.Shutdown)

	default:
		return eris.Errorf("mcpserver: unsupported transport %q", transport)
	}
}

func serveHTTP(ctx context.Context, log *zap.Logger, addr string, start func(string) error, shutdown func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("mcpserver: listening", zap.String("addr", addr))
		errCh <- start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "mcpserver: listen")
		}
		return nil
	case <-ctx.Done():
		log.Info("mcpserver: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "mcpserver: shutdown")
		}
		return nil
	}
}
