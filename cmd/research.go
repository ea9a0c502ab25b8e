package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/research-mcp/internal/mcpserver"
	"github.com/sells-group/research-mcp/internal/workflow"
)

var researchCmd = &cobra.Command{
	Use:   "research <ticker>",
	Short: "Run the full research workflow for a ticker",
	Long:  "Runs the deep-research workflow once and prints the research record with its workflow info as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		noFilings, _ := cmd.Flags().GetBool("no-filings")
		res, err := env.Engine.Run(ctx, workflow.Request{Ticker: args[0], IncludeFilings: !noFilings})
		if err != nil {
			return err
		}

		return writeJSON(os.Stdout, mcpserver.DeepResearchResponse{
			ResearchRecord: res.Record,
			WorkflowInfo: mcpserver.WorkflowInfo{
				ThreadID:       res.Status.ThreadID,
				StepsCompleted: res.Status.StepsCompleted,
				TotalSteps:     res.Status.TotalSteps,
				FinalStage:     res.Status.Stage,
				Duration:       res.Duration.Round(time.Millisecond).String(),
				DurationMs:     res.Duration.Milliseconds(),
			},
		})
	},
}

var overviewCmd = &cobra.Command{
	Use:   "overview <ticker>",
	Short: "Print the company profile and latest quote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.Engine.Overview(ctx, args[0])
		if err != nil {
			return err
		}
		return writeJSON(os.Stdout, p)
	},
}

var filingsCmd = &cobra.Command{
	Use:   "filings <ticker>",
	Short: "Print recent SEC filings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		days, _ := cmd.Flags().GetInt("days")
		limit, _ := cmd.Flags().GetInt("limit")
		f, err := env.Engine.RecentFilings(ctx, args[0], days, limit)
		if err != nil {
			return err
		}
		return writeJSON(os.Stdout, f)
	},
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	researchCmd.Flags().Bool("no-filings", false, "skip the SEC filings step")
	filingsCmd.Flags().Int("days", mcpserver.DefaultFilingsDays, "look-back window in days")
	filingsCmd.Flags().Int("limit", mcpserver.DefaultFilingsLimit, "max filings to print")

	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(overviewCmd)
	rootCmd.AddCommand(filingsCmd)
}
