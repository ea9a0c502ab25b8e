package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/research-mcp/internal/model"
	"github.com/sells-group/research-mcp/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List research runs",
	Long:  "Lists research runs, newest first. Runs survive the process only with the sqlite or postgres store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ticker, _ := cmd.Flags().GetString("ticker")
		stage, _ := cmd.Flags().GetString("stage")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := env.Engine.Runs(ctx, store.RunFilter{
			Ticker: ticker,
			Stage:  model.Stage(stage),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs, time.Now())
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <thread-id>",
	Short: "Print the stored research record of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("runs show: the memory store keeps no records; set store.driver to sqlite or postgres")
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetRecord(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		return writeJSON(os.Stdout, rec)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <thread-id>",
	Short: "Print the status of a research run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var st model.WorkflowStatus
		if ticker, _ := cmd.Flags().GetString("ticker"); ticker != "" {
			st, err = env.Engine.Status(ctx, ticker, args[0])
		} else {
			st, err = env.Tracker.Status(ctx, args[0])
		}
		if err != nil {
			return err
		}
		return writeJSON(os.Stdout, st)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the run store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		if st == nil {
			fmt.Fprintln(os.Stderr, "memory store: nothing to migrate")
			return nil
		}
		defer st.Close() //nolint:errcheck
		fmt.Fprintf(os.Stderr, "%s store migrated\n", cfg.Store.Driver)
		return nil
	},
}

func init() {
	runsCmd.Flags().String("ticker", "", "filter by ticker")
	runsCmd.Flags().String("stage", "", "filter by stage (pending, running, complete, failed)")
	runsCmd.Flags().Int("limit", 20, "max number of runs to display")
	statusCmd.Flags().String("ticker", "", "require the run to belong to this ticker")

	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(migrateCmd)
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []model.WorkflowStatus, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "THREAD_ID\tTICKER\tSTAGE\tSTEPS\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "---------\t------\t-----\t-----\t-------\t--------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			r.ThreadID,
			r.Ticker,
			r.Stage,
			r.StepsCompleted,
			r.TotalSteps,
			r.StartTime.Format("2006-01-02 15:04"),
			r.Duration(now).Round(time.Millisecond).String(),
		)
	}
	_ = w.Flush()
}
