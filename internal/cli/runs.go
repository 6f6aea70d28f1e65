package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/filterx/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	DB string
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs --db FILE [RUN_ID]",
		Short: "List runs recorded with join --report-db",
		Long: `List the runs recorded in a report database, oldest first.
With a run ID, print that run and the counters of each of its inputs.

Examples:
  filterx runs --db runs.db
  filterx runs --db runs.db 01928c6e-5f0a-7b3c-9d2e-4f6a8b0c1d2e --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "report database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRuns(opts *RunsOptions, args []string, cmd *cobra.Command) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Opening creates the file, so a missing ledger is reported first.
	if _, err := os.Stat(opts.DB); err != nil {
		return WrapExitError(ExitCommandError, "report database not found", err)
	}

	st, err := store.Open(opts.DB)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open report database", err)
	}
	defer st.Close()

	ctx := commandContext(cmd)
	if len(args) == 1 {
		return showRun(ctx, st, args[0], out)
	}

	reports, err := st.Runs(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list runs", err)
	}
	if opts.Format == "json" {
		if reports == nil {
			reports = []store.Report{}
		}
		return out.Success(reports)
	}
	if len(reports) == 0 {
		fmt.Fprintln(out.Writer, "no runs recorded")
		return nil
	}
	for _, r := range reports {
		writeRunLine(out.Writer, r)
	}
	return nil
}

func showRun(ctx context.Context, st *store.Store, id string, out *OutputFormatter) error {
	r, err := st.Run(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		if out.Format == "json" {
			if ferr := out.Error(ErrCodeStore, fmt.Sprintf("run %s not found", id), nil); ferr != nil {
				return ferr
			}
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("run %s not found", id))
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read run", err)
	}

	if out.Format == "json" {
		return out.Success(r)
	}
	writeRunLine(out.Writer, r)
	fmt.Fprintf(out.Writer, "  mode=%s count=[%d,%s] freq=[%g,%g]\n",
		r.Options.Mode, r.Options.MinCount, formatBound(r.Options.MaxCount),
		r.Options.MinFreq, r.Options.MaxFreq)
	if r.Error != "" {
		fmt.Fprintf(out.Writer, "  error: %s\n", r.Error)
	}
	for i, ps := range r.Stats.PerStream {
		fmt.Fprintf(out.Writer, "  stream %d %s: lines=%d comments=%d groups=%d rows=%d skipped_count=%d skipped_incomplete=%d\n",
			i, ps.Name, ps.Lines, ps.CommentLines, ps.Groups, ps.Rows, ps.SkippedCount, ps.SkippedIncomplete)
	}
	return nil
}

func writeRunLine(w io.Writer, r store.Report) {
	s := r.Stats
	fmt.Fprintf(w, "%s %-6s streams=%d groups=%d rows=%d rejected=%d/%d/%d stop=%s\n",
		s.RunID, r.Status, s.Streams, s.GroupsEmitted, s.RowsWritten,
		s.RejectedExistence, s.RejectedCardinality, s.RejectedFrequency, s.Stop)
}
