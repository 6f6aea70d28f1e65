package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/filterx/internal/config"
	"github.com/roach88/filterx/internal/join"
	"github.com/roach88/filterx/internal/source"
	"github.com/roach88/filterx/internal/store"
	"github.com/roach88/filterx/internal/stream"
)

// JoinOptions holds flags for the join command.
type JoinOptions struct {
	*RootOptions
	PlanFlags
	ReportDB string

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to join.UUIDv7Generator.
	RunIDs join.RunIDGenerator
}

// JoinSummary is printed after a run when the output is not stdout, and
// always with --format json.
type JoinSummary struct {
	Output string     `json:"output"`
	Stats  join.Stats `json:"stats"`
}

func (s JoinSummary) String() string {
	return fmt.Sprintf("%d groups, %d rows written to %s (run %s)",
		s.Stats.GroupsEmitted, s.Stats.RowsWritten, s.Output, s.Stats.RunID)
}

// NewJoinCommand creates the join command.
func NewJoinCommand(rootOpts *RootOptions) *cobra.Command {
	return newJoinCommand(&JoinOptions{RootOptions: rootOpts})
}

func newJoinCommand(opts *JoinOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join [flags] FILE[:attrs]...",
		Short: "Join key-sorted files on the anchor file's keys",
		Long: `Join key-sorted delimited files. The first file is the anchor.

Each file is PATH[:attr...] with attributes
  k=KEYS     key columns, e.g. 1i2S (1-based; i f s ascending, I F S descending)
  cut=COLS   output columns, e.g. 1,3-5 (default: the key columns)
  s=SEP      field separator (default ,; names: tab comma space semicolon pipe colon)
  c=CHAR     comment character (default #)
  p=CHAR     placeholder for missing values (default -)
  m=N M=N    minimum and maximum rows per key group
  l=N        maximum rows emitted per key group
  e=Y|N      the file must (Y) or must not (N) take part in every match
  N[,N]      inherit from parameter groups defined with -g "N:attrs"

Group 1, when defined, is inherited by every file. Inputs starting with
the gzip magic bytes are decompressed whatever their name; - reads stdin.

Examples:
  filterx join -g "1:k=1i:s=tab" genes.tsv marks.tsv:cut=3
  filterx join --cnt 2,2 a.csv:k=1s b.csv:k=2s:e=Y
  filterx join --config job.yaml -o joined.tsv --report-db runs.db`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(opts, args, cmd)
		},
	}

	opts.PlanFlags.register(cmd)
	cmd.Flags().StringVar(&opts.ReportDB, "report-db", "", "record the run in this SQLite database")

	return cmd
}

func runJoin(opts *JoinOptions, args []string, cmd *cobra.Command) (err error) {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	plan, err := opts.resolve(cmd, args)
	if err != nil {
		return classify("invalid configuration", err)
	}

	anchor, secondaries, err := plan.Open(stream.WithLogger(logger))
	if err != nil {
		return classify("failed to open inputs", err)
	}

	var engineOpts []join.Option
	engineOpts = append(engineOpts, join.WithLogger(logger))
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, join.WithRunIDGenerator(opts.RunIDs))
	}

	out, closeOut, err := openOutput(plan.Output, cmd.OutOrStdout())
	if err != nil {
		closeAll(anchor, secondaries)
		return WrapExitError(ExitCommandError, "failed to open output", err)
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && err == nil {
			err = WrapExitError(ExitFailure, "failed to close output", cerr)
		}
	}()

	eng, err := join.New(anchor, secondaries, out, plan.Options, engineOpts...)
	if err != nil {
		closeAll(anchor, secondaries)
		return classify("invalid join options", err)
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil {
			logger.Warn("error closing inputs", "error", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("join starting", "streams", len(plan.Inputs), "anchor", plan.Inputs[0].Path, "output", plan.Output)
	runErr := eng.Run(ctx)
	stats := eng.Stats()
	logger.Info("join finished",
		"groups_emitted", stats.GroupsEmitted,
		"rows_written", stats.RowsWritten,
		"anchor_only", stats.AnchorOnly,
		"rejected_existence", stats.RejectedExistence,
		"rejected_cardinality", stats.RejectedCardinality,
		"rejected_frequency", stats.RejectedFrequency,
		"stop", string(stats.Stop))

	if opts.ReportDB != "" {
		if err := recordRun(ctx, opts.ReportDB, plan, stats, runErr); err != nil {
			logger.Error("failed to record run", "db", opts.ReportDB, "error", err)
			if runErr == nil {
				return WrapExitError(ExitFailure, "failed to record run", err)
			}
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return WrapExitError(ExitFailure, "interrupted", runErr)
		}
		return classify("join failed", runErr)
	}

	summary := JoinSummary{Output: plan.Output, Stats: stats}
	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: summaryWriter(plan.Output, cmd)}
		return f.Success(summary)
	}
	if plan.Output != source.StdinPath {
		fmt.Fprintln(cmd.OutOrStdout(), summary)
	}
	return nil
}

// summaryWriter keeps the JSON summary out of joined data written to stdout.
func summaryWriter(output string, cmd *cobra.Command) io.Writer {
	if output == source.StdinPath {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

func recordRun(ctx context.Context, path string, plan *config.Plan, stats join.Stats, runErr error) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	report := store.Report{Stats: stats, Options: plan.Options, Status: store.StatusOK}
	if runErr != nil {
		report.Status = store.StatusFailed
		report.Error = runErr.Error()
	}
	// Record even when the run was interrupted.
	return st.RecordRun(context.WithoutCancel(ctx), report)
}

// openOutput returns stdout for "-", otherwise a created file.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == source.StdinPath {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func closeAll(anchor *join.Anchor, secondaries []*stream.Stream) {
	anchor.Close()
	for _, s := range secondaries {
		s.Close()
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
