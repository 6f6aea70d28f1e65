package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/filterx/internal/config"
	"github.com/roach88/filterx/internal/key"
	"github.com/roach88/filterx/internal/stream"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	PlanFlags
}

// StreamView is the resolved configuration of one input, with 1-based
// column numbers as written on the command line.
type StreamView struct {
	Index       int    `json:"index"`
	Path        string `json:"path"`
	Anchor      bool   `json:"anchor"`
	Keys        string `json:"keys"`
	Columns     []int  `json:"columns"`
	Separator   string `json:"separator"`
	Comment     string `json:"comment"`
	Placeholder string `json:"placeholder"`
	MinRows     int    `json:"min_rows"`
	MaxRows     int    `json:"max_rows"`
	RowCap      int    `json:"row_cap"`
	Existence   string `json:"existence"`
}

// OptionsView is the resolved global configuration.
type OptionsView struct {
	MinCount  int     `json:"min_count"`
	MaxCount  int     `json:"max_count"`
	MinFreq   float64 `json:"min_freq"`
	MaxFreq   float64 `json:"max_freq"`
	Mode      string  `json:"mode"`
	Full      bool    `json:"full"`
	Limit     int     `json:"limit"`
	Separator string  `json:"separator"`
	Output    string  `json:"output"`
}

// CheckResult is the check command's output.
type CheckResult struct {
	Streams []StreamView `json:"streams"`
	Options OptionsView  `json:"options"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check [flags] FILE[:attrs]...",
		Short: "Resolve and print a join configuration without reading any input",
		Long: `Resolve file attributes, parameter groups, the job file and flags the same
way join does, then print the effective configuration of every input.

Examples:
  filterx check -g "1:k=1i:s=tab" genes.tsv marks.tsv:cut=3
  filterx check --config job.cue --format json`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	opts.PlanFlags.register(cmd)

	return cmd
}

func runCheck(opts *CheckOptions, args []string, cmd *cobra.Command) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	plan, err := opts.resolve(cmd, args)
	if err != nil {
		if opts.Format == "json" {
			if ferr := out.Error(errorCode(err), err.Error(), nil); ferr != nil {
				return ferr
			}
		}
		return classify("invalid configuration", err)
	}

	result := newCheckResult(plan)
	if opts.Format == "json" {
		return out.Success(result)
	}
	writeCheckText(out.Writer, result)
	return nil
}

func newCheckResult(plan *config.Plan) CheckResult {
	var r CheckResult
	for i, in := range plan.Inputs {
		r.Streams = append(r.Streams, newStreamView(i, in))
	}
	o := plan.Options
	r.Options = OptionsView{
		MinCount:  o.MinCount,
		MaxCount:  o.MaxCount,
		MinFreq:   o.MinFreq,
		MaxFreq:   o.MaxFreq,
		Mode:      o.Mode.String(),
		Full:      o.Full,
		Limit:     o.Limit,
		Separator: config.FormatSeparator(o.Separator),
		Output:    plan.Output,
	}
	return r
}

func newStreamView(i int, in config.Input) StreamView {
	c := in.Stream
	cols := make([]int, len(c.Columns))
	for j, col := range c.Columns {
		cols[j] = col + 1
	}
	return StreamView{
		Index:       i,
		Path:        in.Path,
		Anchor:      i == 0,
		Keys:        key.FormatSpecs(c.Keys),
		Columns:     cols,
		Separator:   config.FormatSeparator(c.Separator),
		Comment:     string(c.Comment),
		Placeholder: string(c.Placeholder),
		MinRows:     c.MinRows,
		MaxRows:     c.MaxRows,
		RowCap:      c.RowCap,
		Existence:   c.Existence.String(),
	}
}

func writeCheckText(w io.Writer, r CheckResult) {
	for _, s := range r.Streams {
		if s.Anchor {
			fmt.Fprintf(w, "stream %d (anchor): %s\n", s.Index, s.Path)
		} else {
			fmt.Fprintf(w, "stream %d: %s\n", s.Index, s.Path)
		}
		field(w, "keys", s.Keys)
		field(w, "columns", formatColumns(s.Columns))
		field(w, "separator", s.Separator)
		field(w, "comment", s.Comment)
		field(w, "placeholder", s.Placeholder)
		field(w, "rows", fmt.Sprintf("[%d,%s]", s.MinRows, formatBound(s.MaxRows)))
		field(w, "row cap", formatBound(s.RowCap))
		field(w, "existence", s.Existence)
	}

	o := r.Options
	fmt.Fprintln(w, "options:")
	field(w, "count", fmt.Sprintf("[%d,%s]", o.MinCount, formatBound(o.MaxCount)))
	field(w, "freq", fmt.Sprintf("[%g,%g]", o.MinFreq, o.MaxFreq))
	field(w, "mode", o.Mode)
	field(w, "full", strconv.FormatBool(o.Full))
	limit := "none"
	if o.Limit > 0 {
		limit = strconv.Itoa(o.Limit)
	}
	field(w, "limit", limit)
	field(w, "separator", o.Separator)
	field(w, "output", o.Output)
}

func field(w io.Writer, name, value string) {
	fmt.Fprintf(w, "  %-12s %s\n", name, value)
}

func formatColumns(cols []int) string {
	if len(cols) == 0 {
		return "none"
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}

// formatBound renders stream.Unbounded as "inf".
func formatBound(n int) string {
	if n == stream.Unbounded {
		return "inf"
	}
	return strconv.Itoa(n)
}
