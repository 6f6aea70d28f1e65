package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/filterx/internal/config"
)

// PlanFlags are the flags that describe a join, shared by join and check.
type PlanFlags struct {
	Config    string
	Output    string
	Separator string
	Limit     int
	Count     string
	Freq      string
	Rows      bool
	Full      bool
	Groups    []string
}

func (f *PlanFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.Config, "config", "", "job file (.yaml, .yml, .json or .cue)")
	fs.StringVarP(&f.Output, "output", "o", "-", "output file (- for stdout)")
	fs.StringVarP(&f.Separator, "separator", "s", "tab", "output field separator")
	fs.IntVarP(&f.Limit, "limit", "L", 0, "stop after this many emitted groups (0 = unlimited)")
	fs.StringVar(&f.Count, "cnt", "", "number of files in a match: min,max (max may be inf)")
	fs.StringVar(&f.Freq, "freq", "", "fraction of files in a match: min,max")
	fs.BoolVar(&f.Rows, "rows", false, "write one line per input row instead of aligning files side by side")
	fs.BoolVar(&f.Full, "full", false, "with --rows, write every column of each row")
	fs.StringArrayVarP(&f.Groups, "group", "g", nil, `parameter group "N:attrs" (repeatable)`)
}

// overrides returns the explicitly set flags. Flags left at their default
// do not override a job file.
func (f *PlanFlags) overrides(cmd *cobra.Command, args []string) config.Overrides {
	changed := cmd.Flags().Changed
	o := config.Overrides{Specs: args, Groups: f.Groups}
	if changed("output") {
		o.Output = &f.Output
	}
	if changed("separator") {
		o.Separator = &f.Separator
	}
	if changed("limit") {
		o.Limit = &f.Limit
	}
	if changed("cnt") {
		o.Count = &f.Count
	}
	if changed("freq") {
		o.Freq = &f.Freq
	}
	if changed("rows") {
		o.Rows = &f.Rows
	}
	if changed("full") {
		o.Full = &f.Full
	}
	return o
}

// resolve loads the job file, if any, and resolves it with the flags.
func (f *PlanFlags) resolve(cmd *cobra.Command, args []string) (*config.Plan, error) {
	var job *config.Job
	if f.Config != "" {
		var err error
		if job, err = config.LoadJob(f.Config); err != nil {
			return nil, err
		}
	}
	return config.Resolve(job, f.overrides(cmd, args))
}
