package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/filterx/internal/config"
	"github.com/roach88/filterx/internal/join"
	"github.com/roach88/filterx/internal/stream"
	"github.com/roach88/filterx/internal/testutil"
)

// RunID tags every harness run.
const RunID = "harness-run"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool

	Output string
	Stats  join.Stats

	// Errors lists failed expectations and assertions. Empty if Pass.
	Errors []string
}

// Lines returns the output split into lines without their terminators.
func (r *Result) Lines() []string {
	if r.Output == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(r.Output, "\n"), "\n")
}

// AddError records a failed check and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run writes the scenario's files to a fresh directory, runs the join and
// checks the result.
//
// An error is returned only when the scenario could not run at all:
// unwritable files, an invalid job or an engine error. Failed checks are
// reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "filterx-harness-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	for name, content := range scenario.Files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	job := scenario.Job
	job.Inputs = make([]config.JobInput, len(scenario.Job.Inputs))
	for i, in := range scenario.Job.Inputs {
		if !filepath.IsAbs(in.Path) {
			in.Path = filepath.Join(dir, in.Path)
		}
		job.Inputs[i] = in
	}

	plan, err := config.Resolve(&job, config.Overrides{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve job: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	anchor, secondaries, err := plan.Open(stream.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open inputs: %w", err)
	}

	var out bytes.Buffer
	eng, err := join.New(anchor, secondaries, &out, plan.Options,
		join.WithLogger(logger),
		join.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(RunID)),
	)
	if err != nil {
		anchor.Close()
		for _, s := range secondaries {
			s.Close()
		}
		return nil, err
	}
	defer eng.Close()

	if err := eng.Run(context.Background()); err != nil {
		return nil, fmt.Errorf("join failed: %w", err)
	}

	result := &Result{Pass: true, Output: out.String(), Stats: eng.Stats()}
	// Report names relative to the scenario directory.
	for i := range result.Stats.PerStream {
		if rel, err := filepath.Rel(dir, result.Stats.PerStream[i].Name); err == nil {
			result.Stats.PerStream[i].Name = filepath.ToSlash(rel)
		}
	}

	if scenario.Expect != nil {
		checkExpect(result, scenario.Expect)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError("%s", msg)
	}
	return result, nil
}

func checkExpect(r *Result, e *Expect) {
	if e.Output != nil && *e.Output != r.Output {
		r.AddError("output mismatch\n  expected: %q\n  actual:   %q", *e.Output, r.Output)
	}
	if e.Stats == nil {
		return
	}
	s := e.Stats
	checkInt(r, "groups_emitted", s.GroupsEmitted, r.Stats.GroupsEmitted)
	checkInt(r, "anchor_only", s.AnchorOnly, r.Stats.AnchorOnly)
	checkInt(r, "rows_written", s.RowsWritten, r.Stats.RowsWritten)
	checkInt(r, "rejected_existence", s.RejectedExistence, r.Stats.RejectedExistence)
	checkInt(r, "rejected_cardinality", s.RejectedCardinality, r.Stats.RejectedCardinality)
	checkInt(r, "rejected_frequency", s.RejectedFrequency, r.Stats.RejectedFrequency)
	if s.Stop != nil && *s.Stop != r.Stats.Stop {
		r.AddError("stop: expected %s, got %s", *s.Stop, r.Stats.Stop)
	}
}

func checkInt(r *Result, name string, want *int, got int) {
	if want != nil && *want != got {
		r.AddError("%s: expected %d, got %d", name, *want, got)
	}
}
