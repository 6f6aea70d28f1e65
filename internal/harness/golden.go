package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as a header of run counters, one line per
// input, followed by the joined output verbatim.
func Snapshot(name string, r *Result) []byte {
	var buf bytes.Buffer
	s := r.Stats
	fmt.Fprintf(&buf, "# scenario: %s\n", name)
	fmt.Fprintf(&buf, "# groups=%d anchor_only=%d rows=%d rejected=%d/%d/%d stop=%s\n",
		s.GroupsEmitted, s.AnchorOnly, s.RowsWritten,
		s.RejectedExistence, s.RejectedCardinality, s.RejectedFrequency, s.Stop)
	for i, ps := range s.PerStream {
		fmt.Fprintf(&buf, "# stream %d %s: lines=%d comments=%d groups=%d rows=%d skipped=%d/%d\n",
			i, ps.Name, ps.Lines, ps.CommentLines, ps.Groups, ps.Rows, ps.SkippedCount, ps.SkippedIncomplete)
	}
	buf.WriteString(r.Output)
	return buf.Bytes()
}

// RunWithGolden runs a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Failed expectations and assertions fail the test. The returned error is
// non-nil only when the scenario could not run.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Snapshot(scenario.Name, result))

	return result, nil
}
