package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filterx/internal/join"
	"github.com/roach88/filterx/internal/stream"
)

func testResult() *Result {
	return &Result{
		Pass:   true,
		Output: "1\ta\n2\tb\n3\t-\n",
		Stats: join.Stats{
			PerStream: []join.StreamStats{
				{Name: "a.csv", Stats: stream.Stats{Lines: 3, Groups: 3, Rows: 3}},
				{Name: "b.csv", Stats: stream.Stats{Lines: 4, Groups: 3, Rows: 4, SkippedCount: 1}},
			},
		},
	}
}

func TestEvaluateAssertions(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantFail  string
	}{
		{"contains", Assertion{Type: AssertOutputContains, Line: "2\tb"}, ""},
		{"contains missing", Assertion{Type: AssertOutputContains, Line: "4\td"}, "not found in output"},
		{"order", Assertion{Type: AssertOutputOrder, Lines: []string{"1\ta", "3\t-"}}, ""},
		{"order reversed", Assertion{Type: AssertOutputOrder, Lines: []string{"3\t-", "1\ta"}}, "missing or out of order"},
		{"line count", Assertion{Type: AssertLineCount, Count: 3}, ""},
		{"line count wrong", Assertion{Type: AssertLineCount, Count: 2}, "Actual: 3 lines"},
		{"stream stat", Assertion{Type: AssertStreamStat, Stream: 1, Counter: "skipped_count", Count: 1}, ""},
		{"stream stat wrong", Assertion{Type: AssertStreamStat, Stream: 0, Counter: "lines", Count: 9}, "stream 0 lines = 9"},
		{"stream out of range", Assertion{Type: AssertStreamStat, Stream: 5, Counter: "rows"}, "stream 5 does not exist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := EvaluateAssertions(testResult(), []Assertion{tt.assertion})
			if tt.wantFail == "" {
				assert.Empty(t, failures)
				return
			}
			require.Len(t, failures, 1)
			assert.Contains(t, failures[0], tt.wantFail)
		})
	}
}

func TestAssertionError_ListsOutput(t *testing.T) {
	err := &AssertionError{
		Type:     AssertLineCount,
		Expected: "1 lines",
		Actual:   "2 lines",
		Output:   []string{"1\ta", "2\tb"},
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: line_count")
	assert.Contains(t, msg, `[1] "1\ta"`)
	assert.Contains(t, msg, `[2] "2\tb"`)
}

func TestResultLines(t *testing.T) {
	assert.Nil(t, (&Result{}).Lines())
	assert.Equal(t, []string{""}, (&Result{Output: "\n"}).Lines())
	assert.Equal(t, []string{"a", "b"}, (&Result{Output: "a\nb\n"}).Lines())
}
