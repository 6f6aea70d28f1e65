package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/filterx/internal/stream"
)

// AssertionError is returned when an assertion fails.
// It includes the full output to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Output   []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull output:\n")
	for i, line := range e.Output {
		fmt.Fprintf(&buf, "  [%d] %q\n", i+1, line)
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertOutputContains:
		return assertOutputContains(result.Lines(), a)
	case AssertOutputOrder:
		return assertOutputOrder(result.Lines(), a)
	case AssertLineCount:
		return assertLineCount(result.Lines(), a)
	case AssertStreamStat:
		return assertStreamStat(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertOutputContains(lines []string, a Assertion) error {
	if slices.Contains(lines, a.Line) {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutputContains,
		Expected: fmt.Sprintf("line %q", a.Line),
		Actual:   "not found in output",
		Output:   lines,
	}
}

// assertOutputOrder checks that the lines appear in order. They don't need
// to be consecutive.
func assertOutputOrder(lines []string, a Assertion) error {
	next := 0
	for _, line := range lines {
		if next < len(a.Lines) && line == a.Lines[next] {
			next++
		}
	}
	if next == len(a.Lines) {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutputOrder,
		Expected: fmt.Sprintf("lines in order: %q", a.Lines),
		Actual:   fmt.Sprintf("%q missing or out of order", a.Lines[next]),
		Output:   lines,
	}
}

func assertLineCount(lines []string, a Assertion) error {
	if len(lines) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertLineCount,
		Expected: fmt.Sprintf("%d lines", a.Count),
		Actual:   fmt.Sprintf("%d lines", len(lines)),
		Output:   lines,
	}
}

func assertStreamStat(result *Result, a Assertion) error {
	if a.Stream >= len(result.Stats.PerStream) {
		return fmt.Errorf("stream %d does not exist, the run has %d", a.Stream, len(result.Stats.PerStream))
	}
	got, ok := counter(result.Stats.PerStream[a.Stream].Stats, a.Counter)
	if !ok {
		return fmt.Errorf("unknown counter %q", a.Counter)
	}
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertStreamStat,
		Expected: fmt.Sprintf("stream %d %s = %d", a.Stream, a.Counter, a.Count),
		Actual:   fmt.Sprintf("%d", got),
		Output:   result.Lines(),
	}
}

func counter(s stream.Stats, name string) (int, bool) {
	switch name {
	case "lines":
		return s.Lines, true
	case "comment_lines":
		return s.CommentLines, true
	case "groups":
		return s.Groups, true
	case "rows":
		return s.Rows, true
	case "skipped_count":
		return s.SkippedCount, true
	case "skipped_incomplete":
		return s.SkippedIncomplete, true
	}
	return 0, false
}
