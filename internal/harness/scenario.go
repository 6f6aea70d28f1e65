package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/filterx/internal/config"
	"github.com/roach88/filterx/internal/join"
)

// Scenario defines a join over small inline files and what it must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Files maps file names to their content. They are written to a fresh
	// directory before the run.
	Files map[string]string `yaml:"files"`

	// Job is the run configuration. Input paths name entries of Files.
	Job config.Job `yaml:"job"`

	// Expect is compared exactly, if present.
	Expect *Expect `yaml:"expect,omitempty"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Expect holds exact expectations. Only the stats that are set are checked.
type Expect struct {
	Output *string      `yaml:"output,omitempty"`
	Stats  *ExpectStats `yaml:"stats,omitempty"`
}

// ExpectStats mirrors the run counters of join.Stats.
type ExpectStats struct {
	GroupsEmitted       *int             `yaml:"groups_emitted,omitempty"`
	AnchorOnly          *int             `yaml:"anchor_only,omitempty"`
	RowsWritten         *int             `yaml:"rows_written,omitempty"`
	RejectedExistence   *int             `yaml:"rejected_existence,omitempty"`
	RejectedCardinality *int             `yaml:"rejected_cardinality,omitempty"`
	RejectedFrequency   *int             `yaml:"rejected_frequency,omitempty"`
	Stop                *join.StopReason `yaml:"stop,omitempty"`
}

// Assertion checks one property of the output or the statistics.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	// Line is the expected output line (output_contains).
	Line string `yaml:"line,omitempty"`

	// Lines are the expected lines in order (output_order).
	Lines []string `yaml:"lines,omitempty"`

	// Count is the expected line count (line_count) or counter value
	// (stream_stat).
	Count int `yaml:"count,omitempty"`

	// Stream is the input index and Counter the counter name (stream_stat).
	Stream  int    `yaml:"stream,omitempty"`
	Counter string `yaml:"counter,omitempty"`
}

// Assertion type constants.
const (
	AssertOutputContains = "output_contains"
	AssertOutputOrder    = "output_order"
	AssertLineCount      = "line_count"
	AssertStreamStat     = "stream_stat"
)

// Counter names accepted by stream_stat.
var streamCounters = []string{"lines", "comment_lines", "groups", "rows", "skipped_count", "skipped_incomplete"}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", filepath.Base(path), err)
	}
	return &scenario, nil
}

// LoadScenarios loads every .yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Job.Inputs) == 0 {
		return fmt.Errorf("job.inputs is required and must be non-empty")
	}
	for i, in := range s.Job.Inputs {
		if filepath.IsAbs(in.Path) {
			continue
		}
		if _, ok := s.Files[in.Path]; !ok {
			return fmt.Errorf("job.inputs[%d]: %s is not in files", i, in.Path)
		}
	}
	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertOutputContains:
		if a.Line == "" {
			return fmt.Errorf("assertions[%d]: line is required for output_contains", index)
		}
	case AssertOutputOrder:
		if len(a.Lines) < 2 {
			return fmt.Errorf("assertions[%d]: at least two lines are required for output_order", index)
		}
	case AssertLineCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for line_count", index)
		}
	case AssertStreamStat:
		if !slices.Contains(streamCounters, a.Counter) {
			return fmt.Errorf("assertions[%d]: counter must be one of %v", index, streamCounters)
		}
		if a.Stream < 0 {
			return fmt.Errorf("assertions[%d]: stream must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
