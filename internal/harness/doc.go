// Package harness runs join scenarios described in YAML and checks their
// output, statistics and assertions.
//
// # Scenario Format
//
//	name: anchor_outer_join
//	description: "Every anchor key is emitted, matched or not"
//	files:
//	  a.csv: |
//	    1
//	    2
//	  b.csv: |
//	    2
//	job:
//	  groups:
//	    - id: 1
//	      keys: 1i
//	  inputs:
//	    - path: a.csv
//	    - path: b.csv
//	expect:
//	  output: |
//	    1	-
//	    2	2
//	  stats:
//	    groups_emitted: 2
//	    stop: anchor_eof
//	assertions:
//	  - type: line_count
//	    count: 2
//
// The job section is a job file (see package config). Relative input paths
// resolve against the directory the scenario's files are written to.
//
// # Assertion Types
//
//   - output_contains: a line appears in the output
//   - output_order: lines appear in the given order, not necessarily adjacent
//   - line_count: the output has exactly count lines
//   - stream_stat: a read counter of one input has the given value
//
// # Deterministic Runs
//
// Every run uses the fixed run ID "harness-run" and discards logs, so the
// snapshot written by RunWithGolden is identical across runs.
package harness
