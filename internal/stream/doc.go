// Package stream implements per-input group buffering and the stream
// state machine driven by the join engine.
//
// A Stream reads one pre-sorted input and exposes it one group at a time,
// where a group is the maximal run of consecutive rows sharing an equal
// composite key. Peak memory is bounded by the largest single group.
//
// Row-count policy: a group whose size falls outside [MinRows, MaxRows] is
// always skipped by Advance, whether or not its key is complete. The merge
// engine therefore never sees a group that failed its row-count check.
package stream
