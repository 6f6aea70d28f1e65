package stream

import "fmt"

// Status is the lifecycle state of a Stream.
//
//	Empty ──Advance──▶ WaitConsumption ──Mark*──▶ Matched | Unavailable | FailedExistence
//	  ▲                     │                                  │
//	  └──── ReadMore ◀──────┴────────────Advance───────────────┘
//	                        └──source exhausted──▶ EOF (terminal)
//
// FailedCount is recorded while Advance skips a group whose row count is
// out of range. The next read consumes the group first, so Advance never
// returns FailedCount, not even with a read error.
type Status int

const (
	StatusEmpty Status = iota
	StatusReadMore
	StatusWaitConsumption
	StatusFailedCount
	StatusUnavailable
	StatusMatched
	StatusFailedExistence
	StatusEOF
)

var statusNames = [...]string{
	StatusEmpty:           "empty",
	StatusReadMore:        "read_more",
	StatusWaitConsumption: "wait_consumption",
	StatusFailedCount:     "failed_count",
	StatusUnavailable:     "unavailable",
	StatusMatched:         "matched",
	StatusFailedExistence: "failed_existence",
	StatusEOF:             "eof",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// holdsGroup reports whether a group is buffered and owned by the merge.
func (s Status) holdsGroup() bool {
	switch s {
	case StatusWaitConsumption, StatusMatched, StatusUnavailable, StatusFailedExistence, StatusFailedCount:
		return true
	}
	return false
}

// Existence is the per-stream existence predicate.
type Existence int

const (
	// ExistOptional places no constraint on the stream.
	ExistOptional Existence = iota
	// ExistMust requires the stream in every emitted match.
	ExistMust
	// ExistMustNot forbids the stream in every emitted match.
	ExistMustNot
)

func (e Existence) String() string {
	switch e {
	case ExistMust:
		return "must"
	case ExistMustNot:
		return "must-not"
	default:
		return "optional"
	}
}

// MarshalText renders the mode by name.
func (e Existence) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// ParseExistence accepts "optional", "must" or "must-not".
func ParseExistence(s string) (Existence, error) {
	switch s {
	case "", "optional":
		return ExistOptional, nil
	case "must":
		return ExistMust, nil
	case "must-not":
		return ExistMustNot, nil
	}
	return ExistOptional, fmt.Errorf("unknown existence mode %q", s)
}
