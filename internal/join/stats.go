package join

import "github.com/roach88/filterx/internal/stream"

// StopReason records why Process returned.
type StopReason string

const (
	StopNone        StopReason = ""
	StopAnchorEOF   StopReason = "anchor_eof"
	StopLimit       StopReason = "limit"
	StopRequiredEOF StopReason = "required_eof"
	StopUnreachable StopReason = "unreachable"
	StopCanceled    StopReason = "canceled"
)

// Stats summarizes a run.
type Stats struct {
	RunID   string `json:"run_id"`
	Streams int    `json:"streams"`

	GroupsEmitted int `json:"groups_emitted"`
	// AnchorOnly counts emitted groups no secondary stream matched.
	AnchorOnly  int `json:"anchor_only"`
	RowsWritten int `json:"rows_written"`

	RejectedExistence   int `json:"rejected_existence"`
	RejectedCardinality int `json:"rejected_cardinality"`
	RejectedFrequency   int `json:"rejected_frequency"`

	Stop StopReason `json:"stop"`

	PerStream []StreamStats `json:"per_stream,omitempty"`
}

// StreamStats pairs a stream name with its read counters.
type StreamStats struct {
	Name string `json:"name"`
	stream.Stats
}
