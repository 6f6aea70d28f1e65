package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/filterx/internal/key"
	"github.com/roach88/filterx/internal/row"
	"github.com/roach88/filterx/internal/source"
)

// Unbounded disables MaxRows and RowCap.
const Unbounded = -1

// ErrInvalidConfig is wrapped by every error returned from New for a
// configuration the stream cannot run with.
var ErrInvalidConfig = errors.New("invalid stream configuration")

// Config is the per-stream policy consumed by a Stream.
type Config struct {
	// Name identifies the stream in logs and reports, usually its path.
	Name string

	Separator byte
	Keys      []key.Spec

	// Columns are the 0-based output columns, in output order.
	Columns []int

	// Comment marks lines to skip when it is their first byte.
	Comment     byte
	Placeholder byte

	// MinRows and MaxRows bound the number of rows a group must have.
	// MaxRows may be Unbounded.
	MinRows int
	MaxRows int

	Existence Existence

	// RowCap limits the rows emitted per group. Unbounded emits them all.
	RowCap int
}

// Validate checks the invariants New relies on.
func (c Config) Validate() error {
	if len(c.Keys) == 0 {
		return fmt.Errorf("%w: %s: no key columns", ErrInvalidConfig, c.Name)
	}
	if c.MinRows < 0 {
		return fmt.Errorf("%w: %s: min rows %d is negative", ErrInvalidConfig, c.Name, c.MinRows)
	}
	if c.MaxRows != Unbounded && c.MaxRows < c.MinRows {
		return fmt.Errorf("%w: %s: min rows %d exceeds max rows %d", ErrInvalidConfig, c.Name, c.MinRows, c.MaxRows)
	}
	if c.RowCap != Unbounded && c.RowCap < 0 {
		return fmt.Errorf("%w: %s: row cap %d is negative", ErrInvalidConfig, c.Name, c.RowCap)
	}
	for _, col := range c.Columns {
		if col < 0 {
			return fmt.Errorf("%w: %s: output column %d is negative", ErrInvalidConfig, c.Name, col)
		}
	}
	return nil
}

// Stats counts what a stream has read so far.
type Stats struct {
	Lines             int `json:"lines"`
	CommentLines      int `json:"comment_lines"`
	Groups            int `json:"groups"`
	Rows              int `json:"rows"`
	SkippedCount      int `json:"skipped_count"`
	SkippedIncomplete int `json:"skipped_incomplete"`
}

// Stream wraps one line source and its group buffer behind a pull-based
// state machine. Only Advance reads data; the Mark methods record the
// role the stream plays in the current merge step.
type Stream struct {
	cfg    Config
	src    source.LineSource
	buf    *GroupBuffer
	status Status
	stats  Stats
	logger *slog.Logger
}

// Option configures a Stream.
type Option func(*Stream)

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *slog.Logger) Option {
	return func(s *Stream) {
		s.logger = l
	}
}

// New creates a stream in StatusEmpty reading from src.
// The stream owns src and closes it on Close.
func New(src source.LineSource, cfg Config, opts ...Option) (*Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = src.Name()
	}
	s := &Stream{
		cfg:    cfg,
		src:    src,
		buf:    NewGroupBuffer(cfg.Keys, cfg.Separator),
		status: StatusEmpty,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Advance consumes the current group and reads the next one.
//
// Groups whose row count falls outside [MinRows, MaxRows] and groups with
// an incomplete key are skipped, so a successful Advance always surfaces a
// group that passed the row-count check. It returns StatusWaitConsumption
// with a group buffered, or StatusEOF once the source is exhausted.
func (s *Stream) Advance() (Status, error) {
	for {
		st, err := s.step()
		if err != nil {
			return s.status, err
		}
		if st == StatusEOF {
			return StatusEOF, nil
		}
		if !s.checkCountRange() {
			s.stats.SkippedCount++
			s.logger.Debug("group skipped by row count",
				"stream", s.cfg.Name, "key", s.buf.Key().String(), "rows", s.buf.Len())
			continue
		}
		if !s.buf.Key().Complete() {
			s.stats.SkippedIncomplete++
			s.logger.Debug("group skipped by incomplete key",
				"stream", s.cfg.Name, "line", s.buf.Row(0).LineNo())
			continue
		}
		return StatusWaitConsumption, nil
	}
}

// step consumes the current group and fills the buffer with the next
// run of equal-key rows.
func (s *Stream) step() (Status, error) {
	if s.status == StatusEOF {
		return StatusEOF, nil
	}
	s.consume()

	for {
		line, err := s.src.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.status, err
		}
		s.stats.Lines++
		if len(line) > 0 && line[0] == s.cfg.Comment {
			s.stats.CommentLines++
			continue
		}
		if !s.buf.Add(line, s.src.LineNumber()) {
			break
		}
	}

	if s.buf.Len() == 0 {
		s.status = StatusEOF
		return s.status, nil
	}
	s.status = StatusWaitConsumption
	s.stats.Groups++
	s.stats.Rows += s.buf.Len()
	return s.status, nil
}

func (s *Stream) consume() {
	if s.status == StatusEmpty || s.status == StatusEOF {
		return
	}
	s.buf.Consume()
	if s.buf.Len() == 0 {
		s.status = StatusEmpty
	} else {
		s.status = StatusReadMore
	}
}

// checkCountRange fails closed: a group outside [MinRows, MaxRows] moves
// the stream to StatusFailedCount.
func (s *Stream) checkCountRange() bool {
	if s.status == StatusEOF {
		return false
	}
	n := s.buf.Len()
	if n >= s.cfg.MinRows && (s.cfg.MaxRows == Unbounded || n <= s.cfg.MaxRows) {
		return true
	}
	s.status = StatusFailedCount
	return false
}

// MarkMatched records that the current group takes part in the candidate match.
func (s *Stream) MarkMatched() {
	s.mark(StatusMatched)
}

// MarkUnavailable records that the current group cannot match this round.
func (s *Stream) MarkUnavailable() {
	s.mark(StatusUnavailable)
}

// MarkFailedExistence records that the candidate containing this stream
// was dropped by the existence predicate.
func (s *Stream) MarkFailedExistence() {
	s.mark(StatusFailedExistence)
}

func (s *Stream) mark(to Status) {
	if !s.status.holdsGroup() {
		panic(fmt.Sprintf("stream %s: cannot mark %s while %s", s.cfg.Name, to, s.status))
	}
	s.status = to
}

// Status returns the current lifecycle status.
func (s *Stream) Status() Status {
	return s.status
}

// Key returns the composite key of the current group, or nil if none.
func (s *Stream) Key() *key.Composite {
	return s.buf.Key()
}

// Len returns the number of rows in the current group.
func (s *Stream) Len() int {
	return s.buf.Len()
}

// Row returns row i of the current group, or nil if out of range.
func (s *Stream) Row(i int) *row.Row {
	return s.buf.Row(i)
}

// RowCap returns how many rows of the current group may be emitted.
func (s *Stream) RowCap() int {
	n := s.buf.Len()
	if s.cfg.RowCap == Unbounded || s.cfg.RowCap > n {
		return n
	}
	return s.cfg.RowCap
}

// Name returns the stream name.
func (s *Stream) Name() string {
	return s.cfg.Name
}

// Config returns the stream configuration.
func (s *Stream) Config() Config {
	return s.cfg
}

// Columns returns the 0-based output columns.
func (s *Stream) Columns() []int {
	return s.cfg.Columns
}

// Placeholder returns the filler byte for missing output values.
func (s *Stream) Placeholder() byte {
	return s.cfg.Placeholder
}

// Existence returns the stream's existence mode.
func (s *Stream) Existence() Existence {
	return s.cfg.Existence
}

// Stats returns the read counters.
func (s *Stream) Stats() Stats {
	return s.stats
}

// Close closes the underlying line source.
func (s *Stream) Close() error {
	return s.src.Close()
}
