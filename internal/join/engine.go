package join

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/filterx/internal/key"
	"github.com/roach88/filterx/internal/source"
	"github.com/roach88/filterx/internal/stream"
)

// freqEpsilon absorbs float rounding so both frequency bounds stay inclusive.
const freqEpsilon = 1e-9

// Mode selects the output layout.
type Mode int

const (
	// ModeColumns aligns the matched streams side by side, one line per row index.
	ModeColumns Mode = iota
	// ModeRows writes one line per buffered row of each matched stream.
	ModeRows
)

func (m Mode) String() string {
	if m == ModeRows {
		return "rows"
	}
	return "columns"
}

// MarshalText renders the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts "columns" or "rows".
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "columns":
		*m = ModeColumns
	case "rows":
		*m = ModeRows
	default:
		return fmt.Errorf("unknown output mode %q", b)
	}
	return nil
}

// Options are the global predicates and output settings of a run.
type Options struct {
	// MinCount and MaxCount bound the number of streams in a match.
	// MaxCount may be stream.Unbounded.
	MinCount int `json:"min_count"`
	MaxCount int `json:"max_count"`

	// MinFreq and MaxFreq bound matched streams / total streams, inclusive.
	MinFreq float64 `json:"min_freq"`
	MaxFreq float64 `json:"max_freq"`

	Mode Mode `json:"mode"`

	// Full writes every column of each row in ModeRows.
	Full bool `json:"full"`

	// Limit stops the run after this many emitted groups. Zero is unlimited.
	Limit int `json:"limit"`

	Separator byte `json:"-"`
}

// DefaultOptions returns the built-in global settings.
func DefaultOptions() Options {
	return Options{
		MinCount:  1,
		MaxCount:  stream.Unbounded,
		MinFreq:   0.0001,
		MaxFreq:   1.0,
		Mode:      ModeColumns,
		Separator: '\t',
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.MinCount < 0 {
		return fmt.Errorf("%w: min count %d is negative", ErrInvalidOptions, o.MinCount)
	}
	if o.MaxCount != stream.Unbounded && o.MaxCount < o.MinCount {
		return fmt.Errorf("%w: min count %d exceeds max count %d", ErrInvalidOptions, o.MinCount, o.MaxCount)
	}
	if o.MinFreq < 0 || o.MinFreq > 1 || o.MaxFreq < 0 || o.MaxFreq > 1 {
		return fmt.Errorf("%w: frequency range [%g,%g] is outside [0,1]", ErrInvalidOptions, o.MinFreq, o.MaxFreq)
	}
	if o.MinFreq > o.MaxFreq {
		return fmt.Errorf("%w: min frequency %g exceeds max frequency %g", ErrInvalidOptions, o.MinFreq, o.MaxFreq)
	}
	if o.Limit < 0 {
		return fmt.Errorf("%w: limit %d is negative", ErrInvalidOptions, o.Limit)
	}
	if o.Mode != ModeColumns && o.Mode != ModeRows {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidOptions, o.Mode)
	}
	return nil
}

// Anchor is the stream that drives the merge. Its unmatched groups are
// still emitted; every other stream only contributes to matches.
type Anchor struct {
	*stream.Stream
}

// NewAnchor designates s as the anchor stream.
func NewAnchor(s *stream.Stream) *Anchor {
	return &Anchor{Stream: s}
}

// Engine performs the anchor-driven N-way sorted merge.
//
// Single-threaded and pull-based: each merge round reads at most one group
// per stream, and no stream is ever rewound. Emitted groups are therefore
// non-decreasing in anchor key order.
type Engine struct {
	anchor      *Anchor
	secondaries []*stream.Stream
	all         []*stream.Stream // engine order, anchor first

	opts   Options
	out    *bufio.Writer
	line   []byte
	keys   []*key.Composite
	logger *slog.Logger
	runIDs RunIDGenerator
	runID  string

	prepared bool
	stats    Stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRunIDGenerator overrides the run ID generator (default UUIDv7Generator).
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// New creates an engine writing to w. Stream order in the output is the
// anchor followed by secondaries in the given order.
func New(anchor *Anchor, secondaries []*stream.Stream, w io.Writer, opts Options, options ...Option) (*Engine, error) {
	if anchor == nil || anchor.Stream == nil {
		return nil, fmt.Errorf("%w: no anchor stream", ErrInvalidOptions)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	all := make([]*stream.Stream, 0, len(secondaries)+1)
	all = append(all, anchor.Stream)
	all = append(all, secondaries...)

	e := &Engine{
		anchor:      anchor,
		secondaries: append([]*stream.Stream(nil), secondaries...),
		all:         all,
		opts:        opts,
		out:         bufio.NewWriterSize(w, 64*1024),
		keys:        make([]*key.Composite, len(secondaries)),
		logger:      slog.Default(),
		runIDs:      UUIDv7Generator{},
	}
	for _, opt := range options {
		opt(e)
	}
	e.runID = e.runIDs.Generate()
	e.logger = e.logger.With("run_id", e.runID)
	e.stats = Stats{RunID: e.runID, Streams: len(all)}
	return e, nil
}

// RunID returns the identifier of this run.
func (e *Engine) RunID() string {
	return e.runID
}

// Stats returns the engine counters and per-stream read counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.PerStream = make([]StreamStats, len(e.all))
	for i, st := range e.all {
		s.PerStream[i] = StreamStats{Name: st.Name(), Stats: st.Stats()}
	}
	return s
}

// Run prepares every stream and merges until the anchor is exhausted or
// the output limit is reached.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Prepare(); err != nil {
		return err
	}
	return e.Process(ctx)
}

// Prepare fills every stream with its first valid group.
// An anchor without any group is an InputError wrapping ErrAnchorEmpty.
func (e *Engine) Prepare() error {
	for i, s := range e.all {
		st, err := s.Advance()
		if err != nil {
			return err
		}
		if st == stream.StatusEOF {
			if i == 0 {
				return &source.InputError{Path: s.Name(), Err: ErrAnchorEmpty}
			}
			e.logger.Warn("secondary stream has no groups", "stream", s.Name())
		}
	}
	e.prepared = true
	return nil
}

// Process runs the merge loop. Cancellation of ctx is observed only after
// a group has been emitted.
func (e *Engine) Process(ctx context.Context) (err error) {
	if !e.prepared {
		return ErrNotPrepared
	}
	defer func() {
		if ferr := e.out.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("flush output: %w", ferr)
		}
	}()

	if len(e.all) < e.opts.MinCount {
		e.logger.Warn("fewer streams than the minimum match count, nothing can be emitted",
			"streams", len(e.all), "min_count", e.opts.MinCount)
		e.stats.Stop = StopUnreachable
		return nil
	}

	for {
		if s := e.exhaustedRequired(); s != nil {
			e.logger.Debug("required stream exhausted", "stream", s.Name())
			e.stats.Stop = StopRequiredEOF
			return nil
		}

		anchorKey, err := resolveKey(e.anchor.Stream)
		if err != nil {
			return err
		}
		if anchorKey == nil {
			e.stats.Stop = StopAnchorEOF
			return nil
		}
		e.anchor.MarkMatched()

		matched, alone, err := e.matchSecondaries(anchorKey)
		if err != nil {
			return err
		}

		if reason := e.check(matched); reason != rejectNone {
			e.reject(reason, anchorKey, matched)
			if err := e.advanceParticipants(); err != nil {
				return err
			}
			continue
		}

		if err := e.emit(); err != nil {
			return err
		}
		e.stats.GroupsEmitted++
		if matched == 1 {
			e.stats.AnchorOnly++
		}
		if e.opts.Limit > 0 && e.stats.GroupsEmitted >= e.opts.Limit {
			e.stats.Stop = StopLimit
			return nil
		}
		if err := ctx.Err(); err != nil {
			e.stats.Stop = StopCanceled
			return err
		}

		if alone {
			e.anchor.MarkUnavailable()
		}
		if err := e.advanceParticipants(); err != nil {
			return err
		}
	}
}

// matchSecondaries finds the secondary streams whose current group equals
// anchorKey, skipping secondary groups that sort before it. It returns the
// number of matched streams including the anchor, and whether the anchor
// key sorted before every remaining secondary key.
func (e *Engine) matchSecondaries(anchorKey *key.Composite) (matched int, alone bool, err error) {
	matched = 1
	for {
		top, idx, err := e.resolveTopGroup()
		if err != nil {
			return 0, false, err
		}
		if top == nil {
			return matched, false, nil
		}

		if top.Equal(anchorKey) {
			for _, i := range idx {
				e.secondaries[i].MarkMatched()
			}
			return matched + len(idx), false, nil
		}

		if !top.Behind(anchorKey) {
			return matched, true, nil
		}

		// The tied secondaries are behind the anchor, or hold a key that
		// cannot be ordered against it, and can never match it.
		for _, i := range idx {
			s := e.secondaries[i]
			s.MarkUnavailable()
			st, err := s.Advance()
			if err != nil {
				return 0, false, err
			}
			if st == stream.StatusEOF {
				e.logger.Debug("secondary stream exhausted", "stream", s.Name())
			}
		}
	}
}

// resolveTopGroup folds key.Top over every waiting secondary stream and
// returns the top key with the indices of all secondaries whose key equals it.
func (e *Engine) resolveTopGroup() (*key.Composite, []int, error) {
	var top *key.Composite
	for i, s := range e.secondaries {
		e.keys[i] = nil
		if s.Status() != stream.StatusWaitConsumption {
			continue
		}
		k, err := resolveKey(s)
		if err != nil {
			return nil, nil, err
		}
		if k == nil {
			continue
		}
		e.keys[i] = k
		if top == nil {
			top = k
		} else {
			top = key.Top(top, k)
		}
	}
	if top == nil {
		return nil, nil, nil
	}

	var idx []int
	for i, k := range e.keys {
		if k != nil && top.Equal(k) {
			idx = append(idx, i)
		}
	}
	return top, idx, nil
}

// resolveKey returns the first complete key s can offer, advancing past
// empty buffers and incomplete keys. It returns nil once s is exhausted.
func resolveKey(s *stream.Stream) (*key.Composite, error) {
	for {
		if k := s.Key(); k != nil && k.Complete() {
			return k, nil
		}
		if s.Status() == stream.StatusEOF {
			return nil, nil
		}
		st, err := s.Advance()
		if err != nil {
			return nil, err
		}
		if st == stream.StatusEOF {
			return nil, nil
		}
	}
}

type rejectReason int

const (
	rejectNone rejectReason = iota
	rejectExistence
	rejectCardinality
	rejectFrequency
)

func (r rejectReason) String() string {
	switch r {
	case rejectExistence:
		return "existence"
	case rejectCardinality:
		return "cardinality"
	case rejectFrequency:
		return "frequency"
	default:
		return "none"
	}
}

// check applies the existence, cardinality and frequency predicates to
// the candidate formed by every stream currently marked matched.
func (e *Engine) check(matched int) rejectReason {
	for _, s := range e.secondaries {
		in := s.Status() == stream.StatusMatched
		switch s.Existence() {
		case stream.ExistMust:
			if !in {
				return rejectExistence
			}
		case stream.ExistMustNot:
			if in {
				return rejectExistence
			}
		}
	}

	if matched < e.opts.MinCount || (e.opts.MaxCount != stream.Unbounded && matched > e.opts.MaxCount) {
		return rejectCardinality
	}

	freq := float64(matched) / float64(len(e.all))
	if freq < e.opts.MinFreq-freqEpsilon || freq > e.opts.MaxFreq+freqEpsilon {
		return rejectFrequency
	}
	return rejectNone
}

func (e *Engine) reject(reason rejectReason, k *key.Composite, matched int) {
	switch reason {
	case rejectExistence:
		e.stats.RejectedExistence++
		for _, s := range e.all {
			if s.Status() == stream.StatusMatched {
				s.MarkFailedExistence()
			}
		}
	case rejectCardinality:
		e.stats.RejectedCardinality++
	case rejectFrequency:
		e.stats.RejectedFrequency++
	}
	if e.logger.Enabled(context.Background(), slog.LevelDebug) {
		e.logger.Debug("group rejected", "reason", reason.String(), "key", k.String(), "matched", matched)
	}
}

// advanceParticipants moves every stream that took part in the last
// candidate to its next group.
func (e *Engine) advanceParticipants() error {
	for _, s := range e.all {
		switch s.Status() {
		case stream.StatusMatched, stream.StatusFailedCount, stream.StatusUnavailable, stream.StatusFailedExistence:
			if _, err := s.Advance(); err != nil {
				return err
			}
		}
	}
	return nil
}

// exhaustedRequired returns a must-exist secondary that has reached EOF.
// Once one exists no further candidate can pass the existence predicate.
func (e *Engine) exhaustedRequired() *stream.Stream {
	for _, s := range e.secondaries {
		if s.Existence() == stream.ExistMust && s.Status() == stream.StatusEOF {
			return s
		}
	}
	return nil
}

// Close closes every stream.
func (e *Engine) Close() error {
	var errs []error
	for _, s := range e.all {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
