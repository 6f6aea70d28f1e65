package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/filterx/internal/join"
	"github.com/roach88/filterx/internal/key"
	"github.com/roach88/filterx/internal/source"
	"github.com/roach88/filterx/internal/stream"
)

// DefaultGroup is inherited by every file spec when it is defined.
const DefaultGroup = 1

// Built-in per-stream defaults, applied after files and groups.
const (
	DefaultSeparator   byte = ','
	DefaultComment     byte = '#'
	DefaultPlaceholder byte = '-'
	DefaultMinRows          = 1
)

// Overrides are command-line settings. A nil field was not given and
// leaves the job file value in place.
type Overrides struct {
	Specs     []string // positional "PATH[:attr...]"
	Groups    []string // "N:attr..."
	Output    *string
	Separator *string
	Limit     *int
	Count     *string // "min,max", "n", "min," or ",max"
	Freq      *string
	Rows      *bool
	Full      *bool
}

// Plan is a fully resolved run.
type Plan struct {
	Output  string
	Options join.Options
	Inputs  []Input
}

// Input is one resolved stream. Inputs[0] is the anchor.
type Input struct {
	Path   string
	Stream stream.Config
}

// Resolve merges job (may be nil) with the command-line overrides and
// resolves every file's attributes. The first explicitly set value wins in
// the order file, listed groups, the default group, built-in defaults.
func Resolve(job *Job, o Overrides) (*Plan, error) {
	plan := &Plan{Output: source.StdinPath, Options: join.DefaultOptions()}
	groups := map[int]Attrs{}
	var specs []FileSpec

	if job != nil {
		if err := plan.applyJob(job, groups, &specs); err != nil {
			return nil, err
		}
	}
	if err := plan.applyOverrides(o, groups, &specs); err != nil {
		return nil, err
	}

	if len(specs) == 0 {
		return nil, newError(ErrCodeMissingPath, "inputs", "no input files")
	}

	stdin := 0
	for i, fs := range specs {
		if fs.Path == source.StdinPath {
			stdin++
		}
		cfg, err := resolveStream(fs, groups)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			if err := sameKeyShape(plan.Inputs[0].Stream.Keys, cfg.Keys); err != nil {
				return nil, &Error{Code: ErrCodeKeyMismatch, Field: fs.Path, Message: err.Error()}
			}
		}
		plan.Inputs = append(plan.Inputs, Input{Path: fs.Path, Stream: cfg})
	}
	if stdin > 1 {
		return nil, newError(ErrCodeInvalidInput, "inputs", "standard input can be read by one stream only")
	}

	if err := plan.Options.Validate(); err != nil {
		return nil, &Error{Code: ErrCodeInvalidRange, Field: "options", Message: err.Error(), Err: err}
	}
	return plan, nil
}

func (p *Plan) applyJob(job *Job, groups map[int]Attrs, specs *[]FileSpec) error {
	if job.Output != "" {
		p.Output = job.Output
	}
	if job.Separator != "" {
		b, err := ParseSeparator(job.Separator)
		if err != nil {
			return err
		}
		p.Options.Separator = b
	}
	if job.Limit != nil {
		p.Options.Limit = *job.Limit
	}
	if job.Count != nil {
		if job.Count.Min != nil {
			p.Options.MinCount = *job.Count.Min
		}
		if job.Count.Max != nil {
			p.Options.MaxCount = *job.Count.Max
		}
	}
	if job.Freq != nil {
		if job.Freq.Min != nil {
			p.Options.MinFreq = *job.Freq.Min
		}
		if job.Freq.Max != nil {
			p.Options.MaxFreq = *job.Freq.Max
		}
	}
	if job.Mode == "rows" {
		p.Options.Mode = join.ModeRows
	}
	if job.Full != nil {
		p.Options.Full = *job.Full
	}

	for _, g := range job.Groups {
		a, err := g.attrs()
		if err != nil {
			return err
		}
		groups[g.ID] = a
	}
	for _, in := range job.Inputs {
		fs, err := in.spec()
		if err != nil {
			return err
		}
		*specs = append(*specs, fs)
	}
	return nil
}

func (p *Plan) applyOverrides(o Overrides, groups map[int]Attrs, specs *[]FileSpec) error {
	if o.Output != nil {
		p.Output = *o.Output
	}
	if o.Separator != nil {
		b, err := ParseSeparator(*o.Separator)
		if err != nil {
			return err
		}
		p.Options.Separator = b
	}
	if o.Limit != nil {
		p.Options.Limit = *o.Limit
	}
	if o.Count != nil {
		lo, hi, err := ParseCountRange(*o.Count)
		if err != nil {
			return err
		}
		if lo != nil {
			p.Options.MinCount = *lo
		}
		if hi != nil {
			p.Options.MaxCount = *hi
		}
	}
	if o.Freq != nil {
		lo, hi, err := ParseFreqRange(*o.Freq)
		if err != nil {
			return err
		}
		if lo != nil {
			p.Options.MinFreq = *lo
		}
		if hi != nil {
			p.Options.MaxFreq = *hi
		}
	}
	if o.Rows != nil {
		p.Options.Mode = join.ModeColumns
		if *o.Rows {
			p.Options.Mode = join.ModeRows
		}
	}
	if o.Full != nil {
		p.Options.Full = *o.Full
	}

	for _, text := range o.Groups {
		id, a, err := ParseGroup(text)
		if err != nil {
			return err
		}
		groups[id] = a
	}
	for _, text := range o.Specs {
		fs, err := ParseFileSpec(text)
		if err != nil {
			return err
		}
		*specs = append(*specs, fs)
	}
	return nil
}

func resolveStream(fs FileSpec, groups map[int]Attrs) (stream.Config, error) {
	a := fs.Attrs
	seen := map[int]bool{}
	for _, id := range fs.Attrs.Groups {
		g, ok := groups[id]
		if !ok {
			return stream.Config{}, newError(ErrCodeMissingGroup, fs.Path, "group %d is not defined", id)
		}
		a = a.inherit(g)
		seen[id] = true
	}
	if g, ok := groups[DefaultGroup]; ok && !seen[DefaultGroup] {
		a = a.inherit(g)
	}

	if len(a.Keys) == 0 {
		return stream.Config{}, newError(ErrCodeInvalidKey, fs.Path, "no key columns (k=...)")
	}

	cfg := stream.Config{
		Name:        fs.Path,
		Separator:   valueOr(a.Separator, DefaultSeparator),
		Keys:        a.Keys,
		Columns:     key.Columns(a.Keys),
		Comment:     valueOr(a.Comment, DefaultComment),
		Placeholder: valueOr(a.Placeholder, DefaultPlaceholder),
		MinRows:     valueOr(a.MinRows, DefaultMinRows),
		MaxRows:     valueOr(a.MaxRows, stream.Unbounded),
		Existence:   valueOr(a.Existence, stream.ExistOptional),
		RowCap:      valueOr(a.RowCap, stream.Unbounded),
	}
	if a.Columns != nil {
		cfg.Columns = *a.Columns
	}
	if cfg.MaxRows != stream.Unbounded && cfg.MinRows > cfg.MaxRows {
		return stream.Config{}, newError(ErrCodeInvalidRange, fs.Path, "min rows %d exceeds max rows %d", cfg.MinRows, cfg.MaxRows)
	}
	if err := cfg.Validate(); err != nil {
		return stream.Config{}, &Error{Code: ErrCodeInvalidInput, Field: fs.Path, Message: err.Error(), Err: err}
	}
	return cfg, nil
}

// sameKeyShape requires equal key length, type and order per position.
// Column indices may differ between files.
func sameKeyShape(anchor, other []key.Spec) error {
	if len(anchor) != len(other) {
		return fmt.Errorf("key has %d columns, the anchor key has %d", len(other), len(anchor))
	}
	for i := range anchor {
		if anchor[i].Type != other[i].Type || anchor[i].Order != other[i].Order {
			return fmt.Errorf("key position %d is %s %s, the anchor has %s %s", i+1,
				other[i].Type, other[i].Order, anchor[i].Type, anchor[i].Order)
		}
	}
	return nil
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// ParseCountRange parses "min,max". Either side may be empty to keep its
// default, "max" may be "inf", and a single value sets both bounds.
func ParseCountRange(s string) (lo, hi *int, err error) {
	loText, hiText, isRange := strings.Cut(s, ",")
	if !isRange {
		hiText = loText
	}
	parse := func(t string) (*int, error) {
		if t == "" {
			return nil, nil
		}
		if t == "inf" {
			n := stream.Unbounded
			return &n, nil
		}
		n, err := strconv.Atoi(t)
		if err != nil || n < 0 {
			return nil, newError(ErrCodeInvalidRange, "cnt", "%q is not a non-negative integer", t)
		}
		return &n, nil
	}
	if lo, err = parse(loText); err != nil {
		return nil, nil, err
	}
	if lo != nil && *lo == stream.Unbounded {
		return nil, nil, newError(ErrCodeInvalidRange, "cnt", "the lower bound cannot be inf")
	}
	if hi, err = parse(hiText); err != nil {
		return nil, nil, err
	}
	if lo != nil && hi != nil && *hi != stream.Unbounded && *lo > *hi {
		return nil, nil, newError(ErrCodeInvalidRange, "cnt", "min %d exceeds max %d", *lo, *hi)
	}
	return lo, hi, nil
}

// ParseFreqRange parses "min,max" fractions in [0,1] with the same
// shorthand as ParseCountRange.
func ParseFreqRange(s string) (lo, hi *float64, err error) {
	loText, hiText, isRange := strings.Cut(s, ",")
	if !isRange {
		hiText = loText
	}
	parse := func(t string) (*float64, error) {
		if t == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil || f < 0 || f > 1 {
			return nil, newError(ErrCodeInvalidRange, "freq", "%q is not a fraction in [0,1]", t)
		}
		return &f, nil
	}
	if lo, err = parse(loText); err != nil {
		return nil, nil, err
	}
	if hi, err = parse(hiText); err != nil {
		return nil, nil, err
	}
	if lo != nil && hi != nil && *lo > *hi {
		return nil, nil, newError(ErrCodeInvalidRange, "freq", "min %g exceeds max %g", *lo, *hi)
	}
	return lo, hi, nil
}

// Open opens every input and returns the anchor and the secondary streams.
// On error every stream opened so far is closed.
func (p *Plan) Open(opts ...stream.Option) (*join.Anchor, []*stream.Stream, error) {
	streams := make([]*stream.Stream, 0, len(p.Inputs))
	fail := func(err error) (*join.Anchor, []*stream.Stream, error) {
		for _, s := range streams {
			s.Close()
		}
		return nil, nil, err
	}

	for _, in := range p.Inputs {
		src, err := source.Open(in.Path)
		if err != nil {
			return fail(err)
		}
		s, err := stream.New(src, in.Stream, opts...)
		if err != nil {
			src.Close()
			return fail(err)
		}
		streams = append(streams, s)
	}
	if len(streams) == 0 {
		return nil, nil, newError(ErrCodeMissingPath, "inputs", "no input files")
	}
	return join.NewAnchor(streams[0]), streams[1:], nil
}
