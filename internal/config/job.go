package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/filterx/internal/key"
	"github.com/roach88/filterx/internal/source"
	"github.com/roach88/filterx/internal/stream"
)

//go:embed schema.cue
var schemaCUE []byte

// Job is a job file: the same settings as the command line, structured.
type Job struct {
	Output    string     `yaml:"output,omitempty" json:"output,omitempty"`
	Separator string     `yaml:"separator,omitempty" json:"separator,omitempty"`
	Limit     *int       `yaml:"limit,omitempty" json:"limit,omitempty"`
	Count     *Range     `yaml:"count,omitempty" json:"count,omitempty"`
	Freq      *FreqRange `yaml:"freq,omitempty" json:"freq,omitempty"`
	Mode      string     `yaml:"mode,omitempty" json:"mode,omitempty"`
	Full      *bool      `yaml:"full,omitempty" json:"full,omitempty"`
	Groups    []JobGroup `yaml:"groups,omitempty" json:"groups,omitempty"`
	Inputs    []JobInput `yaml:"inputs,omitempty" json:"inputs,omitempty"`
}

// Range is an integer range; either bound may be omitted.
type Range struct {
	Min *int `yaml:"min,omitempty" json:"min,omitempty"`
	Max *int `yaml:"max,omitempty" json:"max,omitempty"`
}

// FreqRange is a frequency range; either bound may be omitted.
type FreqRange struct {
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// JobAttrs mirrors Attrs with the attribute grammar's value syntax.
type JobAttrs struct {
	Keys        string  `yaml:"keys,omitempty" json:"keys,omitempty"`
	Columns     *string `yaml:"columns,omitempty" json:"columns,omitempty"`
	Separator   string  `yaml:"separator,omitempty" json:"separator,omitempty"`
	Comment     string  `yaml:"comment,omitempty" json:"comment,omitempty"`
	Placeholder string  `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	MinRows     *int    `yaml:"min_rows,omitempty" json:"min_rows,omitempty"`
	MaxRows     *int    `yaml:"max_rows,omitempty" json:"max_rows,omitempty"`
	RowCap      *int    `yaml:"row_cap,omitempty" json:"row_cap,omitempty"`
	Existence   string  `yaml:"existence,omitempty" json:"existence,omitempty"`
}

// JobGroup is a parameter group in a job file.
type JobGroup struct {
	ID       int `yaml:"id" json:"id"`
	JobAttrs `yaml:",inline"`
}

// JobInput is one input file in a job file.
type JobInput struct {
	Path     string `yaml:"path" json:"path"`
	Groups   []int  `yaml:"groups,omitempty" json:"groups,omitempty"`
	JobAttrs `yaml:",inline"`
}

// LoadJob reads a job file. Files ending in .cue are evaluated against the
// embedded schema; anything else is decoded as strict YAML, which also
// covers JSON. Relative input paths are resolved against the job file's
// directory.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &source.InputError{Path: path, Err: err}
	}

	var job *Job
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		job, err = ParseCUEJob(path, data)
	} else {
		job, err = ParseYAMLJob(data)
	}
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	for i := range job.Inputs {
		p := job.Inputs[i].Path
		if p != source.StdinPath && !filepath.IsAbs(p) {
			job.Inputs[i].Path = filepath.Join(dir, p)
		}
	}
	return job, nil
}

// ParseYAMLJob decodes a YAML job, rejecting unknown fields.
func ParseYAMLJob(data []byte) (*Job, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var job Job
	if err := decoder.Decode(&job); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, newError(ErrCodeInvalidJob, "", "job file is empty")
		}
		return nil, &Error{Code: ErrCodeInvalidJob, Message: err.Error(), Err: err}
	}
	if err := job.validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// ParseCUEJob unifies a CUE job with the #Job schema and decodes it.
func ParseCUEJob(filename string, data []byte) (*Job, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile job schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fromCUE(err)
	}

	v = schema.LookupPath(cue.ParsePath("#Job")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fromCUE(err)
	}

	var job Job
	if err := v.Decode(&job); err != nil {
		return nil, fromCUE(err)
	}
	if err := job.validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// validate checks the parts of a job the file formats cannot express.
func (j *Job) validate() error {
	for i, g := range j.Groups {
		if g.ID < 1 {
			return newError(ErrCodeInvalidGroup, fmt.Sprintf("groups[%d].id", i), "group number must be >= 1")
		}
		if _, err := g.attrs(); err != nil {
			return err
		}
	}
	for i, in := range j.Inputs {
		if in.Path == "" {
			return newError(ErrCodeMissingPath, fmt.Sprintf("inputs[%d].path", i), "path is required")
		}
		if _, err := in.spec(); err != nil {
			return err
		}
	}
	if j.Mode != "" && j.Mode != "columns" && j.Mode != "rows" {
		return newError(ErrCodeInvalidJob, "mode", "%q is not columns or rows", j.Mode)
	}
	return nil
}

func (g JobGroup) attrs() (Attrs, error) {
	return g.JobAttrs.attrs()
}

func (in JobInput) spec() (FileSpec, error) {
	a, err := in.JobAttrs.attrs()
	if err != nil {
		return FileSpec{}, err
	}
	for _, id := range in.Groups {
		if id < 1 {
			return FileSpec{}, newError(ErrCodeInvalidGroup, in.Path, "group number %d must be >= 1", id)
		}
	}
	a.Groups = in.Groups
	return FileSpec{Path: in.Path, Attrs: a}, nil
}

func (j JobAttrs) attrs() (Attrs, error) {
	var a Attrs
	if j.Keys != "" {
		specs, err := key.ParseSpecs(j.Keys)
		if err != nil {
			return Attrs{}, &Error{Code: ErrCodeInvalidKey, Field: "keys", Message: err.Error(), Err: err}
		}
		a.Keys = specs
	}
	if j.Columns != nil {
		cols, err := ParseColumns(*j.Columns)
		if err != nil {
			return Attrs{}, err
		}
		a.Columns = &cols
	}
	if j.Separator != "" {
		b, err := ParseSeparator(j.Separator)
		if err != nil {
			return Attrs{}, err
		}
		a.Separator = &b
	}
	if j.Comment != "" {
		b, err := parseChar("comment", j.Comment)
		if err != nil {
			return Attrs{}, err
		}
		a.Comment = &b
	}
	if j.Placeholder != "" {
		b, err := parseChar("placeholder", j.Placeholder)
		if err != nil {
			return Attrs{}, err
		}
		a.Placeholder = &b
	}
	for _, n := range []*int{j.MinRows, j.MaxRows, j.RowCap} {
		if n != nil && *n < 0 {
			return Attrs{}, newError(ErrCodeInvalidRange, "rows", "%d is negative", *n)
		}
	}
	a.MinRows, a.MaxRows, a.RowCap = j.MinRows, j.MaxRows, j.RowCap
	if j.Existence != "" {
		e, err := stream.ParseExistence(j.Existence)
		if err != nil {
			return Attrs{}, &Error{Code: ErrCodeUnknownAttribute, Field: "existence", Message: err.Error(), Err: err}
		}
		a.Existence = &e
	}
	return a, nil
}
