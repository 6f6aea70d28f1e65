package config

import (
	"strconv"
	"strings"

	"github.com/roach88/filterx/internal/key"
	"github.com/roach88/filterx/internal/stream"
)

// Attrs holds the per-stream attributes of one file spec or parameter
// group. A nil field is unset and may be inherited.
type Attrs struct {
	Keys        []key.Spec
	Columns     *[]int
	Separator   *byte
	Comment     *byte
	Placeholder *byte
	MinRows     *int
	MaxRows     *int
	RowCap      *int
	Existence   *stream.Existence

	// Groups lists the parameter groups to inherit from, in priority order.
	Groups []int
}

// inherit fills every unset field of a from o. Groups are not inherited.
func (a Attrs) inherit(o Attrs) Attrs {
	if a.Keys == nil {
		a.Keys = o.Keys
	}
	if a.Columns == nil {
		a.Columns = o.Columns
	}
	if a.Separator == nil {
		a.Separator = o.Separator
	}
	if a.Comment == nil {
		a.Comment = o.Comment
	}
	if a.Placeholder == nil {
		a.Placeholder = o.Placeholder
	}
	if a.MinRows == nil {
		a.MinRows = o.MinRows
	}
	if a.MaxRows == nil {
		a.MaxRows = o.MaxRows
	}
	if a.RowCap == nil {
		a.RowCap = o.RowCap
	}
	if a.Existence == nil {
		a.Existence = o.Existence
	}
	return a
}

// FileSpec is one input file with its own attributes.
type FileSpec struct {
	Path  string
	Attrs Attrs
}

// ParseFileSpec parses "PATH[:attr...]", for example
// "a.csv:k=1i2S:cut=1,3-4:s=tab:e=Y:2".
func ParseFileSpec(text string) (FileSpec, error) {
	parts := strings.Split(text, ":")
	if parts[0] == "" {
		return FileSpec{}, newError(ErrCodeMissingPath, "", "file spec %q has no path", text)
	}
	attrs, err := parseAttrs(parts[1:], true)
	if err != nil {
		return FileSpec{}, err
	}
	return FileSpec{Path: parts[0], Attrs: attrs}, nil
}

// ParseGroup parses a parameter group definition "N:attr...".
func ParseGroup(text string) (int, Attrs, error) {
	parts := strings.Split(text, ":")
	id, err := strconv.Atoi(parts[0])
	if err != nil || id < 1 {
		return 0, Attrs{}, newError(ErrCodeInvalidGroup, "group", "%q must start with a group number >= 1", text)
	}
	attrs, err := parseAttrs(parts[1:], false)
	if err != nil {
		return 0, Attrs{}, err
	}
	return id, attrs, nil
}

func parseAttrs(parts []string, allowGroups bool) (Attrs, error) {
	var a Attrs
	for _, part := range parts {
		if part == "" {
			continue
		}
		if ids, ok := parseGroupRefs(part); ok {
			if !allowGroups {
				return Attrs{}, newError(ErrCodeInvalidGroup, "group", "groups cannot inherit from other groups (%q)", part)
			}
			a.Groups = append(a.Groups, ids...)
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return Attrs{}, newError(ErrCodeUnknownAttribute, part, "expected name=value or a group number")
		}
		if err := setAttr(&a, name, value); err != nil {
			return Attrs{}, err
		}
	}
	return a, nil
}

// parseGroupRefs accepts "2" or "2,3".
func parseGroupRefs(s string) ([]int, bool) {
	var ids []int
	for _, f := range strings.Split(s, ",") {
		id, err := strconv.Atoi(f)
		if err != nil || id < 1 {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func setAttr(a *Attrs, name, value string) error {
	switch name {
	case "k":
		specs, err := key.ParseSpecs(value)
		if err != nil {
			return &Error{Code: ErrCodeInvalidKey, Field: "k", Message: err.Error(), Err: err}
		}
		a.Keys = specs
	case "cut":
		cols, err := ParseColumns(value)
		if err != nil {
			return err
		}
		a.Columns = &cols
	case "s":
		b, err := ParseSeparator(value)
		if err != nil {
			return err
		}
		a.Separator = &b
	case "c":
		b, err := parseChar("c", value)
		if err != nil {
			return err
		}
		a.Comment = &b
	case "p":
		b, err := parseChar("p", value)
		if err != nil {
			return err
		}
		a.Placeholder = &b
	case "m":
		n, err := parseCount("m", value)
		if err != nil {
			return err
		}
		a.MinRows = &n
	case "M":
		n, err := parseCount("M", value)
		if err != nil {
			return err
		}
		a.MaxRows = &n
	case "l":
		n, err := parseCount("l", value)
		if err != nil {
			return err
		}
		a.RowCap = &n
	case "e":
		e, err := parseExistence(value)
		if err != nil {
			return err
		}
		a.Existence = &e
	default:
		return newError(ErrCodeUnknownAttribute, name, "unknown attribute")
	}
	return nil
}

// ParseColumns parses 1-based column lists such as "1,3-5" into 0-based
// indices. The empty string selects no columns.
func ParseColumns(s string) ([]int, error) {
	cols := []int{}
	if s == "" {
		return cols, nil
	}
	for _, f := range strings.Split(s, ",") {
		lo, hi, isRange := strings.Cut(f, "-")
		from, err := strconv.Atoi(lo)
		if err != nil || from < 1 {
			return nil, newError(ErrCodeInvalidColumns, "cut", "%q: columns start from 1", f)
		}
		to := from
		if isRange {
			to, err = strconv.Atoi(hi)
			if err != nil || to < from {
				return nil, newError(ErrCodeInvalidColumns, "cut", "%q is not an ascending range", f)
			}
		}
		for c := from; c <= to; c++ {
			cols = append(cols, c-1)
		}
	}
	return cols, nil
}

var namedChars = map[string]byte{
	"tab":       '\t',
	`\t`:        '\t',
	"comma":     ',',
	"space":     ' ',
	"semicolon": ';',
	"pipe":      '|',
	"colon":     ':',
}

// ParseSeparator accepts a single byte, `\t`, or one of the names tab,
// comma, space, semicolon, pipe and colon.
func ParseSeparator(s string) (byte, error) {
	if b, ok := namedChars[s]; ok {
		return b, nil
	}
	if len(s) == 1 && s[0] != '\n' {
		return s[0], nil
	}
	return 0, newError(ErrCodeInvalidSeparator, "s", "%q is not a single byte or separator name", s)
}

// FormatSeparator renders b the way ParseSeparator accepts it.
func FormatSeparator(b byte) string {
	switch b {
	case '\t':
		return "tab"
	case ' ':
		return "space"
	case ':':
		return "colon"
	}
	return string(b)
}

func parseChar(field, s string) (byte, error) {
	if b, ok := namedChars[s]; ok {
		return b, nil
	}
	if len(s) != 1 {
		return 0, newError(ErrCodeInvalidChar, field, "%q is not a single character", s)
	}
	return s[0], nil
}

func parseCount(field, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, newError(ErrCodeInvalidRange, field, "%q is not a non-negative integer", s)
	}
	return n, nil
}

// parseExistence accepts Y (must), N (must not) or the mode names.
func parseExistence(s string) (stream.Existence, error) {
	switch s {
	case "Y", "y":
		return stream.ExistMust, nil
	case "N", "n":
		return stream.ExistMustNot, nil
	}
	e, err := stream.ParseExistence(s)
	if err != nil {
		return 0, &Error{Code: ErrCodeUnknownAttribute, Field: "e", Message: err.Error(), Err: err}
	}
	return e, nil
}
