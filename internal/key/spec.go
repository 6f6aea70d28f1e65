package key

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is the declared scalar type of one key column.
type Type int

const (
	TypeInt Type = iota + 1
	TypeFloat
	TypeString
)

// String returns the lowercase type name.
func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	default:
		return "unknown"
	}
}

// MarshalText renders the type by name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Order is the sort direction of one key column.
type Order int

const (
	Asc Order = iota + 1
	Desc
)

// String returns "asc" or "desc".
func (o Order) String() string {
	switch o {
	case Asc:
		return "asc"
	case Desc:
		return "desc"
	default:
		return "unknown"
	}
}

// MarshalText renders the order by name.
func (o Order) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Spec binds one 0-based column index to a type and sort order.
type Spec struct {
	Column int   `json:"column"`
	Type   Type  `json:"type"`
	Order  Order `json:"order"`
}

// Letter returns the one-letter grammar code for the spec's type and order:
// i, f, s for ascending and I, F, S for descending.
func (s Spec) Letter() byte {
	var c byte
	switch s.Type {
	case TypeInt:
		c = 'i'
	case TypeFloat:
		c = 'f'
	default:
		c = 's'
	}
	if s.Order == Desc {
		c -= 'a' - 'A'
	}
	return c
}

// ParseSpecs parses a key specification such as "1i2S".
//
// Each position is a 1-based column number followed by a type letter:
// i (int), f (float), s (string) sort ascending; I, F, S sort descending.
func ParseSpecs(text string) ([]Spec, error) {
	if text == "" {
		return nil, fmt.Errorf("key specification is empty")
	}
	var specs []Spec
	pos := 0
	for pos < len(text) {
		start := pos
		for pos < len(text) && text[pos] >= '0' && text[pos] <= '9' {
			pos++
		}
		if pos == start {
			return nil, fmt.Errorf("key column is missing at offset %d in %q", start, text)
		}
		col, err := strconv.Atoi(text[start:pos])
		if err != nil {
			return nil, fmt.Errorf("key column %q: %w", text[start:pos], err)
		}
		if col == 0 {
			return nil, fmt.Errorf("key column numbers start from 1, got 0 in %q", text)
		}
		if pos == len(text) {
			return nil, fmt.Errorf("key type is missing after column %d in %q", col, text)
		}
		spec := Spec{Column: col - 1}
		switch text[pos] {
		case 'i':
			spec.Type, spec.Order = TypeInt, Asc
		case 'f':
			spec.Type, spec.Order = TypeFloat, Asc
		case 's':
			spec.Type, spec.Order = TypeString, Asc
		case 'I':
			spec.Type, spec.Order = TypeInt, Desc
		case 'F':
			spec.Type, spec.Order = TypeFloat, Desc
		case 'S':
			spec.Type, spec.Order = TypeString, Desc
		default:
			return nil, fmt.Errorf("unknown key type %q in %q", text[pos], text)
		}
		pos++
		specs = append(specs, spec)
	}
	return specs, nil
}

// FormatSpecs renders specs back into the "1i2S" grammar.
func FormatSpecs(specs []Spec) string {
	var b strings.Builder
	for _, s := range specs {
		b.WriteString(strconv.Itoa(s.Column + 1))
		b.WriteByte(s.Letter())
	}
	return b.String()
}

// Columns returns the 0-based column index of every position.
func Columns(specs []Spec) []int {
	cols := make([]int, len(specs))
	for i, s := range specs {
		cols[i] = s.Column
	}
	return cols
}
