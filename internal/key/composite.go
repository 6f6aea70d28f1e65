package key

import (
	"strings"

	"github.com/roach88/filterx/internal/row"
)

// Composite is the ordered list of typed key positions extracted from one row.
//
// Equality requires every position to be present and equal. Ordering is
// decided by the first position where the two keys differ, using that
// position's own sort direction.
type Composite struct {
	specs   []Spec
	values  []Typed
	present []bool
}

// NewComposite extracts the key positions described by specs from r.
// The specs slice is shared, not copied.
func NewComposite(specs []Spec, r *row.Row) *Composite {
	c := &Composite{
		specs:   specs,
		values:  make([]Typed, len(specs)),
		present: make([]bool, len(specs)),
	}
	for i, s := range specs {
		raw, ok := r.Field(s.Column)
		if !ok {
			continue
		}
		c.values[i] = NewTyped(raw, s)
		c.present[i] = true
	}
	return c
}

// Len returns the number of key positions.
func (c *Composite) Len() int {
	return len(c.specs)
}

// At returns position i, or false if the field is absent.
func (c *Composite) At(i int) (*Typed, bool) {
	if i < 0 || i >= len(c.values) || !c.present[i] {
		return nil, false
	}
	return &c.values[i], true
}

// Complete reports whether every key position has a value.
func (c *Composite) Complete() bool {
	for _, p := range c.present {
		if !p {
			return false
		}
	}
	return true
}

// Equal reports whether every position of c equals the same position of o.
// Keys of different length, empty keys and keys with absent positions are
// never equal.
func (c *Composite) Equal(o *Composite) bool {
	if c == nil || o == nil || len(c.values) != len(o.values) || len(c.values) == 0 {
		return false
	}
	for i := range c.values {
		a, ok := c.At(i)
		if !ok {
			return false
		}
		b, ok := o.At(i)
		if !ok {
			return false
		}
		if !a.Equal(b) {
			return false
		}
	}
	return true
}

// Precedes reports whether c comes strictly before o in merge order.
func (c *Composite) Precedes(o *Composite) bool {
	_, d, ok := order(c, o)
	return ok && d < 0
}

// Behind reports whether c has to be discarded to catch up with lead: c
// sorts before lead, or the first differing position cannot be decided and
// c is the side holding the absent or unconvertible value there.
func (c *Composite) Behind(lead *Composite) bool {
	i, d, ok := order(c, lead)
	if ok {
		return d < 0
	}
	return !c.decidable(i)
}

// Top returns whichever of a and b comes first in merge order.
// At the first differing position the smaller value wins for ascending
// columns and the larger for descending ones. Fully equal keys return a.
// A value that is absent or failed conversion never wins: when the position
// cannot be decided the other key is returned, and a when both are affected.
func Top(a, b *Composite) *Composite {
	i, d, ok := order(a, b)
	if ok {
		if d <= 0 {
			return a
		}
		return b
	}
	if !a.decidable(i) && b.decidable(i) {
		return b
	}
	return a
}

// order finds the first position i where a and b differ and compares them
// there, honoring the position's sort direction: d is negative when a comes
// first and positive when b does. Equal keys give d == 0. ok is false when
// position i holds a value that cannot be ordered.
func order(a, b *Composite) (i, d int, ok bool) {
	for i = range a.values {
		x, xok := a.At(i)
		y, yok := b.At(i)
		if !xok || !yok {
			return i, 0, false
		}
		if x.Equal(y) {
			continue
		}
		c, cok := x.compare(y)
		if !cok {
			return i, 0, false
		}
		if x.spec.Order == Desc {
			c = -c
		}
		return i, c, true
	}
	return 0, 0, true
}

func (c *Composite) decidable(i int) bool {
	v, ok := c.At(i)
	return ok && v.Err() == nil
}

// String joins the raw key values with "|", using "<nil>" for absent positions.
func (c *Composite) String() string {
	if c == nil {
		return "<nil>"
	}
	parts := make([]string, len(c.values))
	for i := range c.values {
		if v, ok := c.At(i); ok {
			parts[i] = v.Raw()
		} else {
			parts[i] = "<nil>"
		}
	}
	return strings.Join(parts, "|")
}
