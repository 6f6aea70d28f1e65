package stream

import (
	"github.com/roach88/filterx/internal/key"
	"github.com/roach88/filterx/internal/row"
)

// GroupBuffer accumulates consecutive rows of one stream that share an
// equal composite key.
//
// INVARIANTS:
//   - every row in rows has a key equal to the key of the previous row
//   - at most one held-over row exists; it seeds the next group
//   - Add is never called while a held-over row is pending
type GroupBuffer struct {
	specs []key.Spec
	sep   byte

	rows    []*row.Row
	first   *key.Composite // key of rows[0], the group key
	last    *key.Composite // key of the most recently appended row
	held    *row.Row
	heldKey *key.Composite
}

// NewGroupBuffer creates an empty buffer keyed by specs over rows split on sep.
func NewGroupBuffer(specs []key.Spec, sep byte) *GroupBuffer {
	return &GroupBuffer{
		specs: specs,
		sep:   sep,
		rows:  make([]*row.Row, 0, 16),
	}
}

// Add appends line to the current group and returns true, or seals the
// group and holds the line over for the next group and returns false.
func (b *GroupBuffer) Add(line string, lineNo int) bool {
	if b.held != nil {
		panic("stream: GroupBuffer.Add called with a held-over row pending")
	}
	r := row.New(line, b.sep, lineNo)
	k := key.NewComposite(b.specs, r)

	if len(b.rows) == 0 {
		b.rows = append(b.rows, r)
		b.first, b.last = k, k
		return true
	}
	if !b.last.Equal(k) {
		b.held, b.heldKey = r, k
		return false
	}
	b.rows = append(b.rows, r)
	b.last = k
	return true
}

// Consume discards the current group and promotes the held-over row, if
// any, to be the first row of the next group.
func (b *GroupBuffer) Consume() {
	clear(b.rows)
	b.rows = b.rows[:0]
	b.first, b.last = nil, nil
	if b.held != nil {
		b.rows = append(b.rows, b.held)
		b.first, b.last = b.heldKey, b.heldKey
		b.held, b.heldKey = nil, nil
	}
}

// Sealed reports whether a held-over row is pending.
func (b *GroupBuffer) Sealed() bool {
	return b.held != nil
}

// Len returns the number of rows in the current group.
func (b *GroupBuffer) Len() int {
	return len(b.rows)
}

// Row returns row i of the current group, or nil if out of range.
func (b *GroupBuffer) Row(i int) *row.Row {
	if i < 0 || i >= len(b.rows) {
		return nil
	}
	return b.rows[i]
}

// Key returns the composite key of the current group, or nil if empty.
func (b *GroupBuffer) Key() *key.Composite {
	if len(b.rows) == 0 {
		return nil
	}
	return b.first
}
