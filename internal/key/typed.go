package key

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
)

// kind tags which member of scalar holds the converted value.
type kind uint8

const (
	kindUnset kind = iota
	kindInt
	kindFloat
	kindText
)

// scalar holds exactly one converted value, selected by kind.
type scalar struct {
	kind kind
	i    int64
	f    float64
	s    string
}

// Typed is an order-aware view of one field bound to a declared type.
//
// Numeric conversion runs once, on first use, and is cached. A failed
// conversion is not fatal: the key records the error, equality falls back
// to raw text comparison, and ordering against the key reports neither
// less nor greater.
type Typed struct {
	raw   string
	spec  Spec
	value scalar
	err   error
}

// NewTyped binds raw to spec without converting it.
func NewTyped(raw string, spec Spec) Typed {
	return Typed{raw: raw, spec: spec}
}

// Raw returns the unconverted field text.
func (k *Typed) Raw() string {
	return k.raw
}

// Spec returns the column binding of the key.
func (k *Typed) Spec() Spec {
	return k.spec
}

// Err returns the conversion error, converting first if needed.
func (k *Typed) Err() error {
	k.convert()
	return k.err
}

// Int returns the cached integer value. Valid only for TypeInt without error.
func (k *Typed) Int() int64 {
	k.convert()
	return k.value.i
}

// Float returns the cached float value. Valid only for TypeFloat without error.
func (k *Typed) Float() float64 {
	k.convert()
	return k.value.f
}

func (k *Typed) convert() {
	if k.value.kind != kindUnset {
		return
	}
	switch k.spec.Type {
	case TypeInt:
		v, err := strconv.ParseInt(k.raw, 10, 64)
		if err != nil {
			k.err = fmt.Errorf("convert %q to int: %w", k.raw, err)
		}
		k.value = scalar{kind: kindInt, i: v}
	case TypeFloat:
		v, err := strconv.ParseFloat(k.raw, 64)
		if err == nil && math.IsNaN(v) {
			err = strconv.ErrSyntax
		}
		if err != nil {
			k.err = fmt.Errorf("convert %q to float: %w", k.raw, err)
		}
		k.value = scalar{kind: kindFloat, f: v}
	default:
		k.value = scalar{kind: kindText, s: k.raw}
	}
}

// compare orders k against o by declared type, ignoring sort direction.
// ok is false when either side failed conversion or the types differ.
func (k *Typed) compare(o *Typed) (c int, ok bool) {
	if k.spec.Type != o.spec.Type {
		return 0, false
	}
	k.convert()
	o.convert()
	if k.err != nil || o.err != nil {
		return 0, false
	}
	switch k.value.kind {
	case kindInt:
		return cmp.Compare(k.value.i, o.value.i), true
	case kindFloat:
		return cmp.Compare(k.value.f, o.value.f), true
	default:
		return cmp.Compare(k.value.s, o.value.s), true
	}
}

// Equal reports whether k and o hold the same value.
// Errored or mismatched keys compare by raw text.
func (k *Typed) Equal(o *Typed) bool {
	c, ok := k.compare(o)
	if !ok {
		return k.raw == o.raw
	}
	return c == 0
}

// Less reports whether k sorts strictly below o. Always false on error.
func (k *Typed) Less(o *Typed) bool {
	c, ok := k.compare(o)
	return ok && c < 0
}

// Greater reports whether k sorts strictly above o. Always false on error.
func (k *Typed) Greater(o *Typed) bool {
	c, ok := k.compare(o)
	return ok && c > 0
}
