// Package key implements typed, order-aware key values over delimited rows.
//
// A Typed key is a lazily converted view of one field. A Composite key is
// the ordered list of Typed keys that defines grouping (equality) and merge
// order for a stream.
//
// Conversion errors never abort a run. An errored key compares equal only to
// a key with identical raw text, and it never wins an ordering comparison.
package key
