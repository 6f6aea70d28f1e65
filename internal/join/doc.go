// Package join merges N key-sorted streams into one output.
//
// The first stream is the anchor. Every anchor group that survives the
// predicates is emitted, with or without matching secondary groups;
// secondary groups that never meet an anchor key are dropped. Each merge
// round:
//
//  1. resolves the anchor key and marks the anchor matched,
//  2. folds key.Top over the secondary keys until one tie group equals the
//     anchor key, sorts after it, or the secondaries are exhausted,
//  3. checks existence, then cardinality, then frequency over the matched set,
//  4. emits the candidate and advances every stream that took part.
//
// Inputs must be sorted by the configured key order. Unsorted input is not
// detected and produces incomplete output.
package join
