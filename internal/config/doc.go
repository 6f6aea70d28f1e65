// Package config turns file specs, parameter groups and job files into a
// resolved Plan.
//
// File specs use the attribute grammar
//
//	PATH[:k=KEYS][:cut=COLS][:s=SEP][:c=CHAR][:p=CHAR][:m=N][:M=N][:l=N][:e=Y|N][:GROUP[,GROUP...]]
//
// where KEYS is one or more <column><type> pairs (1-based column; i, f, s
// ascending and I, F, S descending), COLS is a 1-based list such as
// "1,3-5", m and M bound the rows per group, l caps the rows emitted per
// group and e makes the stream required (Y) or forbidden (N) in matches.
// Parameter groups are "N:attrs"; group 1, when defined, is inherited by
// every file.
//
// Every attribute is optional. A file's value wins over its listed groups
// in listing order, which win over group 1, which wins over the built-in
// defaults. Nothing is inherited by comparing against a default value.
package config
