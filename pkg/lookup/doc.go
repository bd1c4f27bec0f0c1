// Package lookup provides immutable sorted collections used by rule
// validators for membership checks.
//
// # Overview
//
// Sorted holds any ordered element type and answers Contains in O(log n).
// Floats adds tolerance-aware membership for float32/float64 values, where two
// values match when they are bit-identical or within an absolute or relative
// tolerance.
//
// Seen is a per-call uniqueness tracker for repeated fields. It picks a linear
// scan for small collections and a hash set for larger ones, with the initial
// allocation capped by a byte budget so attacker-sized inputs do not force a
// large up-front allocation.
//
// # Usage Example
//
//	in := lookup.NewSorted([]string{"b", "a", "c"})
//	in.Contains("a") // true
//
//	tol := lookup.Tolerance{Abs: 1e-9}
//	f := lookup.NewFloats([]float64{0.1, 0.2}, tol)
//	f.Contains(0.1 + 1e-12) // true
package lookup
