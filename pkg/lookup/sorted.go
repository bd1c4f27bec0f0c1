package lookup

import (
	"cmp"
	"slices"
)

// Set is the membership contract shared by Sorted and Floats
type Set[T any] interface {
	Contains(v T) bool
	Items() []T
	Len() int
}

// Sorted is an immutable sorted, de-duplicated collection
type Sorted[T cmp.Ordered] struct {
	items []T
}

// NewSorted copies, sorts and de-duplicates items
func NewSorted[T cmp.Ordered](items []T) *Sorted[T] {
	sorted := slices.Clone(items)
	slices.Sort(sorted)
	return &Sorted[T]{items: slices.Compact(sorted)}
}

// Contains reports whether v is in the collection
func (s *Sorted[T]) Contains(v T) bool {
	if s == nil {
		return false
	}
	_, found := slices.BinarySearch(s.items, v)
	return found
}

// Items returns the sorted items. The slice must not be modified.
func (s *Sorted[T]) Items() []T {
	if s == nil {
		return nil
	}
	return s.items
}

// Len returns the number of distinct items
func (s *Sorted[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Overlap returns every item of a that is also contained in b, in sorted order
func Overlap[T any](a, b Set[T]) []T {
	if a == nil || b == nil {
		return nil
	}
	var out []T
	for _, item := range a.Items() {
		if b.Contains(item) {
			out = append(out, item)
		}
	}
	return out
}
