package lookup

import "unsafe"

// DefaultSeenBudget bounds the up-front allocation of a Seen set in bytes
const DefaultSeenBudget = 128 * 1024

// linearThreshold is the collection size up to which a linear scan beats
// hashing
const linearThreshold = 16

// Seen tracks values already observed while checking uniqueness of a
// repeated field. It is local to a single validate call.
type Seen[T comparable] interface {
	// Insert records v and reports whether it was not seen before
	Insert(v T) bool
}

// NewSeen picks a tracking strategy for a collection of size n. The initial
// capacity never exceeds budget bytes; budget <= 0 uses DefaultSeenBudget.
func NewSeen[T comparable](n int, budget int) Seen[T] {
	if budget <= 0 {
		budget = DefaultSeenBudget
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		size = 1
	}
	capacity := n
	if maxItems := budget / size; capacity > maxItems {
		capacity = maxItems
	}
	if n <= linearThreshold {
		return &linearSeen[T]{items: make([]T, 0, capacity)}
	}
	return &hashSeen[T]{items: make(map[T]struct{}, capacity)}
}

type linearSeen[T comparable] struct {
	items []T
}

func (s *linearSeen[T]) Insert(v T) bool {
	for _, item := range s.items {
		if item == v {
			return false
		}
	}
	s.items = append(s.items, v)
	return true
}

type hashSeen[T comparable] struct {
	items map[T]struct{}
}

func (s *hashSeen[T]) Insert(v T) bool {
	if _, ok := s.items[v]; ok {
		return false
	}
	s.items[v] = struct{}{}
	return true
}
