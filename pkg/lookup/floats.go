package lookup

import (
	"math"
	"slices"
)

// Float is the constraint for tolerance-aware lookups
type Float interface {
	~float32 | ~float64
}

// Tolerance configures float equality. A zero Tolerance means bit-exact
// equality.
type Tolerance struct {
	// Abs is the absolute tolerance; ignored when <= 0
	Abs float64 `yaml:"abs" json:"abs"`
	// Rel is the tolerance relative to the larger magnitude; ignored when <= 0
	Rel float64 `yaml:"rel" json:"rel"`
}

// Equal reports whether a and b match bit for bit or within tolerance
func (t Tolerance) Equal(a, b float64) bool {
	if math.Float64bits(a) == math.Float64bits(b) {
		return true
	}
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	diff := math.Abs(a - b)
	if t.Abs > 0 && diff <= t.Abs {
		return true
	}
	if t.Rel > 0 && diff <= t.Rel*math.Max(math.Abs(a), math.Abs(b)) {
		return true
	}
	return false
}

// IsZero reports whether the tolerance degenerates to exact matching
func (t Tolerance) IsZero() bool {
	return t.Abs <= 0 && t.Rel <= 0
}

// Floats is an immutable sorted float collection with tolerance-aware
// membership
type Floats[F Float] struct {
	items []F
	tol   Tolerance
}

// NewFloats copies and sorts items. NaN entries are kept at the front and
// only ever match another NaN with the same bits.
func NewFloats[F Float](items []F, tol Tolerance) *Floats[F] {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, compareFloat[F])
	sorted = slices.CompactFunc(sorted, func(a, b F) bool {
		return math.Float64bits(float64(a)) == math.Float64bits(float64(b))
	})
	return &Floats[F]{items: sorted, tol: tol}
}

// Contains reports whether any item equals v under the tolerance
func (f *Floats[F]) Contains(v F) bool {
	if f == nil || len(f.items) == 0 {
		return false
	}
	target := float64(v)
	if math.IsNaN(target) {
		bits := math.Float64bits(target)
		for _, item := range f.items {
			if !math.IsNaN(float64(item)) {
				break
			}
			if math.Float64bits(float64(item)) == bits {
				return true
			}
		}
		return false
	}

	// A relative tolerance of 1 or more can reach past closer items, so
	// the outward walk below cannot stop early.
	if f.tol.Rel >= 1 {
		for _, item := range f.items {
			if f.tol.Equal(float64(item), target) {
				return true
			}
		}
		return false
	}

	idx, _ := slices.BinarySearchFunc(f.items, v, compareFloat[F])
	// Walk outward from the insertion point while candidates can still be
	// within tolerance; the distance only grows in each direction.
	for i := idx; i < len(f.items); i++ {
		item := float64(f.items[i])
		if f.tol.Equal(item, target) {
			return true
		}
		if f.outOfReach(item, target) {
			break
		}
	}
	for i := idx - 1; i >= 0; i-- {
		item := float64(f.items[i])
		if math.IsNaN(item) {
			break
		}
		if f.tol.Equal(item, target) {
			return true
		}
		if f.outOfReach(item, target) {
			break
		}
	}
	return false
}

func (f *Floats[F]) outOfReach(item, target float64) bool {
	if f.tol.IsZero() {
		return item != target
	}
	diff := math.Abs(item - target)
	return diff > f.tol.Abs && diff > f.tol.Rel*math.Max(math.Abs(item), math.Abs(target))
}

// Items returns the sorted items. The slice must not be modified.
func (f *Floats[F]) Items() []F {
	if f == nil {
		return nil
	}
	return f.items
}

// Len returns the number of distinct items
func (f *Floats[F]) Len() int {
	if f == nil {
		return 0
	}
	return len(f.items)
}

// Tolerance returns the configured tolerance
func (f *Floats[F]) Tolerance() Tolerance {
	return f.tol
}

// compareFloat orders NaN first, then by value, with -0 before +0
func compareFloat[F Float](a, b F) int {
	x, y := float64(a), float64(b)
	xNaN, yNaN := math.IsNaN(x), math.IsNaN(y)
	switch {
	case xNaN && yNaN:
		xb, yb := math.Float64bits(x), math.Float64bits(y)
		switch {
		case xb < yb:
			return -1
		case xb > yb:
			return 1
		}
		return 0
	case xNaN:
		return -1
	case yNaN:
		return 1
	case x < y:
		return -1
	case x > y:
		return 1
	}
	if x == 0 && y == 0 {
		xs, ys := math.Signbit(x), math.Signbit(y)
		switch {
		case xs && !ys:
			return -1
		case !xs && ys:
			return 1
		}
	}
	return 0
}
