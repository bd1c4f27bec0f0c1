package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Range is a half-open interval [Start, End) of field or enum numbers
type Range struct {
	Start int32 `yaml:"start" json:"start"`
	End   int32 `yaml:"end" json:"end"`
}

// Span returns the single-number range [n, n+1)
func Span(n int32) Range {
	return Range{Start: n, End: n + 1}
}

// Contains reports whether n lies inside r
func (r Range) Contains(n int32) bool {
	return n >= r.Start && n < r.End
}

func (r Range) String() string {
	if r.End-r.Start == 1 {
		return strconv.Itoa(int(r.Start))
	}
	return fmt.Sprintf("%d to %d", r.Start, r.End-1)
}

// ReservedNumbers is a set of numbers stored as sorted, disjoint, coalesced
// ranges. The zero value is empty and ready to use.
type ReservedNumbers struct {
	ranges []Range
}

// NewReservedNumbers builds a set from arbitrary, possibly overlapping ranges
func NewReservedNumbers(ranges ...Range) (*ReservedNumbers, error) {
	rn := &ReservedNumbers{}
	for _, r := range ranges {
		if err := rn.Add(r); err != nil {
			return nil, err
		}
	}
	return rn, nil
}

// Add inserts r, merging it with every range it overlaps or touches
func (rn *ReservedNumbers) Add(r Range) error {
	if r.Start >= r.End {
		return fmt.Errorf("invalid reserved range [%d, %d)", r.Start, r.End)
	}
	// first range whose end reaches r.Start
	i := sort.Search(len(rn.ranges), func(i int) bool { return rn.ranges[i].End >= r.Start })
	j := i
	for j < len(rn.ranges) && rn.ranges[j].Start <= r.End {
		r.Start = min(r.Start, rn.ranges[j].Start)
		r.End = max(r.End, rn.ranges[j].End)
		j++
	}
	merged := make([]Range, 0, len(rn.ranges)-(j-i)+1)
	merged = append(merged, rn.ranges[:i]...)
	merged = append(merged, r)
	merged = append(merged, rn.ranges[j:]...)
	rn.ranges = merged
	return nil
}

// AddNumber inserts a single number
func (rn *ReservedNumbers) AddNumber(n int32) error {
	return rn.Add(Span(n))
}

// Merge inserts every range of other
func (rn *ReservedNumbers) Merge(other *ReservedNumbers) {
	if other == nil {
		return
	}
	for _, r := range other.ranges {
		// ranges of a valid set are never empty
		_ = rn.Add(r)
	}
}

// Contains reports whether n is reserved
func (rn *ReservedNumbers) Contains(n int32) bool {
	_, ok := rn.find(n)
	return ok
}

// find returns the range holding n
func (rn *ReservedNumbers) find(n int32) (Range, bool) {
	if rn == nil {
		return Range{}, false
	}
	i := sort.Search(len(rn.ranges), func(i int) bool { return rn.ranges[i].End > n })
	if i < len(rn.ranges) && rn.ranges[i].Contains(n) {
		return rn.ranges[i], true
	}
	return Range{}, false
}

// Ranges returns a copy of the coalesced ranges in ascending order
func (rn *ReservedNumbers) Ranges() []Range {
	if rn == nil || len(rn.ranges) == 0 {
		return nil
	}
	out := make([]Range, len(rn.ranges))
	copy(out, rn.ranges)
	return out
}

// Len returns the number of coalesced ranges
func (rn *ReservedNumbers) Len() int {
	if rn == nil {
		return 0
	}
	return len(rn.ranges)
}

// Clone returns an independent copy
func (rn *ReservedNumbers) Clone() *ReservedNumbers {
	return &ReservedNumbers{ranges: rn.Ranges()}
}

func (rn *ReservedNumbers) String() string {
	parts := make([]string, rn.Len())
	for i, r := range rn.Ranges() {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}
