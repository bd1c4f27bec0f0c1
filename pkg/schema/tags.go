package schema

import (
	"errors"
	"fmt"
	"slices"
)

const (
	// MaxFieldNumber is the largest valid field number
	MaxFieldNumber = 1<<29 - 1
	// FirstImplementationReserved and LastImplementationReserved bound the
	// field numbers reserved by the protobuf implementation
	FirstImplementationReserved = 19000
	LastImplementationReserved  = 19999
)

var (
	// ErrDuplicateTag is returned when two manually numbered entries share a number
	ErrDuplicateTag = errors.New("duplicate tag")
	// ErrReservedTag is returned when a manual number lies in a reserved range
	ErrReservedTag = errors.New("tag is reserved")
	// ErrTagSpaceExhausted is returned when no number is left to allocate
	ErrTagSpaceExhausted = errors.New("tag space exhausted")
)

// implementationReserved is the range every message implicitly reserves
var implementationReserved = Range{Start: FirstImplementationReserved, End: LastImplementationReserved + 1}

// TagAllocator hands out the smallest number at or after its cursor that is
// not reserved. It never returns the same number twice.
type TagAllocator struct {
	used   []Range
	cursor int64
	limit  int64
}

// NewTagAllocator allocates numbers from start upward, skipping reserved.
// Use 1 for fields and oneof variants and 0 for enum values.
func NewTagAllocator(reserved *ReservedNumbers, start int32) *TagAllocator {
	return &TagAllocator{used: reserved.Ranges(), cursor: int64(start), limit: MaxFieldNumber}
}

// NewFieldTagAllocator is NewTagAllocator for message fields: numbering starts
// at 1 and the implementation range 19000-19999 is skipped
func NewFieldTagAllocator(reserved *ReservedNumbers) *TagAllocator {
	rn := reserved.Clone()
	_ = rn.Add(implementationReserved)
	return NewTagAllocator(rn, 1)
}

// Next returns the next free number
func (a *TagAllocator) Next() (int32, error) {
	// ranges are sorted, so one forward pass skips every range the cursor
	// runs into
	for _, r := range a.used {
		if int64(r.End) <= a.cursor {
			continue
		}
		if int64(r.Start) > a.cursor {
			break
		}
		a.cursor = int64(r.End)
	}
	if a.cursor > a.limit {
		return 0, ErrTagSpaceExhausted
	}
	n := int32(a.cursor)
	a.cursor++
	return n, nil
}

// CheckManualTags reports every duplicate among tags and every tag that falls
// inside reserved. The returned error wraps ErrDuplicateTag and/or
// ErrReservedTag.
func CheckManualTags(tags []int32, reserved *ReservedNumbers) error {
	if len(tags) == 0 {
		return nil
	}
	sorted := slices.Clone(tags)
	slices.Sort(sorted)

	var errs []error
	for i, tag := range sorted {
		if i > 0 && sorted[i-1] == tag {
			// report each duplicated number once
			if i == 1 || sorted[i-2] != tag {
				errs = append(errs, fmt.Errorf("%w: %d", ErrDuplicateTag, tag))
			}
			continue
		}
		if r, ok := reserved.find(tag); ok {
			errs = append(errs, fmt.Errorf("%w: %d is inside reserved range %s", ErrReservedTag, tag, r))
		}
	}
	return errors.Join(errs...)
}

// checkFieldNumber reports numbers outside the valid field range
func checkFieldNumber(n int32) error {
	if n < 1 || n > MaxFieldNumber {
		return fmt.Errorf("field number %d out of range [1, %d]", n, MaxFieldNumber)
	}
	return nil
}
