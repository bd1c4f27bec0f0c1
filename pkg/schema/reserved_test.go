package schema

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservedNumbers_Add(t *testing.T) {
	tests := []struct {
		name   string
		ranges []Range
		want   []Range
	}{
		{"disjoint stay apart", []Range{{10, 12}, {1, 3}}, []Range{{1, 3}, {10, 12}}},
		{"adjacent merge", []Range{{1, 3}, {3, 5}}, []Range{{1, 5}}},
		{"overlap merges", []Range{{1, 6}, {4, 9}}, []Range{{1, 9}}},
		{"bridge merges three", []Range{{1, 3}, {7, 9}, {2, 8}}, []Range{{1, 9}}},
		{"contained is absorbed", []Range{{1, 20}, {5, 6}}, []Range{{1, 20}}},
		{"gap of one stays", []Range{{1, 3}, {4, 6}}, []Range{{1, 3}, {4, 6}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rn, err := NewReservedNumbers(tt.ranges...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rn.Ranges())
		})
	}
}

func TestReservedNumbers_Invalid(t *testing.T) {
	_, err := NewReservedNumbers(Range{5, 5})
	assert.Error(t, err)

	_, err = NewReservedNumbers(Range{9, 2})
	assert.Error(t, err)
}

// Any sequence of insertions leaves the ranges sorted, disjoint and
// non-adjacent, and membership matches a plain set.
func TestReservedNumbers_StaysCoalesced(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for round := 0; round < 50; round++ {
		rn := &ReservedNumbers{}
		members := make(map[int32]bool)
		for i := 0; i < 30; i++ {
			start := rng.Int32N(200)
			r := Range{Start: start, End: start + 1 + rng.Int32N(8)}
			require.NoError(t, rn.Add(r))
			for n := r.Start; n < r.End; n++ {
				members[n] = true
			}

			ranges := rn.Ranges()
			for j := 1; j < len(ranges); j++ {
				require.Less(t, ranges[j-1].End, ranges[j].Start, "round %d: %v", round, ranges)
			}
		}
		for n := int32(0); n < 220; n++ {
			require.Equal(t, members[n], rn.Contains(n), "number %d", n)
		}
	}
}

func TestReservedNumbers_String(t *testing.T) {
	rn, err := NewReservedNumbers(Range{1, 2}, Range{5, 10})
	require.NoError(t, err)
	assert.Equal(t, "1, 5 to 9", rn.String())

	var empty *ReservedNumbers
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.Contains(1))
	assert.Nil(t, empty.Ranges())
}

func TestReservedNumbers_CloneIsIndependent(t *testing.T) {
	rn, err := NewReservedNumbers(Range{1, 3})
	require.NoError(t, err)

	clone := rn.Clone()
	require.NoError(t, clone.AddNumber(10))

	assert.Equal(t, 1, rn.Len())
	assert.Equal(t, 2, clone.Len())
}
