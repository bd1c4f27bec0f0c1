package validation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protoguard/pkg/lookup"
)

func TestNumeric_Int32(t *testing.T) {
	tests := []struct {
		name  string
		rules NumericRules[int32]
		val   *int32
		want  []string
	}{
		{"gt passes", NumericRules[int32]{Gt: ptr[int32](5)}, ptr[int32](6), nil},
		{"gt fails on equal", NumericRules[int32]{Gt: ptr[int32](5)}, ptr[int32](5), []string{"int32.gt"}},
		{"lt and gte range low", NumericRules[int32]{Lt: ptr[int32](10), Gte: ptr[int32](0)}, ptr[int32](-1), []string{"int32.gte"}},
		{"lt and gte range high", NumericRules[int32]{Lt: ptr[int32](10), Gte: ptr[int32](0)}, ptr[int32](10), []string{"int32.lt"}},
		{"lte inclusive", NumericRules[int32]{Lte: ptr[int32](10)}, ptr[int32](10), nil},
		{"const mismatch", NumericRules[int32]{Const: ptr[int32](3)}, ptr[int32](4), []string{"int32.const"}},
		{"const match", NumericRules[int32]{Const: ptr[int32](3)}, ptr[int32](3), nil},
		{"in", NumericRules[int32]{In: []int32{1, 2, 3}}, ptr[int32](4), []string{"int32.in"}},
		{"not in", NumericRules[int32]{NotIn: []int32{4}}, ptr[int32](4), []string{"int32.not_in"}},
		{"several failures", NumericRules[int32]{Gt: ptr[int32](5), In: []int32{7}}, ptr[int32](1), []string{"int32.gt", "int32.in"}},
		{"absent optional", NumericRules[int32]{Gt: ptr[int32](5)}, nil, nil},
		{"absent required", NumericRules[int32]{Common: Common{Required: true}, Gt: ptr[int32](5)}, nil, []string{"required"}},
		{"ignore if zero", NumericRules[int32]{Common: Common{Ignore: IgnoreIfZeroValue}, Gt: ptr[int32](5)}, ptr[int32](0), nil},
		{"ignore if zero non zero", NumericRules[int32]{Common: Common{Ignore: IgnoreIfZeroValue}, Gt: ptr[int32](5)}, ptr[int32](1), []string{"int32.gt"}},
		{"ignore always", NumericRules[int32]{Common: Common{Ignore: IgnoreAlways, Required: true}, Gt: ptr[int32](5)}, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewNumeric(KindInt32, tt.rules)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ruleIDs(v.Validate(int32Field, tt.val)))
		})
	}
}

func TestNumeric_Messages(t *testing.T) {
	v, err := NewNumeric(KindInt32, NumericRules[int32]{
		Gt: ptr[int32](5),
		In: []int32{7, 8},
	})
	require.NoError(t, err)

	vs := v.Validate(int32Field, ptr[int32](1))
	require.Len(t, vs, 2)
	assert.Equal(t, "must be greater than 5", vs[0].Message)
	assert.Equal(t, "must be in list [7, 8]", vs[1].Message)
	assert.Equal(t, "value", vs[0].Field.String())
	assert.Equal(t, "int32.gt", vs[0].Rule.String())
}

func TestNumeric_CustomMessage(t *testing.T) {
	v, err := NewNumeric(KindInt64, NumericRules[int64]{
		Common: Common{ErrorMessages: map[string]string{"int64.gte": "age cannot be negative"}},
		Gte:    ptr[int64](0),
	})
	require.NoError(t, err)

	vs := v.Validate(int32Field, ptr[int64](-3))
	require.Len(t, vs, 1)
	assert.Equal(t, "age cannot be negative", vs[0].Message)
}

// summed at run time so the result carries the usual rounding error
var tenth, fifth = 0.1, 0.2

func TestNumeric_Float(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name  string
		rules NumericRules[float64]
		opts  []Option
		val   float64
		want  []string
	}{
		{"nan fails gt", NumericRules[float64]{Gt: ptr(0.0)}, nil, nan, []string{"double.gt"}},
		{"nan fails lte", NumericRules[float64]{Lte: ptr(0.0)}, nil, nan, []string{"double.lte"}},
		{"nan fails const", NumericRules[float64]{Const: ptr(1.0)}, nil, nan, []string{"double.const"}},
		{"finite rejects nan", NumericRules[float64]{Finite: true}, nil, nan, []string{"double.finite"}},
		{"finite rejects inf", NumericRules[float64]{Finite: true}, nil, math.Inf(-1), []string{"double.finite"}},
		{"finite accepts number", NumericRules[float64]{Finite: true}, nil, 1.5, nil},
		{"exact const", NumericRules[float64]{Const: ptr(0.1)}, nil, 0.1 + 1e-12, []string{"double.const"}},
		{"tolerant const", NumericRules[float64]{Const: ptr(0.1)}, []Option{WithTolerance(lookup.Tolerance{Abs: 1e-9})}, 0.1 + 1e-12, nil},
		{"tolerant lt rejects near equal", NumericRules[float64]{Lt: ptr(1.0)}, []Option{WithTolerance(lookup.Tolerance{Abs: 1e-9})}, 1 - 1e-12, []string{"double.lt"}},
		{"tolerant gte accepts near equal", NumericRules[float64]{Gte: ptr(1.0)}, []Option{WithTolerance(lookup.Tolerance{Rel: 1e-9})}, 1 - 1e-12, nil},
		{"tolerant in", NumericRules[float64]{In: []float64{0.3}}, []Option{WithTolerance(lookup.Tolerance{Abs: 1e-9})}, tenth + fifth, nil},
		{"exact in", NumericRules[float64]{In: []float64{0.3}}, nil, tenth + fifth, []string{"double.in"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewNumeric(KindDouble, tt.rules, tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ruleIDs(v.Validate(doubleField, ptr(tt.val))))
		})
	}
}

func TestNumeric_Consistency(t *testing.T) {
	t.Run("lt below gt", func(t *testing.T) {
		_, err := NewNumeric(KindInt32, NumericRules[int32]{Gt: ptr[int32](2), Lt: ptr[int32](1)})
		es := requireConsistency(t, err, ContradictoryInput)
		assert.Contains(t, es[0].Description, "Lt cannot be smaller than or equal to Gt")
	})

	t.Run("lte below gte", func(t *testing.T) {
		_, err := NewNumeric(KindInt32, NumericRules[int32]{Gte: ptr[int32](2), Lte: ptr[int32](1)})
		requireConsistency(t, err, ContradictoryInput)
	})

	t.Run("lte equal gte is allowed", func(t *testing.T) {
		_, err := NewNumeric(KindInt32, NumericRules[int32]{Gte: ptr[int32](2), Lte: ptr[int32](2)})
		require.NoError(t, err)
	})

	t.Run("lt with lte", func(t *testing.T) {
		_, err := NewNumeric(KindUint32, NumericRules[uint32]{Lt: ptr[uint32](2), Lte: ptr[uint32](3)})
		requireConsistency(t, err, ContradictoryInput)
	})

	t.Run("const with others", func(t *testing.T) {
		_, err := NewNumeric(KindInt32, NumericRules[int32]{Const: ptr[int32](2), Gt: ptr[int32](1), In: []int32{2}})
		es := requireConsistency(t, err, ConstWithOtherRules)
		assert.Contains(t, es[0].Description, "gt, in")
	})

	t.Run("overlapping lists", func(t *testing.T) {
		_, err := NewNumeric(KindInt64, NumericRules[int64]{In: []int64{1, 2, 3}, NotIn: []int64{3, 2}})
		es := requireConsistency(t, err, OverlappingLists)
		assert.Equal(t, []string{"2", "3"}, es[0].Values)
	})

	t.Run("overlapping within tolerance", func(t *testing.T) {
		_, err := NewNumeric(KindDouble, NumericRules[float64]{In: []float64{0.1}, NotIn: []float64{0.1 + 1e-12}},
			WithTolerance(lookup.Tolerance{Abs: 1e-9}))
		requireConsistency(t, err, OverlappingLists)
	})

	t.Run("finite on integers", func(t *testing.T) {
		_, err := NewNumeric(KindInt32, NumericRules[int32]{Finite: true})
		requireConsistency(t, err, InvalidRule)
	})

	t.Run("nan bound", func(t *testing.T) {
		_, err := NewNumeric(KindDouble, NumericRules[float64]{Gt: ptr(math.NaN())})
		requireConsistency(t, err, InvalidRule)
	})

	t.Run("kind mismatch", func(t *testing.T) {
		_, err := NewNumeric(KindInt32, NumericRules[int64]{Gt: ptr[int64](1)})
		requireConsistency(t, err, InvalidRule)
	})

	t.Run("unused custom message", func(t *testing.T) {
		_, err := NewNumeric(KindInt32, NumericRules[int32]{
			Common: Common{ErrorMessages: map[string]string{"int32.lt": "too big"}},
			Gt:     ptr[int32](1),
		})
		es := requireConsistency(t, err, UnusedCustomMessages)
		assert.Equal(t, []string{"int32.lt"}, es[0].Values)
	})

	t.Run("errors are aggregated", func(t *testing.T) {
		_, err := NewNumeric(KindInt32, NumericRules[int32]{
			Gt: ptr[int32](5), Lt: ptr[int32](1),
			In: []int32{1}, NotIn: []int32{1},
			Finite: true,
		})
		requireConsistency(t, err, ContradictoryInput, OverlappingLists, InvalidRule)
	})
}
