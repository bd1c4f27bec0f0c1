package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/protoguard/pkg/violation"
)

func int64Values(xs ...int64) []protoreflect.Value {
	out := make([]protoreflect.Value, len(xs))
	for i, x := range xs {
		out[i] = protoreflect.ValueOfInt64(x)
	}
	return out
}

func TestRepeated_Validate(t *testing.T) {
	listField := Field(3, "scores", descriptorpb.FieldDescriptorProto_TYPE_INT64)
	gtZero := &FieldRules{Int64: &NumericRules[int64]{Gt: ptr[int64](0)}}

	tests := []struct {
		name  string
		rules RepeatedRules
		items []int64
		want  []string
	}{
		{"empty is absent", RepeatedRules{Common: Common{Required: true}}, nil, []string{"required"}},
		{"empty counts", RepeatedRules{MinItems: ptr[uint64](1)}, nil, []string{"repeated.min_items"}},
		{"ignore empty", RepeatedRules{Common: Common{Ignore: IgnoreIfZeroValue}, MinItems: ptr[uint64](1)}, nil, nil},
		{"required ignored when empty", RepeatedRules{Common: Common{Required: true, Ignore: IgnoreIfZeroValue}}, nil, nil},
		{"required ignore zero non-empty", RepeatedRules{Common: Common{Required: true, Ignore: IgnoreIfZeroValue}, MaxItems: ptr[uint64](1)}, []int64{1, 2}, []string{"repeated.max_items"}},
		{"required ignore always empty", RepeatedRules{Common: Common{Required: true, Ignore: IgnoreAlways}}, nil, nil},
		{"required ignore always non-empty", RepeatedRules{Common: Common{Required: true, Ignore: IgnoreAlways}, MaxItems: ptr[uint64](1)}, []int64{1, 2}, nil},
		{"required non-empty", RepeatedRules{Common: Common{Required: true}, MaxItems: ptr[uint64](1)}, []int64{1, 2}, []string{"repeated.max_items"}},
		{"max items", RepeatedRules{MaxItems: ptr[uint64](2)}, []int64{1, 2, 3}, []string{"repeated.max_items"}},
		{"unique", RepeatedRules{Unique: true}, []int64{4, 5, 4}, []string{"repeated.unique"}},
		{"items", RepeatedRules{Items: gtZero}, []int64{1, 0, -1}, []string{"int64.gt", "int64.gt"}},
		{"count and items", RepeatedRules{MinItems: ptr[uint64](5), Items: gtZero}, []int64{1, -1, 2}, []string{"repeated.min_items", "int64.gt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewRepeated(tt.rules, protoreflect.Int64Kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ruleIDs(v.Validate(listField, int64Values(tt.items...))))
		})
	}
}

func TestRepeated_ItemPaths(t *testing.T) {
	listField := Field(3, "scores", descriptorpb.FieldDescriptorProto_TYPE_INT64)
	v, err := NewRepeated(RepeatedRules{
		Items: &FieldRules{Int64: &NumericRules[int64]{Gt: ptr[int64](0)}},
	}, protoreflect.Int64Kind)
	require.NoError(t, err)

	vs := v.Validate(listField, int64Values(3, -1))
	require.Len(t, vs, 1)
	assert.Equal(t, "scores[1]", vs[0].Field.String())
	assert.Equal(t, "repeated.items.int64.gt", vs[0].Rule.String())
	assert.False(t, vs[0].ForKey)
}

func TestRepeated_Consistency(t *testing.T) {
	tests := []struct {
		name  string
		rules RepeatedRules
		item  protoreflect.Kind
		kinds []ConsistencyKind
	}{
		{"min above max", RepeatedRules{MinItems: ptr[uint64](3), MaxItems: ptr[uint64](1)}, protoreflect.Int64Kind, []ConsistencyKind{ContradictoryInput}},
		{"unique on messages", RepeatedRules{Unique: true}, protoreflect.MessageKind, []ConsistencyKind{InvalidRule}},
		{"item category mismatch", RepeatedRules{Items: &FieldRules{String: &StringRules{}}}, protoreflect.Int64Kind, []ConsistencyKind{InvalidRule}},
		{"item rules inconsistent", RepeatedRules{Items: &FieldRules{Int64: &NumericRules[int64]{Gt: ptr[int64](5), Lt: ptr[int64](1)}}}, protoreflect.Int64Kind, []ConsistencyKind{ContradictoryInput}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRepeated(tt.rules, tt.item)
			requireConsistency(t, err, tt.kinds...)
		})
	}
}

func TestMap_Validate(t *testing.T) {
	mapField := FieldContext{Element: fieldElementForMap()}
	v, err := NewMap(MapRules{
		MinPairs: ptr[uint64](1),
		Keys:     &FieldRules{Int32: &NumericRules[int32]{Gt: ptr[int32](0)}},
		Values:   &FieldRules{String: &StringRules{MinLen: ptr[uint64](1)}},
	}, protoreflect.Int32Kind, protoreflect.StringKind)
	require.NoError(t, err)

	assert.Equal(t, []string{"map.min_pairs"}, ruleIDs(v.Validate(mapField, nil)))

	vs := v.Validate(mapField, []MapEntry{
		{Key: protoreflect.ValueOfInt32(2).MapKey(), Value: protoreflect.ValueOfString("")},
		{Key: protoreflect.ValueOfInt32(-1).MapKey(), Value: protoreflect.ValueOfString("ok")},
	})
	require.Len(t, vs, 2)

	// entries are sorted by key before evaluation
	assert.Equal(t, "int32.gt", vs[0].RuleID)
	assert.Equal(t, "tags[-1]", vs[0].Field.String())
	assert.True(t, vs[0].ForKey)
	assert.Equal(t, "map.keys.int32.gt", vs[0].Rule.String())

	assert.Equal(t, "string.min_len", vs[1].RuleID)
	assert.Equal(t, "tags[2]", vs[1].Field.String())
	assert.Equal(t, "map.values.string.min_len", vs[1].Rule.String())
}

func TestMap_Gating(t *testing.T) {
	mapField := FieldContext{Element: fieldElementForMap()}
	entries := []MapEntry{
		{Key: protoreflect.ValueOfInt32(1).MapKey(), Value: protoreflect.ValueOfString("a")},
		{Key: protoreflect.ValueOfInt32(2).MapKey(), Value: protoreflect.ValueOfString("b")},
	}

	tests := []struct {
		name    string
		common  Common
		entries []MapEntry
		want    []string
	}{
		{"required empty", Common{Required: true}, nil, []string{"required"}},
		{"required non-empty", Common{Required: true}, entries, []string{"map.max_pairs"}},
		{"required ignore zero empty", Common{Required: true, Ignore: IgnoreIfZeroValue}, nil, nil},
		{"required ignore zero non-empty", Common{Required: true, Ignore: IgnoreIfZeroValue}, entries, []string{"map.max_pairs"}},
		{"required ignore always empty", Common{Required: true, Ignore: IgnoreAlways}, nil, nil},
		{"required ignore always non-empty", Common{Required: true, Ignore: IgnoreAlways}, entries, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewMap(MapRules{Common: tt.common, MaxPairs: ptr[uint64](1)}, protoreflect.Int32Kind, protoreflect.StringKind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ruleIDs(v.Validate(mapField, tt.entries)))
		})
	}
}

func fieldElementForMap() violation.FieldPathElement {
	return violation.FieldPathElement{
		FieldNumber: 4,
		FieldName:   "tags",
		FieldType:   descriptorpb.FieldDescriptorProto_TYPE_MESSAGE,
		KeyType:     descriptorpb.FieldDescriptorProto_TYPE_INT32,
		ValueType:   descriptorpb.FieldDescriptorProto_TYPE_STRING,
	}
}

func TestMap_Consistency(t *testing.T) {
	tests := []struct {
		name  string
		rules MapRules
		kinds []ConsistencyKind
	}{
		{"min above max", MapRules{MinPairs: ptr[uint64](4), MaxPairs: ptr[uint64](2)}, []ConsistencyKind{ContradictoryInput}},
		{"key category mismatch", MapRules{Keys: &FieldRules{Bool: &BoolRules{}}}, []ConsistencyKind{InvalidRule}},
		{"value lists overlap", MapRules{Values: &FieldRules{String: &StringRules{In: []string{"a"}, NotIn: []string{"a"}}}}, []ConsistencyKind{OverlappingLists}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMap(tt.rules, protoreflect.StringKind, protoreflect.StringKind)
			requireConsistency(t, err, tt.kinds...)
		})
	}
}
