package violation

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/descriptorpb"
)

func TestFieldPath_String(t *testing.T) {
	path := NewFieldPath(
		FieldPathElement{FieldNumber: 1, FieldName: "users"}.WithSubscript(Index(2)),
		FieldPathElement{FieldNumber: 4, FieldName: "labels"}.WithSubscript(StringKey("env")),
		FieldPathElement{FieldNumber: 1, FieldName: "value"},
	)

	assert.Equal(t, `users[2].labels["env"].value`, path.String())
}

func TestSubscript_Variants(t *testing.T) {
	tests := []struct {
		sub  Subscript
		kind SubscriptKind
		text string
	}{
		{Index(3), SubscriptIndex, "3"},
		{BoolKey(true), SubscriptBoolKey, "true"},
		{IntKey(-7), SubscriptIntKey, "-7"},
		{UintKey(9), SubscriptUintKey, "9"},
		{StringKey("k"), SubscriptStringKey, `"k"`},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.sub.Kind())
			assert.Equal(t, tt.text, tt.sub.String())

			data, err := json.Marshal(tt.sub)
			require.NoError(t, err)

			var decoded Subscript
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.sub, decoded)
		})
	}
}

func TestSubscript_UnmarshalRejectsUnknown(t *testing.T) {
	var s Subscript
	assert.Error(t, json.Unmarshal([]byte(`{"nope":1}`), &s))
	assert.Error(t, json.Unmarshal([]byte(`{"index":1,"int_key":2}`), &s))
}

func TestAncestors_PushPop(t *testing.T) {
	var a Ancestors
	a.Push(FieldPathElement{FieldName: "outer"})
	a.Push(FieldPathElement{FieldName: "inner"})

	path := a.PathTo(FieldPathElement{FieldName: "leaf"})
	assert.Equal(t, "outer.inner.leaf", path.String())

	a.Pop()
	assert.Equal(t, 1, a.Depth())

	// Earlier snapshots are detached from the stack.
	a.Push(FieldPathElement{FieldName: "other"})
	assert.Equal(t, "outer.inner.leaf", path.String())
	a.Pop()
	a.Pop()
	a.Pop()
	assert.Equal(t, 0, a.Depth())
}

func TestRulePath_Prefixes(t *testing.T) {
	step := FieldPathElement{FieldNumber: 4, FieldName: "gt", FieldType: descriptorpb.FieldDescriptorProto_TYPE_INT32}

	tests := []struct {
		kind ElementKind
		want string
	}{
		{KindField, "gt"},
		{KindMapKey, "map.keys.gt"},
		{KindMapValue, "map.values.gt"},
		{KindRepeatedItem, "repeated.items.gt"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, RulePath(tt.kind, step).String())
		})
	}
}

func TestRulePath_DoesNotShareBackingArray(t *testing.T) {
	a := RulePath(KindMapKey, FieldPathElement{FieldName: "a"})
	b := RulePath(KindMapKey, FieldPathElement{FieldName: "b"})

	if diff := cmp.Diff("map.keys.a", a.String()); diff != "" {
		t.Errorf("unexpected rule path (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("map.keys.b", b.String()); diff != "" {
		t.Errorf("unexpected rule path (-want +got):\n%s", diff)
	}
}

func TestViolations_Err(t *testing.T) {
	var empty Violations
	assert.NoError(t, empty.Err())
	assert.True(t, empty.Valid())

	vs := Violations{
		{RuleID: "string.min_len", Message: "value length must be at least 3 characters", Field: NewFieldPath(FieldPathElement{FieldName: "name"})},
		{RuleID: "required", Message: "value is required", Field: NewFieldPath(FieldPathElement{FieldName: "id"})},
	}
	err := vs.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 violations")
	assert.Contains(t, err.Error(), "name: value length must be at least 3 characters [string.min_len]")

	extracted, ok := FromError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"string.min_len", "required"}, extracted.RuleIDs())
}

func TestViolation_JSONWireShape(t *testing.T) {
	v := Violation{
		RuleID:  "int32.gt",
		Message: "value must be greater than 0",
		ForKey:  true,
		Field: NewFieldPath(FieldPathElement{
			FieldNumber: 2,
			FieldName:   "counts",
			FieldType:   descriptorpb.FieldDescriptorProto_TYPE_MESSAGE,
			KeyType:     descriptorpb.FieldDescriptorProto_TYPE_INT32,
			ValueType:   descriptorpb.FieldDescriptorProto_TYPE_INT32,
		}.WithSubscript(IntKey(-1))),
		Rule: RulePath(KindMapKey, FieldPathElement{FieldNumber: 3, FieldName: "int32"}),
	}

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var decoded Violation
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, v, decoded)
	assert.Contains(t, string(data), `"subscript":{"int_key":-1}`)
	assert.Contains(t, string(data), `"for_key":true`)
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, codes.OK, ToStatus(nil).Code())

	vs := Violations{{
		RuleID:  "string.email",
		Message: "value must be a valid email address",
		Field:   NewFieldPath(FieldPathElement{FieldName: "contact"}, FieldPathElement{FieldName: "email"}),
	}}
	st := ToStatus(vs)
	require.Equal(t, codes.InvalidArgument, st.Code())

	details := st.Details()
	require.Len(t, details, 1)
	badRequest, ok := details[0].(*errdetails.BadRequest)
	require.True(t, ok)
	require.Len(t, badRequest.GetFieldViolations(), 1)
	assert.Equal(t, "contact.email", badRequest.GetFieldViolations()[0].GetField())
	assert.Equal(t, "value must be a valid email address", badRequest.GetFieldViolations()[0].GetDescription())
}
