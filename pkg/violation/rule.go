package violation

import "google.golang.org/protobuf/types/descriptorpb"

// ElementKind tells whether a value is a plain field or an element of a
// collection field
type ElementKind int

const (
	KindField ElementKind = iota
	KindMapKey
	KindMapValue
	KindRepeatedItem
)

func (k ElementKind) String() string {
	return []string{"field", "map_key", "map_value", "repeated_item"}[k]
}

const messageType = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE

// Rule path prefixes for values that live inside a collection. Field numbers
// follow the buf.validate FieldRules layout.
var (
	mapKeysPrefix = []FieldPathElement{
		{FieldNumber: 19, FieldName: "map", FieldType: messageType},
		{FieldNumber: 4, FieldName: "keys", FieldType: messageType},
	}
	mapValuesPrefix = []FieldPathElement{
		{FieldNumber: 19, FieldName: "map", FieldType: messageType},
		{FieldNumber: 5, FieldName: "values", FieldType: messageType},
	}
	repeatedItemsPrefix = []FieldPathElement{
		{FieldNumber: 18, FieldName: "repeated", FieldType: messageType},
		{FieldNumber: 4, FieldName: "items", FieldType: messageType},
	}
)

// RulePrefix returns the synthetic rule path prefix for kind
func RulePrefix(kind ElementKind) []FieldPathElement {
	switch kind {
	case KindMapKey:
		return mapKeysPrefix
	case KindMapValue:
		return mapValuesPrefix
	case KindRepeatedItem:
		return repeatedItemsPrefix
	default:
		return nil
	}
}

// RulePath builds a rule path for kind followed by steps
func RulePath(kind ElementKind, steps ...FieldPathElement) FieldPath {
	return NewFieldPath(RulePrefix(kind)...).Append(steps...)
}
