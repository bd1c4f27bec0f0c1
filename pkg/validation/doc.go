// Package validation checks protobuf messages against declarative per-field
// rules.
//
// # Overview
//
// Rules are plain Go structs, one per value category (NumericRules, StringRules,
// BytesRules, EnumRules, TimestampRules, ...), collected per message type in a
// RuleSet. A RuleSet can be written as a literal or loaded from YAML with
// LoadRuleSet.
//
// New binds a RuleSet to a message descriptor and builds one evaluator per
// reachable message type. Every rule combination is checked for consistency
// while building (const next to other rules, overlapping in/not_in lists,
// contradictory bounds, CEL that does not compile or evaluate), and all
// defects are returned together as ConsistencyErrors.
//
// Validate never fails on bad data: rule failures are returned as
// violation.Violations, each carrying the field path and the rule path.
//
// # Evaluation order
//
// For every value: ignore, then required, then const (which short-circuits
// everything else), then the remaining rules independently, then CEL. Lists
// and maps check their counts before their elements.
//
// # Usage Example
//
//	rules := &validation.RuleSet{Messages: map[string]validation.MessageTypeRules{
//		"acme.v1.User": {Fields: map[string]validation.FieldRules{
//			"email": {String: &validation.StringRules{Format: validation.FormatEmail}},
//		}},
//	}}
//	v, err := validation.New((&acmev1.User{}).ProtoReflect().Descriptor(), rules)
//	if err != nil {
//		return err
//	}
//	vs, err := v.Validate(user)
//
// Each per-type validator can also be used on its own:
//
//	sv, err := validation.NewString(validation.StringRules{MinLen: &three})
//	vs := sv.Validate(validation.Field(1, "name", descriptorpb.FieldDescriptorProto_TYPE_STRING), &name)
package validation
