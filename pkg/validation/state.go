package validation

import (
	"time"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/protoguard/pkg/violation"
)

// FieldContext locates a value handed to a typed Validate call
type FieldContext struct {
	// Element describes the field holding the value
	Element violation.FieldPathElement
	// Kind tells whether the value is the field itself or a collection item
	Kind violation.ElementKind
	// Ancestors are the enclosing elements, outermost first
	Ancestors []violation.FieldPathElement
}

// Field returns a context for a top-level field
func Field(number int32, name string, typ violation.FieldType) FieldContext {
	return FieldContext{Element: violation.FieldPathElement{
		FieldNumber: number,
		FieldName:   name,
		FieldType:   typ,
	}}
}

func (fc FieldContext) target() target {
	return target{elem: fc.Element, kind: fc.Kind}
}

// target is the value currently under evaluation
type target struct {
	elem violation.FieldPathElement
	kind violation.ElementKind
}

func (t target) item(kind violation.ElementKind, sub violation.Subscript) target {
	return target{elem: t.elem.WithSubscript(sub), kind: kind}
}

// state is the per-call scratch space of one validation
type state struct {
	env       *env
	ancestors violation.Ancestors
	out       violation.Violations
	now       time.Time
	depth     int
}

func newState(e *env, ancestors []violation.FieldPathElement) *state {
	st := &state{env: e, now: e.now()}
	for _, a := range ancestors {
		st.ancestors.Push(a)
	}
	return st
}

func (st *state) add(t target, ref ruleRef, message string) {
	st.out = append(st.out, violation.Violation{
		RuleID:  ref.id,
		Message: message,
		ForKey:  t.kind == violation.KindMapKey,
		Field:   st.ancestors.PathTo(t.elem),
		Rule:    violation.RulePath(t.kind, ref.path...),
	})
}

// addAt reports a violation located at the enclosing message itself
func (st *state) addAt(ref ruleRef, message string) {
	st.out = append(st.out, violation.Violation{
		RuleID:  ref.id,
		Message: message,
		Field:   st.ancestors.PathTo(),
		Rule:    violation.NewFieldPath(ref.path...),
	})
}

// ruleRef identifies one rule: its id and its path inside the rule tree
type ruleRef struct {
	id   string
	path []violation.FieldPathElement
}

const (
	typeMessage = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	typeBool    = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	typeUint64  = descriptorpb.FieldDescriptorProto_TYPE_UINT64
	typeString  = descriptorpb.FieldDescriptorProto_TYPE_STRING
	typeBytes   = descriptorpb.FieldDescriptorProto_TYPE_BYTES
	typeInt32   = descriptorpb.FieldDescriptorProto_TYPE_INT32
)

// category is one rule family of FieldRules, e.g. string(14)
type category struct {
	name   string
	number int32
}

func (c category) ref(name string, number int32, typ violation.FieldType) ruleRef {
	return ruleRef{
		id: c.name + "." + name,
		path: []violation.FieldPathElement{
			{FieldNumber: c.number, FieldName: c.name, FieldType: typeMessage},
			{FieldNumber: number, FieldName: name, FieldType: typ},
		},
	}
}

var (
	requiredRef = ruleRef{
		id:   "required",
		path: []violation.FieldPathElement{{FieldNumber: 25, FieldName: "required", FieldType: typeBool}},
	}
	oneofRequiredRef = ruleRef{
		id:   "required",
		path: []violation.FieldPathElement{{FieldNumber: 1, FieldName: "required", FieldType: typeBool}},
	}
	maxDepthRef = ruleRef{
		id:   "message.max_depth",
		path: []violation.FieldPathElement{{FieldNumber: 0, FieldName: "max_depth", FieldType: typeInt32}},
	}
)

// fieldCELRef addresses the i-th field-level CEL rule, cel(23)[i]
func fieldCELRef(id string, i int) ruleRef {
	return ruleRef{id: id, path: []violation.FieldPathElement{
		violation.FieldPathElement{FieldNumber: 23, FieldName: "cel", FieldType: typeMessage}.
			WithSubscript(violation.Index(uint64(i))),
	}}
}

// messageCELRef addresses the i-th message-level CEL rule, cel(3)[i]
func messageCELRef(id string, i int) ruleRef {
	return ruleRef{id: id, path: []violation.FieldPathElement{
		violation.FieldPathElement{FieldNumber: 3, FieldName: "cel", FieldType: typeMessage}.
			WithSubscript(violation.Index(uint64(i))),
	}}
}
