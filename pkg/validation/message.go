package validation

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/platinummonkey/protoguard/pkg/violation"
)

// fieldChecker validates one field of a message
type fieldChecker interface {
	check(st *state, msg protoreflect.Message)
}

// fieldElement describes fd as a field path element
func fieldElement(fd protoreflect.FieldDescriptor) violation.FieldPathElement {
	elem := violation.FieldPathElement{
		FieldNumber: int32(fd.Number()),
		FieldName:   string(fd.Name()),
		FieldType:   descriptorpb.FieldDescriptorProto_Type(fd.Kind()),
	}
	if fd.IsExtension() {
		elem.FieldName = "[" + string(fd.FullName()) + "]"
	}
	if fd.IsMap() {
		elem.KeyType = descriptorpb.FieldDescriptorProto_Type(fd.MapKey().Kind())
		elem.ValueType = descriptorpb.FieldDescriptorProto_Type(fd.MapValue().Kind())
	}
	return elem
}

// singularField checks a non-collection field. Fields without explicit
// presence are evaluated as their zero value when unset, unless they are
// required.
type singularField struct {
	desc     protoreflect.FieldDescriptor
	elem     violation.FieldPathElement
	eval     valueEvaluator
	implicit bool
}

func (f singularField) check(st *state, msg protoreflect.Message) {
	present := msg.Has(f.desc)
	if !present && f.implicit && !f.eval.isRequired() {
		present = true
	}
	var val protoreflect.Value
	if present {
		val = msg.Get(f.desc)
	}
	f.eval.evaluate(st, target{elem: f.elem}, val, present)
}

type listField struct {
	desc protoreflect.FieldDescriptor
	elem violation.FieldPathElement
	eval *RepeatedValidator
}

func (f listField) check(st *state, msg protoreflect.Message) {
	f.eval.evaluateList(st, target{elem: f.elem}, msg.Get(f.desc).List())
}

type mapField struct {
	desc protoreflect.FieldDescriptor
	elem violation.FieldPathElement
	eval *MapValidator
}

func (f mapField) check(st *state, msg protoreflect.Message) {
	f.eval.evaluateEntries(st, target{elem: f.elem}, mapEntries(msg.Get(f.desc).Map()))
}

// oneofRequired reports a required oneof with no member set
type oneofRequired struct {
	desc protoreflect.OneofDescriptor
	elem violation.FieldPathElement
}

func (o oneofRequired) check(st *state, msg protoreflect.Message) {
	if msg.WhichOneof(o.desc) == nil {
		st.add(target{elem: o.elem}, oneofRequiredRef, "exactly one field is required in oneof")
	}
}

// messageEvaluator holds the checks of one message type. It is shared by
// every field referring to the type, including the type itself.
type messageEvaluator struct {
	base
	desc   protoreflect.MessageDescriptor
	fields []fieldChecker
	oneofs []oneofRequired

	// ownRules is set when the type carries rules of its own; deps are the
	// message types reachable through its fields
	ownRules bool
	deps     []*messageEvaluator
	// trivial types have no rules anywhere below them and are not visited
	trivial bool
}

func (me *messageEvaluator) validate(st *state, msg protoreflect.Message) {
	if st.depth >= st.env.maxDepth {
		st.addAt(maxDepthRef, fmt.Sprintf("exceeds maximum message depth of %d", st.env.maxDepth))
		return
	}
	st.depth++
	defer func() { st.depth-- }()

	for _, f := range me.fields {
		f.check(st, msg)
	}
	for _, o := range me.oneofs {
		o.check(st, msg)
	}
	me.evalMessageCEL(st, msg.Interface())
}

// checkConsistency compiles the message-level CEL rules
func (me *messageEvaluator) checkConsistency() error {
	c := &collector{}
	me.checkCommon(c, dynamicpb.NewMessage(me.desc), nil)
	return c.result()
}

// resolveTrivial marks every type from which no rule is reachable. It
// iterates to a fixpoint so that recursive types resolve.
func resolveTrivial(all []*messageEvaluator) {
	for _, me := range all {
		me.trivial = !me.ownRules
	}
	for changed := true; changed; {
		changed = false
		for _, me := range all {
			if !me.trivial {
				continue
			}
			for _, dep := range me.deps {
				if !dep.trivial {
					me.trivial = false
					changed = true
					break
				}
			}
		}
	}
}

// messageFieldEvaluator checks a field holding a nested message and recurses
// into the message's own rules
type messageFieldEvaluator struct {
	base
	rules  MessageRules
	target *messageEvaluator
}

func newMessageField(e *env, rules MessageRules, target *messageEvaluator) *messageFieldEvaluator {
	return &messageFieldEvaluator{base: newBase(e, rules.Common), rules: rules, target: target}
}

func (m *messageFieldEvaluator) evaluate(st *state, t target, val protoreflect.Value, present bool) {
	if !m.gate(st, t, present, false) {
		return
	}
	msg := val.Message()
	if !m.rules.Skip && !m.target.trivial {
		st.ancestors.Push(t.elem)
		m.target.validate(st, msg)
		st.ancestors.Pop()
	}
	m.evalCEL(st, t, msg.Interface())
}

func (m *messageFieldEvaluator) configuredIDs() []string {
	return m.commonIDs()
}

func (m *messageFieldEvaluator) hasRules() bool {
	return m.common.Required || m.common.Ignore != IgnoreUnspecified || len(m.checks) > 0 || m.rules.Skip
}

// CheckConsistency validates the field-level CEL rules against an empty
// message; the nested type is checked on its own
func (m *messageFieldEvaluator) CheckConsistency() error {
	c := &collector{}
	m.checkCommon(c, dynamicpb.NewMessage(m.target.desc), m.configuredIDs())
	return c.result()
}
