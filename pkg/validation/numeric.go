package validation

import (
	"cmp"
	"math"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/protoguard/pkg/lookup"
	"github.com/platinummonkey/protoguard/pkg/violation"
)

// NumericKind names the protobuf numeric type a NumericValidator checks. It
// selects the rule category used in rule ids and paths.
type NumericKind int

const (
	KindFloat NumericKind = iota
	KindDouble
	KindInt32
	KindInt64
	KindUint32
	KindUint64
	KindSint32
	KindSint64
	KindFixed32
	KindFixed64
	KindSfixed32
	KindSfixed64
)

var numericKinds = []struct {
	name   string
	number int32
	typ    violation.FieldType
	kind   protoreflect.Kind
}{
	KindFloat:    {"float", 1, descriptorpb.FieldDescriptorProto_TYPE_FLOAT, protoreflect.FloatKind},
	KindDouble:   {"double", 2, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE, protoreflect.DoubleKind},
	KindInt32:    {"int32", 3, descriptorpb.FieldDescriptorProto_TYPE_INT32, protoreflect.Int32Kind},
	KindInt64:    {"int64", 4, descriptorpb.FieldDescriptorProto_TYPE_INT64, protoreflect.Int64Kind},
	KindUint32:   {"uint32", 5, descriptorpb.FieldDescriptorProto_TYPE_UINT32, protoreflect.Uint32Kind},
	KindUint64:   {"uint64", 6, descriptorpb.FieldDescriptorProto_TYPE_UINT64, protoreflect.Uint64Kind},
	KindSint32:   {"sint32", 7, descriptorpb.FieldDescriptorProto_TYPE_SINT32, protoreflect.Sint32Kind},
	KindSint64:   {"sint64", 8, descriptorpb.FieldDescriptorProto_TYPE_SINT64, protoreflect.Sint64Kind},
	KindFixed32:  {"fixed32", 9, descriptorpb.FieldDescriptorProto_TYPE_FIXED32, protoreflect.Fixed32Kind},
	KindFixed64:  {"fixed64", 10, descriptorpb.FieldDescriptorProto_TYPE_FIXED64, protoreflect.Fixed64Kind},
	KindSfixed32: {"sfixed32", 11, descriptorpb.FieldDescriptorProto_TYPE_SFIXED32, protoreflect.Sfixed32Kind},
	KindSfixed64: {"sfixed64", 12, descriptorpb.FieldDescriptorProto_TYPE_SFIXED64, protoreflect.Sfixed64Kind},
}

func (k NumericKind) String() string {
	if k < 0 || int(k) >= len(numericKinds) {
		return "unknown"
	}
	return numericKinds[k].name
}

func (k NumericKind) category() category {
	return category{name: numericKinds[k].name, number: numericKinds[k].number}
}

func (k NumericKind) isFloat() bool {
	return k == KindFloat || k == KindDouble
}

// numericKindOf maps a protoreflect kind to its NumericKind
func numericKindOf(kind protoreflect.Kind) (NumericKind, bool) {
	for i, nk := range numericKinds {
		if nk.kind == kind {
			return NumericKind(i), true
		}
	}
	return 0, false
}

// kindAccepts reports whether values of kind k are represented by T
func kindAccepts[T Number](k NumericKind) bool {
	var zero T
	switch any(zero).(type) {
	case int32:
		return k == KindInt32 || k == KindSint32 || k == KindSfixed32
	case int64:
		return k == KindInt64 || k == KindSint64 || k == KindSfixed64
	case uint32:
		return k == KindUint32 || k == KindFixed32
	case uint64:
		return k == KindUint64 || k == KindFixed64
	case float32:
		return k == KindFloat
	case float64:
		return k == KindDouble
	}
	return false
}

func isNaN[T Number](x T) bool {
	return x != x
}

// newNumberSet picks the tolerance-aware lookup for floats and the plain
// sorted lookup for integers
func newNumberSet[T Number](items []T, tol lookup.Tolerance) lookup.Set[T] {
	if len(items) == 0 {
		return nil
	}
	switch xs := any(items).(type) {
	case []float32:
		return any(lookup.NewFloats(xs, tol)).(lookup.Set[T])
	case []float64:
		return any(lookup.NewFloats(xs, tol)).(lookup.Set[T])
	default:
		return lookup.NewSorted(items)
	}
}

type numericRefs struct {
	constRef, lt, lte, gt, gte, in, notIn, finite ruleRef
}

// NumericValidator checks one of the protobuf numeric types
type NumericValidator[T Number] struct {
	base
	kind  NumericKind
	rules NumericRules[T]
	in    lookup.Set[T]
	notIn lookup.Set[T]
	refs  numericRefs
}

// NewNumeric builds a validator for kind and runs its consistency check
func NewNumeric[T Number](kind NumericKind, rules NumericRules[T], opts ...Option) (*NumericValidator[T], error) {
	v := newNumeric(newEnv(opts), kind, rules)
	if err := v.CheckConsistency(); err != nil {
		return nil, err
	}
	return v, nil
}

func newNumeric[T Number](e *env, kind NumericKind, rules NumericRules[T]) *NumericValidator[T] {
	v := &NumericValidator[T]{
		base:  newBase(e, rules.Common),
		kind:  kind,
		rules: rules,
		in:    newNumberSet(rules.In, e.tolerance),
		notIn: newNumberSet(rules.NotIn, e.tolerance),
	}
	if kind >= 0 && int(kind) < len(numericKinds) {
		cat, typ := kind.category(), numericKinds[kind].typ
		v.refs = numericRefs{
			constRef: cat.ref("const", 1, typ),
			lt:       cat.ref("lt", 2, typ),
			lte:      cat.ref("lte", 3, typ),
			gt:       cat.ref("gt", 4, typ),
			gte:      cat.ref("gte", 5, typ),
			in:       cat.ref("in", 6, typ),
			notIn:    cat.ref("not_in", 7, typ),
			finite:   cat.ref("finite", 8, typeBool),
		}
	}
	return v
}

// Validate checks val; nil means the field is absent
func (v *NumericValidator[T]) Validate(fc FieldContext, val *T) violation.Violations {
	st := newState(v.env, fc.Ancestors)
	if val == nil {
		v.evaluate(st, fc.target(), protoreflect.Value{}, false)
	} else {
		v.evaluate(st, fc.target(), protoreflect.ValueOf(*val), true)
	}
	return st.out
}

func (v *NumericValidator[T]) equal(a, b T) bool {
	if v.kind.isFloat() {
		return v.env.tolerance.Equal(float64(a), float64(b))
	}
	return a == b
}

func (v *NumericValidator[T]) evaluate(st *state, t target, val protoreflect.Value, present bool) {
	var x T
	if present {
		x = val.Interface().(T)
	}
	if !v.gate(st, t, present, x == 0) {
		return
	}

	r := &v.rules
	nan := isNaN(x)
	if r.Const != nil {
		if nan || !v.equal(x, *r.Const) {
			v.fail(st, t, v.refs.constRef, "must equal %s", formatValue(*r.Const))
		}
		return
	}

	if r.Lt != nil && (nan || !(x < *r.Lt && !v.equal(x, *r.Lt))) {
		v.fail(st, t, v.refs.lt, "must be less than %s", formatValue(*r.Lt))
	}
	if r.Lte != nil && (nan || !(x < *r.Lte || v.equal(x, *r.Lte))) {
		v.fail(st, t, v.refs.lte, "must be less than or equal to %s", formatValue(*r.Lte))
	}
	if r.Gt != nil && (nan || !(x > *r.Gt && !v.equal(x, *r.Gt))) {
		v.fail(st, t, v.refs.gt, "must be greater than %s", formatValue(*r.Gt))
	}
	if r.Gte != nil && (nan || !(x > *r.Gte || v.equal(x, *r.Gte))) {
		v.fail(st, t, v.refs.gte, "must be greater than or equal to %s", formatValue(*r.Gte))
	}
	if v.in != nil && !v.in.Contains(x) {
		v.fail(st, t, v.refs.in, "must be in list %s", formatList(r.In))
	}
	if v.notIn != nil && v.notIn.Contains(x) {
		v.fail(st, t, v.refs.notIn, "must not be in list %s", formatList(r.NotIn))
	}
	if r.Finite && (nan || math.IsInf(float64(x), 0)) {
		v.fail(st, t, v.refs.finite, "must be finite")
	}

	v.evalCEL(st, t, x)
}

func (v *NumericValidator[T]) configuredIDs() []string {
	r := &v.rules
	ids := v.commonIDs()
	for _, rule := range []struct {
		set bool
		ref ruleRef
	}{
		{r.Const != nil, v.refs.constRef},
		{r.Lt != nil, v.refs.lt},
		{r.Lte != nil, v.refs.lte},
		{r.Gt != nil, v.refs.gt},
		{r.Gte != nil, v.refs.gte},
		{len(r.In) > 0, v.refs.in},
		{len(r.NotIn) > 0, v.refs.notIn},
		{r.Finite, v.refs.finite},
	} {
		if rule.set {
			ids = append(ids, rule.ref.id)
		}
	}
	return ids
}

// CheckConsistency reports every contradictory rule combination
func (v *NumericValidator[T]) CheckConsistency() error {
	c := &collector{}
	r := &v.rules

	if v.kind < 0 || int(v.kind) >= len(numericKinds) || !kindAccepts[T](v.kind) {
		c.add(InvalidRule, "%s rules cannot be represented by %T", v.kind, *new(T))
	}
	checkConst(c, r.Const != nil, map[string]bool{
		"lt":     r.Lt != nil,
		"lte":    r.Lte != nil,
		"gt":     r.Gt != nil,
		"gte":    r.Gte != nil,
		"in":     len(r.In) > 0,
		"not_in": len(r.NotIn) > 0,
		"finite": r.Finite,
	}, len(r.CEL))
	checkBounds(c, r.Lt, r.Lte, r.Gt, r.Gte, cmp.Compare[T])
	checkOverlap(c, v.in, v.notIn)

	if r.Finite && !v.kind.isFloat() {
		c.add(InvalidRule, "finite only applies to float and double")
	}
	for _, b := range []struct {
		name string
		val  *T
	}{{"const", r.Const}, {"lt", r.Lt}, {"lte", r.Lte}, {"gt", r.Gt}, {"gte", r.Gte}} {
		if b.val != nil && isNaN(*b.val) {
			c.add(InvalidRule, "%s cannot be NaN", b.name)
		}
	}

	v.checkCommon(c, T(0), v.configuredIDs())
	return c.result()
}
