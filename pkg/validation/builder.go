package validation

import (
	"reflect"
	"sort"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/violation"
)

// yamlName returns the yaml key of a struct field
func yamlName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
	return name
}

// setCategories lists the rule categories configured on fr
func setCategories(fr *FieldRules) []string {
	if fr == nil {
		return nil
	}
	rv := reflect.ValueOf(fr).Elem()
	rt := rv.Type()
	var names []string
	for i := 0; i < rt.NumField(); i++ {
		if !rv.Field(i).IsNil() {
			names = append(names, yamlName(rt.Field(i)))
		}
	}
	return names
}

// checkCategory reports rules configured for a category other than want.
// It returns false when the rules cannot be applied.
func checkCategory(c *collector, fr *FieldRules, want, typeName string) bool {
	cats := setCategories(fr)
	switch {
	case len(cats) > 1:
		c.add(InvalidRule, "only one rule category may be set, got %s", strings.Join(cats, ", "))
		return false
	case len(cats) == 0 || cats[0] == want:
		return true
	case cats[0] == "repeated":
		c.add(InvalidRule, "field is not repeated but has repeated rules")
	case cats[0] == "map":
		c.add(InvalidRule, "field is not a map but has map rules")
	default:
		c.add(InvalidRule, "%s should not be defined on a field of type %s", cats[0], typeName)
	}
	return false
}

func isMessageKind(kind protoreflect.Kind) bool {
	return kind == protoreflect.MessageKind || kind == protoreflect.GroupKind
}

// kindCategory returns the rule category that applies to values of kind
func kindCategory(kind protoreflect.Kind) string {
	switch kind {
	case protoreflect.BoolKind:
		return "bool"
	case protoreflect.StringKind:
		return "string"
	case protoreflect.BytesKind:
		return "bytes"
	case protoreflect.EnumKind:
		return "enum"
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return "message"
	}
	if nk, ok := numericKindOf(kind); ok {
		return nk.String()
	}
	return kind.String()
}

// elementCategory is kindCategory refined for well-known message types
func elementCategory(fd protoreflect.FieldDescriptor) string {
	if !isMessageKind(fd.Kind()) {
		return kindCategory(fd.Kind())
	}
	md := fd.Message()
	switch md.FullName() {
	case anyFullName:
		return "any"
	case durationFullName:
		return "duration"
	case timestampFullName:
		return "timestamp"
	case fieldMaskFullName:
		return "field_mask"
	}
	if kind, ok := wrapperKinds[md.FullName()]; ok {
		return kindCategory(kind)
	}
	return "message"
}

func typeLabel(fd protoreflect.FieldDescriptor) string {
	if isMessageKind(fd.Kind()) {
		return string(fd.Message().FullName())
	}
	if fd.Kind() == protoreflect.EnumKind {
		return string(fd.Enum().FullName())
	}
	return fd.Kind().String()
}

// scalarEvaluator builds the evaluator for a non-message kind, or returns nil
// when fr has no rules for it. defined lists the enum numbers for EnumKind.
func scalarEvaluator(e *env, kind protoreflect.Kind, fr *FieldRules, defined []int32) valueEvaluator {
	if fr == nil {
		return nil
	}
	switch kind {
	case protoreflect.FloatKind:
		if fr.Float != nil {
			return newNumeric(e, KindFloat, *fr.Float)
		}
	case protoreflect.DoubleKind:
		if fr.Double != nil {
			return newNumeric(e, KindDouble, *fr.Double)
		}
	case protoreflect.Int32Kind:
		if fr.Int32 != nil {
			return newNumeric(e, KindInt32, *fr.Int32)
		}
	case protoreflect.Int64Kind:
		if fr.Int64 != nil {
			return newNumeric(e, KindInt64, *fr.Int64)
		}
	case protoreflect.Uint32Kind:
		if fr.Uint32 != nil {
			return newNumeric(e, KindUint32, *fr.Uint32)
		}
	case protoreflect.Uint64Kind:
		if fr.Uint64 != nil {
			return newNumeric(e, KindUint64, *fr.Uint64)
		}
	case protoreflect.Sint32Kind:
		if fr.Sint32 != nil {
			return newNumeric(e, KindSint32, *fr.Sint32)
		}
	case protoreflect.Sint64Kind:
		if fr.Sint64 != nil {
			return newNumeric(e, KindSint64, *fr.Sint64)
		}
	case protoreflect.Fixed32Kind:
		if fr.Fixed32 != nil {
			return newNumeric(e, KindFixed32, *fr.Fixed32)
		}
	case protoreflect.Fixed64Kind:
		if fr.Fixed64 != nil {
			return newNumeric(e, KindFixed64, *fr.Fixed64)
		}
	case protoreflect.Sfixed32Kind:
		if fr.Sfixed32 != nil {
			return newNumeric(e, KindSfixed32, *fr.Sfixed32)
		}
	case protoreflect.Sfixed64Kind:
		if fr.Sfixed64 != nil {
			return newNumeric(e, KindSfixed64, *fr.Sfixed64)
		}
	case protoreflect.BoolKind:
		if fr.Bool != nil {
			return newBool(e, *fr.Bool)
		}
	case protoreflect.StringKind:
		if fr.String != nil {
			return newString(e, *fr.String)
		}
	case protoreflect.BytesKind:
		if fr.Bytes != nil {
			return newBytes(e, *fr.Bytes)
		}
	case protoreflect.EnumKind:
		if fr.Enum != nil {
			return newEnum(e, *fr.Enum, defined)
		}
	}
	return nil
}

// binder turns a RuleSet into evaluators for a message type and everything
// reachable from it. Each message type is built once, which also makes
// recursive types terminate.
type binder struct {
	env      *env
	rules    *RuleSet
	messages map[protoreflect.FullName]*messageEvaluator
	order    []*messageEvaluator
	pending  map[*messageEvaluator][]pendingField
	errs     ConsistencyErrors
}

// pendingField is a field checker that only matters if recurse turns out to
// be non-trivial; recurse is nil for checkers with rules of their own
type pendingField struct {
	checker fieldChecker
	recurse *messageEvaluator
}

func newBinder(e *env, rules *RuleSet) *binder {
	return &binder{
		env:      e,
		rules:    rules,
		messages: make(map[protoreflect.FullName]*messageEvaluator),
		pending:  make(map[*messageEvaluator][]pendingField),
	}
}

// absorb records the consistency errors of the rules attached to name
func (b *binder) absorb(name string, err error) {
	if err == nil {
		return
	}
	es, ok := AsConsistencyErrors(err)
	if !ok {
		b.errs = append(b.errs, &ConsistencyError{Kind: InvalidRule, Field: name, Description: err.Error(), Err: err})
		return
	}
	for _, e := range es {
		cp := *e
		if cp.Field == "" {
			cp.Field = name
		}
		b.errs = append(b.errs, &cp)
	}
}

func (b *binder) message(md protoreflect.MessageDescriptor) *messageEvaluator {
	if me, ok := b.messages[md.FullName()]; ok {
		return me
	}
	mr, _ := b.rules.Message(string(md.FullName()))
	me := &messageEvaluator{base: newBase(b.env, Common{CEL: mr.CEL}), desc: md}
	b.messages[md.FullName()] = me
	b.order = append(b.order, me)

	b.checkNames(md, mr)

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		b.field(me, fd, mr.Fields[string(fd.Name())])
	}

	oneofs := md.Oneofs()
	for i := 0; i < oneofs.Len(); i++ {
		od := oneofs.Get(i)
		if od.IsSynthetic() || !mr.Oneofs[string(od.Name())].Required {
			continue
		}
		me.oneofs = append(me.oneofs, oneofRequired{
			desc: od,
			elem: violation.FieldPathElement{FieldName: string(od.Name())},
		})
		me.ownRules = true
	}

	if len(mr.CEL) > 0 {
		me.ownRules = true
		b.absorb(string(md.FullName()), me.checkConsistency())
	}
	return me
}

// checkNames reports rules naming fields or oneofs the message does not have
func (b *binder) checkNames(md protoreflect.MessageDescriptor, mr MessageTypeRules) {
	c := &collector{}
	names := make([]string, 0, len(mr.Fields))
	for name := range mr.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if md.Fields().ByName(protoreflect.Name(name)) == nil {
			c.add(InvalidRule, "message has no field named %q", name)
		}
	}
	names = names[:0]
	for name := range mr.Oneofs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if od := md.Oneofs().ByName(protoreflect.Name(name)); od == nil || od.IsSynthetic() {
			c.add(InvalidRule, "message has no oneof named %q", name)
		}
	}
	b.absorb(string(md.FullName()), c.result())
}

// value builds the evaluator of one value of fd's element type: the field
// itself, a list item, a map key or a map value
func (b *binder) value(c *collector, fd protoreflect.FieldDescriptor, fr *FieldRules) valueEvaluator {
	if fr == nil {
		fr = &FieldRules{}
	}
	if !checkCategory(c, fr, elementCategory(fd), typeLabel(fd)) {
		return nil
	}
	if !isMessageKind(fd.Kind()) {
		var defined []int32
		if fd.Kind() == protoreflect.EnumKind {
			defined = EnumNumbers(fd.Enum())
		}
		return scalarEvaluator(b.env, fd.Kind(), fr, defined)
	}

	md := fd.Message()
	switch md.FullName() {
	case timestampFullName:
		if fr.Timestamp != nil {
			return newTimestamp(b.env, *fr.Timestamp)
		}
		return nil
	case durationFullName:
		if fr.Duration != nil {
			return newDuration(b.env, *fr.Duration)
		}
		return nil
	case anyFullName:
		if fr.Any != nil {
			return newAny(b.env, *fr.Any)
		}
		return nil
	case fieldMaskFullName:
		if fr.FieldMask != nil {
			return newFieldMask(b.env, *fr.FieldMask)
		}
		return nil
	}
	if isWrapper(md) {
		inner := md.Fields().ByNumber(1)
		if inner == nil {
			return nil
		}
		if ev := scalarEvaluator(b.env, inner.Kind(), fr, nil); ev != nil {
			return wrapperEvaluator{inner: ev}
		}
		return nil
	}

	var rules MessageRules
	if fr.Message != nil {
		rules = *fr.Message
	}
	return newMessageField(b.env, rules, b.message(md))
}

// recurseOnly returns the nested type when ev exists purely to descend into
// it, i.e. it is a message field evaluator without rules of its own
func recurseOnly(ev valueEvaluator) *messageEvaluator {
	mf, ok := ev.(*messageFieldEvaluator)
	if !ok || mf.hasRules() {
		return nil
	}
	return mf.target
}

func (b *binder) field(me *messageEvaluator, fd protoreflect.FieldDescriptor, fr FieldRules) {
	name := string(fd.FullName())
	c := &collector{}
	defer func() { b.absorb(name, c.result()) }()

	elem := fieldElement(fd)
	var (
		checker fieldChecker
		nested  valueEvaluator
	)
	switch {
	case fd.IsMap():
		if !checkCategory(c, &fr, "map", "map") {
			return
		}
		rules := MapRules{}
		if fr.Map != nil {
			rules = *fr.Map
		}
		keyFD, valFD := fd.MapKey(), fd.MapValue()
		keys := b.value(c, keyFD, rules.Keys)
		values := b.value(c, valFD, rules.Values)
		if fr.Map == nil && keys == nil && values == nil {
			return
		}
		mv := newMap(b.env, rules, keys, values,
			func(v protoreflect.Value) any { return nativeValue(keyFD, v) },
			func(v protoreflect.Value) any { return nativeValue(valFD, v) })
		b.absorb(name, mv.CheckConsistency())
		checker, nested = mapField{desc: fd, elem: elem, eval: mv}, values

	case fd.IsList():
		if !checkCategory(c, &fr, "repeated", "repeated "+typeLabel(fd)) {
			return
		}
		rules := RepeatedRules{}
		if fr.Repeated != nil {
			rules = *fr.Repeated
		}
		items := b.value(c, fd, rules.Items)
		if fr.Repeated == nil && items == nil {
			return
		}
		rv := newRepeated(b.env, rules, items, isMessageKind(fd.Kind()),
			func(v protoreflect.Value) any { return nativeValue(fd, v) })
		b.absorb(name, rv.CheckConsistency())
		checker, nested = listField{desc: fd, elem: elem, eval: rv}, items

	default:
		ev := b.value(c, fd, &fr)
		if ev == nil {
			return
		}
		b.absorb(name, ev.CheckConsistency())
		checker, nested = singularField{desc: fd, elem: elem, eval: ev, implicit: !fd.HasPresence()}, ev
	}

	if target := nestedTarget(nested); target != nil {
		me.deps = append(me.deps, target)
	}
	p := pendingField{checker: checker}
	if len(setCategories(&fr)) > 0 {
		me.ownRules = true
	} else {
		p.recurse = recurseOnly(nested)
	}
	b.pending[me] = append(b.pending[me], p)
}

// nestedTarget returns the message type ev descends into, if any
func nestedTarget(ev valueEvaluator) *messageEvaluator {
	if mf, ok := ev.(*messageFieldEvaluator); ok {
		return mf.target
	}
	return nil
}

// finish resolves trivial types and keeps only the field checkers that can
// report something
func (b *binder) finish() {
	resolveTrivial(b.order)
	for _, me := range b.order {
		for _, p := range b.pending[me] {
			if p.recurse != nil && p.recurse.trivial {
				continue
			}
			me.fields = append(me.fields, p.checker)
		}
	}
}
