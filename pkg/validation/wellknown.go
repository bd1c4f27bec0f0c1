package validation

import (
	"slices"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/fieldmaskpb"

	"github.com/platinummonkey/protoguard/pkg/lookup"
	"github.com/platinummonkey/protoguard/pkg/violation"
)

// Well-known message types with dedicated rule categories
const (
	anyFullName       protoreflect.FullName = "google.protobuf.Any"
	durationFullName  protoreflect.FullName = "google.protobuf.Duration"
	timestampFullName protoreflect.FullName = "google.protobuf.Timestamp"
	fieldMaskFullName protoreflect.FullName = "google.protobuf.FieldMask"
)

// wrapperKinds maps each google.protobuf wrapper to the kind it wraps
var wrapperKinds = map[protoreflect.FullName]protoreflect.Kind{
	"google.protobuf.DoubleValue": protoreflect.DoubleKind,
	"google.protobuf.FloatValue":  protoreflect.FloatKind,
	"google.protobuf.Int64Value":  protoreflect.Int64Kind,
	"google.protobuf.UInt64Value": protoreflect.Uint64Kind,
	"google.protobuf.Int32Value":  protoreflect.Int32Kind,
	"google.protobuf.UInt32Value": protoreflect.Uint32Kind,
	"google.protobuf.BoolValue":   protoreflect.BoolKind,
	"google.protobuf.StringValue": protoreflect.StringKind,
	"google.protobuf.BytesValue":  protoreflect.BytesKind,
}

func isWrapper(md protoreflect.MessageDescriptor) bool {
	_, ok := wrapperKinds[md.FullName()]
	return ok
}

// wrapperEvaluator unwraps google.protobuf.*Value and applies the scalar
// rules of the wrapped kind. An unset wrapper is an absent value.
type wrapperEvaluator struct {
	inner valueEvaluator
}

func (w wrapperEvaluator) evaluate(st *state, t target, val protoreflect.Value, present bool) {
	if !present {
		w.inner.evaluate(st, t, protoreflect.Value{}, false)
		return
	}
	msg := val.Message()
	fd := msg.Descriptor().Fields().ByNumber(1)
	if fd == nil {
		w.inner.evaluate(st, t, protoreflect.Value{}, false)
		return
	}
	w.inner.evaluate(st, t, msg.Get(fd), true)
}

func (w wrapperEvaluator) configuredIDs() []string { return w.inner.configuredIDs() }

func (w wrapperEvaluator) isRequired() bool { return w.inner.isRequired() }

func (w wrapperEvaluator) CheckConsistency() error { return w.inner.CheckConsistency() }

var anyCategory = category{name: "any", number: 20}

var (
	anyInRef    = anyCategory.ref("in", 2, typeString)
	anyNotInRef = anyCategory.ref("not_in", 3, typeString)
)

// AnyValidator checks the type URL of google.protobuf.Any fields
type AnyValidator struct {
	base
	rules AnyRules
	in    lookup.Set[string]
	notIn lookup.Set[string]
}

// NewAny builds an Any validator and runs its consistency check
func NewAny(rules AnyRules, opts ...Option) (*AnyValidator, error) {
	v := newAny(newEnv(opts), rules)
	if err := v.CheckConsistency(); err != nil {
		return nil, err
	}
	return v, nil
}

func newAny(e *env, rules AnyRules) *AnyValidator {
	v := &AnyValidator{base: newBase(e, rules.Common), rules: rules}
	if len(rules.In) > 0 {
		v.in = lookup.NewSorted(rules.In)
	}
	if len(rules.NotIn) > 0 {
		v.notIn = lookup.NewSorted(rules.NotIn)
	}
	return v
}

// Validate checks val; nil means the field is absent
func (v *AnyValidator) Validate(fc FieldContext, val *anypb.Any) violation.Violations {
	st := newState(v.env, fc.Ancestors)
	if val == nil {
		v.evaluate(st, fc.target(), protoreflect.Value{}, false)
	} else {
		v.evaluate(st, fc.target(), protoreflect.ValueOfMessage(val.ProtoReflect()), true)
	}
	return st.out
}

func (v *AnyValidator) evaluate(st *state, t target, val protoreflect.Value, present bool) {
	var typeURL string
	zero := true
	if present {
		msg := val.Message()
		fields := msg.Descriptor().Fields()
		if fd := fields.ByNumber(1); fd != nil {
			typeURL = msg.Get(fd).String()
		}
		zero = typeURL == ""
		if fd := fields.ByNumber(2); fd != nil && len(msg.Get(fd).Bytes()) > 0 {
			zero = false
		}
	}
	if !v.gate(st, t, present, zero) {
		return
	}
	if v.in != nil && !v.in.Contains(typeURL) {
		v.fail(st, t, anyInRef, "type URL must be in the allow list")
	}
	if v.notIn != nil && v.notIn.Contains(typeURL) {
		v.fail(st, t, anyNotInRef, "type URL must not be in the block list")
	}
	if present {
		v.evalCEL(st, t, val.Message().Interface())
	} else {
		v.evalCEL(st, t, &anypb.Any{})
	}
}

func (v *AnyValidator) configuredIDs() []string {
	ids := v.commonIDs()
	if len(v.rules.In) > 0 {
		ids = append(ids, anyInRef.id)
	}
	if len(v.rules.NotIn) > 0 {
		ids = append(ids, anyNotInRef.id)
	}
	return ids
}

// CheckConsistency reports overlapping lists and CEL defects
func (v *AnyValidator) CheckConsistency() error {
	c := &collector{}
	checkOverlap(c, v.in, v.notIn)
	v.checkCommon(c, &anypb.Any{}, v.configuredIDs())
	return c.result()
}

var fieldMaskCategory = category{name: "field_mask", number: 28}

var (
	fieldMaskConstRef = fieldMaskCategory.ref("const", 1, typeMessage)
	fieldMaskInRef    = fieldMaskCategory.ref("in", 2, typeString)
	fieldMaskNotInRef = fieldMaskCategory.ref("not_in", 3, typeString)
)

// FieldMaskValidator checks google.protobuf.FieldMask fields
type FieldMaskValidator struct {
	base
	rules FieldMaskRules
	in    lookup.Set[string]
	notIn lookup.Set[string]
}

// NewFieldMask builds a field mask validator and runs its consistency check
func NewFieldMask(rules FieldMaskRules, opts ...Option) (*FieldMaskValidator, error) {
	v := newFieldMask(newEnv(opts), rules)
	if err := v.CheckConsistency(); err != nil {
		return nil, err
	}
	return v, nil
}

func newFieldMask(e *env, rules FieldMaskRules) *FieldMaskValidator {
	v := &FieldMaskValidator{base: newBase(e, rules.Common), rules: rules}
	if len(rules.In) > 0 {
		v.in = lookup.NewSorted(rules.In)
	}
	if len(rules.NotIn) > 0 {
		v.notIn = lookup.NewSorted(rules.NotIn)
	}
	return v
}

// Validate checks val; nil means the field is absent
func (v *FieldMaskValidator) Validate(fc FieldContext, val *fieldmaskpb.FieldMask) violation.Violations {
	st := newState(v.env, fc.Ancestors)
	if val == nil {
		v.evaluate(st, fc.target(), protoreflect.Value{}, false)
	} else {
		v.evaluate(st, fc.target(), protoreflect.ValueOfMessage(val.ProtoReflect()), true)
	}
	return st.out
}

func maskPaths(msg protoreflect.Message) []string {
	fd := msg.Descriptor().Fields().ByNumber(1)
	if fd == nil || !fd.IsList() {
		return nil
	}
	list := msg.Get(fd).List()
	paths := make([]string, list.Len())
	for i := range paths {
		paths[i] = list.Get(i).String()
	}
	return paths
}

// coveredBy reports whether path equals an entry of set or lies below one
func coveredBy(path string, set lookup.Set[string]) bool {
	for {
		if set.Contains(path) {
			return true
		}
		i := strings.LastIndexByte(path, '.')
		if i < 0 {
			return false
		}
		path = path[:i]
	}
}

func (v *FieldMaskValidator) evaluate(st *state, t target, val protoreflect.Value, present bool) {
	var paths []string
	if present {
		paths = maskPaths(val.Message())
	}
	if !v.gate(st, t, present, len(paths) == 0) {
		return
	}

	r := &v.rules
	if r.Const != nil {
		if !slices.Equal(paths, r.Const) {
			v.fail(st, t, fieldMaskConstRef, "must equal paths %s", formatList(r.Const))
		}
		return
	}
	if v.in != nil {
		for _, p := range paths {
			if !coveredBy(p, v.in) {
				v.fail(st, t, fieldMaskInRef, "must only contain paths in %s", formatList(r.In))
				break
			}
		}
	}
	if v.notIn != nil {
		for _, p := range paths {
			if coveredBy(p, v.notIn) {
				v.fail(st, t, fieldMaskNotInRef, "must not contain any paths in %s", formatList(r.NotIn))
				break
			}
		}
	}

	v.evalCEL(st, t, &fieldmaskpb.FieldMask{Paths: paths})
}

func (v *FieldMaskValidator) configuredIDs() []string {
	r := &v.rules
	ids := v.commonIDs()
	if r.Const != nil {
		ids = append(ids, fieldMaskConstRef.id)
	}
	if len(r.In) > 0 {
		ids = append(ids, fieldMaskInRef.id)
	}
	if len(r.NotIn) > 0 {
		ids = append(ids, fieldMaskNotInRef.id)
	}
	return ids
}

// CheckConsistency reports every contradictory rule combination
func (v *FieldMaskValidator) CheckConsistency() error {
	c := &collector{}
	r := &v.rules
	checkConst(c, r.Const != nil, map[string]bool{
		"in":     len(r.In) > 0,
		"not_in": len(r.NotIn) > 0,
	}, len(r.CEL))
	checkOverlap(c, v.in, v.notIn)
	v.checkCommon(c, &fieldmaskpb.FieldMask{}, v.configuredIDs())
	return c.result()
}
