package validation

import (
	"strconv"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/lookup"
	"github.com/platinummonkey/protoguard/pkg/violation"
)

var enumCategory = category{name: "enum", number: 16}

var (
	enumConstRef       = enumCategory.ref("const", 1, typeInt32)
	enumDefinedOnlyRef = enumCategory.ref("defined_only", 2, typeBool)
	enumInRef          = enumCategory.ref("in", 3, typeInt32)
	enumNotInRef       = enumCategory.ref("not_in", 4, typeInt32)
)

// EnumNumbers lists the numbers defined by ed
func EnumNumbers(ed protoreflect.EnumDescriptor) []int32 {
	values := ed.Values()
	out := make([]int32, values.Len())
	for i := range out {
		out[i] = int32(values.Get(i).Number())
	}
	return out
}

// EnumValidator checks enum fields by value number
type EnumValidator struct {
	base
	rules   EnumRules
	defined *lookup.Sorted[int32]
	in      lookup.Set[int32]
	notIn   lookup.Set[int32]
}

// NewEnum builds an enum validator. defined lists the numbers of the enum
// type; it may be nil when the definition is not known, in which case
// defined_only cannot be used.
func NewEnum(rules EnumRules, defined []int32, opts ...Option) (*EnumValidator, error) {
	v := newEnum(newEnv(opts), rules, defined)
	if err := v.CheckConsistency(); err != nil {
		return nil, err
	}
	return v, nil
}

func newEnum(e *env, rules EnumRules, defined []int32) *EnumValidator {
	v := &EnumValidator{base: newBase(e, rules.Common), rules: rules}
	if defined != nil {
		v.defined = lookup.NewSorted(defined)
	}
	if len(rules.In) > 0 {
		v.in = lookup.NewSorted(rules.In)
	}
	if len(rules.NotIn) > 0 {
		v.notIn = lookup.NewSorted(rules.NotIn)
	}
	return v
}

// Validate checks val; nil means the field is absent
func (v *EnumValidator) Validate(fc FieldContext, val *int32) violation.Violations {
	st := newState(v.env, fc.Ancestors)
	if val == nil {
		v.evaluate(st, fc.target(), protoreflect.Value{}, false)
	} else {
		v.evaluate(st, fc.target(), protoreflect.ValueOfEnum(protoreflect.EnumNumber(*val)), true)
	}
	return st.out
}

func (v *EnumValidator) evaluate(st *state, t target, val protoreflect.Value, present bool) {
	var n int32
	if present {
		n = int32(val.Enum())
	}
	if !v.gate(st, t, present, n == 0) {
		return
	}

	r := &v.rules
	if r.Const != nil {
		if n != *r.Const {
			v.fail(st, t, enumConstRef, "must equal %d", *r.Const)
		}
		return
	}
	if r.DefinedOnly && v.defined != nil && !v.defined.Contains(n) {
		v.fail(st, t, enumDefinedOnlyRef, "must be one of the defined enum values")
	}
	if v.in != nil && !v.in.Contains(n) {
		v.fail(st, t, enumInRef, "must be in list %s", formatList(r.In))
	}
	if v.notIn != nil && v.notIn.Contains(n) {
		v.fail(st, t, enumNotInRef, "must not be in list %s", formatList(r.NotIn))
	}

	v.evalCEL(st, t, int64(n))
}

func (v *EnumValidator) configuredIDs() []string {
	r := &v.rules
	ids := v.commonIDs()
	for _, rule := range []struct {
		set bool
		ref ruleRef
	}{
		{r.Const != nil, enumConstRef},
		{r.DefinedOnly, enumDefinedOnlyRef},
		{len(r.In) > 0, enumInRef},
		{len(r.NotIn) > 0, enumNotInRef},
	} {
		if rule.set {
			ids = append(ids, rule.ref.id)
		}
	}
	return ids
}

// CheckConsistency reports every contradictory rule combination, including
// list entries that name no defined value
func (v *EnumValidator) CheckConsistency() error {
	c := &collector{}
	r := &v.rules

	checkConst(c, r.Const != nil, map[string]bool{
		"defined_only": r.DefinedOnly,
		"in":           len(r.In) > 0,
		"not_in":       len(r.NotIn) > 0,
	}, len(r.CEL))
	checkOverlap(c, v.in, v.notIn)

	if r.DefinedOnly && v.defined == nil {
		c.add(InvalidRule, "defined_only requires the enum definition")
	}
	if v.defined != nil {
		var undefined []string
		for _, n := range r.In {
			if !v.defined.Contains(n) {
				undefined = append(undefined, strconv.Itoa(int(n)))
			}
		}
		if len(undefined) > 0 {
			c.addValues(InvalidRule, undefined, "in names values that are not defined: %s", strings.Join(undefined, ", "))
		}
		if r.DefinedOnly {
			for _, n := range r.NotIn {
				if !v.defined.Contains(n) {
					c.add(InvalidRule, "value (%d) is rejected by defined_only and does not need to be in not_in", n)
				}
			}
		}
	}

	v.checkCommon(c, int64(0), v.configuredIDs())
	return c.result()
}
