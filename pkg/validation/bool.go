package validation

import (
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/violation"
)

var boolConstRef = category{name: "bool", number: 13}.ref("const", 1, typeBool)

// BoolValidator checks bool fields
type BoolValidator struct {
	base
	rules BoolRules
}

// NewBool builds a bool validator and runs its consistency check
func NewBool(rules BoolRules, opts ...Option) (*BoolValidator, error) {
	v := newBool(newEnv(opts), rules)
	if err := v.CheckConsistency(); err != nil {
		return nil, err
	}
	return v, nil
}

func newBool(e *env, rules BoolRules) *BoolValidator {
	return &BoolValidator{base: newBase(e, rules.Common), rules: rules}
}

// Validate checks val; nil means the field is absent
func (v *BoolValidator) Validate(fc FieldContext, val *bool) violation.Violations {
	st := newState(v.env, fc.Ancestors)
	if val == nil {
		v.evaluate(st, fc.target(), protoreflect.Value{}, false)
	} else {
		v.evaluate(st, fc.target(), protoreflect.ValueOfBool(*val), true)
	}
	return st.out
}

func (v *BoolValidator) evaluate(st *state, t target, val protoreflect.Value, present bool) {
	b := present && val.Bool()
	if !v.gate(st, t, present, !b) {
		return
	}
	if v.rules.Const != nil {
		if b != *v.rules.Const {
			v.fail(st, t, boolConstRef, "must equal %t", *v.rules.Const)
		}
		return
	}
	v.evalCEL(st, t, b)
}

func (v *BoolValidator) configuredIDs() []string {
	ids := v.commonIDs()
	if v.rules.Const != nil {
		ids = append(ids, boolConstRef.id)
	}
	return ids
}

// CheckConsistency reports const combined with CEL and CEL defects
func (v *BoolValidator) CheckConsistency() error {
	c := &collector{}
	checkConst(c, v.rules.Const != nil, nil, len(v.rules.CEL))
	v.checkCommon(c, false, v.configuredIDs())
	return c.result()
}
