package validation

import (
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/lookup"
	"github.com/platinummonkey/protoguard/pkg/violation"
)

var repeatedCategory = category{name: "repeated", number: 18}

var (
	repeatedMinItemsRef = repeatedCategory.ref("min_items", 1, typeUint64)
	repeatedMaxItemsRef = repeatedCategory.ref("max_items", 2, typeUint64)
	repeatedUniqueRef   = repeatedCategory.ref("unique", 3, typeBool)
)

// valueList is the read side of protoreflect.List
type valueList interface {
	Len() int
	Get(i int) protoreflect.Value
}

type valueSlice []protoreflect.Value

func (s valueSlice) Len() int                     { return len(s) }
func (s valueSlice) Get(i int) protoreflect.Value { return s[i] }

// RepeatedValidator checks list fields and, through the item rules, each
// element
type RepeatedValidator struct {
	base
	rules        RepeatedRules
	items        valueEvaluator
	messageItems bool
	native       func(protoreflect.Value) any
	itemErr      error
}

// NewRepeated builds a validator for a list whose elements are of kind item.
// Item rules on message elements need a descriptor and are only supported
// through New.
func NewRepeated(rules RepeatedRules, item protoreflect.Kind, opts ...Option) (*RepeatedValidator, error) {
	e := newEnv(opts)
	c := &collector{}
	var items valueEvaluator
	if rules.Items != nil {
		checkCategory(c, rules.Items, kindCategory(item), item.String())
		items = scalarEvaluator(e, item, rules.Items, nil)
	}
	v := newRepeated(e, rules, items, isMessageKind(item), kindNative(item))
	v.itemErr = c.result()
	if err := v.CheckConsistency(); err != nil {
		return nil, err
	}
	return v, nil
}

func newRepeated(e *env, rules RepeatedRules, items valueEvaluator, messageItems bool, native func(protoreflect.Value) any) *RepeatedValidator {
	return &RepeatedValidator{
		base:         newBase(e, rules.Common),
		rules:        rules,
		items:        items,
		messageItems: messageItems,
		native:       native,
	}
}

// Validate checks a list of values; an empty list is an absent value
func (v *RepeatedValidator) Validate(fc FieldContext, items []protoreflect.Value) violation.Violations {
	st := newState(v.env, fc.Ancestors)
	v.evaluateList(st, fc.target(), valueSlice(items))
	return st.out
}

func (v *RepeatedValidator) evaluateList(st *state, t target, list valueList) {
	n := list.Len()
	if !v.gateCollection(st, t, n) {
		return
	}

	r := &v.rules
	if r.MinItems != nil && uint64(n) < *r.MinItems {
		v.fail(st, t, repeatedMinItemsRef, "must contain at least %d item(s)", *r.MinItems)
	}
	if r.MaxItems != nil && uint64(n) > *r.MaxItems {
		v.fail(st, t, repeatedMaxItemsRef, "must contain no more than %d item(s)", *r.MaxItems)
	}
	if r.Unique && !v.messageItems && n > 1 {
		seen := lookup.NewSeen[any](n, v.env.seenBudget)
		for i := 0; i < n; i++ {
			if !seen.Insert(uniqueKey(list.Get(i))) {
				v.fail(st, t, repeatedUniqueRef, "repeated value must contain unique items")
				break
			}
		}
	}
	if v.items != nil {
		for i := 0; i < n; i++ {
			v.items.evaluate(st, t.item(violation.KindRepeatedItem, violation.Index(uint64(i))), list.Get(i), true)
		}
	}

	if len(v.checks) > 0 {
		native := make([]any, n)
		for i := range native {
			native[i] = v.native(list.Get(i))
		}
		v.evalCEL(st, t, native)
	}
}

// uniqueKey maps a scalar list element to a comparable key. Floats compare
// with ==, so NaN is never a duplicate and 0 equals -0.
func uniqueKey(val protoreflect.Value) any {
	switch x := val.Interface().(type) {
	case []byte:
		return string(x)
	default:
		return x
	}
}

func (v *RepeatedValidator) configuredIDs() []string {
	r := &v.rules
	ids := v.commonIDs()
	if r.MinItems != nil {
		ids = append(ids, repeatedMinItemsRef.id)
	}
	if r.MaxItems != nil {
		ids = append(ids, repeatedMaxItemsRef.id)
	}
	if r.Unique {
		ids = append(ids, repeatedUniqueRef.id)
	}
	return ids
}

// CheckConsistency reports count and uniqueness defects together with those
// of the item rules
func (v *RepeatedValidator) CheckConsistency() error {
	c := &collector{}
	r := &v.rules

	checkMinMax(c, r.MinItems, r.MaxItems, "min_items", "max_items")
	if r.Unique && v.messageItems {
		c.add(InvalidRule, "unique rule is only allowed for scalar types")
	}
	c.merge("items: ", v.itemErr)
	if v.items != nil {
		c.merge("items: ", v.items.CheckConsistency())
	}

	v.checkCommon(c, []any{}, v.configuredIDs())
	return c.result()
}
