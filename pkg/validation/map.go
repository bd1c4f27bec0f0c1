package validation

import (
	"cmp"
	"slices"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/violation"
)

var mapCategory = category{name: "map", number: 19}

var (
	mapMinPairsRef = mapCategory.ref("min_pairs", 1, typeUint64)
	mapMaxPairsRef = mapCategory.ref("max_pairs", 2, typeUint64)
)

// MapEntry is one key/value pair handed to MapValidator.Validate
type MapEntry struct {
	Key   protoreflect.MapKey
	Value protoreflect.Value
}

// mapEntries collects the entries of m in key order
func mapEntries(m protoreflect.Map) []MapEntry {
	entries := make([]MapEntry, 0, m.Len())
	m.Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
		entries = append(entries, MapEntry{Key: k, Value: v})
		return true
	})
	sortEntries(entries)
	return entries
}

func sortEntries(entries []MapEntry) {
	slices.SortFunc(entries, func(a, b MapEntry) int {
		return compareMapKeys(a.Key, b.Key)
	})
}

func compareMapKeys(a, b protoreflect.MapKey) int {
	switch x := a.Interface().(type) {
	case bool:
		y := b.Bool()
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case int32, int64:
		return cmp.Compare(a.Int(), b.Int())
	case uint32, uint64:
		return cmp.Compare(a.Uint(), b.Uint())
	default:
		return cmp.Compare(a.String(), b.String())
	}
}

// keySubscript addresses one map entry in a field path
func keySubscript(k protoreflect.MapKey) violation.Subscript {
	switch x := k.Interface().(type) {
	case bool:
		return violation.BoolKey(x)
	case int32:
		return violation.IntKey(int64(x))
	case int64:
		return violation.IntKey(x)
	case uint32:
		return violation.UintKey(uint64(x))
	case uint64:
		return violation.UintKey(x)
	default:
		return violation.StringKey(k.String())
	}
}

// MapValidator checks map fields and, through the key and value rules, each
// entry
type MapValidator struct {
	base
	rules       MapRules
	keys        valueEvaluator
	values      valueEvaluator
	keyNative   func(protoreflect.Value) any
	valueNative func(protoreflect.Value) any
	nestedErr   error
}

// NewMap builds a validator for a map with the given key and value kinds.
// Value rules on message values are only supported through New.
func NewMap(rules MapRules, key, value protoreflect.Kind, opts ...Option) (*MapValidator, error) {
	e := newEnv(opts)
	c := &collector{}
	var keys, values valueEvaluator
	if rules.Keys != nil {
		checkCategory(c, rules.Keys, kindCategory(key), key.String())
		keys = scalarEvaluator(e, key, rules.Keys, nil)
	}
	if rules.Values != nil {
		checkCategory(c, rules.Values, kindCategory(value), value.String())
		values = scalarEvaluator(e, value, rules.Values, nil)
	}
	v := newMap(e, rules, keys, values, kindNative(key), kindNative(value))
	v.nestedErr = c.result()
	if err := v.CheckConsistency(); err != nil {
		return nil, err
	}
	return v, nil
}

func newMap(e *env, rules MapRules, keys, values valueEvaluator, keyNative, valueNative func(protoreflect.Value) any) *MapValidator {
	return &MapValidator{
		base:        newBase(e, rules.Common),
		rules:       rules,
		keys:        keys,
		values:      values,
		keyNative:   keyNative,
		valueNative: valueNative,
	}
}

// Validate checks the entries of a map in key order; an empty map is an
// absent value
func (v *MapValidator) Validate(fc FieldContext, entries []MapEntry) violation.Violations {
	sorted := slices.Clone(entries)
	sortEntries(sorted)
	st := newState(v.env, fc.Ancestors)
	v.evaluateEntries(st, fc.target(), sorted)
	return st.out
}

func (v *MapValidator) evaluateEntries(st *state, t target, entries []MapEntry) {
	n := len(entries)
	if !v.gateCollection(st, t, n) {
		return
	}

	r := &v.rules
	if r.MinPairs != nil && uint64(n) < *r.MinPairs {
		v.fail(st, t, mapMinPairsRef, "map must be at least %d entries", *r.MinPairs)
	}
	if r.MaxPairs != nil && uint64(n) > *r.MaxPairs {
		v.fail(st, t, mapMaxPairsRef, "map must be at most %d entries", *r.MaxPairs)
	}
	if v.keys != nil || v.values != nil {
		for _, entry := range entries {
			sub := keySubscript(entry.Key)
			if v.keys != nil {
				v.keys.evaluate(st, t.item(violation.KindMapKey, sub), entry.Key.Value(), true)
			}
			if v.values != nil {
				v.values.evaluate(st, t.item(violation.KindMapValue, sub), entry.Value, true)
			}
		}
	}

	if len(v.checks) > 0 {
		native := make(map[any]any, n)
		for _, entry := range entries {
			native[v.keyNative(entry.Key.Value())] = v.valueNative(entry.Value)
		}
		v.evalCEL(st, t, native)
	}
}

func (v *MapValidator) configuredIDs() []string {
	ids := v.commonIDs()
	if v.rules.MinPairs != nil {
		ids = append(ids, mapMinPairsRef.id)
	}
	if v.rules.MaxPairs != nil {
		ids = append(ids, mapMaxPairsRef.id)
	}
	return ids
}

// CheckConsistency reports count defects together with those of the key and
// value rules
func (v *MapValidator) CheckConsistency() error {
	c := &collector{}
	checkMinMax(c, v.rules.MinPairs, v.rules.MaxPairs, "min_pairs", "max_pairs")
	c.merge("", v.nestedErr)
	if v.keys != nil {
		c.merge("keys: ", v.keys.CheckConsistency())
	}
	if v.values != nil {
		c.merge("values: ", v.values.CheckConsistency())
	}
	v.checkCommon(c, map[any]any{}, v.configuredIDs())
	return c.result()
}
