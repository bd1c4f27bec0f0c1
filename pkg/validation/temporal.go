package validation

import (
	"cmp"
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/platinummonkey/protoguard/pkg/lookup"
	"github.com/platinummonkey/protoguard/pkg/violation"
)

// secondsNanos reads a Timestamp or Duration message through reflection so
// that dynamic messages work as well as generated ones
func secondsNanos(m protoreflect.Message) (int64, int32) {
	fields := m.Descriptor().Fields()
	secs, nanos := fields.ByNumber(1), fields.ByNumber(2)
	if secs == nil || nanos == nil {
		return 0, 0
	}
	return m.Get(secs).Int(), int32(m.Get(nanos).Int())
}

func asTime(m protoreflect.Message) time.Time {
	s, n := secondsNanos(m)
	return (&timestamppb.Timestamp{Seconds: s, Nanos: n}).AsTime()
}

func asDuration(m protoreflect.Message) time.Duration {
	s, n := secondsNanos(m)
	return (&durationpb.Duration{Seconds: s, Nanos: n}).AsDuration()
}

var timestampCategory = category{name: "timestamp", number: 22}

var (
	timestampConstRef  = timestampCategory.ref("const", 2, typeMessage)
	timestampLtRef     = timestampCategory.ref("lt", 3, typeMessage)
	timestampLteRef    = timestampCategory.ref("lte", 4, typeMessage)
	timestampGtRef     = timestampCategory.ref("gt", 5, typeMessage)
	timestampGteRef    = timestampCategory.ref("gte", 6, typeMessage)
	timestampLtNowRef  = timestampCategory.ref("lt_now", 7, typeBool)
	timestampGtNowRef  = timestampCategory.ref("gt_now", 8, typeBool)
	timestampWithinRef = timestampCategory.ref("within", 9, typeMessage)
)

// TimestampValidator checks google.protobuf.Timestamp fields
type TimestampValidator struct {
	base
	rules TimestampRules
}

// NewTimestamp builds a timestamp validator and runs its consistency check
func NewTimestamp(rules TimestampRules, opts ...Option) (*TimestampValidator, error) {
	v := newTimestamp(newEnv(opts), rules)
	if err := v.CheckConsistency(); err != nil {
		return nil, err
	}
	return v, nil
}

func newTimestamp(e *env, rules TimestampRules) *TimestampValidator {
	return &TimestampValidator{base: newBase(e, rules.Common), rules: rules}
}

// Validate checks val; nil means the field is absent
func (v *TimestampValidator) Validate(fc FieldContext, val *time.Time) violation.Violations {
	st := newState(v.env, fc.Ancestors)
	if val == nil {
		v.evaluate(st, fc.target(), protoreflect.Value{}, false)
	} else {
		v.evaluate(st, fc.target(), protoreflect.ValueOfMessage(timestamppb.New(*val).ProtoReflect()), true)
	}
	return st.out
}

func (v *TimestampValidator) evaluate(st *state, t target, val protoreflect.Value, present bool) {
	var ts time.Time
	zero := true
	if present {
		s, n := secondsNanos(val.Message())
		ts, zero = asTime(val.Message()), s == 0 && n == 0
	}
	if !v.gate(st, t, present, zero) {
		return
	}

	r := &v.rules
	if r.Const != nil {
		if !ts.Equal(*r.Const) {
			v.fail(st, t, timestampConstRef, "must equal %s", formatValue(*r.Const))
		}
		return
	}
	if r.Lt != nil && !ts.Before(*r.Lt) {
		v.fail(st, t, timestampLtRef, "must be less than %s", formatValue(*r.Lt))
	}
	if r.Lte != nil && ts.After(*r.Lte) {
		v.fail(st, t, timestampLteRef, "must be less than or equal to %s", formatValue(*r.Lte))
	}
	if r.Gt != nil && !ts.After(*r.Gt) {
		v.fail(st, t, timestampGtRef, "must be greater than %s", formatValue(*r.Gt))
	}
	if r.Gte != nil && ts.Before(*r.Gte) {
		v.fail(st, t, timestampGteRef, "must be greater than or equal to %s", formatValue(*r.Gte))
	}
	if r.LtNow && !ts.Before(st.now) {
		v.fail(st, t, timestampLtNowRef, "must be less than now")
	}
	if r.GtNow && !ts.After(st.now) {
		v.fail(st, t, timestampGtNowRef, "must be greater than now")
	}
	if r.Within != nil {
		delta := ts.Sub(st.now)
		if delta < 0 {
			delta = -delta
		}
		if delta > *r.Within {
			v.fail(st, t, timestampWithinRef, "must be within %s of now", formatValue(*r.Within))
		}
	}

	v.evalCEL(st, t, ts)
}

func (v *TimestampValidator) configuredIDs() []string {
	r := &v.rules
	ids := v.commonIDs()
	for _, rule := range []struct {
		set bool
		ref ruleRef
	}{
		{r.Const != nil, timestampConstRef},
		{r.Lt != nil, timestampLtRef},
		{r.Lte != nil, timestampLteRef},
		{r.Gt != nil, timestampGtRef},
		{r.Gte != nil, timestampGteRef},
		{r.LtNow, timestampLtNowRef},
		{r.GtNow, timestampGtNowRef},
		{r.Within != nil, timestampWithinRef},
	} {
		if rule.set {
			ids = append(ids, rule.ref.id)
		}
	}
	return ids
}

// CheckConsistency reports every contradictory rule combination
func (v *TimestampValidator) CheckConsistency() error {
	c := &collector{}
	r := &v.rules

	checkConst(c, r.Const != nil, map[string]bool{
		"lt":     r.Lt != nil,
		"lte":    r.Lte != nil,
		"gt":     r.Gt != nil,
		"gte":    r.Gte != nil,
		"lt_now": r.LtNow,
		"gt_now": r.GtNow,
		"within": r.Within != nil,
	}, len(r.CEL))
	checkBounds(c, r.Lt, r.Lte, r.Gt, r.Gte, time.Time.Compare)

	if r.LtNow && (r.Lt != nil || r.Lte != nil) {
		c.add(ContradictoryInput, "lt_now cannot be used with lt or lte")
	}
	if r.GtNow && (r.Gt != nil || r.Gte != nil) {
		c.add(ContradictoryInput, "gt_now cannot be used with gt or gte")
	}
	if r.LtNow && r.GtNow {
		c.add(ContradictoryInput, "gt_now and lt_now cannot be used together")
	}
	if r.Within != nil && *r.Within <= 0 {
		c.add(InvalidRule, "within duration must be positive")
	}

	v.checkCommon(c, time.Unix(0, 0).UTC(), v.configuredIDs())
	return c.result()
}

var durationCategory = category{name: "duration", number: 21}

var (
	durationConstRef = durationCategory.ref("const", 2, typeMessage)
	durationLtRef    = durationCategory.ref("lt", 3, typeMessage)
	durationLteRef   = durationCategory.ref("lte", 4, typeMessage)
	durationGtRef    = durationCategory.ref("gt", 5, typeMessage)
	durationGteRef   = durationCategory.ref("gte", 6, typeMessage)
	durationInRef    = durationCategory.ref("in", 7, typeMessage)
	durationNotInRef = durationCategory.ref("not_in", 8, typeMessage)
)

// DurationValidator checks google.protobuf.Duration fields
type DurationValidator struct {
	base
	rules DurationRules
	in    lookup.Set[time.Duration]
	notIn lookup.Set[time.Duration]
}

// NewDuration builds a duration validator and runs its consistency check
func NewDuration(rules DurationRules, opts ...Option) (*DurationValidator, error) {
	v := newDuration(newEnv(opts), rules)
	if err := v.CheckConsistency(); err != nil {
		return nil, err
	}
	return v, nil
}

func newDuration(e *env, rules DurationRules) *DurationValidator {
	v := &DurationValidator{base: newBase(e, rules.Common), rules: rules}
	if len(rules.In) > 0 {
		v.in = lookup.NewSorted(rules.In)
	}
	if len(rules.NotIn) > 0 {
		v.notIn = lookup.NewSorted(rules.NotIn)
	}
	return v
}

// Validate checks val; nil means the field is absent
func (v *DurationValidator) Validate(fc FieldContext, val *time.Duration) violation.Violations {
	st := newState(v.env, fc.Ancestors)
	if val == nil {
		v.evaluate(st, fc.target(), protoreflect.Value{}, false)
	} else {
		v.evaluate(st, fc.target(), protoreflect.ValueOfMessage(durationpb.New(*val).ProtoReflect()), true)
	}
	return st.out
}

func (v *DurationValidator) evaluate(st *state, t target, val protoreflect.Value, present bool) {
	var d time.Duration
	if present {
		d = asDuration(val.Message())
	}
	if !v.gate(st, t, present, d == 0) {
		return
	}

	r := &v.rules
	if r.Const != nil {
		if d != *r.Const {
			v.fail(st, t, durationConstRef, "must equal %s", formatValue(*r.Const))
		}
		return
	}
	if r.Lt != nil && d >= *r.Lt {
		v.fail(st, t, durationLtRef, "must be less than %s", formatValue(*r.Lt))
	}
	if r.Lte != nil && d > *r.Lte {
		v.fail(st, t, durationLteRef, "must be less than or equal to %s", formatValue(*r.Lte))
	}
	if r.Gt != nil && d <= *r.Gt {
		v.fail(st, t, durationGtRef, "must be greater than %s", formatValue(*r.Gt))
	}
	if r.Gte != nil && d < *r.Gte {
		v.fail(st, t, durationGteRef, "must be greater than or equal to %s", formatValue(*r.Gte))
	}
	if v.in != nil && !v.in.Contains(d) {
		v.fail(st, t, durationInRef, "must be in list %s", formatList(r.In))
	}
	if v.notIn != nil && v.notIn.Contains(d) {
		v.fail(st, t, durationNotInRef, "must not be in list %s", formatList(r.NotIn))
	}

	v.evalCEL(st, t, d)
}

func (v *DurationValidator) configuredIDs() []string {
	r := &v.rules
	ids := v.commonIDs()
	for _, rule := range []struct {
		set bool
		ref ruleRef
	}{
		{r.Const != nil, durationConstRef},
		{r.Lt != nil, durationLtRef},
		{r.Lte != nil, durationLteRef},
		{r.Gt != nil, durationGtRef},
		{r.Gte != nil, durationGteRef},
		{len(r.In) > 0, durationInRef},
		{len(r.NotIn) > 0, durationNotInRef},
	} {
		if rule.set {
			ids = append(ids, rule.ref.id)
		}
	}
	return ids
}

// CheckConsistency reports every contradictory rule combination
func (v *DurationValidator) CheckConsistency() error {
	c := &collector{}
	r := &v.rules

	checkConst(c, r.Const != nil, map[string]bool{
		"lt":     r.Lt != nil,
		"lte":    r.Lte != nil,
		"gt":     r.Gt != nil,
		"gte":    r.Gte != nil,
		"in":     len(r.In) > 0,
		"not_in": len(r.NotIn) > 0,
	}, len(r.CEL))
	checkBounds(c, r.Lt, r.Lte, r.Gt, r.Gte, cmp.Compare[time.Duration])
	checkOverlap(c, v.in, v.notIn)

	v.checkCommon(c, time.Duration(0), v.configuredIDs())
	return c.result()
}
