package validation

import (
	"bytes"
	"regexp"
	"unicode/utf8"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/formats"
	"github.com/platinummonkey/protoguard/pkg/lookup"
	"github.com/platinummonkey/protoguard/pkg/violation"
)

var bytesCategory = category{name: "bytes", number: 15}

var (
	bytesConstRef    = bytesCategory.ref("const", 1, typeBytes)
	bytesMinLenRef   = bytesCategory.ref("min_len", 2, typeUint64)
	bytesMaxLenRef   = bytesCategory.ref("max_len", 3, typeUint64)
	bytesPatternRef  = bytesCategory.ref("pattern", 4, typeString)
	bytesPrefixRef   = bytesCategory.ref("prefix", 5, typeBytes)
	bytesSuffixRef   = bytesCategory.ref("suffix", 6, typeBytes)
	bytesContainsRef = bytesCategory.ref("contains", 7, typeBytes)
	bytesInRef       = bytesCategory.ref("in", 8, typeBytes)
	bytesNotInRef    = bytesCategory.ref("not_in", 9, typeBytes)
	bytesLenRef      = bytesCategory.ref("len", 13, typeUint64)
)

type bytesFormatCheck struct {
	ref     ruleRef
	noun    string
	version formats.IPVersion
}

var bytesFormats = map[BytesFormat]bytesFormatCheck{
	BytesFormatIP:   {bytesCategory.ref("ip", 10, typeBool), "IP address", formats.AnyIP},
	BytesFormatIPv4: {bytesCategory.ref("ipv4", 11, typeBool), "IPv4 address", formats.IPv4},
	BytesFormatIPv6: {bytesCategory.ref("ipv6", 12, typeBool), "IPv6 address", formats.IPv6},
}

// BytesValidator checks bytes fields
type BytesValidator struct {
	base
	rules      BytesRules
	pattern    *regexp.Regexp
	patternErr error
	in         lookup.Set[string]
	notIn      lookup.Set[string]
}

// NewBytes builds a bytes validator and runs its consistency check
func NewBytes(rules BytesRules, opts ...Option) (*BytesValidator, error) {
	v := newBytes(newEnv(opts), rules)
	if err := v.CheckConsistency(); err != nil {
		return nil, err
	}
	return v, nil
}

func newBytes(e *env, rules BytesRules) *BytesValidator {
	v := &BytesValidator{base: newBase(e, rules.Common), rules: rules}
	if rules.Pattern != "" {
		v.pattern, v.patternErr = regexp.Compile(rules.Pattern)
	}
	v.in = bytesSet(rules.In)
	v.notIn = bytesSet(rules.NotIn)
	return v
}

func bytesSet(items [][]byte) lookup.Set[string] {
	if len(items) == 0 {
		return nil
	}
	keys := make([]string, len(items))
	for i, b := range items {
		keys[i] = string(b)
	}
	return lookup.NewSorted(keys)
}

// Validate checks val; nil means the field is absent
func (v *BytesValidator) Validate(fc FieldContext, val []byte) violation.Violations {
	st := newState(v.env, fc.Ancestors)
	if val == nil {
		v.evaluate(st, fc.target(), protoreflect.Value{}, false)
	} else {
		v.evaluate(st, fc.target(), protoreflect.ValueOfBytes(val), true)
	}
	return st.out
}

func (v *BytesValidator) evaluate(st *state, t target, val protoreflect.Value, present bool) {
	var b []byte
	if present {
		b = val.Bytes()
	}
	if !v.gate(st, t, present, len(b) == 0) {
		return
	}

	r := &v.rules
	if r.Const != nil {
		if !bytes.Equal(b, r.Const) {
			v.fail(st, t, bytesConstRef, "must equal %s", formatValue(r.Const))
		}
		return
	}

	size := uint64(len(b))
	if r.Len != nil && size != *r.Len {
		v.fail(st, t, bytesLenRef, "must be %d bytes", *r.Len)
	}
	if r.MinLen != nil && size < *r.MinLen {
		v.fail(st, t, bytesMinLenRef, "must be at least %d bytes", *r.MinLen)
	}
	if r.MaxLen != nil && size > *r.MaxLen {
		v.fail(st, t, bytesMaxLenRef, "must be at most %d bytes", *r.MaxLen)
	}
	if v.pattern != nil {
		switch {
		case !utf8.Valid(b):
			v.fail(st, t, bytesPatternRef, "must be valid UTF-8 to apply regex pattern `%s`", r.Pattern)
		case !v.pattern.Match(b):
			v.fail(st, t, bytesPatternRef, "does not match regex pattern `%s`", r.Pattern)
		}
	}
	if len(r.Prefix) > 0 && !bytes.HasPrefix(b, r.Prefix) {
		v.fail(st, t, bytesPrefixRef, "does not have prefix %s", formatValue(r.Prefix))
	}
	if len(r.Suffix) > 0 && !bytes.HasSuffix(b, r.Suffix) {
		v.fail(st, t, bytesSuffixRef, "does not have suffix %s", formatValue(r.Suffix))
	}
	if len(r.Contains) > 0 && !bytes.Contains(b, r.Contains) {
		v.fail(st, t, bytesContainsRef, "does not contain %s", formatValue(r.Contains))
	}
	if v.in != nil && !v.in.Contains(string(b)) {
		v.fail(st, t, bytesInRef, "must be in list %s", formatList(r.In))
	}
	if v.notIn != nil && v.notIn.Contains(string(b)) {
		v.fail(st, t, bytesNotInRef, "must not be in list %s", formatList(r.NotIn))
	}
	if f, ok := bytesFormats[r.Format]; ok {
		switch {
		case len(b) == 0:
			id := f.ref.id + "_empty"
			st.add(t, ruleRef{id: id, path: f.ref.path}, v.message(id, "value is empty, which is not a valid "+f.noun))
		case !formats.IsIPBytes(b, f.version):
			v.fail(st, t, f.ref, "must be a valid %s", f.noun)
		}
	}

	v.evalCEL(st, t, b)
}

func (v *BytesValidator) configuredIDs() []string {
	r := &v.rules
	ids := v.commonIDs()
	for _, rule := range []struct {
		set bool
		ref ruleRef
	}{
		{r.Const != nil, bytesConstRef},
		{r.Len != nil, bytesLenRef},
		{r.MinLen != nil, bytesMinLenRef},
		{r.MaxLen != nil, bytesMaxLenRef},
		{r.Pattern != "", bytesPatternRef},
		{len(r.Prefix) > 0, bytesPrefixRef},
		{len(r.Suffix) > 0, bytesSuffixRef},
		{len(r.Contains) > 0, bytesContainsRef},
		{len(r.In) > 0, bytesInRef},
		{len(r.NotIn) > 0, bytesNotInRef},
	} {
		if rule.set {
			ids = append(ids, rule.ref.id)
		}
	}
	if f, ok := bytesFormats[r.Format]; ok {
		ids = append(ids, f.ref.id, f.ref.id+"_empty")
	}
	return ids
}

// CheckConsistency reports every contradictory rule combination
func (v *BytesValidator) CheckConsistency() error {
	c := &collector{}
	r := &v.rules

	others := map[string]bool{
		"len":      r.Len != nil,
		"min_len":  r.MinLen != nil,
		"max_len":  r.MaxLen != nil,
		"pattern":  r.Pattern != "",
		"prefix":   len(r.Prefix) > 0,
		"suffix":   len(r.Suffix) > 0,
		"contains": len(r.Contains) > 0,
		"in":       len(r.In) > 0,
		"not_in":   len(r.NotIn) > 0,
	}
	if r.Format != BytesFormatNone {
		others[r.Format.String()] = true
	}
	checkConst(c, r.Const != nil, others, len(r.CEL))
	checkLenTriple(c, r.Len, r.MinLen, r.MaxLen, "len", "min_len", "max_len")

	for _, sub := range []struct {
		name  string
		value []byte
	}{{"prefix", r.Prefix}, {"suffix", r.Suffix}, {"contains", r.Contains}} {
		if n := uint64(len(sub.value)); r.MaxLen != nil && n > *r.MaxLen {
			c.add(ContradictoryInput, "%s has length %d, exceeding max_len", sub.name, n)
		}
	}
	if _, ok := bytesFormats[r.Format]; !ok && r.Format != BytesFormatNone {
		c.add(InvalidRule, "unknown bytes format %d", int(r.Format))
	}
	if v.patternErr != nil {
		c.addErr(InvalidRule, v.patternErr, "unable to parse regex pattern %s: %v", r.Pattern, v.patternErr)
	}

	checkOverlap(c, v.in, v.notIn)
	v.checkCommon(c, []byte{}, v.configuredIDs())
	return c.result()
}
