package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/protoguard/pkg/formats"
	"github.com/platinummonkey/protoguard/pkg/lookup"
	"github.com/platinummonkey/protoguard/pkg/violation"
)

var stringCategory = category{name: "string", number: 14}

// formatCheck describes one well-known format rule
type formatCheck struct {
	ref ruleRef
	// noun completes "must be a valid ..."
	noun string
	// emptyID is the rule id reported for an empty value; empty when the
	// format accepts or does not special-case ""
	emptyID string
	check   func(s string, strict bool) bool
}

func stringFormat(name string, number int32, noun string, empty bool, check func(string, bool) bool) formatCheck {
	f := formatCheck{ref: stringCategory.ref(name, number, typeBool), noun: noun, check: check}
	if empty {
		f.emptyID = f.ref.id + "_empty"
	}
	return f
}

func headerFormat(suffix, noun string, empty bool, check func(string, bool) bool) formatCheck {
	ref := stringCategory.ref("well_known_regex", 24, descriptorpb.FieldDescriptorProto_TYPE_ENUM)
	ref.id += "." + suffix
	f := formatCheck{ref: ref, noun: noun, check: check}
	if empty {
		f.emptyID = ref.id + "_empty"
	}
	return f
}

func ignoreStrict(check func(string) bool) func(string, bool) bool {
	return func(s string, _ bool) bool { return check(s) }
}

func ipCheck(v formats.IPVersion) func(string, bool) bool {
	return func(s string, _ bool) bool { return formats.IsIP(s, v) }
}

func ipWithPrefixLenCheck(v formats.IPVersion) func(string, bool) bool {
	return func(s string, _ bool) bool { return formats.IsIPWithPrefixLen(s, v) }
}

func ipPrefixCheck(v formats.IPVersion) func(string, bool) bool {
	return func(s string, _ bool) bool { return formats.IsIPPrefix(s, v, true) }
}

var stringFormats = map[StringFormat]formatCheck{
	FormatEmail:             stringFormat("email", 12, "email address", true, ignoreStrict(formats.IsEmail)),
	FormatHostname:          stringFormat("hostname", 13, "hostname", true, ignoreStrict(formats.IsHostname)),
	FormatIP:                stringFormat("ip", 14, "IP address", true, ipCheck(formats.AnyIP)),
	FormatIPv4:              stringFormat("ipv4", 15, "IPv4 address", true, ipCheck(formats.IPv4)),
	FormatIPv6:              stringFormat("ipv6", 16, "IPv6 address", true, ipCheck(formats.IPv6)),
	FormatURI:               stringFormat("uri", 17, "URI", true, ignoreStrict(formats.IsURI)),
	FormatURIRef:            stringFormat("uri_ref", 18, "URI Reference", false, ignoreStrict(formats.IsURIRef)),
	FormatAddress:           stringFormat("address", 21, "hostname, or ip address", true, ignoreStrict(formats.IsAddress)),
	FormatUUID:              stringFormat("uuid", 22, "UUID", true, ignoreStrict(formats.IsUUID)),
	FormatTUUID:             stringFormat("tuuid", 33, "trimmed UUID", true, ignoreStrict(formats.IsTUUID)),
	FormatIPWithPrefixLen:   stringFormat("ip_with_prefixlen", 26, "IP address with prefix length", true, ipWithPrefixLenCheck(formats.AnyIP)),
	FormatIPv4WithPrefixLen: stringFormat("ipv4_with_prefixlen", 27, "IPv4 address with prefix length", true, ipWithPrefixLenCheck(formats.IPv4)),
	FormatIPv6WithPrefixLen: stringFormat("ipv6_with_prefixlen", 28, "IPv6 address with prefix length", true, ipWithPrefixLenCheck(formats.IPv6)),
	FormatIPPrefix:          stringFormat("ip_prefix", 29, "IP prefix", true, ipPrefixCheck(formats.AnyIP)),
	FormatIPv4Prefix:        stringFormat("ipv4_prefix", 30, "IPv4 prefix", true, ipPrefixCheck(formats.IPv4)),
	FormatIPv6Prefix:        stringFormat("ipv6_prefix", 31, "IPv6 prefix", true, ipPrefixCheck(formats.IPv6)),
	FormatHostAndPort: stringFormat("host_and_port", 32, "host (hostname or IP address) and port pair", true,
		func(s string, _ bool) bool { return formats.IsHostAndPort(s, true) }),
	FormatHTTPHeaderName:  headerFormat("header_name", "HTTP header name", true, formats.IsHTTPHeaderName),
	FormatHTTPHeaderValue: headerFormat("header_value", "HTTP header value", false, formats.IsHTTPHeaderValue),
}

func (f StringFormat) isHeader() bool {
	return f == FormatHTTPHeaderName || f == FormatHTTPHeaderValue
}

var (
	stringConstRef       = stringCategory.ref("const", 1, typeString)
	stringMinLenRef      = stringCategory.ref("min_len", 2, typeUint64)
	stringMaxLenRef      = stringCategory.ref("max_len", 3, typeUint64)
	stringMinBytesRef    = stringCategory.ref("min_bytes", 4, typeUint64)
	stringMaxBytesRef    = stringCategory.ref("max_bytes", 5, typeUint64)
	stringPatternRef     = stringCategory.ref("pattern", 6, typeString)
	stringPrefixRef      = stringCategory.ref("prefix", 7, typeString)
	stringSuffixRef      = stringCategory.ref("suffix", 8, typeString)
	stringContainsRef    = stringCategory.ref("contains", 9, typeString)
	stringInRef          = stringCategory.ref("in", 10, typeString)
	stringNotInRef       = stringCategory.ref("not_in", 11, typeString)
	stringLenRef         = stringCategory.ref("len", 19, typeUint64)
	stringLenBytesRef    = stringCategory.ref("len_bytes", 20, typeUint64)
	stringNotContainsRef = stringCategory.ref("not_contains", 23, typeString)
)

// StringValidator checks string fields
type StringValidator struct {
	base
	rules      StringRules
	pattern    *regexp.Regexp
	patternErr error
	in         lookup.Set[string]
	notIn      lookup.Set[string]
}

// NewString builds a string validator and runs its consistency check
func NewString(rules StringRules, opts ...Option) (*StringValidator, error) {
	v := newString(newEnv(opts), rules)
	if err := v.CheckConsistency(); err != nil {
		return nil, err
	}
	return v, nil
}

func newString(e *env, rules StringRules) *StringValidator {
	v := &StringValidator{base: newBase(e, rules.Common), rules: rules}
	if rules.Pattern != "" {
		v.pattern, v.patternErr = regexp.Compile(rules.Pattern)
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
func (v *StringValidator) Validate(fc FieldContext, val *string) violation.Violations {
	st := newState(v.env, fc.Ancestors)
	if val == nil {
		v.evaluate(st, fc.target(), protoreflect.Value{}, false)
	} else {
		v.evaluate(st, fc.target(), protoreflect.ValueOfString(*val), true)
	}
	return st.out
}

func (v *StringValidator) evaluate(st *state, t target, val protoreflect.Value, present bool) {
	var s string
	if present {
		s = val.String()
	}
	if !v.gate(st, t, present, s == "") {
		return
	}

	r := &v.rules
	if r.Const != nil {
		if s != *r.Const {
			v.fail(st, t, stringConstRef, "must equal `%s`", *r.Const)
		}
		return
	}

	runes := uint64(utf8.RuneCountInString(s))
	size := uint64(len(s))
	if r.Len != nil && runes != *r.Len {
		v.fail(st, t, stringLenRef, "must be %d characters", *r.Len)
	}
	if r.MinLen != nil && runes < *r.MinLen {
		v.fail(st, t, stringMinLenRef, "must be at least %d characters", *r.MinLen)
	}
	if r.MaxLen != nil && runes > *r.MaxLen {
		v.fail(st, t, stringMaxLenRef, "must be at most %d characters", *r.MaxLen)
	}
	if r.LenBytes != nil && size != *r.LenBytes {
		v.fail(st, t, stringLenBytesRef, "must be %d bytes", *r.LenBytes)
	}
	if r.MinBytes != nil && size < *r.MinBytes {
		v.fail(st, t, stringMinBytesRef, "must be at least %d bytes", *r.MinBytes)
	}
	if r.MaxBytes != nil && size > *r.MaxBytes {
		v.fail(st, t, stringMaxBytesRef, "must be at most %d bytes", *r.MaxBytes)
	}
	if v.pattern != nil && !v.pattern.MatchString(s) {
		v.fail(st, t, stringPatternRef, "does not match regex pattern `%s`", r.Pattern)
	}
	if r.Prefix != "" && !strings.HasPrefix(s, r.Prefix) {
		v.fail(st, t, stringPrefixRef, "does not have prefix `%s`", r.Prefix)
	}
	if r.Suffix != "" && !strings.HasSuffix(s, r.Suffix) {
		v.fail(st, t, stringSuffixRef, "does not have suffix `%s`", r.Suffix)
	}
	if r.Contains != "" && !strings.Contains(s, r.Contains) {
		v.fail(st, t, stringContainsRef, "does not contain substring `%s`", r.Contains)
	}
	if r.NotContains != "" && strings.Contains(s, r.NotContains) {
		v.fail(st, t, stringNotContainsRef, "contains substring `%s`", r.NotContains)
	}
	if v.in != nil && !v.in.Contains(s) {
		v.fail(st, t, stringInRef, "must be in list %s", formatList(r.In))
	}
	if v.notIn != nil && v.notIn.Contains(s) {
		v.fail(st, t, stringNotInRef, "must not be in list %s", formatList(r.NotIn))
	}
	if f, ok := stringFormats[r.Format]; ok {
		strict := r.Strict == nil || *r.Strict
		switch {
		case s == "" && f.emptyID != "":
			id := f.emptyID
			st.add(t, ruleRef{id: id, path: f.ref.path}, v.message(id, "value is empty, which is not a valid "+f.noun))
		case !f.check(s, strict):
			v.fail(st, t, f.ref, "must be a valid %s", f.noun)
		}
	}

	v.evalCEL(st, t, s)
}

func (v *StringValidator) configuredIDs() []string {
	r := &v.rules
	ids := v.commonIDs()
	for _, rule := range []struct {
		set bool
		ref ruleRef
	}{
		{r.Const != nil, stringConstRef},
		{r.Len != nil, stringLenRef},
		{r.MinLen != nil, stringMinLenRef},
		{r.MaxLen != nil, stringMaxLenRef},
		{r.LenBytes != nil, stringLenBytesRef},
		{r.MinBytes != nil, stringMinBytesRef},
		{r.MaxBytes != nil, stringMaxBytesRef},
		{r.Pattern != "", stringPatternRef},
		{r.Prefix != "", stringPrefixRef},
		{r.Suffix != "", stringSuffixRef},
		{r.Contains != "", stringContainsRef},
		{r.NotContains != "", stringNotContainsRef},
		{len(r.In) > 0, stringInRef},
		{len(r.NotIn) > 0, stringNotInRef},
	} {
		if rule.set {
			ids = append(ids, rule.ref.id)
		}
	}
	if f, ok := stringFormats[r.Format]; ok {
		ids = append(ids, f.ref.id)
		if f.emptyID != "" {
			ids = append(ids, f.emptyID)
		}
	}
	return ids
}

// CheckConsistency reports every contradictory rule combination
func (v *StringValidator) CheckConsistency() error {
	c := &collector{}
	r := &v.rules

	others := map[string]bool{
		"len":          r.Len != nil,
		"min_len":      r.MinLen != nil,
		"max_len":      r.MaxLen != nil,
		"len_bytes":    r.LenBytes != nil,
		"min_bytes":    r.MinBytes != nil,
		"max_bytes":    r.MaxBytes != nil,
		"pattern":      r.Pattern != "",
		"prefix":       r.Prefix != "",
		"suffix":       r.Suffix != "",
		"contains":     r.Contains != "",
		"not_contains": r.NotContains != "",
		"in":           len(r.In) > 0,
		"not_in":       len(r.NotIn) > 0,
		"strict":       r.Strict != nil,
	}
	if r.Format != FormatNone {
		others[r.Format.String()] = true
	}
	checkConst(c, r.Const != nil, others, len(r.CEL))

	checkLenTriple(c, r.Len, r.MinLen, r.MaxLen, "len", "min_len", "max_len")
	checkLenTriple(c, r.LenBytes, r.MinBytes, r.MaxBytes, "len_bytes", "min_bytes", "max_bytes")
	if r.MaxLen != nil && r.MaxBytes != nil && *r.MaxBytes < *r.MaxLen {
		c.add(InvalidRule, "max_bytes is less than max_len, making max_len redundant")
	}
	if r.MinLen != nil && r.MinBytes != nil && *r.MinBytes < *r.MinLen {
		c.add(InvalidRule, "min_bytes is less than min_len, making min_bytes redundant")
	}
	for _, sub := range []struct{ name, value string }{
		{"prefix", r.Prefix}, {"suffix", r.Suffix}, {"contains", r.Contains},
	} {
		if sub.value == "" {
			continue
		}
		if n := uint64(utf8.RuneCountInString(sub.value)); r.MaxLen != nil && n > *r.MaxLen {
			c.add(ContradictoryInput, "%s has length %d, exceeding max_len", sub.name, n)
		}
		if n := uint64(len(sub.value)); r.MaxBytes != nil && n > *r.MaxBytes {
			c.add(ContradictoryInput, "%s has %d bytes, exceeding max_bytes", sub.name, n)
		}
	}
	if r.Contains != "" && r.NotContains != "" &&
		(strings.Contains(r.Contains, r.NotContains) || strings.Contains(r.NotContains, r.Contains)) {
		c.add(ContradictoryInput, "contains %q and not_contains %q cannot both hold", r.Contains, r.NotContains)
	}

	if _, ok := stringFormats[r.Format]; !ok && r.Format != FormatNone {
		c.add(InvalidRule, "unknown string format %d", int(r.Format))
	}
	if r.Strict != nil && !r.Format.isHeader() {
		c.add(InvalidRule, "strict should not be set without well_known_regex")
	}
	if r.Format.isHeader() && r.Pattern != "" {
		c.add(InvalidRule, "regex well_known_regex and regex pattern are incompatible")
	}
	if v.patternErr != nil {
		c.addErr(InvalidRule, v.patternErr, "unable to parse regex pattern %s: %v", r.Pattern, v.patternErr)
	}

	checkOverlap(c, v.in, v.notIn)
	v.checkCommon(c, "", v.configuredIDs())
	return c.result()
}
