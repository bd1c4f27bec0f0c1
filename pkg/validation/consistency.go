package validation

import (
	"cmp"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/platinummonkey/protoguard/pkg/lookup"
)

// ConsistencyKind classifies a self-contradictory rule configuration
type ConsistencyKind int

const (
	// ConstWithOtherRules: const is combined with another rule
	ConstWithOtherRules ConsistencyKind = iota
	// OverlappingLists: in and not_in share values
	OverlappingLists
	// CelError: a CEL rule does not compile or fails on the zero value
	CelError
	// ContradictoryInput: two rules cannot be satisfied together
	ContradictoryInput
	// UnusedCustomMessages: error_messages names a rule that is not set
	UnusedCustomMessages
	// InvalidRule: a rule is malformed or does not fit the field
	InvalidRule
)

var consistencyKindNames = []string{
	"ConstWithOtherRules",
	"OverlappingLists",
	"CelError",
	"ContradictoryInput",
	"UnusedCustomMessages",
	"InvalidRule",
}

func (k ConsistencyKind) String() string {
	if k < 0 || int(k) >= len(consistencyKindNames) {
		return "Unknown"
	}
	return consistencyKindNames[k]
}

// ConsistencyError is one defect found by a consistency check
type ConsistencyError struct {
	Kind ConsistencyKind
	// Field is the full name of the field, oneof or message the rules belong
	// to; empty for validators built outside a message
	Field       string
	Description string
	// Values lists the offending entries for OverlappingLists and
	// UnusedCustomMessages
	Values []string
	// Err is the underlying CEL error for CelError
	Err error
}

func (e *ConsistencyError) Error() string {
	var sb strings.Builder
	if e.Field != "" {
		sb.WriteString(e.Field)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())
	sb.WriteString(": ")
	sb.WriteString(e.Description)
	return sb.String()
}

func (e *ConsistencyError) Unwrap() error {
	return e.Err
}

// ConsistencyErrors aggregates every defect of a validator or message tree
type ConsistencyErrors []*ConsistencyError

func (es ConsistencyErrors) Error() string {
	if len(es) == 1 {
		return "inconsistent rules: " + es[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "inconsistent rules: %d errors", len(es))
	for _, e := range es {
		sb.WriteString("\n - ")
		sb.WriteString(e.Error())
	}
	return sb.String()
}

// Err returns nil when es is empty
func (es ConsistencyErrors) Err() error {
	if len(es) == 0 {
		return nil
	}
	return es
}

// Kinds lists the kind of every error in order
func (es ConsistencyErrors) Kinds() []ConsistencyKind {
	kinds := make([]ConsistencyKind, len(es))
	for i, e := range es {
		kinds[i] = e.Kind
	}
	return kinds
}

// AsConsistencyErrors extracts the aggregated errors from err
func AsConsistencyErrors(err error) (ConsistencyErrors, bool) {
	var es ConsistencyErrors
	if errors.As(err, &es) {
		return es, true
	}
	return nil, false
}

// collector accumulates consistency errors without short-circuiting
type collector struct {
	errs ConsistencyErrors
}

func (c *collector) add(kind ConsistencyKind, format string, args ...any) {
	c.errs = append(c.errs, &ConsistencyError{Kind: kind, Description: fmt.Sprintf(format, args...)})
}

func (c *collector) addErr(kind ConsistencyKind, err error, format string, args ...any) {
	c.errs = append(c.errs, &ConsistencyError{Kind: kind, Description: fmt.Sprintf(format, args...), Err: err})
}

func (c *collector) addValues(kind ConsistencyKind, values []string, format string, args ...any) {
	c.errs = append(c.errs, &ConsistencyError{Kind: kind, Description: fmt.Sprintf(format, args...), Values: values})
}

func (c *collector) result() error {
	return c.errs.Err()
}

// checkConst reports const combined with any of the named rules that are set
func checkConst(c *collector, constSet bool, others map[string]bool, celCount int) {
	if !constSet {
		return
	}
	var names []string
	for name, set := range others {
		if set {
			names = append(names, name)
		}
	}
	if celCount > 0 {
		names = append(names, "cel")
	}
	if len(names) == 0 {
		return
	}
	sort.Strings(names)
	c.add(ConstWithOtherRules, "const cannot be used with other rules: %s", strings.Join(names, ", "))
}

// checkBounds applies the cross bound rules shared by numbers, timestamps
// and durations. The strict/non-strict asymmetry of the last check is
// intended.
func checkBounds[T any](c *collector, lt, lte, gt, gte *T, compare func(a, b T) int) {
	if lt != nil && lte != nil {
		c.add(ContradictoryInput, "Lt and Lte cannot be used together")
	}
	if gt != nil && gte != nil {
		c.add(ContradictoryInput, "Gt and Gte cannot be used together")
	}
	if lt != nil && gt != nil && compare(*lt, *gt) <= 0 {
		c.add(ContradictoryInput, "Lt cannot be smaller than or equal to Gt")
	}
	if lt != nil && gte != nil && compare(*lt, *gte) <= 0 {
		c.add(ContradictoryInput, "Lt cannot be smaller than or equal to Gte")
	}
	if lte != nil && gt != nil && compare(*lte, *gt) <= 0 {
		c.add(ContradictoryInput, "Lte cannot be smaller than or equal to Gt")
	}
	if lte != nil && gte != nil && compare(*lte, *gte) < 0 {
		c.add(ContradictoryInput, "Lte cannot be smaller than Gte")
	}
}

// checkOverlap reports every value of in that not_in also contains
func checkOverlap[T any](c *collector, in, notIn lookup.Set[T]) {
	if in == nil || notIn == nil || in.Len() == 0 || notIn.Len() == 0 {
		return
	}
	overlap := lookup.Overlap(in, notIn)
	if len(overlap) == 0 {
		return
	}
	values := make([]string, len(overlap))
	for i, v := range overlap {
		values[i] = formatValue(v)
	}
	c.addValues(OverlappingLists, values, "in and not_in overlap on %s", strings.Join(quoteAll(values), ", "))
}

// checkLenTriple applies the exact/min/max length rules of one dimension
func checkLenTriple(c *collector, exact, minimum, maximum *uint64, exactName, minName, maxName string) {
	if exact != nil && minimum != nil {
		c.add(ContradictoryInput, "%s cannot be used with %s", exactName, minName)
	}
	if exact != nil && maximum != nil {
		c.add(ContradictoryInput, "%s cannot be used with %s", exactName, maxName)
	}
	checkMinMax(c, minimum, maximum, minName, maxName)
}

func checkMinMax[T cmp.Ordered](c *collector, minimum, maximum *T, minName, maxName string) {
	if minimum != nil && maximum != nil && *minimum > *maximum {
		c.add(ContradictoryInput, "%s cannot be greater than %s", minName, maxName)
	}
}

// checkMessages reports error_messages keys that no configured rule emits
func checkMessages(c *collector, custom map[string]string, ids []string) {
	if len(custom) == 0 {
		return
	}
	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}
	var unused []string
	for id := range custom {
		if _, ok := known[id]; !ok {
			unused = append(unused, id)
		}
	}
	if len(unused) == 0 {
		return
	}
	sort.Strings(unused)
	c.addValues(UnusedCustomMessages, unused, "custom messages for rules that are not set: %s", strings.Join(unused, ", "))
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}

// merge appends the errors of a nested validator, prefixing their
// descriptions
func (c *collector) merge(prefix string, err error) {
	if err == nil {
		return
	}
	es, ok := AsConsistencyErrors(err)
	if !ok {
		c.addErr(InvalidRule, err, "%s%v", prefix, err)
		return
	}
	for _, e := range es {
		cp := *e
		cp.Description = prefix + cp.Description
		c.errs = append(c.errs, &cp)
	}
}
