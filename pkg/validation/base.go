package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/celbridge"
	"github.com/platinummonkey/protoguard/pkg/observability"
)

// valueEvaluator is implemented by every validator that checks a single
// value: scalars, well-known types and nested message fields
type valueEvaluator interface {
	evaluate(st *state, t target, val protoreflect.Value, present bool)
	configuredIDs() []string
	isRequired() bool
	CheckConsistency() error
}

var internalErrorRef = ruleRef{id: "internal_error"}

// base carries the Common settings and the compiled CEL checks of one
// validator
type base struct {
	env    *env
	common Common
	checks []*celbridge.Check
}

func newBase(e *env, common Common) base {
	return base{env: e, common: common, checks: celbridge.NewChecks(common.CEL)}
}

// message returns the custom message for id, if any, else def
func (b *base) message(id, def string) string {
	if msg, ok := b.common.ErrorMessages[id]; ok {
		return msg
	}
	return def
}

func (b *base) fail(st *state, t target, ref ruleRef, format string, args ...any) {
	st.add(t, ref, b.message(ref.id, fmt.Sprintf(format, args...)))
}

// gate applies ignore and required. It returns false when nothing else
// should be evaluated.
func (b *base) gate(st *state, t target, present, zero bool) bool {
	switch {
	case b.common.Ignore == IgnoreAlways:
		return false
	case b.common.Ignore == IgnoreIfZeroValue && (!present || zero):
		return false
	case !present:
		if b.common.Required {
			st.add(t, requiredRef, b.message(requiredRef.id, "value is required"))
		}
		return false
	}
	return true
}

// gateCollection is gate for lists and maps. They have no presence, so an
// empty collection is both absent and zero. Ignore wins over required;
// an empty collection that is not required still runs count rules.
func (b *base) gateCollection(st *state, t target, n int) bool {
	if n == 0 && b.common.Required {
		return b.gate(st, t, false, true)
	}
	return b.gate(st, t, true, n == 0)
}

func (b *base) isRequired() bool {
	return b.common.Required
}

// commonIDs lists the rule ids contributed by Common
func (b *base) commonIDs() []string {
	var ids []string
	if b.common.Required {
		ids = append(ids, requiredRef.id)
	}
	for _, c := range b.checks {
		ids = append(ids, c.Rule().ID)
	}
	return ids
}

// checkCommon compiles every CEL rule and runs it against zero, then
// reports unused custom messages
func (b *base) checkCommon(c *collector, zero any, ids []string) {
	if len(b.checks) > 0 {
		compiler, err := b.env.celCompiler()
		for _, check := range b.checks {
			rule := check.Rule()
			if err != nil {
				c.addErr(CelError, err, "rule %q: %v", rule.ID, err)
				continue
			}
			if err := check.Compile(compiler); err != nil {
				c.addErr(CelError, err, "rule %q: %v", rule.ID, err)
				continue
			}
			res := b.runCheck(check, compiler, celbridge.Context{This: zero, Now: time.Unix(0, 0).UTC()})
			if res.Outcome == celbridge.Errored {
				c.addErr(CelError, res.Err, "rule %q fails on the zero value: %v", rule.ID, res.Err)
			}
		}
	}
	checkMessages(c, b.common.ErrorMessages, ids)
}

// runCheck evaluates one check, turning a panic in a host-supplied program
// into an evaluation error
func (b *base) runCheck(check *celbridge.Check, compiler celbridge.Compiler, ctx celbridge.Context) (res celbridge.Result) {
	var perr error
	func() {
		defer observability.RecoverPanic(b.env.logger, "cel rule "+check.Rule().ID, &perr)
		res = check.Evaluate(compiler, ctx)
	}()
	if perr != nil {
		return celbridge.Result{Outcome: celbridge.Errored, Err: perr}
	}
	return res
}

// evalCEL runs the field-level CEL rules against this. Evaluation errors
// become one internal_error violation each and are logged.
func (b *base) evalCEL(st *state, t target, this any) {
	b.evalChecks(st, this, fieldCELRef, func() string { return st.ancestors.PathTo(t.elem).String() },
		func(ref ruleRef, msg string) { st.add(t, ref, msg) })
}

// evalMessageCEL runs message-level CEL rules; violations are located at the
// message itself
func (b *base) evalMessageCEL(st *state, this any) {
	b.evalChecks(st, this, messageCELRef, func() string { return st.ancestors.PathTo().String() },
		func(ref ruleRef, msg string) { st.addAt(ref, msg) })
}

func (b *base) evalChecks(st *state, this any, refFor func(string, int) ruleRef, field func() string, add func(ruleRef, string)) {
	if len(b.checks) == 0 {
		return
	}
	compiler, cerr := b.env.celCompiler()
	for _, check := range b.checks {
		rule := check.Rule()
		ref := refFor(rule.ID, check.Index())

		var res celbridge.Result
		if cerr != nil {
			res = celbridge.Result{Outcome: celbridge.Errored, Err: cerr}
		} else {
			res = b.runCheck(check, compiler, celbridge.Context{This: this, Now: st.now})
		}

		switch res.Outcome {
		case celbridge.Failed:
			add(ref, b.message(rule.ID, celMessage(rule)))
		case celbridge.Errored:
			b.reportCELError(field(), rule, res.Err)
			add(ruleRef{id: internalErrorRef.id, path: ref.path}, internalErrorMessage(rule))
		}
	}
}

func (b *base) reportCELError(field string, rule celbridge.Rule, err error) {
	b.env.logger.WithFields(map[string]interface{}{
		"rule_id":    rule.ID,
		"expression": rule.Expression,
		"field":      field,
	}).WithError(err).Warn("cel evaluation failed")
	b.env.recorder.RecordCELError(rule.ID)
}

func celMessage(rule celbridge.Rule) string {
	if rule.Message != "" {
		return rule.Message
	}
	return fmt.Sprintf("expression %q evaluated to false", rule.Expression)
}

func internalErrorMessage(rule celbridge.Rule) string {
	return fmt.Sprintf("internal error evaluating rule %q", rule.ID)
}

// formatValue renders a rule operand for messages
func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return strconv.Quote(string(x))
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Duration:
		return x.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

// formatList renders a list operand as [a, b, c]
func formatList[T any](items []T) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = formatValue(item)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
