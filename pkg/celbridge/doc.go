// Package celbridge adapts CEL (github.com/google/cel-go) into boolean
// predicates over a typed value.
//
// # Overview
//
// Expressions see two variables: `this`, the value under validation, and
// `now`, the timestamp captured at the start of the validate call. An
// expression must evaluate to a bool; any other result is an evaluation
// error rather than a truthy/falsy coercion.
//
// Each static rule is wrapped in a Check, which compiles its expression once
// and then shares the compiled program across all validations:
//
//	Uncompiled -> Compiled -> {Passed | Failed | Errored}
//
// Compilation failures are reported while validators are built. Evaluation
// failures are reported as an Errored result and never panic.
//
// # Usage Example
//
//	engine, err := celbridge.NewEngine(celbridge.WithCacheSize(256))
//	check := celbridge.NewCheck(celbridge.Rule{
//		ID:         "name.short",
//		Message:    "name must be shorter than 10 characters",
//		Expression: "size(this) < 10",
//	}, 0)
//	if err := check.Compile(engine); err != nil {
//		// schema construction error
//	}
//	result := check.Evaluate(engine, celbridge.Context{This: "gopher", Now: time.Now()})
//
// The engine also registers string helpers mirroring the dedicated format
// checkers: isEmail, isHostname, isIp, isUri and isUriRef.
package celbridge
