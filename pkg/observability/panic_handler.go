package observability

import (
	"fmt"
	"runtime/debug"
)

// ErrPanic is wrapped by errors produced from recovered panics
var ErrPanic = fmt.Errorf("panic recovered")

// RecoverPanic recovers from a panic, logs it and, when errp is non-nil,
// stores an error describing it. It must be called directly by defer:
//
//	func evaluate() (err error) {
//	    defer observability.RecoverPanic(logger, "cel evaluation", &err)
//	    // ... code that might panic
//	}
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, context string, errp *error) {
	if r := recover(); r != nil {
		if logger != nil {
			logger.WithField("panic", fmt.Sprint(r)).
				WithField("stack", string(debug.Stack())).
				WithField("context", context).
				Error("PANIC recovered")
		}
		if errp != nil {
			*errp = fmt.Errorf("%w in %s: %v", ErrPanic, context, r)
		}
	}
}
