package celbridge

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrCompile wraps expression parse and type-check failures
	ErrCompile = errors.New("cel compile error")
	// ErrEval wraps runtime evaluation failures
	ErrEval = errors.New("cel evaluation error")
	// ErrNonBool is returned when an expression does not produce a bool
	ErrNonBool = errors.New("cel expression did not evaluate to bool")
)

// Context is the activation passed to a compiled predicate
type Context struct {
	This any
	Now  time.Time
}

// Program is a compiled predicate
type Program interface {
	Eval(ctx Context) (bool, error)
}

// Compiler turns an expression into a Program
type Compiler interface {
	Compile(expr string) (Program, error)
}

// Rule is a custom rule expressed in CEL
type Rule struct {
	ID         string `yaml:"id" json:"id"`
	Message    string `yaml:"message" json:"message"`
	Expression string `yaml:"expression" json:"expression"`
}

// Outcome classifies the evaluation of a Check
type Outcome int

const (
	Passed Outcome = iota
	Failed
	Errored
)

func (o Outcome) String() string {
	return []string{"passed", "failed", "errored"}[o]
}

// Result is the outcome of evaluating a Check against one value
type Result struct {
	Outcome Outcome
	Err     error
}

// Check is a Rule together with its lazily compiled program. The program is
// compiled at most once and then shared.
type Check struct {
	rule  Rule
	index int

	once sync.Once
	prog Program
	err  error
}

// NewCheck wraps rule; index is its position among the rules of the same
// owner and is used for the rule path subscript
func NewCheck(rule Rule, index int) *Check {
	return &Check{rule: rule, index: index}
}

// Rule returns the wrapped rule
func (c *Check) Rule() Rule { return c.rule }

// Index returns the rule position among its siblings
func (c *Check) Index() int { return c.index }

// Compile compiles the expression on first use and returns the memoized
// compile error, if any
func (c *Check) Compile(compiler Compiler) error {
	c.once.Do(func() {
		if compiler == nil {
			c.err = fmt.Errorf("%w: no compiler configured for rule %q", ErrCompile, c.rule.ID)
			return
		}
		c.prog, c.err = compiler.Compile(c.rule.Expression)
		if c.err != nil && !errors.Is(c.err, ErrCompile) {
			c.err = fmt.Errorf("%w: %w", ErrCompile, c.err)
		}
	})
	return c.err
}

// Evaluate runs the predicate. Compile errors surface as Errored.
func (c *Check) Evaluate(compiler Compiler, ctx Context) Result {
	if err := c.Compile(compiler); err != nil {
		return Result{Outcome: Errored, Err: err}
	}
	ok, err := c.prog.Eval(ctx)
	switch {
	case err != nil:
		return Result{Outcome: Errored, Err: err}
	case ok:
		return Result{Outcome: Passed}
	default:
		return Result{Outcome: Failed}
	}
}

// NewChecks wraps each rule in a Check
func NewChecks(rules []Rule) []*Check {
	if len(rules) == 0 {
		return nil
	}
	checks := make([]*Check, len(rules))
	for i, r := range rules {
		checks[i] = NewCheck(r, i)
	}
	return checks
}
