package violation

import (
	"fmt"
	"strings"
)

// Violation is a single rule failure
type Violation struct {
	RuleID  string    `json:"rule_id,omitempty"`
	Message string    `json:"message,omitempty"`
	ForKey  bool      `json:"for_key,omitempty"`
	Field   FieldPath `json:"field"`
	Rule    FieldPath `json:"rule"`
}

// String renders "path: message [rule_id]"
func (v Violation) String() string {
	var sb strings.Builder
	if path := v.Field.String(); path != "" {
		sb.WriteString(path)
		sb.WriteString(": ")
	}
	sb.WriteString(v.Message)
	if v.RuleID != "" {
		sb.WriteString(" [")
		sb.WriteString(v.RuleID)
		sb.WriteString("]")
	}
	return sb.String()
}

// Violations is the result of a validate call
type Violations []Violation

// Valid reports whether there are no violations
func (vs Violations) Valid() bool {
	return len(vs) == 0
}

// RuleIDs lists the rule id of every violation in order
func (vs Violations) RuleIDs() []string {
	ids := make([]string, len(vs))
	for i, v := range vs {
		ids[i] = v.RuleID
	}
	return ids
}

// Err returns nil for an empty list, otherwise a *ValidationError
func (vs Violations) Err() error {
	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Violations: vs}
}

// ValidationError wraps a non-empty list of violations as an error
type ValidationError struct {
	Violations Violations
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("validation error: %s", e.Violations[0])
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("validation error: %d violations", len(e.Violations)))
	for _, v := range e.Violations {
		sb.WriteString("\n - ")
		sb.WriteString(v.String())
	}
	return sb.String()
}
