package rules

import (
	"fmt"
	"strings"

	"github.com/platinummonkey/protoguard/pkg/linter"
	"github.com/platinummonkey/protoguard/pkg/schema"
)

// EnumZeroValueRule wants the zero value of every enum to be an explicit
// <ENUM>_UNSPECIFIED placeholder
type EnumZeroValueRule struct {
	BaseRule
}

// NewEnumZeroValueRule creates a new enum zero value rule
func NewEnumZeroValueRule() *EnumZeroValueRule {
	return &EnumZeroValueRule{
		BaseRule: BaseRule{
			RuleName:        "enum-zero-value",
			RuleCategory:    linter.CategoryStructure,
			RuleSeverity:    linter.SeverityInfo,
			RuleDescription: "The zero value of an enum should end in _UNSPECIFIED",
		},
	}
}

// Check inspects the value numbered zero of each enum
func (r *EnumZeroValueRule) Check(s *schema.Schema, ctx *linter.LintContext) []linter.Violation {
	violations := make([]linter.Violation, 0)
	for _, enum := range s.Enums() {
		for _, value := range enum.Values {
			if value.Number != 0 {
				continue
			}
			if !strings.HasSuffix(value.Name, "_UNSPECIFIED") {
				violations = append(violations, r.violation(enum.File().Path, enum.FullName()+"."+value.Name,
					"Enum zero value '"+value.Name+"' should end in _UNSPECIFIED",
					toUpperSnakeCase(enum.Name)+"_UNSPECIFIED"))
			}
			break
		}
	}
	return violations
}

// MessageDepthRule bounds how deeply messages nest
type MessageDepthRule struct {
	BaseRule
}

// NewMessageDepthRule creates a new message depth rule
func NewMessageDepthRule() *MessageDepthRule {
	return &MessageDepthRule{
		BaseRule: BaseRule{
			RuleName:        "message-depth",
			RuleCategory:    linter.CategoryStructure,
			RuleSeverity:    linter.SeverityWarning,
			RuleDescription: "Messages must not nest deeper than structure.max_message_depth",
		},
	}
}

// Check reports each message sitting deeper than the limit; a file-level
// message has depth 1
func (r *MessageDepthRule) Check(s *schema.Schema, ctx *linter.LintContext) []linter.Violation {
	violations := make([]linter.Violation, 0)
	limit := ctx.Config.Structure.MaxMessageDepth
	if limit <= 0 {
		return violations
	}
	for _, msg := range s.Messages() {
		depth := 1
		for p := msg.Parent(); p != nil; p = p.Parent() {
			depth++
		}
		if depth > limit {
			violations = append(violations, r.violation(msg.File().Path, msg.FullName(),
				fmt.Sprintf("Message '%s' is nested %d deep, limit is %d", msg.Name, depth, limit), ""))
		}
	}
	return violations
}

// FieldCountRule bounds the number of fields in a message
type FieldCountRule struct {
	BaseRule
}

// NewFieldCountRule creates a new field count rule
func NewFieldCountRule() *FieldCountRule {
	return &FieldCountRule{
		BaseRule: BaseRule{
			RuleName:        "field-count",
			RuleCategory:    linter.CategoryStructure,
			RuleSeverity:    linter.SeverityWarning,
			RuleDescription: "Messages must not declare more than structure.max_field_count fields",
		},
	}
}

// Check counts fields including oneof members
func (r *FieldCountRule) Check(s *schema.Schema, ctx *linter.LintContext) []linter.Violation {
	violations := make([]linter.Violation, 0)
	limit := ctx.Config.Structure.MaxFieldCount
	if limit <= 0 {
		return violations
	}
	for _, msg := range s.Messages() {
		if n := len(msg.Fields()); n > limit {
			violations = append(violations, r.violation(msg.File().Path, msg.FullName(),
				fmt.Sprintf("Message '%s' has %d fields, limit is %d", msg.Name, n, limit), ""))
		}
	}
	return violations
}
