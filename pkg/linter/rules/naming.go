package rules

import (
	"github.com/platinummonkey/protoguard/pkg/linter"
	"github.com/platinummonkey/protoguard/pkg/schema"
)

// MessageNamingRule checks that message names follow PascalCase
type MessageNamingRule struct {
	BaseRule
}

// NewMessageNamingRule creates a new message naming rule
func NewMessageNamingRule() *MessageNamingRule {
	return &MessageNamingRule{
		BaseRule: BaseRule{
			RuleName:        "message-naming",
			RuleCategory:    linter.CategoryNaming,
			RuleSeverity:    linter.SeverityWarning,
			RuleDescription: "Message names must use PascalCase",
		},
	}
}

// Check validates message names, nested ones included
func (r *MessageNamingRule) Check(s *schema.Schema, ctx *linter.LintContext) []linter.Violation {
	violations := make([]linter.Violation, 0)
	for _, msg := range s.Messages() {
		if !isPascalCase(msg.Name) {
			violations = append(violations, r.violation(msg.File().Path, msg.FullName(),
				"Message name '"+msg.Name+"' should be PascalCase", toPascalCase(msg.Name)))
		}
	}
	return violations
}

// FieldNamingRule checks that field names follow snake_case
type FieldNamingRule struct {
	BaseRule
}

// NewFieldNamingRule creates a new field naming rule
func NewFieldNamingRule() *FieldNamingRule {
	return &FieldNamingRule{
		BaseRule: BaseRule{
			RuleName:        "field-naming",
			RuleCategory:    linter.CategoryNaming,
			RuleSeverity:    linter.SeverityWarning,
			RuleDescription: "Field names must use snake_case",
		},
	}
}

// Check validates field names, oneof members included
func (r *FieldNamingRule) Check(s *schema.Schema, ctx *linter.LintContext) []linter.Violation {
	violations := make([]linter.Violation, 0)
	for _, msg := range s.Messages() {
		for _, field := range msg.Fields() {
			if !isSnakeCase(field.Name) {
				violations = append(violations, r.violation(msg.File().Path, field.FullName(),
					"Field name '"+field.Name+"' should be snake_case", toSnakeCase(field.Name)))
			}
		}
	}
	return violations
}

// ServiceNamingRule checks that service names follow PascalCase
type ServiceNamingRule struct {
	BaseRule
}

// NewServiceNamingRule creates a new service naming rule
func NewServiceNamingRule() *ServiceNamingRule {
	return &ServiceNamingRule{
		BaseRule: BaseRule{
			RuleName:        "service-naming",
			RuleCategory:    linter.CategoryNaming,
			RuleSeverity:    linter.SeverityWarning,
			RuleDescription: "Service names must use PascalCase",
		},
	}
}

// Check validates service names
func (r *ServiceNamingRule) Check(s *schema.Schema, ctx *linter.LintContext) []linter.Violation {
	violations := make([]linter.Violation, 0)
	for _, f := range s.Files {
		for _, svc := range f.Services {
			if !isPascalCase(svc.Name) {
				violations = append(violations, r.violation(f.Path, svc.FullName(),
					"Service name '"+svc.Name+"' should be PascalCase", toPascalCase(svc.Name)))
			}
		}
	}
	return violations
}

// MethodNamingRule checks that RPC names follow PascalCase
type MethodNamingRule struct {
	BaseRule
}

// NewMethodNamingRule creates a new method naming rule
func NewMethodNamingRule() *MethodNamingRule {
	return &MethodNamingRule{
		BaseRule: BaseRule{
			RuleName:        "method-naming",
			RuleCategory:    linter.CategoryNaming,
			RuleSeverity:    linter.SeverityWarning,
			RuleDescription: "RPC names must use PascalCase",
		},
	}
}

// Check validates method names
func (r *MethodNamingRule) Check(s *schema.Schema, ctx *linter.LintContext) []linter.Violation {
	violations := make([]linter.Violation, 0)
	for _, f := range s.Files {
		for _, svc := range f.Services {
			for _, m := range svc.Methods {
				if !isPascalCase(m.Name) {
					violations = append(violations, r.violation(f.Path, svc.FullName()+"."+m.Name,
						"Method name '"+m.Name+"' should be PascalCase", toPascalCase(m.Name)))
				}
			}
		}
	}
	return violations
}

// EnumNamingRule checks that enum names follow PascalCase
type EnumNamingRule struct {
	BaseRule
}

// NewEnumNamingRule creates a new enum naming rule
func NewEnumNamingRule() *EnumNamingRule {
	return &EnumNamingRule{
		BaseRule: BaseRule{
			RuleName:        "enum-naming",
			RuleCategory:    linter.CategoryNaming,
			RuleSeverity:    linter.SeverityWarning,
			RuleDescription: "Enum names must use PascalCase",
		},
	}
}

// Check validates enum names
func (r *EnumNamingRule) Check(s *schema.Schema, ctx *linter.LintContext) []linter.Violation {
	violations := make([]linter.Violation, 0)
	for _, enum := range s.Enums() {
		if !isPascalCase(enum.Name) {
			violations = append(violations, r.violation(enum.File().Path, enum.FullName(),
				"Enum name '"+enum.Name+"' should be PascalCase", toPascalCase(enum.Name)))
		}
	}
	return violations
}

// EnumValueNamingRule checks that enum values follow UPPER_SNAKE_CASE
type EnumValueNamingRule struct {
	BaseRule
}

// NewEnumValueNamingRule creates a new enum value naming rule
func NewEnumValueNamingRule() *EnumValueNamingRule {
	return &EnumValueNamingRule{
		BaseRule: BaseRule{
			RuleName:        "enum-value-naming",
			RuleCategory:    linter.CategoryNaming,
			RuleSeverity:    linter.SeverityWarning,
			RuleDescription: "Enum values must use UPPER_SNAKE_CASE",
		},
	}
}

// Check validates enum value names
func (r *EnumValueNamingRule) Check(s *schema.Schema, ctx *linter.LintContext) []linter.Violation {
	violations := make([]linter.Violation, 0)
	for _, enum := range s.Enums() {
		for _, value := range enum.Values {
			if !isUpperSnakeCase(value.Name) {
				violations = append(violations, r.violation(enum.File().Path, enum.FullName()+"."+value.Name,
					"Enum value '"+value.Name+"' should be UPPER_SNAKE_CASE", toUpperSnakeCase(value.Name)))
			}
		}
	}
	return violations
}
