package rules

import "github.com/platinummonkey/protoguard/pkg/linter"

// Registry interface for registering rules
type Registry interface {
	Register(rule linter.Rule)
}

// RegisterDefaultRules registers all built-in lint rules
func RegisterDefaultRules(registry Registry) {
	// Naming rules
	registry.Register(NewMessageNamingRule())
	registry.Register(NewFieldNamingRule())
	registry.Register(NewServiceNamingRule())
	registry.Register(NewMethodNamingRule())
	registry.Register(NewEnumNamingRule())
	registry.Register(NewEnumValueNamingRule())

	// Structure rules
	registry.Register(NewEnumZeroValueRule())
	registry.Register(NewMessageDepthRule())
	registry.Register(NewFieldCountRule())
}
