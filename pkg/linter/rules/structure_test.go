package rules

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/linter"
	"github.com/platinummonkey/protoguard/pkg/schema"
)

func TestMessageDepthRule(t *testing.T) {
	s := build(t, func(r *schema.Registry) {
		require.NoError(t, r.AddMessage("test", schema.MessageDecl{Name: "L1"}))
		require.NoError(t, r.AddMessage("test", schema.MessageDecl{Name: "L2", Parent: "L1"}))
		require.NoError(t, r.AddMessage("test", schema.MessageDecl{Name: "L3", Parent: "L1.L2"}))
	})

	config := linter.DefaultConfig()
	config.Structure.MaxMessageDepth = 2
	violations := NewMessageDepthRule().Check(s, &linter.LintContext{Schema: s, Config: config})
	require.Len(t, violations, 1)
	assert.Equal(t, "test.L1.L2.L3", violations[0].Element)
	assert.Equal(t, "Message 'L3' is nested 3 deep, limit is 2", violations[0].Message)

	config.Structure.MaxMessageDepth = 0
	assert.Empty(t, NewMessageDepthRule().Check(s, &linter.LintContext{Schema: s, Config: config}))
}

func TestFieldCountRule(t *testing.T) {
	fields := make([]schema.FieldDecl, 4)
	for i := range fields {
		fields[i] = schema.FieldDecl{Name: fmt.Sprintf("f%d", i), Kind: protoreflect.BoolKind}
	}
	s := build(t, func(r *schema.Registry) {
		require.NoError(t, r.AddMessage("test", schema.MessageDecl{Name: "Wide", Fields: fields}))
		require.NoError(t, r.AddMessage("test", schema.MessageDecl{Name: "Narrow", Fields: fields[:1]}))
	})

	config := linter.DefaultConfig()
	config.Structure.MaxFieldCount = 3
	violations := NewFieldCountRule().Check(s, &linter.LintContext{Schema: s, Config: config})
	require.Len(t, violations, 1)
	assert.Equal(t, "test.Wide", violations[0].Element)
	assert.Equal(t, linter.CategoryStructure, violations[0].Category)
}

func TestRegisterDefaultRules(t *testing.T) {
	registry := linter.NewRuleRegistry()
	RegisterDefaultRules(registry)

	var names []string
	for _, rule := range registry.GetAllRules() {
		names = append(names, rule.Name())
	}
	assert.Equal(t, []string{
		"enum-naming", "enum-value-naming", "enum-zero-value", "field-count", "field-naming",
		"message-depth", "message-naming", "method-naming", "service-naming",
	}, names)
}
