package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/linter"
	"github.com/platinummonkey/protoguard/pkg/schema"
)

// build assembles a single-file schema from the given registrations
func build(t *testing.T, register func(r *schema.Registry)) *schema.Schema {
	t.Helper()
	r := schema.NewRegistry()
	require.NoError(t, r.AddFile("test", schema.FileDecl{Path: "test.proto"}))
	register(r)
	s, err := r.Assemble(context.Background())
	require.NoError(t, err)
	return s
}

func check(rule linter.Rule, s *schema.Schema) []linter.Violation {
	return rule.Check(s, &linter.LintContext{Schema: s, Config: linter.DefaultConfig()})
}

func TestMessageNamingRule(t *testing.T) {
	rule := NewMessageNamingRule()

	tests := []struct {
		name            string
		messageName     string
		expectViolation bool
	}{
		{"valid PascalCase", "UserProfile", false},
		{"valid single word", "User", false},
		{"invalid snake_case", "user_profile", true},
		{"invalid camelCase", "userProfile", true},
		{"invalid lowercase", "user", true},
		{"invalid with underscore", "User_Profile", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := build(t, func(r *schema.Registry) {
				require.NoError(t, r.AddMessage("test", schema.MessageDecl{Name: tt.messageName}))
			})
			violations := check(rule, s)
			assert.Equal(t, tt.expectViolation, len(violations) > 0)
		})
	}
}

func TestMessageNamingRule_Nested(t *testing.T) {
	s := build(t, func(r *schema.Registry) {
		require.NoError(t, r.AddMessage("test", schema.MessageDecl{Name: "Outer"}))
		require.NoError(t, r.AddMessage("test", schema.MessageDecl{Name: "inner_thing", Parent: "Outer"}))
	})

	violations := check(NewMessageNamingRule(), s)
	require.Len(t, violations, 1)
	assert.Equal(t, "test.Outer.inner_thing", violations[0].Element)
	assert.Equal(t, "InnerThing", violations[0].Suggestion)
	assert.Equal(t, "test.proto", violations[0].File)
}

func TestFieldNamingRule(t *testing.T) {
	rule := NewFieldNamingRule()

	tests := []struct {
		name            string
		fieldName       string
		expectViolation bool
	}{
		{"valid snake_case", "user_id", false},
		{"valid single word", "name", false},
		{"valid with numbers", "user_id_123", false},
		{"invalid PascalCase", "UserId", true},
		{"invalid camelCase", "userId", true},
		{"invalid UPPER_CASE", "USER_ID", true},
		{"invalid consecutive underscores", "user__id", true},
		{"invalid leading underscore", "_user_id", true},
		{"invalid trailing underscore", "user_id_", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := build(t, func(r *schema.Registry) {
				require.NoError(t, r.AddMessage("test", schema.MessageDecl{
					Name: "TestMessage",
					Fields: []schema.FieldDecl{
						{Name: tt.fieldName, Kind: protoreflect.StringKind},
					},
				}))
			})
			violations := check(rule, s)
			assert.Equal(t, tt.expectViolation, len(violations) > 0)
		})
	}
}

func TestFieldNamingRule_OneofMembers(t *testing.T) {
	s := build(t, func(r *schema.Registry) {
		require.NoError(t, r.AddMessage("test", schema.MessageDecl{
			Name:   "Contact",
			Fields: []schema.FieldDecl{{Name: "eMail", Kind: protoreflect.StringKind, Oneof: "kind"}},
			Oneofs: []schema.OneofDecl{{Name: "kind"}},
		}))
	})

	violations := check(NewFieldNamingRule(), s)
	require.Len(t, violations, 1)
	assert.Equal(t, "e_mail", violations[0].Suggestion)
}

func TestServiceAndMethodNamingRules(t *testing.T) {
	s := build(t, func(r *schema.Registry) {
		require.NoError(t, r.AddMessage("test", schema.MessageDecl{Name: "Empty"}))
		require.NoError(t, r.AddService("test", schema.ServiceDecl{
			Name: "user_service",
			Methods: []schema.MethodDecl{
				{Name: "GetUser", Input: "Empty", Output: "Empty"},
				{Name: "list_users", Input: "Empty", Output: "Empty"},
			},
		}))
	})

	services := check(NewServiceNamingRule(), s)
	require.Len(t, services, 1)
	assert.Equal(t, "UserService", services[0].Suggestion)

	methods := check(NewMethodNamingRule(), s)
	require.Len(t, methods, 1)
	assert.Equal(t, "test.user_service.list_users", methods[0].Element)
	assert.Equal(t, "ListUsers", methods[0].Suggestion)
}

func TestEnumNamingRules(t *testing.T) {
	s := build(t, func(r *schema.Registry) {
		require.NoError(t, r.AddEnum("test", schema.EnumDecl{
			Name:   "user_status",
			Values: []schema.EnumValueDecl{{Name: "USER_STATUS_UNSPECIFIED"}, {Name: "activeUser"}},
		}))
		require.NoError(t, r.AddMessage("test", schema.MessageDecl{Name: "Holder"}))
		require.NoError(t, r.AddEnum("test", schema.EnumDecl{
			Name:   "Kind",
			Parent: "Holder",
			Values: []schema.EnumValueDecl{{Name: "KIND_NONE"}},
		}))
	})

	enums := check(NewEnumNamingRule(), s)
	require.Len(t, enums, 1)
	assert.Equal(t, "UserStatus", enums[0].Suggestion)

	values := check(NewEnumValueNamingRule(), s)
	require.Len(t, values, 1)
	assert.Equal(t, "ACTIVE_USER", values[0].Suggestion)

	zero := check(NewEnumZeroValueRule(), s)
	require.Len(t, zero, 1)
	assert.Equal(t, "test.Holder.Kind.KIND_NONE", zero[0].Element)
	assert.Equal(t, "KIND_UNSPECIFIED", zero[0].Suggestion)
}

func TestToPascalCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"user_profile", "UserProfile"},
		{"user", "User"},
		{"UserProfile", "UserProfile"},
		{"http_server_v2", "HttpServerV2"},
		{"userProfile", "UserProfile"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, toPascalCase(tt.input))
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"UserId", "user_id"},
		{"userName", "user_name"},
		{"user_id", "user_id"},
		{"user__id", "user_id"},
		{"_user_id_", "user_id"},
		{"USER_ID", "user_id"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, toSnakeCase(tt.input))
		})
	}
}

func TestToUpperSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Active", "ACTIVE"},
		{"activeUser", "ACTIVE_USER"},
		{"STATUS_OK", "STATUS_OK"},
		{"status_ok", "STATUS_OK"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, toUpperSnakeCase(tt.input))
		})
	}
}
