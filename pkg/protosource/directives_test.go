package protosource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protoguard/pkg/validation"
)

func TestExtractDirective(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    *Directive
		wantErr bool
	}{
		{"simple", "@protoguard:string.min_len:3", &Directive{Option: "string.min_len", Value: "3", Line: 7}, false},
		{"value keeps colons", "@protoguard:string.pattern: ^a:b$", &Directive{Option: "string.pattern", Value: "^a:b$", Line: 7}, false},
		{"empty value", "@protoguard:required:", &Directive{Option: "required", Value: "", Line: 7}, false},
		{"missing value", "@protoguard:required", nil, true},
		{"missing option", "@protoguard::3", nil, true},
		{"not a directive", "@other:option:x", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractDirective(tt.text, 7)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDirectives(t *testing.T) {
	comment := " The user's email.\n @protoguard:string.format:email\n\n * @protoguard:string.max_len:64\n not @protoguard:ignored:1\n"
	ds, err := ParseDirectives(comment, 12)
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "string.format", ds[0].Option)
	assert.Equal(t, "string.max_len", ds[1].Option)
	assert.Equal(t, 12, ds[1].Line)

	_, err = ParseDirectives(" @protoguard:broken", 1)
	assert.Error(t, err)
}

func TestFieldRules(t *testing.T) {
	fr, err := FieldRules([]*Directive{
		{Option: "repeated.max_items", Value: "10"},
		{Option: "repeated.items.string.pattern", Value: `"^[a-z]+$"`},
		{Option: "repeated.items.string.format", Value: "hostname"},
	})
	require.NoError(t, err)
	require.NotNil(t, fr.Repeated)
	assert.Equal(t, uint64(10), *fr.Repeated.MaxItems)
	require.NotNil(t, fr.Repeated.Items)
	require.NotNil(t, fr.Repeated.Items.String)
	assert.Equal(t, "^[a-z]+$", fr.Repeated.Items.String.Pattern)
	assert.Equal(t, validation.FormatHostname, fr.Repeated.Items.String.Format)
}

func TestFieldRules_Errors(t *testing.T) {
	tests := []struct {
		name string
		ds   []*Directive
	}{
		{"unknown category", []*Directive{{Option: "strung.min_len", Value: "1"}}},
		{"unknown rule", []*Directive{{Option: "string.min_length", Value: "1"}}},
		{"set twice", []*Directive{{Option: "int32.gt", Value: "1"}, {Option: "int32.gt", Value: "2"}}},
		{"scalar then child", []*Directive{{Option: "string", Value: "x"}, {Option: "string.min_len", Value: "1"}}},
		{"empty segment", []*Directive{{Option: "string..min_len", Value: "1"}}},
		{"wrong value type", []*Directive{{Option: "string.min_len", Value: "many"}}},
		{"unbalanced flow", []*Directive{{Option: "string.in", Value: "[a, b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FieldRules(tt.ds)
			assert.Error(t, err)
		})
	}
}
