package rules

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	pascalCase     = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
	snakeCase      = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	upperSnakeCase = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
)

// isPascalCase checks if a string is in PascalCase
func isPascalCase(s string) bool {
	return pascalCase.MatchString(s)
}

// isSnakeCase checks if a string is in snake_case
func isSnakeCase(s string) bool {
	if !snakeCase.MatchString(s) {
		return false
	}
	return !strings.Contains(s, "__") && !strings.HasSuffix(s, "_")
}

// isUpperSnakeCase checks if a string is in UPPER_SNAKE_CASE
func isUpperSnakeCase(s string) bool {
	if !upperSnakeCase.MatchString(s) {
		return false
	}
	return !strings.Contains(s, "__") && !strings.HasSuffix(s, "_")
}

// toPascalCase converts a string to PascalCase
func toPascalCase(s string) string {
	var result strings.Builder
	upper := true
	for _, r := range s {
		switch {
		case r == '_':
			upper = true
		case upper:
			result.WriteRune(unicode.ToUpper(r))
			upper = false
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}

// toSnakeCase converts a string to snake_case
func toSnakeCase(s string) string {
	var result strings.Builder
	prev := '_'
	for _, r := range s {
		if unicode.IsUpper(r) {
			if prev != '_' && !unicode.IsUpper(prev) {
				result.WriteRune('_')
			}
			result.WriteRune(unicode.ToLower(r))
		} else if r != '_' || prev != '_' {
			result.WriteRune(r)
		}
		prev = r
	}
	return strings.TrimSuffix(result.String(), "_")
}

// toUpperSnakeCase converts a string to UPPER_SNAKE_CASE
func toUpperSnakeCase(s string) string {
	if isUpperSnakeCase(s) {
		return s
	}
	return strings.ToUpper(toSnakeCase(s))
}
