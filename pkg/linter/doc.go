// Package linter applies naming and structure conventions to an assembled
// schema.
//
// Rules implement Rule and live in a RuleRegistry; rules.RegisterDefaultRules
// installs the built-in set. A Config, usually loaded from
// protoguard-lint.yaml, switches rules off, overrides severities and ignores
// files by glob.
//
//	registry := linter.NewRuleRegistry()
//	rules.RegisterDefaultRules(registry)
//	engine := linter.NewLintEngine(config, registry)
//	results := engine.Lint(s)
//	summary := engine.GenerateSummary(results)
//
// Naming rules report warnings by default. Structure rules bound message
// nesting depth and field count.
package linter
