package linter

import (
	"sort"

	"github.com/platinummonkey/protoguard/pkg/schema"
)

// LintEngine orchestrates the linting process
type LintEngine struct {
	config   *Config
	registry *RuleRegistry
}

// NewLintEngine creates a new lint engine
func NewLintEngine(config *Config, registry *RuleRegistry) *LintEngine {
	if config == nil {
		config = DefaultConfig()
	}
	if registry == nil {
		registry = NewRuleRegistry()
	}

	return &LintEngine{
		config:   config,
		registry: registry,
	}
}

// Lint runs all enabled rules against an assembled schema. Results follow
// the schema's file order; ignored files are left out.
func (e *LintEngine) Lint(s *schema.Schema) []LintResult {
	ctx := &LintContext{
		Schema: s,
		Config: e.config,
	}

	byFile := make(map[string][]Violation)
	for _, rule := range e.registry.GetEnabledRules(e.config) {
		for _, v := range rule.Check(s, ctx) {
			v.Severity = e.config.SeverityFor(v.Rule, v.Category, v.Severity)
			byFile[v.File] = append(byFile[v.File], v)
		}
	}

	results := make([]LintResult, 0, len(s.Files))
	for _, f := range s.Files {
		if e.config.Ignored(f.Path) {
			continue
		}
		violations := byFile[f.Path]
		sort.SliceStable(violations, func(i, j int) bool {
			if violations[i].Element != violations[j].Element {
				return violations[i].Element < violations[j].Element
			}
			return violations[i].Rule < violations[j].Rule
		})
		results = append(results, LintResult{
			FilePath:   f.Path,
			Violations: violations,
			Metrics:    calculateMetrics(f),
		})
	}
	return results
}

// GenerateSummary creates a summary of lint results
func (e *LintEngine) GenerateSummary(results []LintResult) Summary {
	summary := Summary{
		TotalFiles: len(results),
	}

	for _, result := range results {
		summary.TotalViolations += len(result.Violations)
		for _, v := range result.Violations {
			switch v.Severity {
			case SeverityError:
				summary.Errors++
			case SeverityWarning:
				summary.Warnings++
			case SeverityInfo:
				summary.Infos++
			}
		}
	}

	return summary
}

func calculateMetrics(f *schema.File) FileMetrics {
	metrics := FileMetrics{FilePath: f.Path}

	var walk func(ms []*schema.Message, depth int)
	walk = func(ms []*schema.Message, depth int) {
		for _, m := range ms {
			metrics.MessageCount++
			metrics.MaxNesting = max(metrics.MaxNesting, depth)
			for _, field := range m.Fields() {
				metrics.FieldCount++
				if field.Rules != nil {
					metrics.ValidatedFields++
				}
			}
			walk(m.Messages, depth+1)
		}
	}
	walk(f.Messages, 1)

	if metrics.FieldCount > 0 {
		metrics.RuleCoverage = float64(metrics.ValidatedFields) / float64(metrics.FieldCount) * 100
	}
	return metrics
}

// LintResult contains the result of linting a single file
type LintResult struct {
	FilePath   string      `yaml:"file" json:"file"`
	Violations []Violation `yaml:"violations,omitempty" json:"violations,omitempty"`
	Metrics    FileMetrics `yaml:"metrics" json:"metrics"`
}

// Violation represents a linting violation. Element is the full name of the
// offending message, field, enum, value, service or method.
type Violation struct {
	Rule       string   `yaml:"rule" json:"rule"`
	Severity   Severity `yaml:"severity" json:"severity"`
	Category   Category `yaml:"category" json:"category"`
	File       string   `yaml:"-" json:"-"`
	Element    string   `yaml:"element" json:"element"`
	Message    string   `yaml:"message" json:"message"`
	Suggestion string   `yaml:"suggestion,omitempty" json:"suggestion,omitempty"`
}

// Severity indicates how serious a violation is
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Category groups related rules
type Category string

const (
	CategoryNaming    Category = "naming"
	CategoryStructure Category = "structure"
)

// FileMetrics contains quality metrics for a file
type FileMetrics struct {
	FilePath        string  `yaml:"-" json:"-"`
	MessageCount    int     `yaml:"messages" json:"messages"`
	FieldCount      int     `yaml:"fields" json:"fields"`
	ValidatedFields int     `yaml:"validated_fields" json:"validated_fields"`
	RuleCoverage    float64 `yaml:"rule_coverage" json:"rule_coverage"`
	MaxNesting      int     `yaml:"max_nesting" json:"max_nesting"`
}

// Summary provides an overview of all lint results
type Summary struct {
	TotalFiles      int `yaml:"files" json:"files"`
	TotalViolations int `yaml:"violations" json:"violations"`
	Errors          int `yaml:"errors" json:"errors"`
	Warnings        int `yaml:"warnings" json:"warnings"`
	Infos           int `yaml:"infos" json:"infos"`
}

// LintContext provides context during rule checking
type LintContext struct {
	Schema *schema.Schema
	Config *Config
}
