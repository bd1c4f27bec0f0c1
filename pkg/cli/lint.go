package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/protoguard/pkg/linter"
	"github.com/platinummonkey/protoguard/pkg/linter/rules"
)

type lintOptions struct {
	configFile    string
	format        string
	failOnError   bool
	failOnWarning bool
	verbose       bool
	rulesOnly     bool
}

// newLintCommand creates a new lint command
func newLintCommand(a *app) *cobra.Command {
	var opts lintOptions
	cmd := &cobra.Command{
		Use:   "lint [files...]",
		Short: "Lint the assembled schema for style and structure",
		RunE: func(cmd *cobra.Command, files []string) error {
			return a.runLint(cmd, files, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "lint-config", "", "Path to lint config file (default: protoguard-lint.yaml in the first import path)")
	flags.StringVar(&opts.format, "format", "text", "Output format: text, json, yaml, github")
	flags.BoolVar(&opts.failOnError, "fail-on-error", true, "Exit with error code on lint errors")
	flags.BoolVar(&opts.failOnWarning, "fail-on-warning", false, "Exit with error code on lint warnings")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Print suggestions")
	flags.BoolVar(&opts.rulesOnly, "rules", false, "List available rules and exit")
	return cmd
}

func (a *app) runLint(cmd *cobra.Command, files []string, opts lintOptions) error {
	out := cmd.OutOrStdout()

	var config *linter.Config
	var err error
	if opts.configFile != "" {
		config, err = linter.LoadConfig(opts.configFile)
	} else {
		config, err = linter.LoadConfigFromDir(a.importPaths[0])
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	registry := linter.NewRuleRegistry()
	rules.RegisterDefaultRules(registry)

	if opts.rulesOnly {
		lintListRules(out, registry)
		return nil
	}

	s, err := a.assemble(cmd, files)
	if err != nil {
		return err
	}

	engine := linter.NewLintEngine(config, registry)
	results := engine.Lint(s)
	summary := engine.GenerateSummary(results)

	switch opts.format {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		err = encoder.Encode(lintOutput{Results: results, Summary: summary})
	case "yaml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err = encoder.Encode(lintOutput{Results: results, Summary: summary}); err == nil {
			err = encoder.Close()
		}
	case "github":
		lintOutputGitHub(out, results)
	case "text":
		lintOutputText(out, results, summary, opts.verbose)
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}
	if err != nil {
		return err
	}

	if opts.failOnError && summary.Errors > 0 {
		return fmt.Errorf("lint failed with %d errors", summary.Errors)
	}
	if opts.failOnWarning && summary.Warnings > 0 {
		return fmt.Errorf("lint failed with %d warnings", summary.Warnings)
	}
	return nil
}

type lintOutput struct {
	Results []linter.LintResult `json:"results" yaml:"results"`
	Summary linter.Summary      `json:"summary" yaml:"summary"`
}

func lintListRules(w io.Writer, registry *linter.RuleRegistry) {
	all := registry.GetAllRules()
	fmt.Fprintf(w, "Available lint rules (%d):\n\n", len(all))

	for _, cat := range []linter.Category{linter.CategoryNaming, linter.CategoryStructure} {
		rs := registry.GetRulesByCategory(cat)
		if len(rs) == 0 {
			continue
		}

		catName := string(cat)
		fmt.Fprintf(w, "%s Rules:\n", strings.ToUpper(catName[:1])+catName[1:])
		for _, rule := range rs {
			fmt.Fprintf(w, "  - %-25s [%s]\n    %s\n", rule.Name(), rule.Severity(), rule.Description())
		}
		fmt.Fprintln(w)
	}
}

func lintOutputText(w io.Writer, results []linter.LintResult, summary linter.Summary, verbose bool) {
	for _, result := range results {
		if len(result.Violations) == 0 {
			continue
		}

		fmt.Fprintf(w, "\n%s:\n", result.FilePath)
		for _, v := range result.Violations {
			fmt.Fprintf(w, "  %s: [%s] %s (%s)\n", v.Element, v.Severity, v.Message, v.Rule)
			if verbose && v.Suggestion != "" {
				fmt.Fprintf(w, "    Suggestion: %s\n", v.Suggestion)
			}
		}
	}

	fmt.Fprintf(w, "\nSummary:\n")
	fmt.Fprintf(w, "  Files:      %d\n", summary.TotalFiles)
	fmt.Fprintf(w, "  Violations: %d\n", summary.TotalViolations)
	fmt.Fprintf(w, "  Errors:     %d\n", summary.Errors)
	fmt.Fprintf(w, "  Warnings:   %d\n", summary.Warnings)
	fmt.Fprintf(w, "  Infos:      %d\n", summary.Infos)

	if summary.TotalViolations == 0 {
		fmt.Fprintln(w, "\nAll files passed linting")
	}
}

// lintOutputGitHub writes GitHub Actions annotations:
// ::error file={name},title={rule}::{message}
func lintOutputGitHub(w io.Writer, results []linter.LintResult) {
	for _, result := range results {
		for _, v := range result.Violations {
			level := "error"
			switch v.Severity {
			case linter.SeverityWarning:
				level = "warning"
			case linter.SeverityInfo:
				level = "notice"
			}
			fmt.Fprintf(w, "::%s file=%s,title=%s::%s: %s\n", level, result.FilePath, v.Rule, v.Element, v.Message)
		}
	}
}
