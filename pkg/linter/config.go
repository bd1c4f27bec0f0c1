package linter

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the linting configuration
type Config struct {
	Version   string          `yaml:"version"`
	Lint      LintRules       `yaml:"lint"`
	Structure StructureConfig `yaml:"structure"`
}

// LintRules contains rule configuration
type LintRules struct {
	// Rules switches individual rules on or off; unlisted rules run
	Rules map[string]bool `yaml:"rules"`
	// Severity overrides by rule name or category
	Severity map[string]Severity `yaml:"severity"`
	// Ignore holds file path globs; a trailing /** matches a whole tree
	Ignore []string `yaml:"ignore"`
}

// StructureConfig bounds message shape
type StructureConfig struct {
	MaxMessageDepth int `yaml:"max_message_depth"`
	MaxFieldCount   int `yaml:"max_field_count"`
}

// DefaultConfig returns default linting configuration
func DefaultConfig() *Config {
	return &Config{
		Version: "v1",
		Lint: LintRules{
			Rules:    make(map[string]bool),
			Severity: make(map[string]Severity),
			Ignore:   []string{"vendor/**", "third_party/**"},
		},
		Structure: StructureConfig{
			MaxMessageDepth: 5,
			MaxFieldCount:   50,
		},
	}
}

// LoadConfig loads configuration from a file. Missing keys keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse lint config %s: %w", path, err)
	}
	for name, sev := range config.Lint.Severity {
		switch sev {
		case SeverityError, SeverityWarning, SeverityInfo:
		default:
			return nil, fmt.Errorf("lint config %s: unknown severity %q for %s", path, sev, name)
		}
	}

	return config, nil
}

// LoadConfigFromDir searches for config file in directory
func LoadConfigFromDir(dir string) (*Config, error) {
	configNames := []string{"protoguard-lint.yaml", "protoguard-lint.yml", ".protoguard-lint.yaml", ".protoguard-lint.yml"}

	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadConfig(path)
		}
	}

	// Return default if no config found
	return DefaultConfig(), nil
}

// SaveConfig saves configuration to a file
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Enabled reports whether a rule should run
func (c *Config) Enabled(rule string) bool {
	if on, ok := c.Lint.Rules[rule]; ok {
		return on
	}
	return true
}

// SeverityFor applies the rule override, then the category override
func (c *Config) SeverityFor(rule string, category Category, def Severity) Severity {
	if sev, ok := c.Lint.Severity[rule]; ok {
		return sev
	}
	if sev, ok := c.Lint.Severity[string(category)]; ok {
		return sev
	}
	return def
}

// Ignored reports whether a file path matches an ignore glob
func (c *Config) Ignored(file string) bool {
	for _, pattern := range c.Lint.Ignore {
		if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
			if file == dir || strings.HasPrefix(file, dir+"/") {
				return true
			}
			continue
		}
		if ok, _ := path.Match(pattern, file); ok {
			return true
		}
	}
	return false
}
