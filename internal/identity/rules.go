package identity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pelletier/go-toml/v2"
)

// ruleFile is the on-disk shape of a declarative resolver:
//
//	exclude = ["**/__tests__/**"]
//
//	[[rule]]
//	pattern  = "**/src/**/*.js"
//	identity = "{name}"
type ruleFile struct {
	Exclude []string `toml:"exclude"`
	Rules   []Rule   `toml:"rule"`
}

// Rule maps files whose path matches Pattern to the rendered Identity template.
type Rule struct {
	Pattern  string `toml:"pattern"`
	Identity string `toml:"identity"`
}

// compiledRule holds both the pattern string and compiled glob
type compiledRule struct {
	pattern  string
	glob     glob.Glob
	template string
}

// RuleResolver names files by the first glob rule their path matches.
// It holds no mutable state and is safe for concurrent use.
type RuleResolver struct {
	exclude []compiledRule
	rules   []compiledRule
}

// LoadRules reads a TOML rule file and compiles its patterns.
func LoadRules(_ context.Context, path string) (Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	var file ruleFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}

	resolver, err := NewRuleResolver(file.Rules, file.Exclude)
	if err != nil {
		return nil, err
	}
	return resolver, nil
}

// NewRuleResolver compiles rules and exclude patterns. Patterns are matched
// against slash-separated paths with '/' as the glob separator.
func NewRuleResolver(rules []Rule, exclude []string) (*RuleResolver, error) {
	r := &RuleResolver{}

	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: rule file declares no [[rule]] entries", ErrInvalidResolver)
	}

	for _, pattern := range exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("%w: bad exclude pattern %q: %v", ErrInvalidResolver, pattern, err)
		}
		r.exclude = append(r.exclude, compiledRule{pattern: pattern, glob: g})
	}

	for i, rule := range rules {
		if strings.TrimSpace(rule.Identity) == "" {
			return nil, fmt.Errorf("%w: rule %d (%q) has an empty identity template", ErrInvalidResolver, i, rule.Pattern)
		}
		g, err := glob.Compile(rule.Pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", ErrInvalidResolver, rule.Pattern, err)
		}
		r.rules = append(r.rules, compiledRule{pattern: rule.Pattern, glob: g, template: rule.Identity})
	}

	return r, nil
}

// Identity renders the template of the first matching rule.
func (r *RuleResolver) Identity(_ context.Context, filePath string) (string, error) {
	slashPath := filepath.ToSlash(filePath)

	for _, ex := range r.exclude {
		if ex.glob.Match(slashPath) {
			return "", nil
		}
	}

	for _, rule := range r.rules {
		if rule.glob.Match(slashPath) {
			return expandTemplate(rule.template, filePath), nil
		}
	}
	return "", nil
}

// expandTemplate substitutes {base}, {name}, {ext} and {dir} for filePath.
func expandTemplate(template, filePath string) string {
	base := filepath.Base(filePath)
	ext := filepath.Ext(base)

	return strings.NewReplacer(
		"{base}", base,
		"{name}", strings.TrimSuffix(base, ext),
		"{ext}", ext,
		"{dir}", filepath.Base(filepath.Dir(filePath)),
	).Replace(template)
}
