package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bgricker/crewreport/internal/plan"
)

// Pattern is a compiled step filter. A value wrapped in slashes is a regular
// expression; anything else is a case-insensitive substring.
type Pattern struct {
	raw   string
	regex *regexp.Regexp
	lower string
}

// Compile transforms raw pattern strings into Pattern values.
func Compile(patterns []string) ([]Pattern, error) {
	result := make([]Pattern, 0, len(patterns))
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if len(raw) >= 2 && strings.HasPrefix(raw, "/") && strings.HasSuffix(raw, "/") {
			re, err := regexp.Compile(raw[1 : len(raw)-1])
			if err != nil {
				return nil, fmt.Errorf("compile regexp %q: %w", raw, err)
			}
			result = append(result, Pattern{raw: raw, regex: re})
			continue
		}
		result = append(result, Pattern{raw: raw, lower: strings.ToLower(raw)})
	}
	return result, nil
}

// String returns the pattern as written.
func (p Pattern) String() string {
	return p.raw
}

// Match reports whether the pattern matches the supplied string.
func (p Pattern) Match(s string) bool {
	if s == "" {
		return false
	}
	if p.regex != nil {
		return p.regex.MatchString(s)
	}
	return strings.Contains(strings.ToLower(s), p.lower)
}

// Steps keeps steps matching any only pattern (all steps when none are given)
// and drops those matching any skip pattern. Order is preserved.
func Steps(steps []plan.Step, only, skip []Pattern) []plan.Step {
	if len(steps) == 0 {
		return nil
	}
	result := make([]plan.Step, 0, len(steps))
	for _, step := range steps {
		if len(only) > 0 && !matches(step, only) {
			continue
		}
		if len(skip) > 0 && matches(step, skip) {
			continue
		}
		result = append(result, step)
	}
	return result
}

func matches(step plan.Step, patterns []Pattern) bool {
	for _, pattern := range patterns {
		if pattern.Match(step.Name) || pattern.Match(step.Description) {
			return true
		}
	}
	return false
}
