// Package layers selects the layers of each project that end up in the
// output document.
//
// Rules use the form [project:]pattern. The project qualifier matches a
// project's repo id (last name segment) or its full name. The pattern
// matches a layer whose relative path equals it, or whose last path segment
// equals it.
package layers

import (
	"fmt"
	"strings"

	"github.com/quantmind-br/repo2kas/internal/domain"
)

// Rule is one include or exclude layer rule
type Rule struct {
	Project string
	Pattern string
	Exclude bool
}

// ParseRule parses a single "[project:]pattern" rule
func ParseRule(s string, exclude bool) (Rule, error) {
	field := "layers.include"
	if exclude {
		field = "layers.exclude"
	}

	raw := strings.TrimSpace(s)
	r := Rule{Exclude: exclude, Pattern: raw}
	if project, pattern, ok := strings.Cut(raw, ":"); ok {
		r.Project = strings.TrimSpace(project)
		r.Pattern = pattern
		if r.Project == "" {
			return Rule{}, domain.NewValidationError(field, fmt.Sprintf("%q has an empty project qualifier", s))
		}
	}
	r.Pattern = strings.Trim(strings.TrimSpace(r.Pattern), "/")
	if r.Pattern == "" {
		return Rule{}, domain.NewValidationError(field, fmt.Sprintf("%q has an empty layer pattern", s))
	}
	return r, nil
}

// ParseRules parses include and exclude rule lists. Each entry may hold
// several comma or space separated rules.
func ParseRules(includes, excludes []string) ([]Rule, error) {
	var rules []Rule
	for _, group := range []struct {
		specs   []string
		exclude bool
	}{{includes, false}, {excludes, true}} {
		for _, spec := range splitSpecs(group.specs) {
			r, err := ParseRule(spec, group.exclude)
			if err != nil {
				return nil, err
			}
			rules = append(rules, r)
		}
	}
	return rules, nil
}

// ParseHints parses "project:path" layer hints into a map keyed by the
// project qualifier. Hints name layers known to exist even when a scan
// cannot see them.
func ParseHints(specs []string) (map[string][]string, error) {
	hints := make(map[string][]string)
	for _, spec := range splitSpecs(specs) {
		project, layer, ok := strings.Cut(spec, ":")
		project = strings.TrimSpace(project)
		layer = strings.Trim(strings.TrimSpace(layer), "/")
		if !ok || project == "" || layer == "" {
			return nil, domain.NewValidationError("layers.hints",
				fmt.Sprintf("%q is not of the form project:path", spec))
		}
		hints[project] = appendUnique(hints[project], layer)
	}
	return hints, nil
}

func (r Rule) String() string {
	if r.Project == "" {
		return r.Pattern
	}
	return r.Project + ":" + r.Pattern
}

// AppliesTo reports whether the rule is in scope for a project
func (r Rule) AppliesTo(p domain.Project) bool {
	return r.Project == "" || matchesProject(r.Project, p)
}

// MatchesPath reports whether the pattern equals the full layer path
func (r Rule) MatchesPath(layerPath string) bool {
	return r.Pattern == layerPath
}

// MatchesBase reports whether the pattern equals the layer's last segment
func (r Rule) MatchesBase(layerPath string) bool {
	return r.Pattern == baseName(layerPath)
}

// Matches reports a match by full path or by basename
func (r Rule) Matches(layerPath string) bool {
	return r.MatchesPath(layerPath) || r.MatchesBase(layerPath)
}

func matchesProject(qualifier string, p domain.Project) bool {
	name := strings.Trim(p.Name, "/")
	return qualifier == p.ID() || qualifier == name
}

func baseName(p string) string {
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

func splitSpecs(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})...)
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
