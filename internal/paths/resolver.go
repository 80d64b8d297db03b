// Package paths assigns the final checkout path of every project.
package paths

import (
	"fmt"
	"path"
	"strings"

	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/utils"
)

// ApplyMode controls which projects receive the path prefix
type ApplyMode string

const (
	// ApplyAlways prefixes every project path
	ApplyAlways ApplyMode = "always"
	// ApplyMissingOnly prefixes only projects without a declared path
	ApplyMissingOnly ApplyMode = "missing-only"
)

// DedupMode controls what happens when two projects share a path
type DedupMode string

const (
	// DedupOff makes a collision fatal
	DedupOff DedupMode = "off"
	// DedupSuffix renames later projects with ~1, ~2, ...
	DedupSuffix DedupMode = "suffix"
)

// Options configures path resolution
type Options struct {
	Prefix string
	Apply  ApplyMode
	Dedup  DedupMode
	Logger *utils.Logger
}

// ParseApplyMode validates an apply mode; empty selects ApplyAlways
func ParseApplyMode(s string) (ApplyMode, error) {
	switch m := ApplyMode(strings.TrimSpace(s)); m {
	case "":
		return ApplyAlways, nil
	case ApplyAlways, ApplyMissingOnly:
		return m, nil
	}
	return "", domain.NewValidationError("paths.apply_mode",
		fmt.Sprintf("%q is not one of %s, %s", s, ApplyAlways, ApplyMissingOnly))
}

// ParseDedupMode validates a dedup mode; empty selects DedupOff
func ParseDedupMode(s string) (DedupMode, error) {
	switch m := DedupMode(strings.TrimSpace(s)); m {
	case "":
		return DedupOff, nil
	case DedupOff, DedupSuffix:
		return m, nil
	}
	return "", domain.NewValidationError("paths.dedup",
		fmt.Sprintf("%q is not one of %s, %s", s, DedupOff, DedupSuffix))
}

// NormalizePrefix trims whitespace and surrounding slashes
func NormalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

// BasePath is the path of a project before deduplication
func BasePath(p domain.Project, opts Options) string {
	base := strings.Trim(p.Path, "/")
	declared := base != ""
	if !declared {
		base = strings.Trim(p.Name, "/")
	}

	prefix := NormalizePrefix(opts.Prefix)
	if prefix == "" {
		return path.Clean(base)
	}
	if opts.Apply == ApplyMissingOnly && declared {
		return path.Clean(base)
	}
	return path.Join(prefix, base)
}

// Resolve returns the final path of every project, index-aligned with
// projects. Under DedupOff the first collision is a
// *domain.PathCollisionError; under DedupSuffix later projects get the
// first free ~N suffix in project order.
func Resolve(projects []domain.Project, opts Options) ([]string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	logger = logger.WithComponent("paths")

	bases := make([]string, len(projects))
	for i, p := range projects {
		bases[i] = BasePath(p, opts)
	}

	// every base path is reserved up front so a suffix never steals a
	// path another project asked for
	owner := make(map[string]int, len(projects))
	taken := make(map[string]bool, len(projects))
	for i, b := range bases {
		if _, ok := owner[b]; !ok {
			owner[b] = i
		}
		taken[b] = true
	}

	out := make([]string, len(projects))
	for i, b := range bases {
		first := owner[b]
		if first == i {
			out[i] = b
			continue
		}

		if opts.Dedup != DedupSuffix {
			return nil, domain.NewPathCollisionError(b, projects[first].Name, projects[i].Name)
		}

		candidate := b
		for n := 1; taken[candidate]; n++ {
			candidate = fmt.Sprintf("%s~%d", b, n)
		}
		taken[candidate] = true
		out[i] = candidate

		logger.Warn().
			Str("project", projects[i].Name).
			Str("path", b).
			Str("conflicts_with", projects[first].Name).
			Str("renamed", candidate).
			Msg("Path collision resolved with suffix")
	}
	return out, nil
}
