package layers

import (
	"fmt"
	"sort"

	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/utils"
)

// Input is the scan outcome of one project
type Input struct {
	Project domain.Project
	Scanned []domain.Layer
	// ScanErr is set when the scan failed; Scanned is then empty
	ScanErr error
}

// Selection is the kept layer set of one project
type Selection struct {
	Project string
	Layers  []string
}

// Options configures a Filter
type Options struct {
	Rules      []Rule
	IncludeAll bool
	Hints      map[string][]string
	// Strict turns include rules that matched nothing into an error
	Strict bool
	Logger *utils.Logger
}

// Filter applies layer rules to scanned and hinted layers
type Filter struct {
	includes   []Rule
	excludes   []Rule
	includeAll bool
	hints      map[string][]string
	strict     bool
	logger     *utils.Logger
}

// NewFilter creates a Filter
func NewFilter(opts Options) *Filter {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	f := &Filter{
		includeAll: opts.IncludeAll,
		hints:      opts.Hints,
		strict:     opts.Strict,
		logger:     logger.WithComponent("layers"),
	}
	for _, r := range opts.Rules {
		if r.Exclude {
			f.excludes = append(f.excludes, r)
		} else {
			f.includes = append(f.includes, r)
		}
	}
	return f
}

// Apply selects layers for every input. Selections keep input order.
// Include rules that matched no layer are returned as diagnostics, or as a
// *domain.LayerRequestError when the filter is strict.
func (f *Filter) Apply(inputs []Input) ([]Selection, []domain.Diagnostic, error) {
	used := make([]bool, len(f.includes))
	out := make([]Selection, len(inputs))

	for i, in := range inputs {
		candidates := f.candidates(in)
		kept := f.keep(in.Project, candidates, used)
		out[i] = Selection{Project: in.Project.Name, Layers: kept}

		f.logger.Debug().
			Str("project", in.Project.Name).
			Int("candidates", len(candidates)).
			Int("kept", len(kept)).
			Msg("Layers selected")
	}

	if f.includeAll {
		return out, nil, nil
	}

	var missing []string
	var diags []domain.Diagnostic
	for i, r := range f.includes {
		if used[i] {
			continue
		}
		missing = append(missing, r.String())
		diags = append(diags, domain.Diagnostic{
			Project: r.Project,
			Message: fmt.Sprintf("include rule %q matched no layer", r.String()),
		})
		f.logger.Warn().Str("rule", r.String()).Msg("Include rule matched no layer")
	}

	if len(missing) > 0 && f.strict {
		return nil, diags, f.requestError(missing, inputs)
	}
	return out, diags, nil
}

// candidates returns scanned layers followed by hints, deduplicated by
// path. A failed scan trusts the project-qualified include rules.
func (f *Filter) candidates(in Input) []domain.Layer {
	seen := make(map[string]bool)
	var out []domain.Layer
	add := func(l domain.Layer) {
		if seen[l.Path] {
			return
		}
		seen[l.Path] = true
		out = append(out, l)
	}

	for _, l := range in.Scanned {
		add(l)
	}
	for key, paths := range f.hints {
		if !matchesProject(key, in.Project) {
			continue
		}
		for _, p := range paths {
			add(domain.Layer{Project: in.Project.Name, Path: p, Provenance: domain.ProvenanceHinted})
		}
	}
	if in.ScanErr != nil {
		for _, r := range f.includes {
			if r.Project != "" && r.AppliesTo(in.Project) {
				add(domain.Layer{Project: in.Project.Name, Path: r.Pattern, Provenance: domain.ProvenanceHinted})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Provenance == domain.ProvenanceScanned && out[j].Provenance != domain.ProvenanceScanned
	})
	return out
}

func (f *Filter) keep(p domain.Project, candidates []domain.Layer, used []bool) []string {
	kept := make(map[string]bool)

	if f.includeAll {
		for _, c := range candidates {
			kept[c.Path] = true
		}
	} else {
		for i, r := range f.includes {
			if !r.AppliesTo(p) {
				continue
			}
			var byPath, byBase []string
			for _, c := range candidates {
				switch {
				case r.MatchesPath(c.Path):
					byPath = append(byPath, c.Path)
				case r.MatchesBase(c.Path):
					byBase = append(byBase, c.Path)
				}
			}
			matched := byPath
			if len(matched) == 0 {
				matched = byBase
			}
			for _, m := range matched {
				kept[m] = true
			}
			if len(matched) > 0 {
				used[i] = true
			}
		}
	}

	for _, r := range f.excludes {
		if !r.AppliesTo(p) {
			continue
		}
		for path := range kept {
			if r.Matches(path) {
				delete(kept, path)
			}
		}
	}

	out := make([]string, 0, len(kept))
	for path := range kept {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func (f *Filter) requestError(missing []string, inputs []Input) *domain.LayerRequestError {
	e := &domain.LayerRequestError{
		Missing:   missing,
		Available: make(map[string][]string),
		Failed:    make(map[string]string),
	}
	for _, in := range inputs {
		id := in.Project.ID()
		if in.ScanErr != nil {
			e.Failed[id] = in.ScanErr.Error()
			continue
		}
		var paths []string
		for _, l := range f.candidates(in) {
			paths = append(paths, l.Path)
		}
		sort.Strings(paths)
		e.Available[id] = paths
	}
	return e
}
