package kas

import (
	"fmt"
	"strings"

	"github.com/quantmind-br/repo2kas/internal/domain"
)

// Document is a kas project configuration. Fields are rendered in
// declaration order; empty optional fields are omitted.
type Document struct {
	Version     int
	Includes    []Include
	BuildSystem string
	Defaults    RepoDefaults
	Machine     string
	Distro      string
	Targets     []string
	// TargetList renders target as a sequence instead of a scalar
	TargetList         bool
	Task               string
	Env                []EnvVar
	BBLayersConfHeader []KeyValue
	LocalConfHeader    []KeyValue
	Artifacts          []KeyValue
	Repos              []Repo
}

// RepoDefaults is the defaults.repos section
type RepoDefaults struct {
	Branch string
	Tag    string
}

// Repo is one entry of the repos mapping
type Repo struct {
	Key      string
	URL      string
	Path     string
	Revision Revision
	Layers   []string
	// Name is the full project name when it differs from Key
	Name string
}

// Assemble builds a document for version from resolved repo entries, the
// build context and the manifest defaults. version is clamped first. A
// requested feature the version cannot express is an
// *domain.UnsupportedFeatureError.
func Assemble(version int, entries []domain.RepoEntry, build Build, defaults domain.Default) (*Document, error) {
	version = Clamp(version)
	if err := Check(version, build.RequestedFeatures()); err != nil {
		return nil, err
	}

	doc := &Document{
		Version:            version,
		Includes:           build.Includes,
		BuildSystem:        build.BuildSystem,
		Machine:            build.Machine,
		Distro:             build.Distro,
		Targets:            build.Targets,
		TargetList:         Supports(version, FeatureTargetList),
		Task:               build.Task,
		BBLayersConfHeader: build.BBLayersConfHeader,
		LocalConfHeader:    build.LocalConfHeader,
		Artifacts:          build.Artifacts,
	}
	doc.Defaults.Branch, doc.Defaults.Tag = DeriveDefaults(defaults.Revision, version)

	if len(build.Env) > 0 {
		doc.Env = make([]EnvVar, len(build.Env))
		for i, v := range build.Env {
			if v.Value == nil && !Supports(version, FeatureEnvNull) {
				empty := ""
				v.Value = &empty
			}
			doc.Env[i] = v
		}
	}

	keys := newKeySet()
	for _, e := range entries {
		key := keys.claim(e)
		repo := Repo{
			Key:      key,
			URL:      e.URL,
			Path:     e.Path,
			Revision: DeriveRevision(e.Revision, e.Upstream, version),
			Layers:   e.Layers,
		}
		if e.Name != "" && e.Name != key {
			repo.Name = e.Name
		}
		doc.Repos = append(doc.Repos, repo)
	}
	return doc, nil
}

// keySet hands out unique repos keys. The preferred key is the repo id;
// on collision the full name with "/" replaced by "_" is tried, then a ~N
// suffix.
type keySet map[string]bool

func newKeySet() keySet {
	return make(keySet)
}

func (k keySet) claim(e domain.RepoEntry) string {
	id := e.ID
	if id == "" {
		id = domain.Project{Name: e.Name}.ID()
	}
	candidates := []string{id}
	if e.Name != "" {
		candidates = append(candidates, strings.ReplaceAll(strings.Trim(e.Name, "/"), "/", "_"))
	}
	for _, c := range candidates {
		if !k[c] {
			k[c] = true
			return c
		}
	}
	base := candidates[len(candidates)-1]
	for n := 1; ; n++ {
		c := fmt.Sprintf("%s~%d", base, n)
		if !k[c] {
			k[c] = true
			return c
		}
	}
}
