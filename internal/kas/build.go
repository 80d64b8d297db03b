package kas

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quantmind-br/repo2kas/internal/domain"
)

// EnvVar is one entry of the env mapping. A nil Value asks kas to take the
// value from the calling environment.
type EnvVar struct {
	Name  string
	Value *string
}

// KeyValue is one entry of an ordered string mapping
type KeyValue struct {
	Key   string
	Value string
}

// Include is one header include. Repo is empty for same-repo includes.
type Include struct {
	Repo string
	File string
}

// Build is the build context copied into a document
type Build struct {
	Machine            string
	Distro             string
	Targets            []string
	Task               string
	BuildSystem        string
	Env                []EnvVar
	BBLayersConfHeader []KeyValue
	LocalConfHeader    []KeyValue
	Artifacts          []KeyValue
	Includes           []Include
}

// RequestedFeatures lists the gated features the build context asks for
func (b Build) RequestedFeatures() []Feature {
	var out []Feature
	if b.Task != "" {
		out = append(out, FeatureTask)
	}
	if len(b.Targets) > 1 {
		out = append(out, FeatureTargetList)
	}
	if len(b.Env) > 0 {
		out = append(out, FeatureEnv)
	}
	if b.BuildSystem != "" {
		out = append(out, FeatureBuildSystem)
	}
	if len(b.Artifacts) > 0 {
		out = append(out, FeatureArtifacts)
	}
	return out
}

// ParseEnv parses KEY or KEY=VALUE entries. Later entries replace earlier
// ones with the same key in place.
func ParseEnv(specs []string) ([]EnvVar, error) {
	var out []EnvVar
	index := make(map[string]int)
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		v := EnvVar{Name: spec}
		if name, value, ok := strings.Cut(spec, "="); ok {
			v = EnvVar{Name: strings.TrimSpace(name), Value: &value}
		}
		if v.Name == "" || strings.ContainsAny(v.Name, " \t") {
			return nil, domain.NewValidationError("build.env", fmt.Sprintf("%q is not KEY or KEY=VALUE", spec))
		}
		if i, ok := index[v.Name]; ok {
			out[i] = v
			continue
		}
		index[v.Name] = len(out)
		out = append(out, v)
	}
	return out, nil
}

// ParseIncludes parses header includes given as "file" or "repo:file"
func ParseIncludes(specs []string) []Include {
	var out []Include
	seen := make(map[Include]bool)
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		inc := Include{File: spec}
		if repo, file, ok := strings.Cut(spec, ":"); ok && repo != "" && file != "" {
			inc = Include{Repo: strings.TrimSpace(repo), File: strings.TrimSpace(file)}
		}
		if seen[inc] {
			continue
		}
		seen[inc] = true
		out = append(out, inc)
	}
	return out
}

// SortedPairs turns a map into key-sorted pairs
func SortedPairs(m map[string]string) []KeyValue {
	out := make([]KeyValue, 0, len(m))
	for k, v := range m {
		out = append(out, KeyValue{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
