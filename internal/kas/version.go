// Package kas builds kas project configuration documents.
//
// A document targets one kas format version. Version selects which
// optional fields may be written and how repository revisions are
// represented; see FeatureMinVersion.
package kas

import (
	"github.com/quantmind-br/repo2kas/internal/domain"
)

// Supported kas format versions
const (
	MinVersion     = 1
	MaxVersion     = 20
	DefaultVersion = 14
)

// Feature is a document capability gated by format version
type Feature string

const (
	FeatureTask         Feature = "task"
	FeatureTargetList   Feature = "target_list"
	FeatureEnv          Feature = "env"
	FeatureBuildSystem  Feature = "build_system"
	FeatureEnvNull      Feature = "env_null"
	FeatureCommitBranch Feature = "commit_branch"
	FeatureTag          Feature = "tag"
	FeatureArtifacts    Feature = "artifacts"
)

// FeatureMinVersion is the first format version supporting each feature
var FeatureMinVersion = map[Feature]int{
	FeatureTask:         3,
	FeatureTargetList:   4,
	FeatureEnv:          6,
	FeatureBuildSystem:  10,
	FeatureEnvNull:      13,
	FeatureCommitBranch: 14,
	FeatureTag:          15,
	FeatureArtifacts:    17,
}

// featureOrder fixes the order in which requested features are checked
var featureOrder = []Feature{
	FeatureTask,
	FeatureTargetList,
	FeatureEnv,
	FeatureBuildSystem,
	FeatureEnvNull,
	FeatureCommitBranch,
	FeatureTag,
	FeatureArtifacts,
}

// Clamp forces a version into the supported range
func Clamp(version int) int {
	switch {
	case version < MinVersion:
		return MinVersion
	case version > MaxVersion:
		return MaxVersion
	}
	return version
}

// Supports reports whether version can express f
func Supports(version int, f Feature) bool {
	first, ok := FeatureMinVersion[f]
	return ok && version >= first
}

// Check returns an *domain.UnsupportedFeatureError for the first requested
// feature the version cannot express
func Check(version int, requested []Feature) error {
	want := make(map[Feature]bool, len(requested))
	for _, f := range requested {
		want[f] = true
	}
	for _, f := range featureOrder {
		if want[f] && !Supports(version, f) {
			return domain.NewUnsupportedFeatureError(string(f), FeatureMinVersion[f], version)
		}
	}
	return nil
}
