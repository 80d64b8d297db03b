package app

import (
	"strings"
)

// SourceKind tells where a manifest argument points
type SourceKind string

const (
	SourceKindFile    SourceKind = "file"
	SourceKindGit     SourceKind = "git"
	SourceKindUnknown SourceKind = "unknown"
)

// DetectSource classifies a manifest argument. Remote URLs and scp-like
// addresses are manifest repositories; anything else is a local path.
func DetectSource(arg string) SourceKind {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return SourceKindUnknown
	}
	lower := strings.ToLower(arg)

	if strings.HasPrefix(lower, "file://") {
		return SourceKindFile
	}
	for _, scheme := range []string{"http://", "https://", "ssh://", "git://", "git+ssh://"} {
		if strings.HasPrefix(lower, scheme) {
			return SourceKindGit
		}
	}
	if strings.HasPrefix(arg, "git@") {
		return SourceKindGit
	}
	// host:path without a slash before the colon
	if colon := strings.Index(arg, ":"); colon > 0 && !strings.Contains(arg[:colon], "/") &&
		strings.Contains(arg[:colon], ".") && !strings.HasSuffix(lower, ".xml") {
		return SourceKindGit
	}
	return SourceKindFile
}
