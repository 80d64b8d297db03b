package kas

import (
	"strings"
)

// Revision holds the revision fields of one repo entry. At most the fields
// valid for the target version are set.
type Revision struct {
	Commit  string
	Branch  string
	Tag     string
	Refspec string
}

// IsCommitID reports whether rev is a full SHA-1 or SHA-256 object id
func IsCommitID(rev string) bool {
	if len(rev) != 40 && len(rev) != 64 {
		return false
	}
	for _, c := range strings.ToLower(rev) {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// branchName strips refs/heads/ and origin/ from a branch reference
func branchName(ref string) string {
	for _, prefix := range []string{"refs/heads/", "origin/"} {
		if strings.HasPrefix(ref, prefix) {
			return strings.TrimPrefix(ref, prefix)
		}
	}
	return ref
}

// DeriveRevision maps a manifest revision to kas revision fields.
//
// Below version 14 the raw revision is a refspec. From 14 on, tags become
// tag (15+) or refspec refs/tags/X (14), commit ids become commit plus an
// optional branch taken from upstream, and anything else is a branch.
func DeriveRevision(rev, upstream string, version int) Revision {
	rev = strings.TrimSpace(rev)
	if rev == "" {
		return Revision{}
	}
	if !Supports(version, FeatureCommitBranch) {
		return Revision{Refspec: rev}
	}

	switch {
	case strings.HasPrefix(rev, "refs/tags/"):
		tag := strings.TrimPrefix(rev, "refs/tags/")
		if Supports(version, FeatureTag) {
			return Revision{Tag: tag}
		}
		return Revision{Refspec: rev}
	case strings.HasPrefix(rev, "refs/heads/"), strings.HasPrefix(rev, "origin/"):
		return Revision{Branch: branchName(rev)}
	case IsCommitID(rev):
		r := Revision{Commit: rev}
		if up := strings.TrimSpace(upstream); up != "" && !IsCommitID(up) && !strings.HasPrefix(up, "refs/tags/") {
			r.Branch = branchName(up)
		}
		return r
	}
	return Revision{Branch: rev}
}

// DeriveDefaults maps the manifest default revision to defaults.repos.
// Commit ids have no default form and are skipped.
func DeriveDefaults(rev string, version int) (branch, tag string) {
	rev = strings.TrimSpace(rev)
	if rev == "" || !Supports(version, FeatureCommitBranch) {
		return "", ""
	}
	switch {
	case strings.HasPrefix(rev, "refs/tags/"):
		if Supports(version, FeatureTag) {
			return "", strings.TrimPrefix(rev, "refs/tags/")
		}
		return "", ""
	case IsCommitID(rev):
		return "", ""
	}
	return branchName(rev), ""
}
