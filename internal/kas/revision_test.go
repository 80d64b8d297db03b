package kas

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sha = "0123456789abcdef0123456789abcdef01234567"

func TestIsCommitID(t *testing.T) {
	assert.True(t, IsCommitID(sha))
	assert.True(t, IsCommitID(strings.ToUpper(sha)))
	assert.True(t, IsCommitID(strings.Repeat("a", 64)))
	assert.False(t, IsCommitID(sha[:39]))
	assert.False(t, IsCommitID(strings.Repeat("g", 40)))
	assert.False(t, IsCommitID("main"))
}

func TestDeriveRevision(t *testing.T) {
	tests := []struct {
		name     string
		rev      string
		upstream string
		version  int
		want     Revision
	}{
		{"empty", "", "", 14, Revision{}},
		{"legacy refspec", "scarthgap", "", 13, Revision{Refspec: "scarthgap"}},
		{"legacy keeps tag ref", "refs/tags/v1.0", "", 11, Revision{Refspec: "refs/tags/v1.0"}},
		{"plain branch", "scarthgap", "", 14, Revision{Branch: "scarthgap"}},
		{"heads ref", "refs/heads/kirkstone", "", 14, Revision{Branch: "kirkstone"}},
		{"origin ref", "origin/master", "", 14, Revision{Branch: "master"}},
		{"tag on 15", "refs/tags/yocto-5.0", "", 15, Revision{Tag: "yocto-5.0"}},
		{"tag on 14", "refs/tags/yocto-5.0", "", 14, Revision{Refspec: "refs/tags/yocto-5.0"}},
		{"commit", sha, "", 14, Revision{Commit: sha}},
		{"commit with upstream", sha, "refs/heads/scarthgap", 14, Revision{Commit: sha, Branch: "scarthgap"}},
		{"commit ignores tag upstream", sha, "refs/tags/v1", 20, Revision{Commit: sha}},
		{"trimmed", "  main ", "", 20, Revision{Branch: "main"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveRevision(tt.rev, tt.upstream, tt.version))
		})
	}
}

func TestDeriveDefaults(t *testing.T) {
	tests := []struct {
		rev        string
		version    int
		wantBranch string
		wantTag    string
	}{
		{"scarthgap", 14, "scarthgap", ""},
		{"refs/heads/master", 14, "master", ""},
		{"scarthgap", 13, "", ""},
		{"refs/tags/v2", 15, "", "v2"},
		{"refs/tags/v2", 14, "", ""},
		{sha, 20, "", ""},
		{"", 20, "", ""},
	}
	for _, tt := range tests {
		branch, tag := DeriveDefaults(tt.rev, tt.version)
		assert.Equal(t, tt.wantBranch, branch, "branch for %q v%d", tt.rev, tt.version)
		assert.Equal(t, tt.wantTag, tag, "tag for %q v%d", tt.rev, tt.version)
	}
}
