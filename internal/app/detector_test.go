package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectSource(t *testing.T) {
	tests := []struct {
		arg  string
		want SourceKind
	}{
		{"default.xml", SourceKindFile},
		{"./manifests/default.xml", SourceKindFile},
		{"/srv/manifests", SourceKindFile},
		{"file:///srv/manifests", SourceKindFile},
		{"https://github.com/example/manifests.git", SourceKindGit},
		{"HTTP://example.com/manifests", SourceKindGit},
		{"ssh://git@example.com/manifests", SourceKindGit},
		{"git://git.yoctoproject.org/manifests", SourceKindGit},
		{"git@github.com:example/manifests.git", SourceKindGit},
		{"gerrit.example.com:platform/manifest", SourceKindGit},
		{"C:/work/default.xml", SourceKindFile},
		{"", SourceKindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSource(tt.arg))
		})
	}
}
