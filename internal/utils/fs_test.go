package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "build", "kas", "project.yml")

	require.NoError(t, EnsureDir(out))
	assert.True(t, DirExists(filepath.Join(root, "build", "kas")))
	assert.False(t, FileExists(out), "only the parent is created")

	// existing parents are fine
	assert.NoError(t, EnsureDir(out))
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/.repo2kas/cache", filepath.Join(home, ".repo2kas", "cache")},
		{"~other/cache", "~other/cache"},
		{"/var/cache/repo2kas", "/var/cache/repo2kas"},
		{"manifests/default.xml", "manifests/default.xml"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestFileAndDirExists(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "default.xml")
	require.NoError(t, os.WriteFile(manifest, []byte("<manifest/>"), 0644))

	assert.True(t, FileExists(manifest))
	assert.False(t, DirExists(manifest))
	assert.True(t, DirExists(dir))
	assert.False(t, FileExists(dir))
	assert.False(t, FileExists(filepath.Join(dir, "missing.xml")))
	assert.False(t, DirExists(filepath.Join(dir, "missing")))
}
