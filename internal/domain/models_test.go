package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProject_ID(t *testing.T) {
	tests := []struct {
		name     string
		project  string
		expected string
	}{
		{"Simple name", "poky", "poky"},
		{"Nested name", "openembedded/meta-openembedded", "meta-openembedded"},
		{"Trailing slash", "org/layer/", "layer"},
		{"Empty name", "", "repo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Project{Name: tt.project}.ID())
		})
	}
}

func TestResolvedManifest_ProjectByName(t *testing.T) {
	m := &ResolvedManifest{
		Projects: []Project{
			{Name: "poky", Revision: "kirkstone"},
			{Name: "meta-openembedded", Revision: "master"},
		},
	}

	p, ok := m.ProjectByName("meta-openembedded")
	assert.True(t, ok)
	assert.Equal(t, "master", p.Revision)

	_, ok = m.ProjectByName("missing")
	assert.False(t, ok)
}

func TestLayer_Base(t *testing.T) {
	assert.Equal(t, "meta-oe", Layer{Path: "meta-openembedded/meta-oe"}.Base())
	assert.Equal(t, "meta", Layer{Path: "meta"}.Base())
}

func TestDiagnostic_String(t *testing.T) {
	d := Diagnostic{Project: "poky", Message: "layer scan failed", Err: errors.New("timeout")}
	assert.Equal(t, "poky: layer scan failed: timeout", d.String())

	d = Diagnostic{Project: "poky", Message: "include rule matched nothing"}
	assert.Equal(t, "poky: include rule matched nothing", d.String())

	d = Diagnostic{Message: `include rule "meta-x" matched no layer`}
	assert.Equal(t, `include rule "meta-x" matched no layer`, d.String())
}
