package domain

import (
	"strings"
	"time"
)

// Remote is a named fetch location declared by a manifest
type Remote struct {
	Name     string
	Fetch    string
	Revision string // default revision for projects using this remote
}

// Default holds the manifest-wide <default> attributes
type Default struct {
	Remote     string
	Revision   string
	Upstream   string
	DestBranch string
	SyncJ      string
}

// Project is one source repository entry of a manifest.
// Optional attributes are empty when the manifest did not set them.
type Project struct {
	Name       string
	Path       string
	Remote     string
	Revision   string
	Groups     []string
	Upstream   string
	DestBranch string
	CloneDepth string

	// URL is filled in once the owning remote has been resolved
	URL string
}

// ID returns the repo key used in the output document: the last segment of
// the project name.
func (p Project) ID() string {
	name := strings.TrimRight(p.Name, "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" {
		return "repo"
	}
	return name
}

// SourceType identifies where a manifest was loaded from
type SourceType string

const (
	SourceFile SourceType = "file"
	SourceGit  SourceType = "git"
)

// SourceInfo records the provenance of a loaded manifest
type SourceInfo struct {
	Type     SourceType
	Filename string
	RepoURL  string
	Branch   string
	Commit   string
	LoadedAt time.Time
}

// ResolvedManifest is the flat, merged project list produced by include
// resolution. Projects keep resolver order.
type ResolvedManifest struct {
	Projects []Project
	Remotes  map[string]Remote
	Default  Default
	Includes []string
	Source   SourceInfo
}

// ProjectByName returns the project with the given name
func (m *ResolvedManifest) ProjectByName(name string) (Project, bool) {
	for _, p := range m.Projects {
		if p.Name == name {
			return p, true
		}
	}
	return Project{}, false
}

// Provenance tells how a layer was discovered
type Provenance string

const (
	ProvenanceScanned Provenance = "scanned"
	ProvenanceHinted  Provenance = "hinted"
)

// Layer is a layer directory inside a project tree
type Layer struct {
	Project    string // project name
	Path       string // path relative to the project root, no trailing slash
	Provenance Provenance
}

// Base returns the final path segment of the layer
func (l Layer) Base() string {
	if idx := strings.LastIndex(l.Path, "/"); idx >= 0 {
		return l.Path[idx+1:]
	}
	return l.Path
}

// EntryType is the kind of a repository tree entry
type EntryType string

const (
	EntryBlob EntryType = "blob"
	EntryTree EntryType = "tree"
)

// TreeEntry is one path returned by a tree listing
type TreeEntry struct {
	Path string
	Type EntryType
}

// RepoRef identifies repository content at a revision
type RepoRef struct {
	Project  string
	URL      string
	Revision string
}

// RepoEntry is the unit written to the output document
type RepoEntry struct {
	ID       string
	Name     string
	Path     string
	URL      string
	Revision string
	Upstream string
	Layers   []string
}

// Diagnostic is a non-fatal problem reported alongside a complete document
type Diagnostic struct {
	Project string
	Message string
	Err     error
}

func (d Diagnostic) String() string {
	s := d.Message
	if d.Project != "" {
		s = d.Project + ": " + s
	}
	if d.Err != nil {
		s += ": " + d.Err.Error()
	}
	return s
}
