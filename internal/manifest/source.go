package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/git"
	"github.com/quantmind-br/repo2kas/internal/utils"
)

// IncludeFetcher returns the parsed document an <include name="..."/>
// element refers to
type IncludeFetcher interface {
	Fetch(name string) (*Node, error)
}

// DirSource reads included documents from a local directory. When Root is
// set, includes resolving outside it are logged as warnings.
type DirSource struct {
	Dir    string
	Root   string
	Logger *utils.Logger
}

// Fetch implements IncludeFetcher
func (s DirSource) Fetch(name string) (*Node, error) {
	full := filepath.Join(s.Dir, filepath.FromSlash(name))
	if s.Root != "" && !within(s.Root, full) && s.Logger != nil {
		s.Logger.Warn().
			Str("include", name).
			Str("file", full).
			Str("repo_root", s.Root).
			Msg("Included manifest is outside the manifest repository")
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrManifestNotFound, full)
		}
		return nil, fmt.Errorf("read %s: %w", full, err)
	}
	return Parse(name, data)
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// GitSource reads included documents from a manifest repository snapshot.
// Names are relative to Dir inside the tree.
type GitSource struct {
	Snapshot *git.Snapshot
	Dir      string
}

// Fetch implements IncludeFetcher
func (s GitSource) Fetch(name string) (*Node, error) {
	p := path.Join(s.Dir, name)
	if !s.Snapshot.HasFile(p) {
		return nil, fmt.Errorf("%w: %s in %s", domain.ErrManifestNotFound, p, s.Snapshot.URL)
	}
	data, err := s.Snapshot.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return Parse(name, data)
}

// MapSource serves documents from memory, keyed by include name
type MapSource map[string]*Node

// Fetch implements IncludeFetcher
func (s MapSource) Fetch(name string) (*Node, error) {
	n, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrManifestNotFound, name)
	}
	return n, nil
}
