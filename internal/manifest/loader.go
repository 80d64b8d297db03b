package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/git"
	"github.com/quantmind-br/repo2kas/internal/utils"
)

// DefaultManifests are tried in order when no manifest file is named
var DefaultManifests = []string{
	"default.xml",
	".repo/manifests/default.xml",
	"manifests/default.xml",
}

// LoaderOptions configures a Loader
type LoaderOptions struct {
	Git    git.Client
	Logger *utils.Logger
	// Token authenticates clones of the manifest repository
	Token string
}

// Loader reads a root manifest from a local file or a git repository and
// resolves its includes
type Loader struct {
	git    git.Client
	logger *utils.Logger
	token  string
	now    func() time.Time
}

// NewLoader creates a new manifest loader
func NewLoader(opts LoaderOptions) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	client := opts.Git
	if client == nil {
		client = git.NewClient(logger)
	}
	return &Loader{
		git:    client,
		logger: logger,
		token:  opts.Token,
		now:    time.Now,
	}
}

// LoadFile reads a manifest from disk. When path is a directory the
// default manifest names are tried inside it.
func (l *Loader) LoadFile(path string) (*domain.ResolvedManifest, error) {
	abs, err := filepath.Abs(utils.ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	if utils.DirExists(abs) {
		found := ""
		for _, cand := range DefaultManifests {
			p := filepath.Join(abs, filepath.FromSlash(cand))
			if utils.FileExists(p) {
				found = p
				break
			}
		}
		if found == "" {
			return nil, fmt.Errorf("%w: tried %s inside %s", domain.ErrManifestNotFound,
				strings.Join(DefaultManifests, ", "), abs)
		}
		abs = found
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrManifestNotFound, abs)
		}
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	name := filepath.Base(abs)
	root, err := Parse(name, data)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(abs)
	repoRoot, err := git.WorktreeRoot(dir)
	if err != nil {
		l.logger.Warn().Str("file", abs).Msg("Manifest is not inside a git repository")
		repoRoot = ""
	}

	src := DirSource{Dir: dir, Root: repoRoot, Logger: l.logger}
	resolver := NewResolver(src, ResolverOptions{Logger: l.logger})
	m, err := resolver.Resolve(name, root)
	if err != nil {
		return nil, err
	}

	m.Source = domain.SourceInfo{
		Type:     domain.SourceFile,
		Filename: abs,
		LoadedAt: l.now().UTC(),
	}
	l.logger.Info().
		Str("file", abs).
		Int("projects", len(m.Projects)).
		Int("includes", len(m.Includes)).
		Msg("Manifest loaded")
	return m, nil
}

// LoadGit clones a manifest repository at branch (default branch when
// empty) and resolves file inside it. An empty file tries the default
// manifest names.
func (l *Loader) LoadGit(ctx context.Context, url, branch, file string) (*domain.ResolvedManifest, error) {
	if url == "" {
		return nil, domain.NewValidationError("git-url", "manifest repository URL is required")
	}

	l.logger.Info().Str("url", url).Str("branch", branch).Msg("Fetching manifest repository")
	snap, err := l.git.Open(ctx, git.OpenOptions{URL: url, Revision: branch, Token: l.token})
	if err != nil {
		return nil, fmt.Errorf("fetch manifest repository: %w", err)
	}

	candidates := DefaultManifests
	if file != "" {
		candidates = append([]string{file}, DefaultManifests...)
	}
	found := ""
	for _, cand := range candidates {
		cand = strings.TrimPrefix(path.Clean(cand), "/")
		if snap.HasFile(cand) {
			found = cand
			break
		}
	}
	if found == "" {
		return nil, fmt.Errorf("%w: tried %s in %s", domain.ErrManifestNotFound, strings.Join(candidates, ", "), url)
	}

	data, err := snap.ReadFile(found)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", found, err)
	}
	root, err := Parse(found, data)
	if err != nil {
		return nil, err
	}

	dir := path.Dir(found)
	if dir == "." {
		dir = ""
	}
	resolver := NewResolver(GitSource{Snapshot: snap, Dir: dir}, ResolverOptions{
		Logger:      l.logger,
		ManifestURL: url,
	})
	m, err := resolver.Resolve(found, root)
	if err != nil {
		return nil, err
	}

	ref := snap.Ref
	if ref == "" {
		ref = branch
	}
	m.Source = domain.SourceInfo{
		Type:     domain.SourceGit,
		Filename: found,
		RepoURL:  url,
		Branch:   ref,
		Commit:   snap.Commit,
		LoadedAt: l.now().UTC(),
	}
	l.logger.Info().
		Str("url", url).
		Str("file", found).
		Str("commit", snap.Commit).
		Int("projects", len(m.Projects)).
		Msg("Manifest loaded")
	return m, nil
}
