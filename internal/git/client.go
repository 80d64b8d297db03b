package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/utils"
)

var commitSHA = regexp.MustCompile(`^[0-9a-fA-F]{40}([0-9a-fA-F]{24})?$`)

// RealClient implements Client using go-git
type RealClient struct {
	logger *utils.Logger
}

// NewClient creates a new RealClient
func NewClient(logger *utils.Logger) *RealClient {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &RealClient{logger: logger.WithComponent("git")}
}

// Snapshot is a repository tree pinned at one commit
type Snapshot struct {
	URL    string
	Ref    string // branch or tag name the revision resolved through, if any
	Commit string
	tree   *object.Tree
}

// Open implements Client
func (c *RealClient) Open(ctx context.Context, opts OpenOptions) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var repo *git.Repository
	var err error
	rev := opts.Revision
	if IsLocal(opts.URL) {
		repo, err = git.PlainOpenWithOptions(LocalPath(opts.URL), &git.PlainOpenOptions{DetectDotGit: true})
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", opts.URL, err)
		}
	} else {
		repo, err = c.clone(ctx, opts)
		if err != nil {
			return nil, err
		}
		// single-ref clones leave HEAD on the requested revision
		if !commitSHA.MatchString(rev) {
			rev = ""
		}
	}

	commit, ref, err := resolveCommit(repo, rev)
	if err != nil {
		return nil, fmt.Errorf("%s@%s: %w", opts.URL, opts.Revision, err)
	}
	if rev == "" && opts.Revision != "" {
		ref = strings.TrimPrefix(strings.TrimPrefix(opts.Revision, "refs/heads/"), "refs/tags/")
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("read tree of %s: %w", commit.Hash, err)
	}

	return &Snapshot{
		URL:    opts.URL,
		Ref:    ref,
		Commit: commit.Hash.String(),
		tree:   tree,
	}, nil
}

// clone fetches a remote repository into memory. Named revisions get a
// shallow single-branch clone; commit SHAs need the full history.
func (c *RealClient) clone(ctx context.Context, opts OpenOptions) (*git.Repository, error) {
	base := git.CloneOptions{
		URL:        opts.URL,
		NoCheckout: true,
		Tags:       git.NoTags,
	}
	if opts.Token != "" {
		base.Auth = &githttp.BasicAuth{
			Username: "token",
			Password: opts.Token,
		}
	}

	rev := opts.Revision
	var attempts []git.CloneOptions
	switch {
	case rev == "":
		o := base
		o.Depth = 1
		o.SingleBranch = true
		attempts = append(attempts, o)
	case commitSHA.MatchString(rev):
		o := base
		o.Tags = git.AllTags
		attempts = append(attempts, o)
	default:
		for _, name := range candidateRefs(rev) {
			o := base
			o.Depth = 1
			o.SingleBranch = true
			o.ReferenceName = name
			attempts = append(attempts, o)
		}
	}

	var lastErr error
	for i := range attempts {
		o := attempts[i]
		c.logger.Debug().
			Str("url", opts.URL).
			Str("ref", o.ReferenceName.String()).
			Int("depth", o.Depth).
			Msg("Cloning repository")

		repo, err := git.CloneContext(ctx, memory.NewStorage(), nil, &o)
		if err == nil {
			return repo, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !isMissingRef(err) {
			break
		}
	}

	if isMissingRef(lastErr) {
		return nil, fmt.Errorf("clone %s: %w: %s", opts.URL, domain.ErrRevisionNotFound, rev)
	}
	return nil, fmt.Errorf("clone %s: %w", opts.URL, lastErr)
}

// candidateRefs lists the full reference names a symbolic revision may name
func candidateRefs(rev string) []plumbing.ReferenceName {
	switch {
	case strings.HasPrefix(rev, "refs/"):
		return []plumbing.ReferenceName{plumbing.ReferenceName(rev)}
	case strings.HasPrefix(rev, "origin/"):
		return []plumbing.ReferenceName{plumbing.NewBranchReferenceName(strings.TrimPrefix(rev, "origin/"))}
	default:
		return []plumbing.ReferenceName{
			plumbing.NewBranchReferenceName(rev),
			plumbing.NewTagReferenceName(rev),
		}
	}
}

func isMissingRef(err error) bool {
	if err == nil {
		return false
	}
	var noMatch git.NoMatchingRefSpecError
	if errors.As(err, &noMatch) {
		return true
	}
	return errors.Is(err, plumbing.ErrReferenceNotFound)
}

// resolveCommit finds the commit a revision names in repo
func resolveCommit(repo *git.Repository, rev string) (*object.Commit, string, error) {
	if rev == "" {
		head, err := repo.Head()
		if err != nil {
			return nil, "", fmt.Errorf("resolve HEAD: %w", err)
		}
		commit, err := repo.CommitObject(head.Hash())
		if err != nil {
			return nil, "", err
		}
		return commit, head.Name().Short(), nil
	}

	if commitSHA.MatchString(rev) {
		commit, err := repo.CommitObject(plumbing.NewHash(rev))
		if err != nil {
			return nil, "", fmt.Errorf("%w: %s", domain.ErrRevisionNotFound, rev)
		}
		return commit, "", nil
	}

	names := candidateRefs(rev)
	if !strings.HasPrefix(rev, "refs/") {
		names = append(names, plumbing.NewRemoteReferenceName("origin", strings.TrimPrefix(rev, "origin/")))
	}
	for _, name := range names {
		ref, err := repo.Reference(name, true)
		if err != nil {
			continue
		}
		commit, err := peel(repo, ref.Hash())
		if err != nil {
			return nil, "", err
		}
		return commit, name.Short(), nil
	}

	// abbreviated hashes and other revision syntax
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", domain.ErrRevisionNotFound, rev)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, "", err
	}
	return commit, "", nil
}

// peel follows annotated tags down to their commit
func peel(repo *git.Repository, hash plumbing.Hash) (*object.Commit, error) {
	if tag, err := repo.TagObject(hash); err == nil {
		return tag.Commit()
	}
	return repo.CommitObject(hash)
}

// ReadFile returns the content of a file in the snapshot
func (s *Snapshot) ReadFile(name string) ([]byte, error) {
	f, err := s.tree.File(strings.TrimPrefix(path.Clean(name), "/"))
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return nil, err
	}
	r, err := f.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// HasFile reports whether name exists as a file in the snapshot
func (s *Snapshot) HasFile(name string) bool {
	_, err := s.tree.File(strings.TrimPrefix(path.Clean(name), "/"))
	return err == nil
}

// List returns the entries below prefix whose path has at most depth
// segments relative to prefix. depth <= 0 means unbounded. Submodules
// are skipped.
func (s *Snapshot) List(prefix string, depth int) ([]domain.TreeEntry, error) {
	root := s.tree
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		sub, err := s.tree.Tree(prefix)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", prefix, err)
		}
		root = sub
	}

	var out []domain.TreeEntry
	if err := walkTree(root, prefix, 1, depth, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkTree(t *object.Tree, base string, level, maxDepth int, out *[]domain.TreeEntry) error {
	for _, e := range t.Entries {
		p := e.Name
		if base != "" {
			p = base + "/" + e.Name
		}

		switch e.Mode {
		case filemode.Submodule:
			continue
		case filemode.Dir:
			*out = append(*out, domain.TreeEntry{Path: p, Type: domain.EntryTree})
			if maxDepth > 0 && level >= maxDepth {
				continue
			}
			sub, err := t.Tree(e.Name)
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			if err := walkTree(sub, p, level+1, maxDepth, out); err != nil {
				return err
			}
		default:
			*out = append(*out, domain.TreeEntry{Path: p, Type: domain.EntryBlob})
		}
	}
	return nil
}

// WorktreeRoot returns the top directory of the git worktree containing dir
func WorktreeRoot(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	return wt.Filesystem.Root(), nil
}

// IsLocal reports whether url names a local repository
func IsLocal(url string) bool {
	return strings.HasPrefix(url, "file://") || strings.HasPrefix(url, "/") ||
		strings.HasPrefix(url, "./") || strings.HasPrefix(url, "../")
}

// LocalPath strips the file:// scheme from a local repository URL
func LocalPath(url string) string {
	return strings.TrimPrefix(url, "file://")
}
