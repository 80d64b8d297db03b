package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/fetcher"
	"github.com/quantmind-br/repo2kas/internal/git"
	"github.com/quantmind-br/repo2kas/internal/utils"
)

// RouterOptions wires the host listers of a Router
type RouterOptions struct {
	HTTP          *fetcher.Client
	Git           git.Client
	GitHubAPI     string
	GitHubToken   string
	GitLabToken   string
	GitLabHosts   []string
	CgitBasicAuth string
	// CloneFallback enables cloning when the host lister fails or no
	// host lister applies
	CloneFallback bool
	Logger        *utils.Logger
}

// Router picks a TreeLister by repository host and falls back to cloning
type Router struct {
	github        *GitHubLister
	gitlab        *GitLabLister
	cgit          *CgitLister
	local         domain.TreeLister
	clone         domain.TreeLister
	cloneFallback bool
	logger        *utils.Logger
}

// Ensure Router implements domain.TreeLister
var _ domain.TreeLister = (*Router)(nil)

// NewRouter creates a Router. API listers are only available when an HTTP
// client is given; cloning only when a git client is given.
func NewRouter(opts RouterOptions) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	r := &Router{
		local:         LocalLister{},
		cloneFallback: opts.CloneFallback,
		logger:        logger.WithComponent("router"),
	}
	if opts.HTTP != nil {
		r.github = NewGitHubLister(opts.HTTP, opts.GitHubAPI, opts.GitHubToken, logger)
		r.gitlab = NewGitLabLister(opts.HTTP, opts.GitLabToken, opts.GitLabHosts, logger)
		r.cgit = NewCgitLister(opts.HTTP, opts.CgitBasicAuth, logger)
	}
	if opts.Git != nil {
		r.clone = NewCloneLister(opts.Git, r.tokenFor(opts), logger)
	}
	return r
}

func (r *Router) tokenFor(opts RouterOptions) func(string) string {
	return func(host string) string {
		switch {
		case host == GitHubHost:
			return opts.GitHubToken
		case r.gitlab != nil && r.gitlab.hosts[host]:
			return opts.GitLabToken
		}
		return ""
	}
}

// ListTree implements domain.TreeLister
func (r *Router) ListTree(ctx context.Context, ref domain.RepoRef, prefix string, depth int) ([]domain.TreeEntry, error) {
	primary, name := r.pick(ctx, ref)

	if primary == nil {
		if r.clone == nil || !r.cloneFallback {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedHost, ref.URL)
		}
		return r.clone.ListTree(ctx, ref, prefix, depth)
	}

	entries, err := primary.ListTree(ctx, ref, prefix, depth)
	if err == nil {
		return entries, nil
	}
	if ctx.Err() != nil || r.clone == nil || !r.cloneFallback {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	r.logger.Warn().
		Err(err).
		Str("project", ref.Project).
		Str("lister", name).
		Msg("Layer discovery failed, falling back to a temporary clone")

	entries, cloneErr := r.clone.ListTree(ctx, ref, prefix, depth)
	if cloneErr != nil {
		return nil, errors.Join(fmt.Errorf("%s: %w", name, err), fmt.Errorf("clone fallback: %w", cloneErr))
	}
	return entries, nil
}

// pick returns the host lister for ref, or nil when none applies
func (r *Router) pick(ctx context.Context, ref domain.RepoRef) (domain.TreeLister, string) {
	if git.IsLocal(ref.URL) {
		return r.local, "local"
	}
	u, err := ParseRepoURL(ref.URL)
	if err != nil {
		return nil, ""
	}

	switch {
	case r.github != nil && (u.Hostname() == GitHubHost || strings.HasSuffix(u.Hostname(), "."+GitHubHost)):
		return r.github, "github"
	case r.gitlab != nil && r.gitlab.Handles(u):
		return r.gitlab, "gitlab"
	case r.cgit != nil && r.cgit.Detect(ctx, ref):
		return r.cgit, "cgit"
	}
	return nil, ""
}
