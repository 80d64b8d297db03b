package scanner

import (
	"context"

	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/git"
	"github.com/quantmind-br/repo2kas/internal/utils"
)

// CloneLister clones the repository into memory and walks the tree at the
// requested revision. It works for any host git can reach.
type CloneLister struct {
	git    git.Client
	token  func(host string) string
	logger *utils.Logger
}

// NewCloneLister creates a CloneLister. token may be nil; it returns the
// HTTPS token to use for a host.
func NewCloneLister(client git.Client, token func(host string) string, logger *utils.Logger) *CloneLister {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &CloneLister{
		git:    client,
		token:  token,
		logger: logger.WithComponent("clone"),
	}
}

// ListTree implements domain.TreeLister
func (c *CloneLister) ListTree(ctx context.Context, ref domain.RepoRef, prefix string, depth int) ([]domain.TreeEntry, error) {
	opts := git.OpenOptions{URL: ref.URL, Revision: ref.Revision}
	if c.token != nil && !git.IsLocal(ref.URL) {
		if u, err := ParseRepoURL(ref.URL); err == nil {
			opts.Token = c.token(u.Hostname())
		}
	}

	c.logger.Debug().Str("url", ref.URL).Str("revision", ref.Revision).Msg("Listing tree from clone")
	snap, err := c.git.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	return snap.List(prefix, depth)
}
