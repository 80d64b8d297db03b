package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/fetcher"
	"github.com/quantmind-br/repo2kas/internal/utils"
)

// GitHubHost is the public GitHub host served by GitHubLister
const GitHubHost = "github.com"

// ErrTruncatedTree is returned when the forge could not list the whole tree
var ErrTruncatedTree = errors.New("tree listing truncated")

// GitHubLister lists trees through the GitHub REST API
type GitHubLister struct {
	client  *fetcher.Client
	apiBase string
	token   string
	logger  *utils.Logger
}

// NewGitHubLister creates a GitHubLister. apiBase defaults to the public API.
func NewGitHubLister(client *fetcher.Client, apiBase, token string, logger *utils.Logger) *GitHubLister {
	if apiBase == "" {
		apiBase = "https://api.github.com"
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &GitHubLister{
		client:  client,
		apiBase: strings.TrimRight(apiBase, "/"),
		token:   token,
		logger:  logger.WithComponent("github"),
	}
}

type githubRepo struct {
	DefaultBranch string `json:"default_branch"`
}

type githubCommit struct {
	SHA string `json:"sha"`
}

type githubTree struct {
	SHA  string `json:"sha"`
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

// ListTree implements domain.TreeLister
func (g *GitHubLister) ListTree(ctx context.Context, ref domain.RepoRef, prefix string, depth int) ([]domain.TreeEntry, error) {
	u, err := ParseRepoURL(ref.URL)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(u.Path, "/")
	if len(parts) < 2 {
		return nil, fmt.Errorf("GitHub URL must be like https://github.com/{owner}/{repo}: %s", ref.URL)
	}
	base := fmt.Sprintf("%s/repos/%s/%s", g.apiBase, parts[0], parts[1])

	rev := ShortRef(ref.Revision)
	if rev == "" {
		var repo githubRepo
		if err := g.getJSON(ctx, base, &repo); err != nil {
			return nil, err
		}
		if repo.DefaultBranch == "" {
			return nil, fmt.Errorf("could not determine default branch of %s", ref.URL)
		}
		rev = repo.DefaultBranch
	}

	var commit githubCommit
	if err := g.getJSON(ctx, base+"/commits/"+rev, &commit); err != nil {
		if domain.StatusCode(err) == 404 || domain.StatusCode(err) == 422 {
			return nil, fmt.Errorf("%w: %s on %s", domain.ErrRevisionNotFound, rev, ref.URL)
		}
		return nil, err
	}
	if commit.SHA == "" {
		return nil, fmt.Errorf("could not resolve %s on %s", rev, ref.URL)
	}

	var tree githubTree
	if err := g.getJSON(ctx, base+"/git/trees/"+commit.SHA+"?recursive=1", &tree); err != nil {
		return nil, err
	}
	if tree.Truncated {
		return nil, fmt.Errorf("%w: %s@%s", ErrTruncatedTree, ref.URL, commit.SHA)
	}

	g.logger.Debug().
		Str("repo", u.Path).
		Str("revision", rev).
		Str("sha", commit.SHA).
		Int("entries", len(tree.Tree)).
		Msg("Listed GitHub tree")

	entries := make([]domain.TreeEntry, 0, len(tree.Tree))
	for _, e := range tree.Tree {
		switch e.Type {
		case "blob":
			entries = append(entries, domain.TreeEntry{Path: e.Path, Type: domain.EntryBlob})
		case "tree":
			entries = append(entries, domain.TreeEntry{Path: e.Path, Type: domain.EntryTree})
		}
	}
	return FilterEntries(entries, prefix, depth), nil
}

func (g *GitHubLister) getJSON(ctx context.Context, target string, v any) error {
	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if g.token != "" {
		headers["Authorization"] = "Bearer " + g.token
	}
	resp, err := g.client.Get(ctx, target, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	return nil
}
