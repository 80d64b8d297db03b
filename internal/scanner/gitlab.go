package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/fetcher"
	"github.com/quantmind-br/repo2kas/internal/utils"
)

const gitlabPerPage = 100

// GitLabLister lists trees through the GitLab REST v4 API
type GitLabLister struct {
	client *fetcher.Client
	token  string
	hosts  map[string]bool
	logger *utils.Logger
}

// NewGitLabLister creates a GitLabLister serving the given hosts
func NewGitLabLister(client *fetcher.Client, token string, hosts []string, logger *utils.Logger) *GitLabLister {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	set := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			set[h] = true
		}
	}
	return &GitLabLister{
		client: client,
		token:  token,
		hosts:  set,
		logger: logger.WithComponent("gitlab"),
	}
}

// Handles reports whether host is a configured GitLab instance
func (g *GitLabLister) Handles(u RepoURL) bool {
	return g.hosts[u.Host] || g.hosts[u.Hostname()]
}

type gitlabEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

type gitlabProject struct {
	DefaultBranch string `json:"default_branch"`
}

// ListTree implements domain.TreeLister
func (g *GitLabLister) ListTree(ctx context.Context, ref domain.RepoRef, prefix string, depth int) ([]domain.TreeEntry, error) {
	u, err := ParseRepoURL(ref.URL)
	if err != nil {
		return nil, err
	}
	base := fmt.Sprintf("%s://%s/api/v4/projects/%s", u.Scheme, u.Host, url.PathEscape(u.Path))

	rev := ShortRef(ref.Revision)
	if rev == "" {
		var project gitlabProject
		if err := g.getJSON(ctx, base, &project); err != nil {
			return nil, err
		}
		if project.DefaultBranch == "" {
			return nil, fmt.Errorf("could not determine default branch of %s", ref.URL)
		}
		rev = project.DefaultBranch
	}
	prefix = strings.Trim(prefix, "/")

	entries, err := g.listRecursive(ctx, base, rev, prefix)
	if err != nil {
		status := domain.StatusCode(err)
		switch status {
		case 400, 422:
			g.logger.Debug().Int("status", status).Str("repo", u.Path).Msg("Recursive tree refused, walking directories")
			entries, err = g.listWalk(ctx, base, rev, prefix, depth)
		case 404:
			return nil, fmt.Errorf("%w: %s on %s: %w", domain.ErrRevisionNotFound, rev, ref.URL, err)
		}
		if err != nil {
			return nil, err
		}
	}

	return FilterEntries(entries, prefix, depth), nil
}

func (g *GitLabLister) listRecursive(ctx context.Context, base, rev, prefix string) ([]domain.TreeEntry, error) {
	var out []domain.TreeEntry
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("ref", rev)
		q.Set("recursive", "true")
		q.Set("per_page", strconv.Itoa(gitlabPerPage))
		q.Set("page", strconv.Itoa(page))
		if prefix != "" {
			q.Set("path", prefix)
		}

		var batch []gitlabEntry
		if err := g.getJSON(ctx, base+"/repository/tree?"+q.Encode(), &batch); err != nil {
			return nil, err
		}
		out = appendGitLabEntries(out, batch)

		if len(batch) < gitlabPerPage {
			return out, nil
		}
	}
}

// listWalk lists one directory per request, descending at most depth levels
func (g *GitLabLister) listWalk(ctx context.Context, base, rev, prefix string, depth int) ([]domain.TreeEntry, error) {
	type dir struct {
		path  string
		level int
	}
	var out []domain.TreeEntry
	stack := []dir{{path: prefix, level: 1}}
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for page := 1; ; page++ {
			q := url.Values{}
			q.Set("ref", rev)
			q.Set("per_page", strconv.Itoa(gitlabPerPage))
			q.Set("page", strconv.Itoa(page))
			if d.path != "" {
				q.Set("path", d.path)
			}
			var batch []gitlabEntry
			if err := g.getJSON(ctx, base+"/repository/tree?"+q.Encode(), &batch); err != nil {
				return nil, err
			}
			out = appendGitLabEntries(out, batch)
			for _, e := range batch {
				if e.Type == "tree" && (depth <= 0 || d.level < depth) {
					stack = append(stack, dir{path: e.Path, level: d.level + 1})
				}
			}
			if len(batch) < gitlabPerPage {
				break
			}
		}
	}
	return out, nil
}

func appendGitLabEntries(out []domain.TreeEntry, batch []gitlabEntry) []domain.TreeEntry {
	for _, e := range batch {
		switch e.Type {
		case "blob":
			out = append(out, domain.TreeEntry{Path: e.Path, Type: domain.EntryBlob})
		case "tree":
			out = append(out, domain.TreeEntry{Path: e.Path, Type: domain.EntryTree})
		}
	}
	return out
}

func (g *GitLabLister) getJSON(ctx context.Context, target string, v any) error {
	headers := map[string]string{"Accept": "application/json"}
	if g.token != "" {
		headers["PRIVATE-TOKEN"] = g.token
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
