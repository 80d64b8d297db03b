package scanner

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/fetcher"
	"github.com/quantmind-br/repo2kas/internal/utils"
)

// cgitDefaultBranches are probed when no revision is given
var cgitDefaultBranches = []string{"master", "main"}

// CgitLister lists trees by walking cgit "tree" pages
type CgitLister struct {
	client  *fetcher.Client
	headers map[string]string
	logger  *utils.Logger
}

// NewCgitLister creates a CgitLister. basicAuth is "user:password" or empty.
func NewCgitLister(client *fetcher.Client, basicAuth string, logger *utils.Logger) *CgitLister {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	headers := map[string]string{"Accept": "text/html"}
	if strings.Contains(basicAuth, ":") {
		headers["Authorization"] = fetcher.BasicAuth(basicAuth)
	}
	return &CgitLister{
		client:  client,
		headers: headers,
		logger:  logger.WithComponent("cgit"),
	}
}

// Detect reports whether the repository is served by cgit
func (c *CgitLister) Detect(ctx context.Context, ref domain.RepoRef) bool {
	u, err := ParseRepoURL(ref.URL)
	if err != nil {
		return false
	}
	revs := cgitDefaultBranches
	if rev := ShortRef(ref.Revision); rev != "" {
		revs = append([]string{rev}, revs...)
	}
	for _, rev := range revs {
		doc, err := c.page(ctx, treeURL(u, "", rev))
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			continue
		}
		if IsCgitPage(doc) {
			return true
		}
	}
	return false
}

// IsCgitPage looks for the generator meta tag, the cgit stylesheet or the
// cgit container id
func IsCgitPage(doc *goquery.Document) bool {
	if gen, ok := doc.Find(`meta[name="generator"]`).Attr("content"); ok &&
		strings.HasPrefix(strings.ToLower(gen), "cgit") {
		return true
	}
	if doc.Find(`link[href*="cgit.css"]`).Length() > 0 {
		return true
	}
	return doc.Find("#cgit").Length() > 0
}

// ListTree implements domain.TreeLister
func (c *CgitLister) ListTree(ctx context.Context, ref domain.RepoRef, prefix string, depth int) ([]domain.TreeEntry, error) {
	u, err := ParseRepoURL(ref.URL)
	if err != nil {
		return nil, err
	}
	prefix = strings.Trim(prefix, "/")

	rev := ShortRef(ref.Revision)
	var root *goquery.Document
	if rev == "" {
		for _, cand := range cgitDefaultBranches {
			if root, err = c.page(ctx, treeURL(u, prefix, cand)); err == nil {
				rev = cand
				break
			}
		}
	} else {
		root, err = c.page(ctx, treeURL(u, prefix, rev))
	}
	if err != nil {
		if domain.StatusCode(err) == 404 {
			return nil, fmt.Errorf("%w: %s on %s: %w", domain.ErrRevisionNotFound, ref.Revision, ref.URL, err)
		}
		return nil, err
	}

	type dir struct {
		path  string
		level int
		doc   *goquery.Document
	}
	var out []domain.TreeEntry
	stack := []dir{{path: prefix, level: 1, doc: root}}
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if d.doc == nil {
			d.doc, err = c.page(ctx, treeURL(u, d.path, rev))
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				status := domain.StatusCode(err)
				if status == 404 || status == 410 {
					c.logger.Debug().Str("path", d.path).Msg("Skipping missing cgit directory")
					continue
				}
				return nil, err
			}
		}

		for _, e := range parseCgitTree(d.doc, d.path) {
			out = append(out, e)
			if e.Type == domain.EntryTree && (depth <= 0 || d.level < depth) {
				stack = append(stack, dir{path: e.Path, level: d.level + 1})
			}
		}
	}

	c.logger.Debug().Str("repo", u.Path).Str("revision", rev).Int("entries", len(out)).Msg("Listed cgit tree")
	return out, nil
}

// parseCgitTree reads the entries of one cgit tree page. Directories link
// with class ls-dir, files with ls-blob; submodules are skipped.
func parseCgitTree(doc *goquery.Document, base string) []domain.TreeEntry {
	var out []domain.TreeEntry
	doc.Find("table.list a.ls-dir, table.list a.ls-blob").Each(func(_ int, a *goquery.Selection) {
		name := strings.Trim(strings.TrimSpace(a.Text()), "/")
		if name == "" || name == "." || name == ".." {
			return
		}
		p := name
		if base != "" {
			p = base + "/" + name
		}
		typ := domain.EntryBlob
		if a.HasClass("ls-dir") {
			typ = domain.EntryTree
		}
		out = append(out, domain.TreeEntry{Path: p, Type: typ})
	})
	return out
}

func (c *CgitLister) page(ctx context.Context, target string) (*goquery.Document, error) {
	resp, err := c.client.Get(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", target, err)
	}
	return doc, nil
}

func treeURL(u RepoURL, dir, rev string) string {
	p := u.Base() + "/tree/"
	if dir != "" {
		p += (&url.URL{Path: dir}).EscapedPath()
	}
	return p + "?h=" + url.QueryEscape(rev)
}
