package scanner

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/quantmind-br/repo2kas/internal/domain"
)

// RepoURL is a repository URL split into the parts the listers need
type RepoURL struct {
	Scheme string
	Host   string // lower-cased, may carry a port
	Path   string // without surrounding slashes and without .git
}

// Base returns scheme://host/path
func (u RepoURL) Base() string {
	return u.Scheme + "://" + u.Host + "/" + u.Path
}

// Hostname returns the host without a port
func (u RepoURL) Hostname() string {
	if i := strings.LastIndex(u.Host, ":"); i >= 0 && !strings.Contains(u.Host[i:], "]") {
		return u.Host[:i]
	}
	return u.Host
}

// ParseRepoURL accepts http(s), ssh and scp-like (git@host:path) URLs.
// ssh and git schemes are mapped to https for API access.
func ParseRepoURL(raw string) (RepoURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RepoURL{}, fmt.Errorf("empty repository URL")
	}

	if !strings.Contains(raw, "://") {
		at := strings.Index(raw, "@")
		colon := strings.Index(raw, ":")
		if colon > 0 && at < colon && !strings.Contains(raw[:colon], "/") {
			host := raw[at+1 : colon]
			return newRepoURL("https", host, raw[colon+1:])
		}
		return RepoURL{}, fmt.Errorf("not a remote repository URL: %s", raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return RepoURL{}, fmt.Errorf("parse %s: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "http", "https":
	case "ssh", "git", "git+ssh", "ssh+git":
		scheme = "https"
		// ssh ports are meaningless for https API access
		return newRepoURL(scheme, u.Hostname(), u.Path)
	default:
		return RepoURL{}, fmt.Errorf("%w: scheme %s", domain.ErrUnsupportedHost, u.Scheme)
	}
	return newRepoURL(scheme, u.Host, u.Path)
}

func newRepoURL(scheme, host, p string) (RepoURL, error) {
	p = strings.TrimSuffix(strings.Trim(p, "/"), ".git")
	if host == "" || p == "" {
		return RepoURL{}, fmt.Errorf("repository URL needs a host and a path")
	}
	return RepoURL{Scheme: scheme, Host: strings.ToLower(host), Path: p}, nil
}

// ShortRef strips the ref namespaces forge APIs do not want
func ShortRef(rev string) string {
	for _, prefix := range []string{"refs/heads/", "refs/tags/", "origin/"} {
		if strings.HasPrefix(rev, prefix) {
			return strings.TrimPrefix(rev, prefix)
		}
	}
	return rev
}

// FilterEntries keeps the entries below prefix whose path has at most
// depth segments relative to prefix. depth <= 0 means unbounded.
func FilterEntries(entries []domain.TreeEntry, prefix string, depth int) []domain.TreeEntry {
	prefix = strings.Trim(prefix, "/")
	out := entries[:0:0]
	for _, e := range entries {
		rel := strings.Trim(e.Path, "/")
		if prefix != "" {
			if !strings.HasPrefix(rel, prefix+"/") {
				continue
			}
			rel = strings.TrimPrefix(rel, prefix+"/")
		}
		if depth > 0 && strings.Count(rel, "/")+1 > depth {
			continue
		}
		out = append(out, e)
	}
	return out
}
