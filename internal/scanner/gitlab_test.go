package scanner

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gitlabFixture serves one project whose tree has more than one page
type gitlabFixture struct {
	refuseRecursive bool
	requests        int32
}

func (f *gitlabFixture) files() []gitlabEntry {
	out := []gitlabEntry{
		{Path: "meta-bsp", Type: "tree"},
		{Path: "meta-bsp/conf", Type: "tree"},
		{Path: "meta-bsp/conf/layer.conf", Type: "blob"},
		{Path: "docs", Type: "tree"},
	}
	for i := 0; i < 120; i++ {
		out = append(out, gitlabEntry{Path: fmt.Sprintf("docs/page%03d.md", i), Type: "blob"})
	}
	return out
}

func (f *gitlabFixture) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.requests, 1)
	const project = "/api/v4/projects/group/meta-vendor"

	if r.Header.Get("PRIVATE-TOKEN") != "gl-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch r.URL.Path {
	case project:
		writeJSON(w, map[string]any{"default_branch": "main"})
		return
	case project + "/repository/tree":
	default:
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	if q.Get("ref") != "main" && q.Get("ref") != "kirkstone" {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]any{"message": "404 Tree Not Found"})
		return
	}

	var entries []gitlabEntry
	if q.Get("recursive") == "true" {
		if f.refuseRecursive {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		entries = f.files()
	} else {
		dir := q.Get("path")
		for _, e := range f.files() {
			parent := ""
			if i := strings.LastIndex(e.Path, "/"); i >= 0 {
				parent = e.Path[:i]
			}
			if parent == dir {
				entries = append(entries, e)
			}
		}
	}

	perPage, _ := strconv.Atoi(q.Get("per_page"))
	page, _ := strconv.Atoi(q.Get("page"))
	start := (page - 1) * perPage
	if start > len(entries) {
		start = len(entries)
	}
	end := start + perPage
	if end > len(entries) {
		end = len(entries)
	}
	writeJSON(w, entries[start:end])
}

func newGitLabTest(t *testing.T, refuse bool) (*GitLabLister, *gitlabFixture, string) {
	t.Helper()
	f := &gitlabFixture{refuseRecursive: refuse}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	host := strings.TrimPrefix(srv.URL, "http://")
	lister := NewGitLabLister(newHTTPClient(t), "gl-token", []string{host}, nil)
	return lister, f, srv.URL + "/group/meta-vendor.git"
}

func TestGitLabLister_ListTree(t *testing.T) {
	lister, f, repoURL := newGitLabTest(t, false)

	entries, err := lister.ListTree(context.Background(), domain.RepoRef{URL: repoURL}, "", 0)
	require.NoError(t, err)

	assert.Len(t, entries, 124)
	assert.Equal(t, []string{"meta-bsp"}, LayersFromTree(entries, 3))
	// project lookup plus two pages
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.requests))
}

func TestGitLabLister_FallsBackToDirectoryWalk(t *testing.T) {
	lister, _, repoURL := newGitLabTest(t, true)

	entries, err := lister.ListTree(context.Background(), domain.RepoRef{URL: repoURL, Revision: "refs/heads/kirkstone"}, "", 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"meta-bsp"}, LayersFromTree(entries, 3))
	assert.Len(t, entries, 124)
}

func TestGitLabLister_UnknownRevision(t *testing.T) {
	lister, _, repoURL := newGitLabTest(t, false)

	_, err := lister.ListTree(context.Background(), domain.RepoRef{URL: repoURL, Revision: "nope"}, "", 0)
	assert.ErrorIs(t, err, domain.ErrRevisionNotFound)
}

func TestGitLabLister_Handles(t *testing.T) {
	lister := NewGitLabLister(nil, "", []string{"gitlab.com", " GitLab.Example.org "}, nil)

	assert.True(t, lister.Handles(RepoURL{Host: "gitlab.com"}))
	assert.True(t, lister.Handles(RepoURL{Host: "gitlab.example.org:8443"}))
	assert.False(t, lister.Handles(RepoURL{Host: "github.com"}))
}
