package manifest

import (
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/utils"
)

// Element and attribute names understood by the resolver
const (
	elemRemote        = "remote"
	elemDefault       = "default"
	elemProject       = "project"
	elemInclude       = "include"
	elemRemoveProject = "remove-project"
	elemExtendProject = "extend-project"
)

// ResolverOptions configures a Resolver
type ResolverOptions struct {
	Logger *utils.Logger
	// ManifestURL is the URL of the manifest repository. Relative remote
	// fetch locations are resolved against it.
	ManifestURL string
}

// Resolver flattens an include graph into a ResolvedManifest
type Resolver struct {
	fetcher     IncludeFetcher
	logger      *utils.Logger
	manifestURL string
}

// NewResolver creates a Resolver reading includes through fetcher
func NewResolver(fetcher IncludeFetcher, opts ResolverOptions) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Resolver{
		fetcher:     fetcher,
		logger:      logger.WithComponent("manifest"),
		manifestURL: opts.ManifestURL,
	}
}

// entry is a project plus the sequence number of its latest definition
type entry struct {
	project domain.Project
	seq     int
}

type removeOp struct {
	name, path string
	seq        int
}

type extendOp struct {
	node *Node
	doc  string
}

// state accumulates everything seen during traversal
type state struct {
	remotes  map[string]domain.Remote
	def      domain.Default
	entries  []*entry
	index    map[string]*entry
	removes  []removeOp
	extends  []extendOp
	includes []string
	seen     map[string]bool
	seq      int
}

func newState() *state {
	return &state{
		remotes: make(map[string]domain.Remote),
		index:   make(map[string]*entry),
		seen:    make(map[string]bool),
	}
}

// Resolve walks root and everything it includes and returns the merged
// project list. name identifies root in the include chain.
func (r *Resolver) Resolve(name string, root *Node) (*domain.ResolvedManifest, error) {
	name = path.Clean(name)
	st := newState()
	visiting := make(map[string]bool)
	if err := r.visit(name, root, nil, visiting, st); err != nil {
		return nil, err
	}

	projects := r.applyQueued(st)

	for i := range projects {
		if err := r.resolveProject(name, &projects[i], st); err != nil {
			return nil, err
		}
	}

	return &domain.ResolvedManifest{
		Projects: projects,
		Remotes:  st.remotes,
		Default:  st.def,
		Includes: st.includes,
	}, nil
}

func (r *Resolver) visit(name string, doc *Node, chain []string, visiting map[string]bool, st *state) error {
	chain = append(chain, name)
	if visiting[name] {
		return domain.NewManifestCycleError(chain)
	}
	visiting[name] = true
	defer delete(visiting, name)

	r.logger.Debug().Str("document", name).Int("depth", len(chain)).Msg("Visiting manifest")

	for _, n := range doc.Children {
		switch n.Name {
		case elemRemote:
			if err := mergeRemote(name, n, st); err != nil {
				return err
			}
		case elemDefault:
			mergeDefault(n, st)
		}
	}

	for _, n := range doc.Children {
		switch n.Name {
		case elemRemote, elemDefault, elemInclude:
		case elemProject:
			if err := mergeProject(name, n, st); err != nil {
				return err
			}
		case elemRemoveProject:
			if n.Attr("name") == "" && n.Attr("path") == "" {
				return domain.NewManifestParseError(name, "", "<remove-project> needs a name or path", nil)
			}
			st.seq++
			st.removes = append(st.removes, removeOp{name: n.Attr("name"), path: n.Attr("path"), seq: st.seq})
		case elemExtendProject:
			if n.Attr("name") == "" {
				return domain.NewManifestParseError(name, "", "<extend-project> without a name", nil)
			}
			st.extends = append(st.extends, extendOp{node: n, doc: name})
		default:
			r.logger.Debug().Str("document", name).Str("element", n.Name).Msg("Ignoring element")
		}
	}

	for _, n := range doc.Elements(elemInclude) {
		inc := n.Attr("name")
		if inc == "" {
			return domain.NewManifestParseError(name, "", "<include> without a name", nil)
		}
		inc = path.Clean(inc)
		if !st.seen[inc] {
			st.seen[inc] = true
			st.includes = append(st.includes, inc)
		}

		// cycles are detected before fetching so a self-include never reads
		if visiting[inc] {
			return domain.NewManifestCycleError(append(chain, inc))
		}

		child, err := r.fetcher.Fetch(inc)
		if err != nil {
			var pe *domain.ManifestParseError
			if errors.As(err, &pe) {
				return err
			}
			return domain.NewManifestParseError(name, "", "cannot load include "+inc, err)
		}
		if err := r.visit(inc, child, chain, visiting, st); err != nil {
			return err
		}
	}
	return nil
}

func mergeRemote(doc string, n *Node, st *state) error {
	name := n.Attr("name")
	if name == "" {
		return domain.NewManifestParseError(doc, "", "<remote> without a name", nil)
	}
	rm := st.remotes[name]
	rm.Name = name
	if n.Has("fetch") {
		rm.Fetch = n.Attr("fetch")
	}
	if n.Has("revision") {
		rm.Revision = n.Attr("revision")
	}
	st.remotes[name] = rm
	return nil
}

func mergeDefault(n *Node, st *state) {
	if n.Has("remote") {
		st.def.Remote = n.Attr("remote")
	}
	if n.Has("revision") {
		st.def.Revision = n.Attr("revision")
	}
	if n.Has("upstream") {
		st.def.Upstream = n.Attr("upstream")
	}
	if n.Has("dest-branch") {
		st.def.DestBranch = n.Attr("dest-branch")
	}
	if n.Has("sync-j") {
		st.def.SyncJ = n.Attr("sync-j")
	}
}

func mergeProject(doc string, n *Node, st *state) error {
	name := n.Attr("name")
	if name == "" {
		return domain.NewManifestParseError(doc, "", "<project> without a name", nil)
	}

	st.seq++
	e, ok := st.index[name]
	if !ok {
		e = &entry{project: domain.Project{Name: name}}
		st.index[name] = e
		st.entries = append(st.entries, e)
	}
	e.seq = st.seq

	p := &e.project
	if n.Has("path") {
		p.Path = strings.Trim(n.Attr("path"), "/")
	}
	if n.Has("remote") {
		p.Remote = n.Attr("remote")
	}
	if n.Has("revision") {
		p.Revision = n.Attr("revision")
	}
	if n.Has("groups") {
		p.Groups = splitGroups(n.Attr("groups"))
	}
	if n.Has("upstream") {
		p.Upstream = n.Attr("upstream")
	}
	if n.Has("dest-branch") {
		p.DestBranch = n.Attr("dest-branch")
	}
	if n.Has("clone-depth") {
		p.CloneDepth = n.Attr("clone-depth")
	}
	return nil
}

// applyQueued runs the remove and extend operations collected during
// traversal and returns the surviving projects in resolver order.
// A removal only affects definitions made before it, so the common
// remove-then-redefine pattern keeps the new definition.
func (r *Resolver) applyQueued(st *state) []domain.Project {
	removed := make(map[*entry]bool)
	for _, op := range st.removes {
		matched := false
		for _, e := range st.entries {
			if removed[e] || e.seq > op.seq || !op.matches(e.project) {
				continue
			}
			removed[e] = true
			matched = true
		}
		if !matched {
			r.logger.Debug().Str("name", op.name).Str("path", op.path).Msg("remove-project matched nothing")
		}
	}

	projects := make([]domain.Project, 0, len(st.entries))
	for _, e := range st.entries {
		if !removed[e] {
			projects = append(projects, e.project)
		}
	}

	for _, op := range st.extends {
		matched := false
		for i := range projects {
			if extendProject(&projects[i], op.node) {
				matched = true
			}
		}
		if !matched {
			r.logger.Debug().Str("document", op.doc).Str("name", op.node.Attr("name")).Msg("extend-project matched nothing")
		}
	}
	return projects
}

func (op removeOp) matches(p domain.Project) bool {
	switch {
	case op.name != "" && op.path != "":
		return p.Name == op.name && p.Path == strings.Trim(op.path, "/")
	case op.name != "":
		return p.Name == op.name
	default:
		return p.Path == strings.Trim(op.path, "/")
	}
}

// extendProject applies an <extend-project> element to p when it targets p
func extendProject(p *domain.Project, n *Node) bool {
	if p.Name != n.Attr("name") {
		return false
	}
	if n.Has("path") && p.Path != strings.Trim(n.Attr("path"), "/") {
		return false
	}

	if n.Has("revision") {
		p.Revision = n.Attr("revision")
	}
	if n.Has("remote") {
		p.Remote = n.Attr("remote")
	}
	if n.Has("dest-branch") {
		p.DestBranch = n.Attr("dest-branch")
	}
	if n.Has("upstream") {
		p.Upstream = n.Attr("upstream")
	}
	if n.Has("groups") {
		for _, g := range splitGroups(n.Attr("groups")) {
			if !contains(p.Groups, g) {
				p.Groups = append(p.Groups, g)
			}
		}
	}
	if n.Has("dest-path") {
		p.Path = strings.Trim(n.Attr("dest-path"), "/")
	}
	return true
}

// resolveProject fills in the remote, revision and URL of p
func (r *Resolver) resolveProject(doc string, p *domain.Project, st *state) error {
	remoteName := p.Remote
	if remoteName == "" {
		remoteName = st.def.Remote
	}
	if remoteName == "" {
		return domain.NewManifestParseError(doc, p.Name, "no remote and no default remote", nil)
	}
	remote, ok := st.remotes[remoteName]
	if !ok {
		return domain.NewManifestParseError(doc, p.Name, "unknown remote "+remoteName, nil)
	}
	p.Remote = remoteName

	if p.Revision == "" {
		p.Revision = remote.Revision
	}
	if p.Revision == "" {
		p.Revision = st.def.Revision
	}
	if p.Revision == "" {
		return domain.NewManifestParseError(doc, p.Name, "no revision on project, remote or default", nil)
	}

	if p.Upstream == "" {
		p.Upstream = st.def.Upstream
	}
	if p.DestBranch == "" {
		p.DestBranch = st.def.DestBranch
	}

	fetch := r.resolveFetch(remote.Fetch)
	p.URL = JoinFetch(fetch, p.Name)
	return nil
}

// resolveFetch turns a relative fetch location into an absolute one using
// the manifest repository URL. For scp-like URLs (user@host:path) the first
// path segment stays attached to the host, as repo does.
func (r *Resolver) resolveFetch(fetch string) string {
	if !isRelativeFetch(fetch) || r.manifestURL == "" {
		return fetch
	}
	ref, err := url.Parse(strings.TrimRight(fetch, "/"))
	if err != nil {
		r.logger.Warn().Str("fetch", fetch).Err(err).Msg("Cannot resolve relative fetch")
		return fetch
	}
	manifestURL := strings.TrimRight(r.manifestURL, "/")

	if host, rest, ok := splitSCP(manifestURL); ok {
		first, tail, _ := strings.Cut(rest, "/")
		base := &url.URL{Path: "/" + tail}
		if tail == "" {
			base.Path = ""
		}
		return host + ":" + first + base.ResolveReference(ref).Path
	}

	base, err := url.Parse(manifestURL)
	if err != nil || base.Scheme == "" {
		r.logger.Warn().Str("fetch", fetch).Str("manifest_url", r.manifestURL).Msg("Cannot resolve relative fetch")
		return fetch
	}
	return base.ResolveReference(ref).String()
}

// splitSCP splits an scp-like user@host:path location at its first colon
func splitSCP(s string) (host, rest string, ok bool) {
	if strings.Contains(s, "://") {
		return "", "", false
	}
	i := strings.Index(s, ":")
	if i <= 0 || strings.Contains(s[:i], "/") {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// JoinFetch builds a project URL from a remote fetch location and a
// project name
func JoinFetch(fetch, name string) string {
	fetch = strings.TrimRight(fetch, "/")
	name = strings.Trim(name, "/")
	if fetch == "" {
		return name
	}
	return fetch + "/" + name
}

func isRelativeFetch(fetch string) bool {
	if fetch == "" || strings.Contains(fetch, "://") {
		return false
	}
	if strings.HasPrefix(fetch, ".") {
		return true
	}
	if _, _, ok := splitSCP(fetch); ok {
		return false
	}
	return !strings.HasPrefix(fetch, "/")
}

func splitGroups(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
