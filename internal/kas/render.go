package kas

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quantmind-br/repo2kas/internal/domain"
	"gopkg.in/yaml.v3"
)

const rule = "# -----------------------------------------------------------------------------"

// Meta describes how a document was produced; it is rendered as a comment
// header above the YAML
type Meta struct {
	ToolVersion string
	Source      domain.SourceInfo
	PathPrefix  string
	PathDedup   string
}

// Render encodes a document as kas YAML with a comment header
func Render(doc *Document, meta Meta) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(Header(doc.Version, meta))
	buf.WriteByte('\n')

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc.Node()); err != nil {
		return nil, fmt.Errorf("failed to encode kas document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode kas document: %w", err)
	}
	return buf.Bytes(), nil
}

// Header returns the comment block recording the document provenance
func Header(version int, meta Meta) string {
	tool := meta.ToolVersion
	if tool == "" {
		tool = "dev"
	}
	lines := []string{
		rule,
		"# Generated by repo2kas " + tool,
		fmt.Sprintf("#   kas format: v%d", version),
	}

	src := meta.Source
	switch src.Type {
	case domain.SourceGit:
		lines = append(lines,
			"#   source: git repo",
			"#     repo:   "+orDefault(src.RepoURL, "(unknown)"),
			"#     branch: "+orDefault(src.Branch, "(default branch)"),
			"#     file:   "+orDefault(src.Filename, "default.xml"),
			"#     head:   "+orDefault(src.Commit, "(HEAD unknown)"),
			"#     pulled: "+formatTime(src.LoadedAt),
		)
	case domain.SourceFile:
		lines = append(lines,
			"#   source: local file",
			"#     file:   "+orDefault(src.Filename, "(unknown file)"),
			"#     parsed: "+formatTime(src.LoadedAt),
		)
	default:
		lines = append(lines, "#   source: (unspecified)")
	}

	if prefix := strings.TrimSpace(meta.PathPrefix); prefix != "" {
		lines = append(lines,
			"#   path_prefix: "+prefix,
			"#   path_dedup:  "+orDefault(meta.PathDedup, "off"),
		)
	}
	lines = append(lines, rule)
	return strings.Join(lines, "\n")
}

// Node builds the YAML node tree of the document
func (d *Document) Node() *yaml.Node {
	root := mapping()

	header := mapping()
	add(header, "version", intNode(d.Version))
	if len(d.Includes) > 0 {
		includes := &yaml.Node{Kind: yaml.SequenceNode}
		for _, inc := range d.Includes {
			if inc.Repo == "" {
				includes.Content = append(includes.Content, str(inc.File))
				continue
			}
			m := mapping()
			add(m, "repo", str(inc.Repo))
			add(m, "file", str(inc.File))
			includes.Content = append(includes.Content, m)
		}
		add(header, "includes", includes)
	}
	add(root, "header", header)

	if d.BuildSystem != "" {
		add(root, "build_system", str(d.BuildSystem))
	}
	if d.Defaults.Branch != "" || d.Defaults.Tag != "" {
		repos := mapping()
		if d.Defaults.Branch != "" {
			add(repos, "branch", str(d.Defaults.Branch))
		}
		if d.Defaults.Tag != "" {
			add(repos, "tag", str(d.Defaults.Tag))
		}
		defaults := mapping()
		add(defaults, "repos", repos)
		add(root, "defaults", defaults)
	}
	if d.Machine != "" {
		add(root, "machine", str(d.Machine))
	}
	if d.Distro != "" {
		add(root, "distro", str(d.Distro))
	}
	if len(d.Targets) > 0 {
		if d.TargetList {
			add(root, "target", strList(d.Targets))
		} else {
			add(root, "target", str(d.Targets[0]))
		}
	}
	if d.Task != "" {
		add(root, "task", str(d.Task))
	}
	if len(d.Env) > 0 {
		env := mapping()
		for _, v := range d.Env {
			if v.Value == nil {
				add(env, v.Name, null())
			} else {
				add(env, v.Name, str(*v.Value))
			}
		}
		add(root, "env", env)
	}
	addPairs(root, "bblayers_conf_header", d.BBLayersConfHeader)
	addPairs(root, "local_conf_header", d.LocalConfHeader)
	addPairs(root, "artifacts", d.Artifacts)

	if len(d.Repos) > 0 {
		repos := mapping()
		for _, r := range d.Repos {
			add(repos, r.Key, r.node())
		}
		add(root, "repos", repos)
	}
	return &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
}

func (r Repo) node() *yaml.Node {
	m := mapping()
	if r.URL != "" {
		add(m, "url", str(r.URL))
	}
	add(m, "path", str(r.Path))
	if r.Revision.Commit != "" {
		add(m, "commit", str(r.Revision.Commit))
	}
	if r.Revision.Branch != "" {
		add(m, "branch", str(r.Revision.Branch))
	}
	if r.Revision.Tag != "" {
		add(m, "tag", str(r.Revision.Tag))
	}
	if r.Revision.Refspec != "" {
		add(m, "refspec", str(r.Revision.Refspec))
	}

	layers := mapping()
	for _, l := range r.Layers {
		add(layers, l, null())
	}
	add(m, "layers", layers)

	if r.Name != "" {
		add(m, "name", str(r.Name))
	}
	return m
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode}
}

func add(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, str(key), value)
}

func addPairs(m *yaml.Node, key string, pairs []KeyValue) {
	if len(pairs) == 0 {
		return
	}
	sub := mapping()
	for _, kv := range pairs {
		add(sub, kv.Key, str(kv.Value))
	}
	add(m, key, sub)
}

func str(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func intNode(i int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(i)}
}

// null renders as an empty scalar ("key:") rather than "null"
func null() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: ""}
}

func strList(values []string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, v := range values {
		seq.Content = append(seq.Content, str(v))
	}
	return seq
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "(unknown time)"
	}
	return t.UTC().Format(time.RFC3339) + " (UTC)"
}
