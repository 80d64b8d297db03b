package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/kas"
	"github.com/quantmind-br/repo2kas/internal/utils"
)

// Report summarises a conversion for tooling: the manifest source, the
// emitted repos and every diagnostic
type Report struct {
	GeneratedAt time.Time          `json:"generated_at"`
	KasVersion  int                `json:"kas_version"`
	Source      ReportSource       `json:"source"`
	Includes    []string           `json:"includes,omitempty"`
	Repos       []ReportRepo       `json:"repos"`
	Diagnostics []ReportDiagnostic `json:"diagnostics,omitempty"`
}

// ReportSource describes where the manifest came from
type ReportSource struct {
	Type     string `json:"type"`
	Filename string `json:"filename,omitempty"`
	RepoURL  string `json:"repo_url,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Commit   string `json:"commit,omitempty"`
}

// ReportRepo is one emitted repo
type ReportRepo struct {
	Key    string   `json:"key"`
	Name   string   `json:"name,omitempty"`
	URL    string   `json:"url"`
	Path   string   `json:"path"`
	Layers []string `json:"layers"`
}

// ReportDiagnostic is one non-fatal problem
type ReportDiagnostic struct {
	Project string `json:"project,omitempty"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// NewReport builds a report from a manifest, its document and diagnostics
func NewReport(m *domain.ResolvedManifest, doc *kas.Document, diags []domain.Diagnostic) *Report {
	r := &Report{
		GeneratedAt: time.Now().UTC(),
		KasVersion:  doc.Version,
		Repos:       make([]ReportRepo, 0, len(doc.Repos)),
	}
	if m != nil {
		r.Source = ReportSource{
			Type:     string(m.Source.Type),
			Filename: m.Source.Filename,
			RepoURL:  m.Source.RepoURL,
			Branch:   m.Source.Branch,
			Commit:   m.Source.Commit,
		}
		r.Includes = m.Includes
	}
	for _, repo := range doc.Repos {
		layers := repo.Layers
		if layers == nil {
			layers = []string{}
		}
		r.Repos = append(r.Repos, ReportRepo{
			Key:    repo.Key,
			Name:   repo.Name,
			URL:    repo.URL,
			Path:   repo.Path,
			Layers: layers,
		})
	}
	for _, d := range diags {
		rd := ReportDiagnostic{Project: d.Project, Message: d.Message}
		if d.Err != nil {
			rd.Error = d.Err.Error()
		}
		r.Diagnostics = append(r.Diagnostics, rd)
	}
	return r
}

// WriteJSON writes the report as indented JSON to path
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	path = utils.ExpandPath(path)
	if err := utils.EnsureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// PrintDiagnostics writes one line per diagnostic
func PrintDiagnostics(w io.Writer, diags []domain.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "warning: %s\n", d.String())
	}
}
