package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/git"
	"github.com/quantmind-br/repo2kas/internal/utils"
)

// LocalLister walks a checked-out directory. The revision is ignored: the
// working tree is listed as it is on disk.
type LocalLister struct{}

// ListTree implements domain.TreeLister
func (LocalLister) ListTree(ctx context.Context, ref domain.RepoRef, prefix string, depth int) ([]domain.TreeEntry, error) {
	root := utils.ExpandPath(git.LocalPath(ref.URL))
	if !utils.DirExists(root) {
		return nil, fmt.Errorf("%s: not a directory", root)
	}
	prefix = strings.Trim(prefix, "/")
	start := filepath.Join(root, filepath.FromSlash(prefix))

	var out []domain.TreeEntry
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == start {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(start, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		level := strings.Count(rel, "/") + 1

		full := rel
		if prefix != "" {
			full = prefix + "/" + rel
		}
		if d.IsDir() {
			out = append(out, domain.TreeEntry{Path: full, Type: domain.EntryTree})
			if depth > 0 && level >= depth {
				return filepath.SkipDir
			}
			return nil
		}
		out = append(out, domain.TreeEntry{Path: full, Type: domain.EntryBlob})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
