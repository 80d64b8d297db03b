package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quantmind-br/repo2kas/internal/utils"
)

// ErrOutputExists is returned when the target file exists and Force is off
var ErrOutputExists = errors.New("output file already exists (use --force to overwrite)")

// Writer writes a rendered document to stdout or a file
type Writer struct {
	path   string
	force  bool
	dryRun bool
	stdout io.Writer
}

// WriterOptions contains options for the writer
type WriterOptions struct {
	// Path is the target file; empty or "-" means Stdout
	Path   string
	Force  bool
	DryRun bool
	Stdout io.Writer
}

// NewWriter creates a new output writer
func NewWriter(opts WriterOptions) *Writer {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	path := opts.Path
	if path == "-" {
		path = ""
	}
	return &Writer{
		path:   utils.ExpandPath(path),
		force:  opts.Force,
		dryRun: opts.DryRun,
		stdout: opts.Stdout,
	}
}

// Target returns the destination file, or "" for stdout
func (w *Writer) Target() string {
	return w.path
}

// Write stores data. Files are replaced atomically through a temporary
// file in the same directory.
func (w *Writer) Write(data []byte) error {
	if w.path == "" {
		_, err := w.stdout.Write(data)
		return err
	}

	if !w.force && utils.FileExists(w.path) {
		return fmt.Errorf("%w: %s", ErrOutputExists, w.path)
	}
	if w.dryRun {
		return nil
	}

	if err := utils.EnsureDir(w.path); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(w.path), ".repo2kas-*.yml")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", w.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), w.path)
}
