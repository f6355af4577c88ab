// Package blob writes report artifacts to a directory. Every artifact is
// written to a temporary file next to its target and renamed into place, so
// a file that exists under its final name is always complete.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"reports/internal/table"
)

// ErrEmptyTable is returned by WriteCSV when there are no columns or no
// rows. No file is created.
var ErrEmptyTable = errors.New("empty table")

// File describes a written artifact.
type File struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Size    int64    `json:"size"`
	Entries int      `json:"entries,omitempty"`
	Skipped []string `json:"skipped,omitempty"` // archive sources that no longer exist
}

// Writer stores report artifacts by name.
type Writer interface {
	WriteCSV(ctx context.Context, name string, cols *table.Columns, rows []table.Row) (*File, error)
	WriteArchive(ctx context.Context, name string, paths []string) (*File, error)
}

// Dir is a Writer rooted at a local directory.
type Dir struct {
	root string
}

// NewDir creates root if needed and returns a Writer for it.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the output directory.
func (d *Dir) Root() string { return d.root }

// Path returns where an artifact name is stored.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.root, filepath.Base(name))
}

// atomicWrite streams fill into a temp file and renames it to name.
func (d *Dir) atomicWrite(name string, fill func(w io.Writer) error) (*File, error) {
	target := d.Path(name)
	tmp, err := os.CreateTemp(d.root, "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := fill(tmp); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return nil, fmt.Errorf("rename %s: %w", name, err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	return &File{Name: filepath.Base(name), Path: target, Size: info.Size()}, nil
}
