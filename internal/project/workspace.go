package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidPath is returned for file paths that are absolute, escape the
// project directory or point into git metadata.
var ErrInvalidPath = errors.New("invalid file path")

// MaxFileSize bounds a single file read back from a workspace.
const MaxFileSize = 5 << 20

// Workspace maps projects to working directories under a root directory.
type Workspace struct {
	root string
}

// NewWorkspace creates a Workspace rooted at root.
func NewWorkspace(root string) *Workspace {
	return &Workspace{root: root}
}

// Dir returns the working directory of a project.
func (w *Workspace) Dir(id uuid.UUID) string {
	return filepath.Join(w.root, id.String())
}

// Remove deletes a project's working directory and its history.
func (w *Workspace) Remove(id uuid.UUID) error {
	if err := os.RemoveAll(w.Dir(id)); err != nil {
		return fmt.Errorf("removing project workspace: %w", err)
	}
	return nil
}

// ValidatePath reports whether a file path may be stored in a project.
func ValidatePath(p string) error {
	if p == "" || strings.Contains(p, "\\") || !filepath.IsLocal(filepath.FromSlash(p)) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	if skipped(filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return nil
}

// skipped reports paths owned by git rather than the project.
func skipped(rel string) bool {
	return rel == ".git" || strings.HasPrefix(rel, ".git/")
}

// WriteFiles makes dir contain exactly files, leaving git metadata in place.
func WriteFiles(dir string, files Files) error {
	for p := range files {
		if err := ValidatePath(p); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}

	existing, err := listFiles(dir)
	if err != nil {
		return err
	}
	for _, rel := range existing {
		if _, keep := files[rel]; keep {
			continue
		}
		if err := os.Remove(filepath.Join(dir, filepath.FromSlash(rel))); err != nil {
			return fmt.Errorf("removing stale file %s: %w", rel, err)
		}
	}

	for p, content := range files {
		target := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", p, err)
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", p, err)
		}
	}
	return nil
}

// ReadFiles loads every regular file under dir except git metadata.
func ReadFiles(dir string) (Files, error) {
	rels, err := listFiles(dir)
	if err != nil {
		return nil, err
	}

	files := make(Files, len(rels))
	for _, rel := range rels {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", rel, err)
		}
		if info.Size() > MaxFileSize {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", rel, err)
		}
		files[rel] = string(data)
	}
	return files, nil
}

func listFiles(dir string) ([]string, error) {
	var rels []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return fs.SkipAll
			}
			return err
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if skipped(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			rels = append(rels, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking workspace: %w", err)
	}
	return rels, nil
}
