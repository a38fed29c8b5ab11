package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// RawDir is an in-memory copy of a directory tree. Paths are slash separated
// and relative to the tree root. A RawDir is not safe for concurrent writes;
// once handed to the IR it is only read.
type RawDir struct {
	files map[string][]byte
	dirs  map[string]struct{}
}

// NewRawDir returns an empty tree.
func NewRawDir() *RawDir {
	return &RawDir{
		files: make(map[string][]byte),
		dirs:  make(map[string]struct{}),
	}
}

// Load reads the tree rooted at root into memory. Symlinks are skipped. It
// returns the tree together with the number of directories and files read,
// not counting root itself.
func Load(root string) (*RawDir, int, int, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, 0, 0, err
	}
	if !info.IsDir() {
		return nil, 0, 0, fmt.Errorf("%s is not a directory", root)
	}

	dir := NewRawDir()
	var dirCount, fileCount int
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			return nil
		case d.IsDir():
			dir.dirs[rel] = struct{}{}
			dirCount++
			return nil
		case !d.Type().IsRegular():
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		dir.files[rel] = data
		fileCount++
		return nil
	})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("loading %s: %w", root, err)
	}
	return dir, dirCount, fileCount, nil
}

// Put stores data at rel, creating any parent directories in the tree.
func (d *RawDir) Put(rel string, data []byte) error {
	clean, err := cleanRel(rel)
	if err != nil {
		return err
	}
	if _, isDir := d.dirs[clean]; isDir {
		return fmt.Errorf("%s is a directory", clean)
	}
	for parent := path.Dir(clean); parent != "."; parent = path.Dir(parent) {
		d.dirs[parent] = struct{}{}
	}
	d.files[clean] = data
	return nil
}

// File returns the contents of the file at rel.
func (d *RawDir) File(rel string) ([]byte, bool) {
	if d == nil {
		return nil, false
	}
	clean, err := cleanRel(rel)
	if err != nil {
		return nil, false
	}
	data, ok := d.files[clean]
	return data, ok
}

// Paths returns all file paths in lexical order.
func (d *RawDir) Paths() []string {
	if d == nil {
		return nil
	}
	paths := make([]string, 0, len(d.files))
	for p := range d.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of files in the tree.
func (d *RawDir) Len() int {
	if d == nil {
		return 0
	}
	return len(d.files)
}

// Materialize writes the tree under dst, which is created if needed.
// Existing files with the same names are overwritten.
func (d *RawDir) Materialize(dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	dirs := make([]string, 0, len(d.dirs))
	for p := range d.dirs {
		dirs = append(dirs, p)
	}
	sort.Strings(dirs)
	for _, p := range dirs {
		if err := os.MkdirAll(filepath.Join(dst, filepath.FromSlash(p)), 0o755); err != nil {
			return err
		}
	}

	for _, p := range d.Paths() {
		target := filepath.Join(dst, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, d.files[p], 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", target, err)
		}
	}
	return nil
}

// IsEmptyDir reports whether path is missing or an empty directory.
func IsEmptyDir(p string) (bool, error) {
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

func cleanRel(rel string) (string, error) {
	clean := path.Clean(filepath.ToSlash(rel))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return "", fmt.Errorf("invalid relative path %q", rel)
	}
	return clean, nil
}
