// Package cargo edits Cargo.toml manifests of generated packages so that they
// build in isolation and produce artifacts with predictable names.
//
// Manifests are decoded into generic tables and re-encoded, so comments and
// key order are not preserved.
package cargo

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// ManifestName is the file name of a package manifest.
const ManifestName = "Cargo.toml"

// Manifest is a decoded Cargo.toml.
type Manifest struct {
	path string
	doc  map[string]any
}

// ReadManifest decodes the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := make(map[string]any)
	if _, err := toml.Decode(string(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &Manifest{path: path, doc: doc}, nil
}

// Save writes the manifest back to the file it was read from.
func (m *Manifest) Save() error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m.doc); err != nil {
		return fmt.Errorf("failed to encode %s: %w", m.path, err)
	}
	return os.WriteFile(m.path, buf.Bytes(), 0o644)
}

// Table returns the top-level table name, if present.
func (m *Manifest) Table(name string) (map[string]any, bool) {
	t, ok := m.doc[name].(map[string]any)
	return t, ok
}

// PackageName returns package.name.
func (m *Manifest) PackageName() (string, bool) {
	pkg, ok := m.Table("package")
	if !ok {
		return "", false
	}
	name, ok := pkg["name"].(string)
	return name, ok
}

// ReadPackageName returns package.name of the manifest at path. It reports
// false when the file is missing, malformed, or has no name.
func ReadPackageName(path string) (string, bool) {
	m, err := ReadManifest(path)
	if err != nil {
		return "", false
	}
	return m.PackageName()
}

// AddWorkspaceGuard adds an empty [workspace] table so cargo does not treat
// the package as a member of a workspace found in a parent directory. A
// missing manifest is not an error.
func AddWorkspaceGuard(path string) error {
	m, err := ReadManifest(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, ok := m.doc["workspace"]; ok {
		return nil
	}
	m.doc["workspace"] = map[string]any{}
	return m.Save()
}

// NormalizePackageName renames package.name, and lib.name when a [lib]
// table exists, to the sanitized base name of projectDir. This keeps
// artifact names such as lib<name>.so predictable. A missing manifest is not
// an error.
func NormalizePackageName(path, projectDir string) error {
	desired := SanitizePackageName(filepath.Base(filepath.Clean(projectDir)))
	if desired == "" || desired == "_" {
		return nil
	}
	m, err := ReadManifest(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	changed := false
	if pkg, ok := m.Table("package"); ok {
		if name, ok := pkg["name"].(string); ok && name != desired {
			pkg["name"] = desired
			changed = true
		}
	}
	if lib, ok := m.Table("lib"); ok {
		if name, _ := lib["name"].(string); name != desired {
			lib["name"] = desired
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return m.Save()
}

// EnsureCdylib makes sure lib.crate-type contains "cdylib", creating the
// [lib] table if needed, so that library packages can be loaded by a test
// harness.
func EnsureCdylib(path string) error {
	m, err := ReadManifest(path)
	if err != nil {
		return err
	}
	lib, ok := m.Table("lib")
	if !ok {
		lib = map[string]any{}
		m.doc["lib"] = lib
	}

	var types []any
	switch v := lib["crate-type"].(type) {
	case []any:
		types = v
	case string:
		types = []any{v}
	}
	if slices.Contains(types, any("cdylib")) {
		if _, isString := lib["crate-type"].(string); !isString {
			return nil
		}
	} else {
		types = append(types, "cdylib")
	}
	lib["crate-type"] = types
	return m.Save()
}

// SanitizePackageName replaces characters cargo rejects with '_' and
// prefixes names that start with a digit or '-'.
func SanitizePackageName(raw string) string {
	var b strings.Builder
	for _, c := range raw {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s != "" && (s[0] == '-' || (s[0] >= '0' && s[0] <= '9')) {
		s = "_" + s
	}
	return s
}
