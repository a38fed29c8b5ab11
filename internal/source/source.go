// Package source holds the representations of whole source trees that flow
// between tools: the C project as loaded from disk and the generated cargo
// package.
package source

import "github.com/specialistvlad/harvest/internal/fsutil"

// RawSource is an unmodified copy of the input project.
type RawSource struct {
	Dir *fsutil.RawDir
}

func (RawSource) Name() string { return "raw_source" }

// Materialize writes the project tree under dir.
func (r RawSource) Materialize(dir string) error {
	return r.Dir.Materialize(dir)
}

// CargoPackage is a generated cargo package, Cargo.toml at its root.
type CargoPackage struct {
	Dir *fsutil.RawDir
}

func (CargoPackage) Name() string { return "cargo_package" }

// Materialize writes the package tree under dir.
func (p CargoPackage) Materialize(dir string) error {
	return p.Dir.Materialize(dir)
}
