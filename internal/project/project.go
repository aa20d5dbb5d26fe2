// Package project bundles the pieces a build loop needs to run a single
// recipe: where its recipe file lives, where its content-addressable
// helper files are materialized, and where its GC roots are installed.
package project

import (
	"path/filepath"

	"github.com/tilpner/lorri"
	"github.com/tilpner/lorri/internal/cas"
	"github.com/tilpner/lorri/internal/env"
)

// Project identifies everything specific to one watched recipe. Every
// project gets its own CAS directory and roots directory, keyed by a
// stable identifier derived from the recipe's path, so two lorri sessions
// watching different recipes never collide in the shared cache home.
type Project struct {
	NixFile lorri.NixFile
	CAS     *cas.Handle
	// RootsDir is where this project's GC roots are installed.
	RootsDir string
}

// ID is a filesystem-safe identifier for a project, derived from the
// recipe's absolute path. It's used to namespace the project's directory
// under the user's cache home, mirroring how the original lorri keys its
// gc_roots directory off a hash of the shell.nix path.
func ID(nf lorri.NixFile) string {
	return lorri.PathHash(nf.Path())
}

// Load constructs a Project for nf under the user's cache home, creating
// its CAS directory if it doesn't already exist. RootsDir is only computed
// here; roots.New creates it.
func Load(nf lorri.NixFile) (*Project, error) {
	dir := env.ProjectDir(ID(nf))

	casHandle, err := cas.New(filepath.Join(dir, "cas"))
	if err != nil {
		return nil, err
	}

	rootsDir := filepath.Join(dir, "gc_roots")

	return &Project{
		NixFile:  nf,
		CAS:      casHandle,
		RootsDir: rootsDir,
	}, nil
}
