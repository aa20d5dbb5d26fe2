// Package lorri implements a continuous evaluator for a Nix build recipe
// file: it repeatedly invokes nix-build, pins every produced artifact
// against garbage collection, and watches every source file consulted
// during evaluation so it can re-run on change.
//
// The build loop itself lives in internal/buildloop; this package holds the
// few types and process-lifecycle helpers shared across the whole program.
package lorri

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// NixFile is an immutable reference to a recipe file on disk (e.g.
// shell.nix). It is opaque to the build loop: the loop never parses or
// interprets its contents, only passes its path to the evaluator.
type NixFile struct {
	path string
}

// NewNixFile returns a NixFile referring to the recipe file at path. path is
// resolved to an absolute path so the evaluator sees a stable argument
// regardless of the embedder's working directory.
func NewNixFile(path string) (NixFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return NixFile{}, fmt.Errorf("resolving recipe file path: %w", err)
	}
	return NixFile{path: abs}, nil
}

// Path returns the absolute filesystem path of the recipe file.
func (f NixFile) Path() string { return f.path }

// String implements fmt.Stringer so NixFile values print usefully in logs
// and error messages.
func (f NixFile) String() string { return f.path }

// PathHash returns a short, filesystem-safe digest of path, stable across
// runs, used to namespace a project's cache directory without reproducing
// its full path.
func PathHash(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])[:16]
}
