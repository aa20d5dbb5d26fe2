// Package roots installs durable GC roots: symlinks whose mere existence
// keeps an external garbage collector from reclaiming the artifact they
// point at.
package roots

import (
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// Manager installs roots under Dir, one symlink per logical name.
type Manager struct {
	Dir string
}

// New returns a Manager rooted at dir, creating dir if necessary.
func New(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &Error{Op: "mkdir", Err: err}
	}
	return &Manager{Dir: dir}, nil
}

// Add installs a durable reference named logicalName pointing at
// artifactPath, returning the path of the reference just installed. If a
// reference of the same logical name already exists from a prior cycle, it
// is atomically replaced: a concurrent garbage collector observing the
// roots directory never sees logicalName transiently missing.
//
// Naming discipline (matched by internal/buildloop): "attr-<name>" for a
// named attribute, "build-<i>" for the i'th positional derivation.
func (m *Manager) Add(logicalName, artifactPath string) (string, error) {
	rootPath := filepath.Join(m.Dir, logicalName)
	if err := renameio.Symlink(artifactPath, rootPath); err != nil {
		return "", &Error{Op: "symlink", Path: rootPath, Err: err}
	}
	return rootPath, nil
}

// Error is returned when a durable reference cannot be created —
// permissions, a full disk, etc. It is always fatal to the build loop
// (§4.4's AddRoot error class).
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return xerrors.Errorf("roots: %s: %w", e.Op, e.Err).Error()
	}
	return xerrors.Errorf("roots: %s %q: %w", e.Op, e.Path, e.Err).Error()
}

func (e *Error) Unwrap() error { return e.Err }
