// Package cas materializes ephemeral byte strings (the instrumentation
// expression, one-off helper scripts) at stable, content-addressed paths
// the evaluator can read as a file argument.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"golang.org/x/xerrors"

	"github.com/tilpner/lorri"
)

// Handle materializes content under Dir. New creates Dir and registers its
// removal with lorri.RegisterAtExit, since everything a
// Handle materializes (the instrumentation helper, any other one-off
// expression) is cheap to rematerialize on the next run by virtue of
// content-addressing, and carrying it past process exit buys nothing.
type Handle struct {
	Dir string
}

// New returns a Handle rooted at dir, creating dir if necessary and
// scheduling its removal for when the embedding program calls
// lorri.RunAtExit.
func New(dir string) (*Handle, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, xerrors.Errorf("creating CAS directory %q: %w", dir, err)
	}
	lorri.RegisterAtExit(func() error { return os.RemoveAll(dir) })
	return &Handle{Dir: dir}, nil
}

// FileFromString writes contents to a content-addressed path under h.Dir
// and returns that path. The filename is the contents' SHA-256 followed by
// label, which is there for human readability when inspecting the
// directory. Identical contents under the same label always resolve to the
// identical path, and the write is skipped if that path already exists.
func (h *Handle) FileFromString(contents, label string) (string, error) {
	sum := sha256.Sum256([]byte(contents))
	name := hex.EncodeToString(sum[:]) + "-" + label
	path := filepath.Join(h.Dir, name)

	if _, err := os.Stat(path); err == nil {
		return path, nil // already materialized; content-addressing guarantees it's current
	} else if !os.IsNotExist(err) {
		return "", xerrors.Errorf("stat %q: %w", path, err)
	}

	if err := renameio.WriteFile(path, []byte(contents), 0444); err != nil {
		return "", xerrors.Errorf("materializing %q: %w", path, err)
	}
	return path, nil
}
