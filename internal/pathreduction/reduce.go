// Package pathreduction collapses a set of source paths reported by an
// evaluation down to a smaller set sufficient to detect changes to any of
// the originals, given that the Watcher reports change events for every
// descendant of a watched directory.
package pathreduction

import (
	"sort"
	"strings"
)

// Reduce returns a subset of paths such that watching every path in the
// result (with descendant-notification, per internal/watch's guarantee)
// covers every path in the input. It is deterministic and idempotent:
// Reduce(Reduce(s)) always equals Reduce(s), and Reduce(s) is always a
// subset of s.
//
// The algorithm: sort lexicographically (which, for slash-separated paths,
// orders every ancestor before its descendants) and keep a path only if it
// is not dominated by the most recently kept path. A sibling whose name
// extends the ancestor's with a byte sorting before '/' can land in
// between: for /a/b, /a/b-c and /a/b/d all three are kept, so the result
// covers the input but is not always minimal.
func Reduce(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}

	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	kept := make([]string, 0, len(sorted))
	var lastKept string
	haveKept := false
	for _, p := range sorted {
		if haveKept && dominated(p, lastKept) {
			continue
		}
		kept = append(kept, p)
		lastKept = p
		haveKept = true
	}
	return kept
}

// dominated reports whether path is ancestor equal to, or a descendant of,
// ancestor.
func dominated(path, ancestor string) bool {
	if path == ancestor {
		return true
	}
	return strings.HasPrefix(path, ancestor+"/")
}
