// Package env captures details about the lorri runtime environment: where
// GC roots and CAS-materialized files should live by default.
package env

import (
	"os"
	"path/filepath"
)

// CacheHome is the root directory under which lorri keeps its per-project
// GC roots and CAS-materialized helper expressions.
var CacheHome = findCacheHome()

func findCacheHome() string {
	if env := os.Getenv("LORRI_CACHE_HOME"); env != "" {
		return env
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "lorri")
	}
	return os.ExpandEnv("$HOME/.cache/lorri") // default
}

// ProjectDir returns the per-project cache directory for the project
// identified by projectID (see project.ID).
func ProjectDir(projectID string) string {
	return filepath.Join(CacheHome, projectID)
}
