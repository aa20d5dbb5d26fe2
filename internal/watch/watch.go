// Package watch tracks a growing set of filesystem paths and reports when
// any of them changes. Watching a directory implicitly covers every file
// and subdirectory created under it later, matching the guarantee
// internal/pathreduction's Reduce relies on.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/xerrors"
)

// Watcher extends a watch set and blocks until a change is observed. It is
// safe to call Extend repeatedly; adding an already-watched path is a
// no-op.
type Watcher struct {
	fsw *fsnotify.Watcher

	mu      sync.Mutex
	watched map[string]bool

	changed chan struct{} // capacity 1: a pending, not-yet-observed change
	errs    chan error
	closed  chan struct{}
}

// New starts a Watcher with an empty watch set.
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &Error{Op: "init", Err: err}
	}
	w := &Watcher{
		fsw:     fsw,
		watched: make(map[string]bool),
		changed: make(chan struct{}, 1),
		errs:    make(chan error, 1),
		closed:  make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops the underlying fsnotify watcher and its event loop.
func (w *Watcher) Close() error {
	close(w.closed)
	return w.fsw.Close()
}

// Extend adds paths to the watch set. Directories are watched recursively
// (every subdirectory present at the time of the call, plus any created
// later); files are watched directly, and their parent directory is
// watched too so a rename-over-the-file is still observed.
func (w *Watcher) Extend(paths []string) error {
	for _, p := range paths {
		if err := w.add(p); err != nil {
			return &Error{Op: "extend", Path: p, Err: err}
		}
	}
	return nil
}

func (w *Watcher) add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			// The source may have been removed between evaluation and
			// watch-set extension; watch its parent so we notice it
			// reappearing.
			return w.watchOne(filepath.Dir(path))
		}
		return err
	}
	if !info.IsDir() {
		if err := w.watchOne(path); err != nil {
			return err
		}
		return w.watchOne(filepath.Dir(path))
	}
	return w.watchTree(path)
}

// watchTree adds fsnotify watches for dir and every subdirectory beneath
// it.
func (w *Watcher) watchTree(dir string) error {
	return filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			// A directory may have been removed mid-walk; that's not a
			// fatal watcher error, just a path we can no longer cover.
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return w.watchOne(p)
		}
		return nil
	})
}

func (w *Watcher) watchOne(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[path] {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		return err
	}
	w.watched[path] = true
	return nil
}

func (w *Watcher) isWatched(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watched[path]
}

// loop drains fsnotify's event and error channels for the lifetime of the
// Watcher. It extends the watch set to cover newly created subdirectories
// (so a watched directory keeps covering descendants created after the
// initial Extend call) and coalesces every observed event into a single
// pending "changed" signal.
func (w *Watcher) loop() {
	for {
		select {
		case <-w.closed:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create) != 0 && w.isWatched(filepath.Dir(ev.Name)) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.watchTree(ev.Name) //nolint:errcheck // best-effort; a failed sub-watch still leaves the parent watched
				}
			}
			w.signalChange()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *Watcher) signalChange() {
	select {
	case w.changed <- struct{}{}:
	default:
		// A change is already pending; a burst of events during an
		// in-flight build coalesces into the single next cycle.
	}
}

// WaitForChange blocks until at least one change has been observed on any
// currently-watched path since the last call to WaitForChange, then
// returns. Spurious wakeups are permissible; callers treat them as a no-op
// re-evaluation trigger.
func (w *Watcher) WaitForChange(ctx context.Context) error {
	select {
	case <-w.changed:
		return nil
	case err := <-w.errs:
		return &Error{Op: "wait", Err: err}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Error is returned for Watcher failures (§4.5's Notify error class),
// always fatal to the build loop.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return xerrors.Errorf("watch: %s: %w", e.Op, e.Err).Error()
	}
	return xerrors.Errorf("watch: %s %q: %w", e.Op, e.Path, e.Err).Error()
}

func (e *Error) Unwrap() error { return e.Err }
