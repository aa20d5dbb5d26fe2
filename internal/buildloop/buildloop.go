// Package buildloop drives a single project through repeated evaluate ->
// root -> watch cycles: invoke the builder, pin every resulting artifact
// against garbage collection, extend the watch set with every source path
// the evaluation consulted, and report what happened to a subscriber.
package buildloop

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/tilpner/lorri/internal/builder"
	"github.com/tilpner/lorri/internal/pathreduction"
	"github.com/tilpner/lorri/internal/project"
	"github.com/tilpner/lorri/internal/roots"
	"github.com/tilpner/lorri/internal/trace"
	"github.com/tilpner/lorri/internal/watch"
)

// tid is the logical trace thread every Driver's phases are recorded on.
// A Driver only ever runs one cycle at a time, so a constant is enough to
// keep phases of the same cycle visually grouped in chrome://tracing.
const tid = 0

// Driver runs the build loop for a single project.
type Driver struct {
	Project *project.Project
	Invoker *builder.Invoker

	// Debug enables per-cycle log.Printf output of the original/reduced
	// path counts and the parsed named derivations, for -debug in
	// cmd/lorri. Off by default, as in a normal run this is noise.
	Debug bool

	roots *roots.Manager
	watch *watch.Watcher
}

// New constructs a Driver for proj, creating its roots manager and watcher.
func New(proj *project.Project) (*Driver, error) {
	rm, err := roots.New(proj.RootsDir)
	if err != nil {
		return nil, &UnrecoverableError{Kind: "addroot", Err: err}
	}
	w, err := watch.New()
	if err != nil {
		return nil, &UnrecoverableError{Kind: "notify", Err: err}
	}
	return &Driver{
		Project: proj,
		Invoker: &builder.Invoker{CAS: proj.CAS},
		roots:   rm,
		watch:   w,
	}, nil
}

// Close releases the Driver's watcher.
func (d *Driver) Close() error {
	return d.watch.Close()
}

// BuildResults summarizes a successful evaluation: every derivation it
// produced, indexed the way it was rooted.
type BuildResults struct {
	// Drvs maps each positional stdout derivation to the GC root path
	// installed for it ("build-<i>").
	Drvs map[int]string
	// NamedDrvs maps each named attribute to the GC root path installed
	// for it ("attr-<name>").
	NamedDrvs map[string]string
}

// Once runs exactly one evaluate/root/watch-extend cycle and returns its
// outcome. A failing evaluation (non-zero nix-build exit) is reported as a
// RecoverableError, not a Go error return of the generic kind: the caller
// is expected to re-run Once after the underlying recipe changes, not to
// treat it as fatal to the process.
func (d *Driver) Once(ctx context.Context) (*BuildResults, error) {
	evalEv := trace.Event("Evaluating", tid)
	info, err := d.Invoker.Run(ctx, d.Project.NixFile)
	evalEv.Done()
	if err != nil {
		return nil, &UnrecoverableError{Kind: "build", Err: err}
	}

	if d.Debug {
		log.Printf("original paths: %d", len(info.Paths))
	}

	reduceEv := trace.Event("Reducing", tid)
	reduced := pathreduction.Reduce(info.Paths)
	reduceEv.Done()

	if d.Debug {
		log.Printf("  -> reduced to: %d", len(reduced))
		log.Printf("named drvs: %#v", info.NamedDrvs)
	}

	// Roots are registered before the watch set is extended (and, in turn,
	// before any Completed event reaches a subscriber): the evaluator may
	// have already materialized these artifacts into the store, and an
	// external garbage collector could reclaim them the moment a change
	// wakes the watcher back up if they weren't pinned first. This ordering
	// is load-bearing, not incidental — see §4.6's "Critical ordering".
	results := &BuildResults{
		Drvs:      make(map[int]string),
		NamedDrvs: make(map[string]string),
	}

	rootEv := trace.Event("Rooting", tid)
	for i, drv := range info.Drvs {
		name := fmt.Sprintf("build-%d", i)
		rp, err := d.roots.Add(name, drv)
		if err != nil {
			rootEv.Done()
			return nil, &UnrecoverableError{Kind: "addroot", Err: err}
		}
		results.Drvs[i] = rp
	}
	for _, name := range sortedKeys(info.NamedDrvs) {
		rp, err := d.roots.Add("attr-"+name, info.NamedDrvs[name])
		if err != nil {
			rootEv.Done()
			return nil, &UnrecoverableError{Kind: "addroot", Err: err}
		}
		results.NamedDrvs[name] = rp
	}
	rootEv.Done()

	watchEv := trace.Event("Watching", tid)
	werr := d.watch.Extend(reduced)
	watchEv.Done()
	if werr != nil {
		return nil, &UnrecoverableError{Kind: "notify", Err: werr}
	}

	if !info.Success {
		return nil, &RecoverableError{LogLines: info.LogLines}
	}

	return results, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Forever repeats Once until ctx is cancelled or an UnrecoverableError
// occurs, publishing a Started/Completed/Failure Event to sink on every
// cycle. A RecoverableError from Once becomes a Failure event and the loop
// continues (waiting for the next watched change); an UnrecoverableError
// is returned to the caller instead of panicking or being silently
// swallowed, since the embedder — not this package — owns deciding whether
// a plumbing failure should end the process.
func (d *Driver) Forever(ctx context.Context, sink chan<- Event) error {
	for {
		select {
		case sink <- StartedEvent{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		results, err := d.Once(ctx)
		switch {
		case err == nil:
			select {
			case sink <- CompletedEvent{Results: *results}:
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			var rerr *RecoverableError
			if asRecoverable(err, &rerr) {
				select {
				case sink <- FailureEvent{LogLines: rerr.LogLines}:
				case <-ctx.Done():
					return ctx.Err()
				}
			} else {
				return err
			}
		}

		if werr := d.watch.WaitForChange(ctx); werr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &UnrecoverableError{Kind: "notify", Err: werr}
		}
	}
}

func asRecoverable(err error, target **RecoverableError) bool {
	if rerr, ok := err.(*RecoverableError); ok {
		*target = rerr
		return true
	}
	return false
}
