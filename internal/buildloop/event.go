package buildloop

import "golang.org/x/xerrors"

// Event is published once per build-loop cycle. It is a closed sum type:
// Started, Completed, or Failure.
type Event interface {
	isEvent()
}

// StartedEvent marks the beginning of a cycle, before the evaluator has
// been invoked.
type StartedEvent struct{}

func (StartedEvent) isEvent() {}

// CompletedEvent marks a cycle whose evaluation succeeded and whose
// results are all rooted.
type CompletedEvent struct {
	Results BuildResults
}

func (CompletedEvent) isEvent() {}

// FailureEvent marks a cycle whose evaluation exited non-zero. The loop
// continues past it, waiting for a watched change to trigger the next
// cycle.
type FailureEvent struct {
	LogLines []string
}

func (FailureEvent) isEvent() {}

// RecoverableError reports an evaluation that ran to completion but
// failed (nix-build exited non-zero). The build loop treats it as routine:
// it's surfaced as a FailureEvent rather than ending Forever.
type RecoverableError struct {
	LogLines []string
}

func (e *RecoverableError) Error() string {
	return "evaluation failed"
}

// UnrecoverableError reports a failure in the build loop's own plumbing —
// the evaluator could not be spawned, a root could not be installed, or
// the watcher failed — as opposed to the recipe itself failing to
// evaluate. It always ends Forever.
type UnrecoverableError struct {
	// Kind is "build", "addroot", or "notify".
	Kind string
	Err  error
}

func (e *UnrecoverableError) Error() string {
	return xerrors.Errorf("buildloop: %s: %w", e.Kind, e.Err).Error()
}

func (e *UnrecoverableError) Unwrap() error { return e.Err }
