// Package builder runs nix-build against an instrumented copy of a recipe
// file and turns its stdout/stderr into structured BuildInfo: the source
// paths and named derivations the evaluation touched, and the opaque log
// lines neither of those two shapes.
//
// It is a wrapper around nix-build, not a reimplementation of it: this
// package never parses or evaluates the recipe file's Nix itself.
package builder

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"syscall"

	"github.com/tilpner/lorri"
	"github.com/tilpner/lorri/internal/cas"
	"github.com/tilpner/lorri/internal/instrumentation"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// RunTimeClosure names the runtime closure the instrumented evaluation
// expression requires to be present in the evaluator's PATH; it is built
// into the lorri binary rather than configured, the way the original
// lorri bakes its own coreutils/bash closure path in at build time.
const RunTimeClosure = "/nix/store/lorri-runtime-closure"

// Info is the result of a single nix-build invocation: everything the
// instrumented evaluation reported about what it read and produced, plus
// the raw process exit status.
type Info struct {
	// Success reports whether nix-build exited zero.
	Success bool
	// ExitCode is the raw process exit code.
	ExitCode int

	// NamedDrvs maps an attribute name to the store path nix-build
	// produced for it. Later attributions of the same name win.
	NamedDrvs map[string]string

	// Drvs holds, in stdout order, the derivation paths nix-build printed
	// (its normal build-result output).
	Drvs []string

	// Paths holds every source path the evaluation reported reading or
	// copying into the store, deduplicated but otherwise in first-seen
	// order.
	Paths []string

	// LogLines holds every stderr line that didn't match one of the
	// recognized structured shapes, verbatim and in order.
	LogLines []string
}

// Invoker spawns nix-build with a fixed, instrumented argument vector.
type Invoker struct {
	// NixBuildPath is the nix-build executable to run. Defaults to
	// "nix-build" (resolved via PATH) when empty; tests override it with a
	// fake evaluator script.
	NixBuildPath string
	// CAS materializes the instrumentation expression before each loop
	// session.
	CAS *cas.Handle

	helperPath string // memoized result of materializing the instrumentation once
}

// Run builds recipe, returning the parsed BuildInfo regardless of whether
// the evaluation itself succeeded — a failing build still reports every
// source path it read before failing, which the build loop needs in order
// to watch for the fix.
func (iv *Invoker) Run(ctx context.Context, recipe lorri.NixFile) (*Info, error) {
	helper, err := iv.materializedHelper()
	if err != nil {
		return nil, &Error{Op: "materialize", Err: err}
	}

	nixBuild := iv.NixBuildPath
	if nixBuild == "" {
		nixBuild = "nix-build"
	}

	// nix-build without -- src would use /dev/stdin's arguments; building
	// the argv as a plain command (not a shell) avoids that ambiguity.
	cmd := exec.Command(nixBuild,
		"-vv",
		"--no-out-link",
		"--argstr", "runTimeClosure", RunTimeClosure,
		"--argstr", "src", recipe.Path(),
		"--", helper,
	)
	cmd.Stdin = nil // explicitly closed: the evaluator never expects input
	// Run the evaluator in its own process group so a cancellation can
	// reach whatever subprocesses nix-build itself spawned, not just the
	// direct child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &Error{Op: "spawn", Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &Error{Op: "spawn", Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &Error{Op: "spawn", Err: err}
	}

	// ctx cancellation kills the evaluator's whole process group instead of
	// relying on exec.CommandContext, which only ever signals the direct
	// child.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		case <-done:
		}
	}()

	// Drain both pipes concurrently with awaiting the child: nix-build can
	// block on a full stderr pipe while we'd otherwise be blocked reading
	// stdout (or vice versa), which would deadlock a sequential read.
	var stdoutBuf, stderrBuf bytes.Buffer
	var eg errgroup.Group
	eg.Go(func() error {
		_, err := io.Copy(&stdoutBuf, stdout)
		return err
	})
	eg.Go(func() error {
		_, err := io.Copy(&stderrBuf, stderr)
		return err
	})

	drainErr := eg.Wait()
	waitErr := cmd.Wait()
	if drainErr != nil {
		return nil, &Error{Op: "wait", Err: drainErr}
	}

	exitCode := 0
	success := waitErr == nil
	if !success {
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			// The child could not be waited on at all (as opposed to
			// exiting non-zero): that's a plumbing failure, not a
			// recoverable evaluation failure.
			return nil, &Error{Op: "wait", Err: waitErr}
		}
		exitCode = exitErr.ExitCode()
	}

	info := parse(stdoutBuf.Bytes(), stderrBuf.Bytes())
	info.Success = success
	info.ExitCode = exitCode
	return info, nil
}

func (iv *Invoker) materializedHelper() (string, error) {
	if iv.helperPath != "" {
		return iv.helperPath, nil
	}
	path, err := iv.CAS.FileFromString(instrumentation.LoggedEvaluation, "logged-evaluation.nix")
	if err != nil {
		return "", err
	}
	iv.helperPath = path
	return path, nil
}

// Error is returned for Spawn and Wait failures (§4.1): the evaluator could
// not be launched, or its I/O could not be awaited. Both are fatal to the
// build loop.
type Error struct {
	// Op is "spawn", "wait", or "materialize".
	Op  string
	Err error
}

func (e *Error) Error() string {
	return xerrors.Errorf("builder: %s: %w", e.Op, e.Err).Error()
}

func (e *Error) Unwrap() error { return e.Err }
