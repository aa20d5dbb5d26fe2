// Package lorritest holds small helpers shared by the test suites of the
// builder and buildloop packages.
package lorritest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// FakeEvaluator writes an executable shell script standing in for
// nix-build: it ignores its arguments, writes stdout and stderr verbatim,
// each followed by a newline, to the corresponding file descriptors, and
// exits with exitCode. Tests use
// its path in place of the real nix-build binary to exercise the Invoker and
// BuildLoop without a Nix installation.
func FakeEvaluator(t testing.TB, dir, stdout, stderr string, exitCode int) string {
	t.Helper()
	path := filepath.Join(dir, "fake-nix-build")
	script := fmt.Sprintf("#!/bin/sh\ncat <<'LORRI_TEST_STDOUT'\n%s\nLORRI_TEST_STDOUT\ncat <<'LORRI_TEST_STDERR' >&2\n%s\nLORRI_TEST_STDERR\nexit %d\n",
		stdout, stderr, exitCode)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing fake evaluator: %v", err)
	}
	return path
}
