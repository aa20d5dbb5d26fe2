package builder

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/tilpner/lorri"
	"github.com/tilpner/lorri/internal/cas"
	"github.com/tilpner/lorri/internal/lorritest"
)

func testInvoker(t *testing.T, stdout, stderr string, exitCode int) *Invoker {
	t.Helper()
	dir := t.TempDir()
	casHandle, err := cas.New(dir + "/cas")
	if err != nil {
		t.Fatalf("cas.New: %v", err)
	}
	return &Invoker{
		NixBuildPath: lorritest.FakeEvaluator(t, dir, stdout, stderr, exitCode),
		CAS:          casHandle,
	}
}

func testRecipe(t *testing.T) lorri.NixFile {
	t.Helper()
	nf, err := lorri.NewNixFile(t.TempDir() + "/shell.nix")
	if err != nil {
		t.Fatalf("NewNixFile: %v", err)
	}
	return nf
}

func TestRunHappyPath(t *testing.T) {
	iv := testInvoker(t, "/nix/store/aaa-out", "evaluating file '/src/shell.nix'", 0)

	info, err := iv.Run(context.Background(), testRecipe(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := &Info{
		Success:   true,
		ExitCode:  0,
		NamedDrvs: map[string]string{},
		Drvs:      []string{"/nix/store/aaa-out"},
		Paths:     []string{"/src/shell.nix"},
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}
}

func TestRunEvaluatorFailure(t *testing.T) {
	iv := testInvoker(t, "", "error: infinite recursion encountered", 1)

	info, err := iv.Run(context.Background(), testRecipe(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if info.Success {
		t.Errorf("Success = true, want false for a non-zero exit")
	}
	if info.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", info.ExitCode)
	}
	if diff := cmp.Diff([]string{"error: infinite recursion encountered"}, info.LogLines); diff != "" {
		t.Errorf("LogLines mismatch (-want +got):\n%s", diff)
	}
}

func TestRunMaterializesHelperOnce(t *testing.T) {
	iv := testInvoker(t, "/nix/store/aaa-out", "", 0)

	recipe := testRecipe(t)
	if _, err := iv.Run(context.Background(), recipe); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	firstHelper := iv.helperPath

	if _, err := iv.Run(context.Background(), recipe); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if iv.helperPath != firstHelper {
		t.Errorf("helperPath changed across calls: %q -> %q", firstHelper, iv.helperPath)
	}
}

func TestRunDuplicateNamedAttributeLastWriteWins(t *testing.T) {
	stderr := "trace: lorri attribute: 'shell' -> '/nix/store/first'\n" +
		"trace: lorri attribute: 'shell' -> '/nix/store/second'\n"
	iv := testInvoker(t, "", stderr, 0)

	info, err := iv.Run(context.Background(), testRecipe(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"shell": "/nix/store/second"}, info.NamedDrvs, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("NamedDrvs mismatch (-want +got):\n%s", diff)
	}
}
