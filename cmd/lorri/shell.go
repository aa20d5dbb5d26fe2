package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"

	"github.com/tilpner/lorri"
	"github.com/tilpner/lorri/internal/buildloop"
	"github.com/tilpner/lorri/internal/project"
)

// cmdshell runs an initial build, then runs nix-shell as a child process
// against the GC root of whatever the recipe's "shell" attribute evaluated
// to, and waits for it to exit. It's a thin port of the original lorri
// shell command, not a reimplementation of nix-shell: no further builds
// run while the shell is open.
func cmdshell(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("shell", flag.ExitOnError)
	recipe := fset.String("shell-file", "shell.nix", "path to the recipe file to build")
	fset.Parse(args)

	fmt.Fprintln(os.Stderr, "WARNING: lorri shell is very simplistic and not supported at the moment.")

	nf, err := lorri.NewNixFile(*recipe)
	if err != nil {
		return err
	}
	proj, err := project.Load(nf)
	if err != nil {
		return err
	}
	driver, err := buildloop.New(proj)
	if err != nil {
		return err
	}
	defer driver.Close()
	driver.Debug = *debug

	fmt.Fprintln(os.Stderr, "Waiting for the builder to produce a derivation for the 'shell' attribute.")
	results, err := driver.Once(ctx)
	if err != nil {
		return fmt.Errorf("build for %s never produced a successful result: %w", proj.NixFile, err)
	}

	shellDrv, ok := results.NamedDrvs["shell"]
	if !ok {
		return fmt.Errorf("no 'shell' attribute found in %s", proj.NixFile)
	}

	cmd := exec.CommandContext(ctx, "nix-shell", shellDrv)
	cmd.Env = append(os.Environ(), "LORRI_SHELL_ROOT="+shellDrv)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
