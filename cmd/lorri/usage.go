package main

import (
	"fmt"
	"os"
)

func usage() {
	fmt.Fprintf(os.Stderr, "lorri [-flags] <command> [-flags] <args>\n")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "To get help on any command, use lorri <command> -help.\n")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "\twatch  - run the build loop against a recipe file\n")
	fmt.Fprintf(os.Stderr, "\tshell  - enter a shell built from the project's shell attribute\n")
}
