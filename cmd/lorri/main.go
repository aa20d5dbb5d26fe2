// Command lorri runs the continuous build loop against a recipe file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tilpner/lorri"
	"github.com/tilpner/lorri/internal/trace"
)

var (
	debug     = flag.Bool("debug", false, "enable debug mode: format error messages with additional detail")
	tracefile = flag.String("tracefile", "", "path to store a chrome trace event file at (load in chrome://tracing)")
)

type cmd struct {
	fn func(ctx context.Context, args []string) error
}

func funcmain() error {
	flag.Parse()

	if *tracefile != "" {
		f, err := os.Create(*tracefile)
		if err != nil {
			return err
		}
		trace.Sink(f)
	}

	verbs := map[string]cmd{
		"watch": {cmdwatch},
		"shell": {cmdshell},
	}

	args := flag.Args()
	verb := "watch"
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	if verb == "help" {
		usage()
		os.Exit(2)
	}

	ctx, canc := lorri.InterruptibleContext()
	defer canc()

	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		usage()
		os.Exit(2)
	}

	if err := v.fn(ctx, args); err != nil {
		if *debug {
			return fmt.Errorf("%s: %+v", verb, err)
		}
		return fmt.Errorf("%s: %v", verb, err)
	}

	return lorri.RunAtExit()
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
