package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/tilpner/lorri"
	"github.com/tilpner/lorri/internal/buildloop"
	"github.com/tilpner/lorri/internal/project"
)

// cmdwatch implements the "watch" verb: run the build loop against a
// recipe file, either once or forever, printing each lifecycle event as it
// occurs.
func cmdwatch(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("watch", flag.ExitOnError)
	once := fset.Bool("once", false, "evaluate exactly one time and exit, instead of watching for changes")
	recipe := fset.String("shell-file", "shell.nix", "path to the recipe file to build")
	fset.Parse(args)

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

	color := isatty.IsTerminal(os.Stdout.Fd())

	if *once {
		results, err := driver.Once(ctx)
		if err != nil {
			printEvent(os.Stdout, eventForErr(err), color)
			return err
		}
		printEvent(os.Stdout, buildloop.CompletedEvent{Results: *results}, color)
		return nil
	}

	sink := make(chan buildloop.Event)
	done := make(chan error, 1)
	go func() { done <- driver.Forever(ctx, sink) }()

	for {
		select {
		case ev := <-sink:
			printEvent(os.Stdout, ev, color)
		case err := <-done:
			return err
		}
	}
}

// eventForErr adapts a Once error into the Event it would have produced
// had it come through Forever, so -once shares its printing path.
func eventForErr(err error) buildloop.Event {
	if rerr, ok := err.(*buildloop.RecoverableError); ok {
		return buildloop.FailureEvent{LogLines: rerr.LogLines}
	}
	return buildloop.FailureEvent{LogLines: []string{err.Error()}}
}

func printEvent(w *os.File, ev buildloop.Event, color bool) {
	switch e := ev.(type) {
	case buildloop.StartedEvent:
		fmt.Fprintln(w, emph(color, "[started]"))
	case buildloop.CompletedEvent:
		fmt.Fprintln(w, emph(color, "[completed]"))
		for i, path := range e.Results.Drvs {
			fmt.Fprintf(w, "  build-%d -> %s\n", i, path)
		}
		for name, path := range e.Results.NamedDrvs {
			fmt.Fprintf(w, "  %s -> %s\n", name, path)
		}
	case buildloop.FailureEvent:
		fmt.Fprintln(w, emph(color, "[failure]"))
		for _, line := range e.LogLines {
			fmt.Fprintln(w, "  "+line)
		}
	}
}

func emph(color bool, s string) string {
	if !color {
		return s
	}
	return "\x1b[1m" + s + "\x1b[0m"
}
