package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"mediabot/internal/services"
)

// Exit statuses. An interrupted daemon exits like a shell job killed by SIGINT.
const (
	exitOK          = 0
	exitFailure     = 1
	exitBadInput    = 2
	exitInterrupted = 130
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	err := root.Execute()
	code := exitCode(err)
	if err != nil && code != exitInterrupted {
		fmt.Fprintf(stderr, "mediabot: %v\n", err)
	}
	return code
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, services.ErrValidation):
		return exitBadInput
	default:
		return exitFailure
	}
}
