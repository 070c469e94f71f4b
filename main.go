package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tonimelisma/ftpsession/internal/lock"
	"github.com/tonimelisma/ftpsession/internal/session"
)

// Exit codes beyond the generic failure.
const (
	exitOK     = 0
	exitError  = 1
	exitFault  = 2
	exitLocked = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI and maps the outcome to an exit code. Session
// faults arrive as panics carrying *session.FaultError; they are reported
// and end the process with exitFault instead of a stack trace.
func run(args []string) (code int) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		f, ok := r.(*session.FaultError)
		if !ok {
			panic(r)
		}

		fmt.Fprintf(os.Stderr, "Fatal: %v\n", f)
		code = exitFault
	}()

	cmd := newRootCmd()
	cmd.SetArgs(args)

	err := cmd.Execute()

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errPathMissing):
		return exitError
	case errors.Is(err, lock.ErrLocked):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		return exitLocked
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		return exitError
	}
}
