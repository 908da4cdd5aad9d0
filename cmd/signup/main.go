// File: cmd/signup/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/signup-cli/api/schemas"
	"github.com/xkilldash9x/signup-cli/cmd"
	"github.com/xkilldash9x/signup-cli/internal/observability"
)

const panicLogFile = "panic.log"

// Function variables swapped out in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
	execute     = cmd.Execute
)

func main() {
	defer handlePanic()

	// Ctrl+C cancels ctx; the engine and the batch runner unwind through
	// browser teardown before returning.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := exitCode(execute(ctx))
	observability.Sync()
	if code != 0 {
		osExit(code)
	}
}

// exitCode maps the outcome of a command to the process exit status. An
// interrupt or a declined agreement is a clean exit.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, schemas.ErrCancelledByUser), errors.Is(err, context.Canceled):
		return 0
	default:
		return 1
	}
}

// handlePanic records an unexpected crash in panic.log and exits non-zero.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(1)
		return
	}
	fmt.Fprintf(os.Stderr, "\nCRASH DETECTED. Details logged to %s\n", panicLogFile)
	osExit(1)
}
