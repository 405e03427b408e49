// Package term provides user-facing terminal output for the remctld
// CLI. This is distinct from operational logging (see internal/clog):
// term output is the conversation with the operator running a command,
// clog is the record of what the daemon did.
//
// Printf/Println write to stdout and are suppressed with --quiet;
// Warn and Error write to stderr and are never suppressed.
package term

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu     sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	quiet  bool
)

// SetQuiet enables or disables quiet mode. When quiet, Printf and
// Println are suppressed; Warn and Error are not.
func SetQuiet(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// SetOutput sets the writer for stdout output. Pass nil to restore
// os.Stdout.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		stdout = os.Stdout
	} else {
		stdout = w
	}
}

// SetErrOutput sets the writer for stderr output. Pass nil to restore
// os.Stderr.
func SetErrOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		stderr = os.Stderr
	} else {
		stderr = w
	}
}

// Printf formats according to a format specifier and writes to stdout.
// Suppressed in quiet mode.
func Printf(format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	if quiet {
		return
	}
	_, _ = fmt.Fprintf(stdout, format, a...)
}

// Println formats and writes to stdout with a trailing newline.
// Suppressed in quiet mode.
func Println(a ...any) {
	mu.Lock()
	defer mu.Unlock()
	if quiet {
		return
	}
	_, _ = fmt.Fprintln(stdout, a...)
}

// Warn writes a warning message to stderr with a "Warning: " prefix.
// Not suppressed by quiet mode.
func Warn(format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	_, _ = fmt.Fprintf(stderr, "Warning: %s\n", fmt.Sprintf(format, a...))
}

// Error writes an error message to stderr with an "Error: " prefix.
// Not suppressed by quiet mode.
func Error(format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	_, _ = fmt.Fprintf(stderr, "Error: %s\n", fmt.Sprintf(format, a...))
}

// Reset restores the package to its default state. Primarily useful for
// testing.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	stdout = os.Stdout
	stderr = os.Stderr
	quiet = false
}
