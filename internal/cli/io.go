package cli

import (
	"fmt"
	"io"
)

// IO separates the raw output stream from human-facing diagnostics.
//
// Generated bytes go to Out unmodified. Everything meant for a person
// (errors, warnings, usage) goes to the error stream, except for output the
// user explicitly asked for (--help, --print-config).
type IO struct {
	out    io.Writer
	errOut io.Writer
}

// NewIO creates a new IO instance.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Out returns the raw output stream.
func (o *IO) Out() io.Writer {
	return o.out
}

// Println writes to stdout.
func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Errorf prints an "error: " prefixed line to stderr.
func (o *IO) Errorf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.errOut, "error: "+format+"\n", a...)
}

// Warn prints an actionable warning to stderr right away.
//
// Parameters:
//   - issue: what looks wrong
//   - action: what the user can do about it
//
// Warnings never change the exit code.
func (o *IO) Warn(issue string, action string) {
	_, _ = fmt.Fprintf(o.errOut, "warning: %s: %s\n", issue, action)
}
