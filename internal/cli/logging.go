package cli

import (
	"io"
	"log/slog"
)

// newLogger returns a text logger on w. Diagnostics share stderr with
// errors, never stdout, so logging cannot corrupt generated output.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
