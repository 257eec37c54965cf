// Package sink delivers a finished buffer to its destination.
package sink

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/calvinalkan/bytefuzz/internal/fs"
)

// ErrOutputWrite is returned when the destination could not be written.
var ErrOutputWrite = errors.New("cannot write output")

// StdoutDest is the [Delivery.Dest] value for the default output stream.
const StdoutDest = "<stdout>"

const outputPerm os.FileMode = 0o644

// Delivery is the outcome of [Sink.Deliver].
//
// Data always holds the computed buffer, also when Err is set, so a caller
// can still recover it after the destination failed.
type Delivery struct {
	Data []byte
	Dest string
	Err  error
}

// OK reports whether the buffer reached its destination.
func (d Delivery) OK() bool {
	return d.Err == nil
}

// Sink writes raw bytes, with no header or framing, to a file or stream.
type Sink struct {
	fs     fs.FS
	stdout io.Writer
}

// New returns a Sink writing files through fsys and streams to stdout.
func New(fsys fs.FS, stdout io.Writer) *Sink {
	return &Sink{fs: fsys, stdout: stdout}
}

// Deliver writes data to path, or to the default stream when path is empty.
//
// Files are replaced atomically, so a failed write never leaves a truncated
// output behind. Failures are not retried and never fall back to the default
// stream.
func (s *Sink) Deliver(data []byte, path string) Delivery {
	if path == "" {
		return Delivery{Data: data, Dest: StdoutDest, Err: s.writeStream(data)}
	}

	err := s.fs.WriteFileAtomic(path, data, outputPerm)
	if err != nil {
		err = fmt.Errorf("%w to file %s: %w", ErrOutputWrite, path, err)
	}

	return Delivery{Data: data, Dest: path, Err: err}
}

func (s *Sink) writeStream(data []byte) error {
	n, err := s.stdout.Write(data)
	if err != nil {
		return fmt.Errorf("%w to %s: %w", ErrOutputWrite, StdoutDest, err)
	}

	if n != len(data) {
		return fmt.Errorf("%w to %s: %w", ErrOutputWrite, StdoutDest, io.ErrShortWrite)
	}

	return nil
}
