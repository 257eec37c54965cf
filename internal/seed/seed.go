// Package seed resolves the seed argument of bytefuzz into a seed string.
//
// A seed is either given literally or read from a seed file. Seed files are
// recognized by suffix (".txt" by default); their lines are concatenated
// without separators, so a file holding "AB\nCD\n" yields "ABCD".
package seed

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/calvinalkan/bytefuzz/internal/fs"
)

// ErrSeedUnavailable is returned when a seed file cannot be opened or read.
var ErrSeedUnavailable = errors.New("seed unavailable")

// DefaultFileSuffix marks a seed argument as a file path.
const DefaultFileSuffix = ".txt"

// maxLineSize bounds a single seed-file line.
const maxLineSize = 64 << 20

// Source describes where a resolved seed came from.
type Source struct {
	Seed string
	Path string // seed file path, empty for literal seeds
}

// Resolver turns seed arguments into seed strings.
type Resolver struct {
	fs       fs.FS
	suffixes []string
}

// NewResolver returns a Resolver reading seed files through fsys.
// Arguments ending in one of suffixes are treated as file paths. A nil or
// empty suffixes list falls back to [DefaultFileSuffix].
func NewResolver(fsys fs.FS, suffixes []string) *Resolver {
	if len(suffixes) == 0 {
		suffixes = []string{DefaultFileSuffix}
	}

	return &Resolver{fs: fsys, suffixes: suffixes}
}

// IsFile reports whether arg would be read as a seed file.
func (r *Resolver) IsFile(arg string) bool {
	for _, suffix := range r.suffixes {
		if suffix != "" && strings.HasSuffix(arg, suffix) {
			return true
		}
	}

	return false
}

// Resolve returns the seed for arg: the file contents when arg names a
// seed file, arg itself otherwise.
func (r *Resolver) Resolve(arg string) (Source, error) {
	if !r.IsFile(arg) {
		return Source{Seed: arg}, nil
	}

	seed, err := r.ReadFile(arg)
	if err != nil {
		return Source{}, err
	}

	return Source{Seed: seed, Path: arg}, nil
}

// ReadFile reads path and concatenates its lines without separators.
// "\n", "\r\n" and a lone "\r" all end a line and are stripped. Errors wrap
// [ErrSeedUnavailable].
func (r *Resolver) ReadFile(path string) (string, error) {
	file, err := r.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSeedUnavailable, err)
	}

	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSeedUnavailable, err)
	}

	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrSeedUnavailable, path)
	}

	seed, err := ReadLines(file)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	return seed, nil
}

// ReadLines reads rd to EOF and concatenates its lines without separators.
// Errors wrap [ErrSeedUnavailable].
func ReadLines(rd io.Reader) (string, error) {
	var seed strings.Builder

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	scanner.Split(scanLines)

	for scanner.Scan() {
		seed.Write(scanner.Bytes())
	}

	err := scanner.Err()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSeedUnavailable, err)
	}

	return seed.String(), nil
}

// scanLines is [bufio.ScanLines] that also ends a line at a lone '\r'.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	i := bytes.IndexAny(data, "\r\n")

	switch {
	case i < 0:
		if atEOF {
			return len(data), data, nil
		}

		return 0, nil, nil
	case data[i] == '\n':
		return i + 1, data[:i], nil
	case i+1 < len(data):
		if data[i+1] == '\n' {
			return i + 2, data[:i], nil
		}

		return i + 1, data[:i], nil
	case atEOF:
		return i + 1, data[:i], nil
	default:
		// '\r' at the end of the buffer: need one more byte to tell "\r\n".
		return 0, nil, nil
	}
}
