package fs

import (
	iofs "io/fs"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
type ChaosConfig struct {
	OpenFailRate  float64 // Fail Open and ReadFile before any data is read
	ReadFailRate  float64 // Fail reads from an opened file
	WriteFailRate float64 // Fail WriteFileAtomic
	StatFailRate  float64 // Fail Exists
}

// DefaultChaosConfig returns a config with reasonable fault rates for testing.
func DefaultChaosConfig() ChaosConfig {
	return ChaosConfig{
		OpenFailRate:  0.05,
		ReadFailRate:  0.05,
		WriteFailRate: 0.05,
		StatFailRate:  0.02,
	}
}

// ChaosMode controls how Chaos behaves.
type ChaosMode uint8

const (
	// ChaosModePassthrough behaves like the underlying FS.
	// Paths registered with [Chaos.FailPath] still fail.
	ChaosModePassthrough ChaosMode = iota

	// ChaosModeInject enables fault-rate injection.
	ChaosModeInject
)

// Chaos wraps an [FS] and injects failures for testing.
//
// All injected errors are real OS errors (syscall.Errno wrapped in
// *fs.PathError) so they behave identically to real filesystem errors;
// [IsInjected] tells them apart.
//
// Use [Chaos.SetMode] to toggle random injection and [Chaos.FailPath] to
// break one path deterministically.
type Chaos struct {
	fs     FS
	config ChaosConfig
	mode   atomic.Uint32

	mu     sync.Mutex
	rng    *rand.Rand
	broken map[string]syscall.Errno

	openFails  atomic.Int64
	readFails  atomic.Int64
	writeFails atomic.Int64
	statFails  atomic.Int64
}

// NewChaos creates a new Chaos filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
func NewChaos(fs FS, seed uint64, config ChaosConfig) *Chaos {
	return &Chaos{
		fs:     fs,
		config: config,
		rng:    rand.New(rand.NewPCG(seed, 0)),
		broken: make(map[string]syscall.Errno),
	}
}

// SetMode updates Chaos behavior. Safe to call concurrently.
// The zero value (and default for a new [Chaos]) is [ChaosModePassthrough].
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// FailPath makes every operation on path fail with errno, in any mode.
func (c *Chaos) FailPath(path string, errno syscall.Errno) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.broken[path] = errno
}

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	OpenFails  int64
	ReadFails  int64
	WriteFails int64
	StatFails  int64
}

// Stats returns the current fault injection counts.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:  c.openFails.Load(),
		ReadFails:  c.readFails.Load(),
		WriteFails: c.writeFails.Load(),
		StatFails:  c.statFails.Load(),
	}
}

// TotalFaults returns the total number of injected faults.
func (c *Chaos) TotalFaults() int64 {
	s := c.Stats()

	return s.OpenFails + s.ReadFails + s.WriteFails + s.StatFails
}

// fault decides whether op on path fails and with which errno.
func (c *Chaos) fault(op, path string, rate float64) (syscall.Errno, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if errno, ok := c.broken[path]; ok {
		return errno, true
	}

	if ChaosMode(c.mode.Load()) != ChaosModeInject || c.rng.Float64() >= rate {
		return 0, false
	}

	var valid []syscall.Errno

	switch op {
	case "open":
		valid = []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.EMFILE}
	case "read":
		valid = []syscall.Errno{syscall.EIO, syscall.EINTR}
	case "write":
		valid = []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EROFS}
	default:
		valid = []syscall.Errno{syscall.EACCES, syscall.EIO}
	}

	return valid[c.rng.IntN(len(valid))], true
}

// pathError creates an *os.PathError with the given operation, path, and errno.
// This matches what the real OS returns, so errors.Is() works correctly.
func pathError(op, path string, errno syscall.Errno) error {
	pe := &iofs.PathError{Op: op, Path: path, Err: errno}
	markInjectedPathError(pe)

	return pe
}

func (c *Chaos) Open(path string) (File, error) {
	if errno, ok := c.fault("open", path, c.config.OpenFailRate); ok {
		c.openFails.Add(1)

		return nil, pathError("open", path, errno)
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, err
	}

	return &chaosFile{f: f, chaos: c, path: path}, nil
}

func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if errno, ok := c.fault("open", path, c.config.OpenFailRate); ok {
		c.openFails.Add(1)

		return nil, pathError("open", path, errno)
	}

	return c.fs.ReadFile(path)
}

func (c *Chaos) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if errno, ok := c.fault("write", path, c.config.WriteFailRate); ok {
		c.writeFails.Add(1)

		return pathError("write", path, errno)
	}

	return c.fs.WriteFileAtomic(path, data, perm)
}

func (c *Chaos) Exists(path string) (bool, error) {
	if errno, ok := c.fault("stat", path, c.config.StatFailRate); ok {
		c.statFails.Add(1)

		return false, pathError("stat", path, errno)
	}

	return c.fs.Exists(path)
}

// chaosFile wraps a [File] so reads can fail after a successful open.
type chaosFile struct {
	f     File
	chaos *Chaos
	path  string
}

func (cf *chaosFile) Read(p []byte) (int, error) {
	if errno, ok := cf.chaos.fault("read", cf.path, cf.chaos.config.ReadFailRate); ok {
		cf.chaos.readFails.Add(1)

		return 0, pathError("read", cf.path, errno)
	}

	return cf.f.Read(p)
}

func (cf *chaosFile) Close() error {
	return cf.f.Close()
}

func (cf *chaosFile) Stat() (os.FileInfo, error) {
	return cf.f.Stat()
}
