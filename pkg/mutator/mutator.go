// Package mutator implements the deterministic byte mutation loop behind
// bytefuzz.
//
// A run starts from a copy of the seed and performs N rounds. Each round
// first sweeps every existing position once, in order, replacing it with a
// fresh random byte with probability MutationPercent/100. Then, on rounds
// 0, ExtendInterval, 2*ExtendInterval, ..., it appends ExtendLength fresh
// random bytes. The buffer never shrinks.
//
// Output is a pure function of (seed, iterations, [Config]) when the
// default source is used:
//
//	m, _ := mutator.New(mutator.DefaultConfig())
//	out := m.RunString("abc", 1000) // len(out) == 3 + 10*2
//
// The default source is PCG from math/rand/v2 seeded via [SeedFromString].
// Outputs are reproducible across runs and platforms for a given Go release
// of math/rand/v2; they are not meant to match any other implementation.
package mutator

import (
	"context"
)

// maxPrealloc bounds the up-front growth reservation. Larger outputs grow
// through append.
const maxPrealloc = 1 << 20

// Mutator runs the mutation loop with a fixed [Config].
//
// A Mutator holds no per-run state and is safe for concurrent use.
type Mutator struct {
	cfg Config
}

// Result is the outcome of [Mutator.Generate].
type Result struct {
	// Data is the final buffer. It never aliases the seed.
	Data []byte

	// Rounds is the number of completed rounds.
	Rounds int

	// Mutations counts positions replaced across all mutation passes.
	// A replacement that happens to draw the old value still counts.
	Mutations int

	// Extensions counts extension events (not bytes).
	Extensions int
}

// New returns a Mutator for cfg.
// Returns an error wrapping [ErrInvalidConfig] if cfg is out of range.
func New(cfg Config) (*Mutator, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Mutator{cfg: cfg}, nil
}

// Config returns the parameters m was created with.
func (m *Mutator) Config() Config {
	return m.cfg
}

// Run mutates a copy of seed for iterations rounds and returns the result.
//
// The source is [NewSource]([SeedFromBytes](seed)). A non-positive
// iteration count returns an unchanged copy of seed.
func (m *Mutator) Run(seed []byte, iterations int) []byte {
	if iterations < 0 {
		iterations = 0
	}

	res, _ := m.Generate(context.Background(), seed, iterations, NewSource(SeedFromBytes(seed)))

	return res.Data
}

// RunString is [Mutator.Run] for a seed string.
func (m *Mutator) RunString(seed string, iterations int) []byte {
	return m.Run([]byte(seed), iterations)
}

// Generate runs the loop with an explicit source and reports counters.
//
// ctx is checked before every round. On cancellation the partial result is
// returned together with ctx.Err(); Rounds tells how far it got.
func (m *Mutator) Generate(ctx context.Context, seed []byte, iterations int, src Source) (Result, error) {
	if iterations < 0 {
		return Result{}, ErrNegativeIterations
	}

	buf := make([]byte, len(seed), min(ExpectedLength(m.cfg, len(seed), iterations), len(seed)+maxPrealloc))
	copy(buf, seed)

	res := Result{}

	for round := range iterations {
		if err := ctx.Err(); err != nil {
			res.Data = buf

			return res, err
		}

		res.Mutations += mutatePass(buf, src, m.cfg.MutationPercent)

		if round%m.cfg.ExtendInterval == 0 {
			buf = extend(buf, src, m.cfg.ExtendLength)
			res.Extensions++
		}

		res.Rounds++
	}

	res.Data = buf

	return res, nil
}

// mutatePass visits every position of buf exactly once and returns how many
// were replaced.
func mutatePass(buf []byte, src Source, percent int) int {
	replaced := 0

	for i := range buf {
		if src.IntN(mutationRoll) < percent {
			buf[i] = byte(src.Uint32())
			replaced++
		}
	}

	return replaced
}

func extend(buf []byte, src Source, n int) []byte {
	for range n {
		buf = append(buf, byte(src.Uint32()))
	}

	return buf
}
