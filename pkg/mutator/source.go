package mutator

import (
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// Source is the random stream a run draws from.
//
// [*rand.Rand] satisfies it. Tests substitute scripted sources to pin down
// exactly which positions get replaced and which bytes get appended.
type Source interface {
	// IntN returns a uniform int in [0, n). Used for the per-position
	// mutation roll with n = 100.
	IntN(n int) int

	// Uint32 returns a uniform 32-bit value. Its low byte is used for every
	// freshly drawn byte, both replacements and extensions.
	Uint32() uint32
}

const goldenRatio64 = 0x9e3779b97f4a7c15

// SeedFromString derives the PRNG seed for a seed string.
//
// The function is 64-bit xxHash (XXH64, seed 0) over the UTF-8 bytes of s.
// It is load-bearing for reproducibility: changing it changes every output.
func SeedFromString(s string) uint64 {
	return xxhash.Sum64String(s)
}

// SeedFromBytes is [SeedFromString] for a seed already held as bytes.
// SeedFromBytes([]byte(s)) == SeedFromString(s) for every s.
func SeedFromBytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// NewSource returns the default deterministic source for seed.
//
// The generator is PCG (math/rand/v2). Its two state words are derived from
// seed with the splitmix64 finalizer, the second one offset by the 64-bit
// golden ratio, so nearby seeds still start from unrelated states.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(mix(seed), mix(seed+goldenRatio64)))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31

	return x
}
