package mutator

import (
	"errors"
	"fmt"
	"math"
)

// Defaults for [Config].
const (
	DefaultMutationPercent = 13
	DefaultExtendInterval  = 500
	DefaultExtendLength    = 10

	// MaxExtendLength bounds a single extension. One extension is one
	// allocation, so larger values would exhaust memory in round 0.
	MaxExtendLength = 1 << 24
)

// mutationRoll is the exclusive upper bound of the per-position roll.
// A position is replaced when the roll is below MutationPercent.
const mutationRoll = 100

var (
	// ErrInvalidConfig is returned by [New] and [Config.Validate] for
	// parameters outside their allowed range.
	ErrInvalidConfig = errors.New("invalid mutator config")

	// ErrNegativeIterations is returned by [Mutator.Generate] for a negative
	// iteration count.
	ErrNegativeIterations = errors.New("iterations must not be negative")
)

// Config holds the tunable parameters of the mutation loop.
type Config struct {
	// MutationPercent is the chance, in percent, that a position is replaced
	// during one mutation pass. 0 disables mutation, 100 replaces every byte.
	MutationPercent int

	// ExtendInterval is the round period of extensions. Rounds 0,
	// ExtendInterval, 2*ExtendInterval, ... append ExtendLength bytes.
	ExtendInterval int

	// ExtendLength is the number of fresh bytes appended per extension.
	ExtendLength int
}

// DefaultConfig returns the classic 13% / every 500 rounds / 10 bytes setup.
func DefaultConfig() Config {
	return Config{
		MutationPercent: DefaultMutationPercent,
		ExtendInterval:  DefaultExtendInterval,
		ExtendLength:    DefaultExtendLength,
	}
}

// Validate checks that all parameters are in range.
// Errors wrap [ErrInvalidConfig].
func (c Config) Validate() error {
	if c.MutationPercent < 0 || c.MutationPercent > mutationRoll {
		return fmt.Errorf("%w: mutation percent %d not in [0,%d]", ErrInvalidConfig, c.MutationPercent, mutationRoll)
	}

	if c.ExtendInterval < 1 {
		return fmt.Errorf("%w: extend interval %d must be at least 1", ErrInvalidConfig, c.ExtendInterval)
	}

	if c.ExtendLength < 0 || c.ExtendLength > MaxExtendLength {
		return fmt.Errorf("%w: extend length %d not in [0,%d]", ErrInvalidConfig, c.ExtendLength, MaxExtendLength)
	}

	return nil
}

// ExpectedLength returns the buffer length after iterations rounds starting
// from a seed of seedLen bytes.
//
// Round 0 always extends, so any positive iteration count grows the buffer
// by ExtendLength * ceil(iterations / ExtendInterval). Non-positive counts
// leave it at seedLen. Lengths that do not fit an int saturate at
// [math.MaxInt].
func ExpectedLength(cfg Config, seedLen, iterations int) int {
	if iterations <= 0 || cfg.ExtendInterval < 1 || cfg.ExtendLength <= 0 {
		return seedLen
	}

	extensions := iterations / cfg.ExtendInterval
	if iterations%cfg.ExtendInterval != 0 {
		extensions++
	}

	if extensions > (math.MaxInt-seedLen)/cfg.ExtendLength {
		return math.MaxInt
	}

	return seedLen + cfg.ExtendLength*extensions
}
