package mutator_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/bytefuzz/pkg/mutator"
)

func Test_New_Rejects_Config_When_Out_Of_Range(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  mutator.Config
	}{
		{name: "negative percent", cfg: mutator.Config{MutationPercent: -1, ExtendInterval: 500, ExtendLength: 10}},
		{name: "percent above 100", cfg: mutator.Config{MutationPercent: 101, ExtendInterval: 500, ExtendLength: 10}},
		{name: "zero interval", cfg: mutator.Config{MutationPercent: 13, ExtendInterval: 0, ExtendLength: 10}},
		{name: "negative length", cfg: mutator.Config{MutationPercent: 13, ExtendInterval: 500, ExtendLength: -1}},
		{name: "length above max", cfg: mutator.Config{MutationPercent: 13, ExtendInterval: 500, ExtendLength: mutator.MaxExtendLength + 1}},
		{name: "huge length", cfg: mutator.Config{MutationPercent: 13, ExtendInterval: 500, ExtendLength: math.MaxInt / 2}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, err := mutator.New(tc.cfg)

			require.ErrorIs(t, err, mutator.ErrInvalidConfig)
			assert.Nil(t, m)
		})
	}
}

func Test_New_Accepts_Config_When_On_Boundaries(t *testing.T) {
	t.Parallel()

	for _, cfg := range []mutator.Config{
		mutator.DefaultConfig(),
		{MutationPercent: 0, ExtendInterval: 1, ExtendLength: 0},
		{MutationPercent: 100, ExtendInterval: 1, ExtendLength: 1},
		{MutationPercent: 13, ExtendInterval: math.MaxInt, ExtendLength: mutator.MaxExtendLength},
	} {
		m, err := mutator.New(cfg)
		require.NoError(t, err, "config %+v", cfg)
		assert.Equal(t, cfg, m.Config())
	}
}

func Test_ExpectedLength(t *testing.T) {
	t.Parallel()

	cfg := mutator.DefaultConfig()

	tests := []struct {
		seedLen    int
		iterations int
		want       int
	}{
		{seedLen: 3, iterations: 0, want: 3},
		{seedLen: 3, iterations: -1, want: 3},
		{seedLen: 3, iterations: 1, want: 13},
		{seedLen: 0, iterations: 499, want: 10},
		{seedLen: 0, iterations: 500, want: 10},
		{seedLen: 0, iterations: 501, want: 20},
		{seedLen: 0, iterations: 1000, want: 20},
		{seedLen: 5, iterations: 100_000, want: 2005},
		{seedLen: 3, iterations: math.MaxInt, want: 3 + 10*(math.MaxInt/500+1)},
	}

	for _, tc := range tests {
		if got := mutator.ExpectedLength(cfg, tc.seedLen, tc.iterations); got != tc.want {
			t.Errorf("ExpectedLength(%d, %d)=%d, want=%d", tc.seedLen, tc.iterations, got, tc.want)
		}
	}
}

func Test_ExpectedLength_Saturates_When_Length_Overflows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cfg        mutator.Config
		seedLen    int
		iterations int
	}{
		{name: "every round max length", cfg: mutator.Config{ExtendInterval: 1, ExtendLength: mutator.MaxExtendLength}, seedLen: 3, iterations: math.MaxInt},
		{name: "seed near max", cfg: mutator.Config{ExtendInterval: 1, ExtendLength: 1}, seedLen: math.MaxInt - 1, iterations: 2},
	}

	for _, tc := range tests {
		if got := mutator.ExpectedLength(tc.cfg, tc.seedLen, tc.iterations); got != math.MaxInt {
			t.Errorf("%s: ExpectedLength=%d, want=math.MaxInt", tc.name, got)
		}
	}
}

func Test_ExpectedLength_Is_Seed_Length_When_Extension_Length_Zero(t *testing.T) {
	t.Parallel()

	cfg := mutator.Config{MutationPercent: 13, ExtendInterval: 1, ExtendLength: 0}

	if got, want := mutator.ExpectedLength(cfg, 4, math.MaxInt), 4; got != want {
		t.Fatalf("ExpectedLength=%d, want=%d", got, want)
	}
}
