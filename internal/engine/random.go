package engine

import "math/rand/v2"

// RandomSource supplies the draws for price and volume moves.
type RandomSource interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Int64N returns a value in [0, n).
	Int64N(n int64) int64
}

type globalRand struct{}

func (globalRand) Float64() float64     { return rand.Float64() }
func (globalRand) Int64N(n int64) int64 { return rand.Int64N(n) }

// DefaultRandom returns a source backed by the runtime's global generator.
func DefaultRandom() RandomSource {
	return globalRand{}
}

// SeededRandom returns a deterministic source. It is not safe for
// concurrent use.
func SeededRandom(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
