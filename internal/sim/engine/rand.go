package engine

import "math/rand"

// Rand is the slice of math/rand the engine draws from. Injecting it keeps
// runs replayable: the same seed and configuration produce the same
// trajectory, and concurrent runs never share generator state.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// NewRand returns a Rand seeded for one run.
func NewRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}
