package engine

import "testing"

// scriptRand replays a fixed sequence of draws so trajectory tests can be
// derived by hand. Exhausting the script or drawing an out-of-range int
// fails the test immediately.
type scriptRand struct {
	t      *testing.T
	ints   []int
	floats []float64
}

func (r *scriptRand) Intn(n int) int {
	r.t.Helper()
	if len(r.ints) == 0 {
		r.t.Fatalf("Intn(%d): int script exhausted", n)
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	if v < 0 || v >= n {
		r.t.Fatalf("scripted int %d out of range for Intn(%d)", v, n)
	}
	return v
}

func (r *scriptRand) Float64() float64 {
	r.t.Helper()
	if len(r.floats) == 0 {
		r.t.Fatalf("Float64: float script exhausted")
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}
