package engine

import "walkabout.dev/internal/geom"

// WalkerState is one walker's observable state inside a Snapshot.
type WalkerState struct {
	ID   int
	Name string
	Kind WalkerKind
	Pos  geom.Point
	Mult float64
}

// Snapshot is the immutable per-tick view handed to statistics and
// visualization consumers. Walkers are in id order.
type Snapshot struct {
	Tick    uint64
	Walkers []WalkerState
}

func (e *Engine) buildSnapshot() Snapshot {
	snap := Snapshot{
		Tick:    e.tick,
		Walkers: make([]WalkerState, len(e.walkers)),
	}
	for i, w := range e.walkers {
		snap.Walkers[i] = WalkerState{
			ID:   w.id,
			Name: w.name,
			Kind: w.kind,
			Pos:  w.pos,
			Mult: w.mult,
		}
	}
	return snap
}

// InitialState returns the walkers' pre-run state in the same shape as a
// snapshot (tick 0). Statistics collectors need it as the predecessor of
// the first tick.
func (e *Engine) InitialState() Snapshot {
	return e.initial
}
