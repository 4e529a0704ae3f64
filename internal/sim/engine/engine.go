// Package engine implements the walker simulation core: terrain effects,
// per-kind move proposal, pairwise interaction, and the tick loop that
// binds them. The engine is single-threaded and deterministic: all state
// is owned by the calling goroutine, and every random draw comes from the
// generator injected at construction.
package engine

import (
	"fmt"
	"math"

	"walkabout.dev/internal/geom"
)

const (
	// interactionProb is the per-walker per-tick chance that an active
	// resolver overrides the walker's own proposal.
	interactionProb = 0.2

	// maxMoveAttempts bounds the obstacle retry loop. A walker that cannot
	// produce an unblocked move in this many draws aborts the run.
	maxMoveAttempts = 1000
)

// Engine owns one run: the terrain, the walkers, the interaction mode,
// and the tick counter. It is created Idle, driven through Running by Run
// or Step, and ends Completed; a Completed engine accepts no further
// moves and is discarded, not reset.
type Engine struct {
	terrain *Terrain
	walkers []*Walker
	mode    InteractionMode
	rng     Rand

	tick      uint64
	state     State
	initial   Snapshot
	snapshots []Snapshot
	digest    string

	// onSnapshot, when set before the run starts, observes every committed
	// tick. It runs on the stepping goroutine and must not block.
	onSnapshot func(Snapshot, string)
}

// New validates cfg, builds the terrain and the walker population, and
// returns an Idle engine. The generator rng is the run's only randomness
// source. Invalid configurations return a *ConfigError; nil rng is a
// ConfigError too (a run without randomness is not a run).
func New(cfg Config, rng Rand) (*Engine, error) {
	if rng == nil {
		return nil, configErrorf("nil random generator")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	terrain, err := NewTerrain(cfg.Zones, cfg.Obstacles, cfg.Gates)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		terrain: terrain,
		mode:    cfg.Mode,
		rng:     rng,
		state:   StateIdle,
	}
	kindOrdinals := make(map[WalkerKind]int)
	for i, ws := range cfg.Walkers {
		kindOrdinals[ws.Kind]++
		name := fmt.Sprintf("%s-%d", ws.Kind, kindOrdinals[ws.Kind])
		w := newWalker(i, name, ws)
		w.mult = terrain.MultiplierAt(w.pos)
		e.walkers = append(e.walkers, w)
	}
	e.initial = e.buildSnapshot()
	e.digest = e.stateDigest()
	return e, nil
}

// SetSnapshotFunc installs the per-tick observer callback. Call it before
// the run starts; the callback may be nil.
func (e *Engine) SetSnapshotFunc(fn func(Snapshot, string)) { e.onSnapshot = fn }

// State returns the lifecycle state.
func (e *Engine) State() State { return e.state }

// CurrentTick returns the last completed tick, 0 before the first.
func (e *Engine) CurrentTick() uint64 { return e.tick }

// Digest returns the state digest after the last completed tick.
func (e *Engine) Digest() string { return e.digest }

// Mode returns the interaction mode.
func (e *Engine) Mode() InteractionMode { return e.mode }

// Terrain returns the run's terrain layout.
func (e *Engine) Terrain() *Terrain { return e.terrain }

// Walkers returns the walkers in id order. Callers must treat them as
// read-only; mutation belongs to the engine.
func (e *Engine) Walkers() []*Walker {
	return append([]*Walker(nil), e.walkers...)
}

// Snapshots returns the per-tick snapshot sequence accumulated so far.
func (e *Engine) Snapshots() []Snapshot { return e.snapshots }

// Run drives the whole lifecycle: Idle → Running, numTicks full passes
// over the walker population, → Completed. Calling Run off-Idle returns a
// *StateError. Run(0) is legal and produces an empty snapshot sequence.
// A *WedgeError aborts the run early; the engine still ends Completed,
// the error is the failure signal.
func (e *Engine) Run(numTicks int) error {
	if e.state != StateIdle {
		return &StateError{Op: "run", State: e.state}
	}
	if numTicks < 0 {
		return configErrorf("negative tick count %d", numTicks)
	}
	e.state = StateRunning
	for i := 0; i < numTicks; i++ {
		if err := e.stepInternal(); err != nil {
			e.state = StateCompleted
			return err
		}
	}
	e.state = StateCompleted
	return nil
}

// Step advances exactly one tick with the same semantics as Run. The
// first Step moves an Idle engine to Running; stepping a Completed engine
// returns a *StateError. Pacing callers (live server, replay) use Step,
// batch callers use Run.
func (e *Engine) Step() error {
	switch e.state {
	case StateIdle:
		e.state = StateRunning
	case StateRunning:
	default:
		return &StateError{Op: "step", State: e.state}
	}
	if err := e.stepInternal(); err != nil {
		e.state = StateCompleted
		return err
	}
	return nil
}

// Complete seals a Running engine. Completing a Completed engine is a
// no-op so pacing callers can defer it; completing an Idle engine is a
// *StateError (nothing ran).
func (e *Engine) Complete() error {
	switch e.state {
	case StateRunning:
		e.state = StateCompleted
		return nil
	case StateCompleted:
		return nil
	default:
		return &StateError{Op: "complete", State: e.state}
	}
}

// stepInternal runs one full pass over the walkers in id order, then
// seals the tick: snapshot, digest, observer callback. Later walkers in
// the pass observe earlier walkers' already-committed positions; that
// ordering is part of the contract, not an accident.
func (e *Engine) stepInternal() error {
	e.tick++
	for _, w := range e.walkers {
		if err := e.stepWalker(w); err != nil {
			return fmt.Errorf("tick %d: %w", e.tick, err)
		}
	}
	snap := e.buildSnapshot()
	e.snapshots = append(e.snapshots, snap)
	e.digest = e.stateDigest()
	if e.onSnapshot != nil {
		e.onSnapshot(snap, e.digest)
	}
	return nil
}

// stepWalker runs the per-walker pipeline: propose, terrain, obstacles,
// gates, commit. A blocked trajectory rewinds and redraws the whole
// proposal, interaction trial included.
func (e *Engine) stepWalker(w *Walker) error {
	for attempt := 0; attempt < maxMoveAttempts; attempt++ {
		dir, ok := e.chooseMove(w)
		if !ok {
			// Stays in place: no trajectory, no terrain effect, no
			// visited append, multiplier untouched.
			return nil
		}
		mag := w.baseSpeed * w.mult
		tentative := w.pos.Add(dir.Vec().Scale(mag))

		final := tentative
		if kind, inZone := e.terrain.ZoneAt(tentative); inZone && kind == Water {
			// Water discards the move entirely and resets to the origin.
			final = geom.Origin
		}
		if e.terrain.Blocked(w.pos, final) {
			continue
		}
		if exit, crossed := e.terrain.GateExit(w.pos, final); crossed {
			final = exit
		}

		w.mover.committed(w.pos)
		w.pos = final
		w.mult = e.terrain.MultiplierAt(final)
		return nil
	}
	return &WedgeError{WalkerID: w.id, Name: w.name, Attempts: maxMoveAttempts}
}

// chooseMove yields this tick's direction for w, or ok=false for a stay.
// Draw order is fixed and part of the determinism contract: at most one
// Float64 (interaction trial) followed by at most one Intn (random
// direction selection).
func (e *Engine) chooseMove(w *Walker) (geom.Dir, bool) {
	mag := w.baseSpeed * w.mult
	if e.interactionActive() && e.rng.Float64() < interactionProb {
		return e.directedMove(w, mag)
	}
	return w.mover.propose(e.rng, w.pos, mag)
}

// directedMove computes the interaction-biased direction: a single step
// toward (attract) or away from (repel) the nearest other walker,
// discretized to the best legal direction. Memory exclusion still
// applies; an excluded directed move falls back to the walker's own
// random proposal over the remaining legal directions.
func (e *Engine) directedMove(w *Walker, mag float64) (geom.Dir, bool) {
	target := e.nearestTo(w)
	vec := target.pos.Sub(w.pos)
	if e.mode == InteractionRepel {
		vec = vec.Scale(-1)
	}
	if vec.IsZero() {
		// Co-located with the target. Attraction is already satisfied;
		// repulsion has no defined direction, so it degrades to random.
		if e.mode == InteractionAttract {
			return 0, false
		}
		return w.mover.propose(e.rng, w.pos, mag)
	}
	dir := geom.Nearest(vec)
	if w.mover.allows(w.pos.Add(dir.Vec().Scale(mag))) {
		return dir, true
	}
	return w.mover.propose(e.rng, w.pos, mag)
}

// nearestTo returns the closest other walker by Euclidean distance over
// current positions (walkers earlier in this tick's pass have already
// moved). Ties resolve to the lowest id because iteration is in id order
// and only a strictly smaller distance replaces the candidate.
func (e *Engine) nearestTo(w *Walker) *Walker {
	var nearest *Walker
	best := math.Inf(1)
	for _, other := range e.walkers {
		if other == w {
			continue
		}
		if d := other.pos.Dist(w.pos); d < best {
			nearest, best = other, d
		}
	}
	return nearest
}

func (e *Engine) interactionActive() bool {
	return e.mode != InteractionNone && len(e.walkers) >= 2
}
