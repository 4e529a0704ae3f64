package engine

import (
	"fmt"

	"walkabout.dev/internal/geom"
)

// WalkerKind selects the move-proposal behavior of a walker.
type WalkerKind int

const (
	// Plain walkers pick one of the four directions uniformly.
	Plain WalkerKind = iota
	// Memory walkers additionally refuse to re-enter positions they have
	// already visited.
	Memory
)

var walkerKindNames = [...]string{"plain", "memory"}

func (k WalkerKind) String() string {
	if k < 0 || int(k) >= len(walkerKindNames) {
		return fmt.Sprintf("WalkerKind(%d)", int(k))
	}
	return walkerKindNames[k]
}

// ParseWalkerKind maps the wire/config spelling to a WalkerKind.
func ParseWalkerKind(s string) (WalkerKind, error) {
	for i, name := range walkerKindNames {
		if s == name {
			return WalkerKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown walker kind %q", s)
}

// mover is the per-kind move-proposal capability. The engine talks to
// walkers only through it: propose picks this tick's direction (ok=false
// means the walker stays in place), allows vets a directed move's landing
// position, and committed observes every accepted move.
type mover interface {
	propose(rng Rand, from geom.Point, mag float64) (geom.Dir, bool)
	allows(to geom.Point) bool
	committed(old geom.Point)
}

type plainMover struct{}

func (plainMover) propose(rng Rand, _ geom.Point, _ float64) (geom.Dir, bool) {
	return geom.Dirs[rng.Intn(len(geom.Dirs))], true
}

func (plainMover) allows(geom.Point) bool { return true }

func (plainMover) committed(geom.Point) {}

type memoryMover struct {
	visited map[geom.Point]struct{}
}

func newMemoryMover() *memoryMover {
	return &memoryMover{visited: make(map[geom.Point]struct{})}
}

// propose picks uniformly among the directions whose landing position has
// not been visited. With all four excluded the walker stays in place for
// the tick; that is a legal outcome, not an error.
func (m *memoryMover) propose(rng Rand, from geom.Point, mag float64) (geom.Dir, bool) {
	legal := make([]geom.Dir, 0, len(geom.Dirs))
	for _, d := range geom.Dirs {
		if m.allows(from.Add(d.Vec().Scale(mag))) {
			legal = append(legal, d)
		}
	}
	if len(legal) == 0 {
		return 0, false
	}
	return legal[rng.Intn(len(legal))], true
}

func (m *memoryMover) allows(to geom.Point) bool {
	_, seen := m.visited[to]
	return !seen
}

func (m *memoryMover) committed(old geom.Point) {
	m.visited[old] = struct{}{}
}

// Walker is one mutable simulation entity. All fields are owned by the
// Engine and mutated exactly once per tick.
type Walker struct {
	id        int
	name      string
	kind      WalkerKind
	pos       geom.Point
	baseSpeed float64
	mult      float64
	mover     mover
}

func newWalker(id int, name string, spec WalkerSpec) *Walker {
	w := &Walker{
		id:        id,
		name:      name,
		kind:      spec.Kind,
		pos:       spec.Start,
		baseSpeed: spec.BaseSpeed,
		mult:      1.0,
	}
	switch spec.Kind {
	case Memory:
		w.mover = newMemoryMover()
	default:
		w.mover = plainMover{}
	}
	return w
}

// ID returns the walker's dense, declaration-ordered identifier.
func (w *Walker) ID() int { return w.id }

// Name returns the stable kind-N name used by statistics and observers.
func (w *Walker) Name() string { return w.name }

// Kind returns the walker's kind.
func (w *Walker) Kind() WalkerKind { return w.kind }

// Pos returns the walker's current position.
func (w *Walker) Pos() geom.Point { return w.pos }

// BaseSpeed returns the configured displacement magnitude before terrain
// multipliers.
func (w *Walker) BaseSpeed() float64 { return w.baseSpeed }

// SpeedMult returns the current terrain multiplier, one of 0.5, 1.0, 2.0.
func (w *Walker) SpeedMult() float64 { return w.mult }

// HasVisited reports whether a Memory walker has recorded p. Always false
// for Plain walkers.
func (w *Walker) HasVisited(p geom.Point) bool {
	m, ok := w.mover.(*memoryMover)
	if !ok {
		return false
	}
	_, seen := m.visited[p]
	return seen
}

// VisitedCount returns the size of a Memory walker's history, 0 for Plain.
func (w *Walker) VisitedCount() int {
	if m, ok := w.mover.(*memoryMover); ok {
		return len(m.visited)
	}
	return 0
}
