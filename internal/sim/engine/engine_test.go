package engine

import (
	"errors"
	"testing"

	"walkabout.dev/internal/geom"
)

func testEngine(t *testing.T, cfg Config, rng Rand) *Engine {
	t.Helper()
	e, err := New(cfg, rng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func onePlain() Config {
	return Config{Walkers: []WalkerSpec{{Kind: Plain, BaseSpeed: 1}}}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(onePlain(), nil); err == nil {
		t.Fatalf("nil rng must be rejected")
	}

	_, err := New(Config{Walkers: []WalkerSpec{{Kind: WalkerKind(7), BaseSpeed: 1}}}, NewRand(1))
	wantConfigError(t, err, "invalid kind")

	_, err = New(Config{Walkers: []WalkerSpec{{Kind: Plain, BaseSpeed: 0}}}, NewRand(1))
	wantConfigError(t, err, "base speed")

	_, err = New(Config{Mode: InteractionMode(9)}, NewRand(1))
	wantConfigError(t, err, "interaction mode")

	_, err = New(Config{
		Walkers:   []WalkerSpec{{Kind: Plain, BaseSpeed: 1, Start: geom.Pt(5, 5)}},
		Obstacles: []geom.Rect{geom.Rt(4, 4, 6, 6)},
	}, NewRand(1))
	wantConfigError(t, err, "inside obstacle")

	_, err = New(Config{Zones: []Zone{
		{Kind: Water, Rect: geom.Rt(0, 0, 4, 4)},
		{Kind: Grass, Rect: geom.Rt(3, 3, 5, 5)},
	}}, NewRand(1))
	wantConfigError(t, err, "overlaps")
}

func TestRunLifecycle(t *testing.T) {
	e := testEngine(t, onePlain(), NewRand(7))
	if e.State() != StateIdle {
		t.Fatalf("new engine state = %v, want idle", e.State())
	}
	if err := e.Run(5); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if e.State() != StateCompleted || e.CurrentTick() != 5 {
		t.Fatalf("after run: state=%v tick=%d", e.State(), e.CurrentTick())
	}
	if len(e.Snapshots()) != 5 {
		t.Fatalf("snapshots = %d, want 5", len(e.Snapshots()))
	}

	var se *StateError
	if err := e.Run(1); !errors.As(err, &se) {
		t.Fatalf("second Run = %v, want StateError", err)
	}
	if err := e.Step(); !errors.As(err, &se) {
		t.Fatalf("Step after completion = %v, want StateError", err)
	}
}

func TestRunZeroTicks(t *testing.T) {
	e := testEngine(t, onePlain(), NewRand(7))
	if err := e.Run(0); err != nil {
		t.Fatalf("Run(0): %v", err)
	}
	if e.State() != StateCompleted || len(e.Snapshots()) != 0 {
		t.Fatalf("Run(0): state=%v snapshots=%d", e.State(), len(e.Snapshots()))
	}
}

func TestRunRejectsNegativeTicks(t *testing.T) {
	e := testEngine(t, onePlain(), NewRand(7))
	wantConfigError(t, e.Run(-1), "negative")
	if e.State() != StateIdle {
		t.Fatalf("rejected run should leave the engine idle, got %v", e.State())
	}
}

func TestRunZeroWalkers(t *testing.T) {
	e := testEngine(t, Config{}, NewRand(7))
	if err := e.Run(3); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(e.Snapshots()) != 3 {
		t.Fatalf("snapshots = %d, want 3", len(e.Snapshots()))
	}
	for _, snap := range e.Snapshots() {
		if len(snap.Walkers) != 0 {
			t.Fatalf("tick %d: expected empty snapshot", snap.Tick)
		}
	}
}

func TestCompleteSealsARunningEngine(t *testing.T) {
	e := testEngine(t, onePlain(), NewRand(7))

	var se *StateError
	if err := e.Complete(); !errors.As(err, &se) {
		t.Fatalf("Complete on idle = %v, want StateError", err)
	}

	if err := e.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := e.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := e.Complete(); err != nil {
		t.Fatalf("repeated Complete should be a no-op, got %v", err)
	}
	if err := e.Step(); !errors.As(err, &se) {
		t.Fatalf("Step after Complete = %v, want StateError", err)
	}
}

// The golden trajectory: one plain walker, open ground, unit speed. Three
// scripted draws east, north, west walk the origin to (0,1).
func TestGoldenTrajectory(t *testing.T) {
	rng := &scriptRand{t: t, ints: []int{0, 1, 2}}
	e := testEngine(t, onePlain(), rng)
	if err := e.Run(3); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []geom.Point{{X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	snaps := e.Snapshots()
	for i, p := range want {
		if got := snaps[i].Walkers[0].Pos; got != p {
			t.Fatalf("tick %d: pos = %s, want %s", i+1, got, p)
		}
	}
}

func TestWaterResetsToOrigin(t *testing.T) {
	cfg := Config{
		Zones:   []Zone{{Kind: Water, Rect: geom.Rt(1.5, -0.5, 2.5, 0.5)}},
		Walkers: []WalkerSpec{{Kind: Plain, BaseSpeed: 1, Start: geom.Pt(1, 0)}},
	}
	rng := &scriptRand{t: t, ints: []int{0}} // east, into the water
	e := testEngine(t, cfg, rng)
	if err := e.Run(1); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := e.Snapshots()[0].Walkers[0]
	if got.Pos != geom.Origin {
		t.Fatalf("pos = %s, want origin", got.Pos)
	}
	if got.Mult != 1.0 {
		t.Fatalf("mult = %g, want 1.0 at the origin", got.Mult)
	}
}

// Multipliers apply one tick late by design: the walker lands on grass at
// unit speed, and only its next move is doubled.
func TestMultiplierFollowsLandingZone(t *testing.T) {
	cfg := Config{
		Zones:   []Zone{{Kind: Grass, Rect: geom.Rt(0.5, -0.5, 1.5, 0.5)}},
		Walkers: []WalkerSpec{{Kind: Plain, BaseSpeed: 1}},
	}
	rng := &scriptRand{t: t, ints: []int{0, 0}} // east, east
	e := testEngine(t, cfg, rng)
	if err := e.Run(2); err != nil {
		t.Fatalf("Run: %v", err)
	}
	snaps := e.Snapshots()
	if s := snaps[0].Walkers[0]; s.Pos != geom.Pt(1, 0) || s.Mult != 2.0 {
		t.Fatalf("tick 1: %s mult %g, want (1,0) mult 2", s.Pos, s.Mult)
	}
	if s := snaps[1].Walkers[0]; s.Pos != geom.Pt(3, 0) || s.Mult != 1.0 {
		t.Fatalf("tick 2: %s mult %g, want (3,0) mult 1", s.Pos, s.Mult)
	}
}

func TestSandHalvesTheNextStep(t *testing.T) {
	cfg := Config{
		Zones:   []Zone{{Kind: Sand, Rect: geom.Rt(0.5, -0.5, 1.5, 0.5)}},
		Walkers: []WalkerSpec{{Kind: Plain, BaseSpeed: 1}},
	}
	rng := &scriptRand{t: t, ints: []int{0, 0}}
	e := testEngine(t, cfg, rng)
	if err := e.Run(2); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s := e.Snapshots()[1].Walkers[0]; s.Pos != geom.Pt(1.5, 0) {
		t.Fatalf("tick 2: %s, want (1.5,0)", s.Pos)
	}
}

func TestStartingZoneSetsInitialMultiplier(t *testing.T) {
	cfg := Config{
		Zones:   []Zone{{Kind: Grass, Rect: geom.Rt(-0.5, -0.5, 0.5, 0.5)}},
		Walkers: []WalkerSpec{{Kind: Plain, BaseSpeed: 1}},
	}
	rng := &scriptRand{t: t, ints: []int{0}}
	e := testEngine(t, cfg, rng)
	if got := e.InitialState().Walkers[0].Mult; got != 2.0 {
		t.Fatalf("initial mult = %g, want 2.0 on grass", got)
	}
	if err := e.Run(1); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s := e.Snapshots()[0].Walkers[0]; s.Pos != geom.Pt(2, 0) {
		t.Fatalf("tick 1: %s, want (2,0)", s.Pos)
	}
}

func TestGateTeleports(t *testing.T) {
	cfg := Config{
		Gates:   []Gate{{Entrance: geom.Rt(0.5, -0.5, 1.5, 0.5), Exit: geom.Pt(10, 10)}},
		Walkers: []WalkerSpec{{Kind: Memory, BaseSpeed: 1}},
	}
	rng := &scriptRand{t: t, ints: []int{0}} // east, into the entrance
	e := testEngine(t, cfg, rng)
	if err := e.Run(1); err != nil {
		t.Fatalf("Run: %v", err)
	}
	w := e.Walkers()[0]
	if w.Pos() != geom.Pt(10, 10) {
		t.Fatalf("pos = %s, want (10,10)", w.Pos())
	}
	if !w.HasVisited(geom.Origin) || w.VisitedCount() != 1 {
		t.Fatalf("teleport is one committed move; visited = %d", w.VisitedCount())
	}
}

func TestWedgedWalkerAbortsRun(t *testing.T) {
	// Box the origin in: every unit move crosses one of the four walls.
	cfg := Config{
		Obstacles: []geom.Rect{
			geom.Rt(0.75, -0.25, 1.25, 0.25),
			geom.Rt(-0.25, 0.75, 0.25, 1.25),
			geom.Rt(-1.25, -0.25, -0.75, 0.25),
			geom.Rt(-0.25, -1.25, 0.25, -0.75),
		},
		Walkers: []WalkerSpec{{Kind: Plain, BaseSpeed: 1}},
	}
	e := testEngine(t, cfg, NewRand(3))
	err := e.Run(1)
	var we *WedgeError
	if !errors.As(err, &we) {
		t.Fatalf("Run = %v, want WedgeError", err)
	}
	if we.WalkerID != 0 || we.Attempts != maxMoveAttempts {
		t.Fatalf("wedge detail = %+v", we)
	}
	if e.State() != StateCompleted {
		t.Fatalf("aborted run should still complete, state = %v", e.State())
	}
}

func TestMemoryWalkerStaysWhenBoxedByHistory(t *testing.T) {
	// Pre-seed the history so every unit landing is already visited; the
	// walker must stay put tick after tick without touching the rng.
	e := testEngine(t, Config{Walkers: []WalkerSpec{{Kind: Memory, BaseSpeed: 1}}}, NewRand(11))
	w := e.walkers[0]
	m := w.mover.(*memoryMover)
	for _, d := range geom.Dirs {
		m.visited[geom.Origin.Add(d.Vec())] = struct{}{}
	}
	if err := e.Run(4); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, snap := range e.Snapshots() {
		if snap.Walkers[0].Pos != geom.Origin {
			t.Fatalf("tick %d: boxed walker moved to %s", snap.Tick, snap.Walkers[0].Pos)
		}
	}
	if w.VisitedCount() != len(geom.Dirs) {
		t.Fatalf("a stay must not grow history: %d", w.VisitedCount())
	}
}

// A Memory walker never re-enters a position recorded before the move,
// across a long random run.
func TestMemoryNeverRevisits(t *testing.T) {
	e := testEngine(t, Config{Walkers: []WalkerSpec{{Kind: Memory, BaseSpeed: 1}}}, NewRand(1234))
	if err := e.Run(300); err != nil {
		t.Fatalf("Run: %v", err)
	}

	seen := make(map[geom.Point]struct{})
	prev := e.InitialState().Walkers[0].Pos
	for _, snap := range e.Snapshots() {
		cur := snap.Walkers[0].Pos
		if cur != prev {
			if _, dup := seen[cur]; dup {
				t.Fatalf("tick %d: revisited %s", snap.Tick, cur)
			}
			seen[prev] = struct{}{}
		}
		prev = cur
	}
}

func TestSnapshotFuncSeesEveryTick(t *testing.T) {
	e := testEngine(t, onePlain(), NewRand(5))
	var ticks []uint64
	var lastDigest string
	e.SetSnapshotFunc(func(snap Snapshot, digest string) {
		ticks = append(ticks, snap.Tick)
		lastDigest = digest
	})
	if err := e.Run(4); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ticks) != 4 || ticks[0] != 1 || ticks[3] != 4 {
		t.Fatalf("observed ticks %v", ticks)
	}
	if lastDigest != e.Digest() {
		t.Fatalf("sink digest diverged from engine digest")
	}
}
