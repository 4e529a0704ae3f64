// Package stats derives run metrics from engine snapshots: escape times,
// y-axis crossings, and per-step distance series, plus cross-run
// averaging. It consumes only the snapshot stream; it never reaches into
// the engine.
package stats

import (
	"walkabout.dev/internal/geom"
	"walkabout.dev/internal/sim/engine"
)

// EscapeRadius is the distance from the origin beyond which a walker
// counts as escaped.
const EscapeRadius = 10.0

// StepMetrics is one walker's measurements after one tick.
type StepMetrics struct {
	Tick       uint64  `json:"tick"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	DistOrigin float64 `json:"dist_origin"`
	AbsX       float64 `json:"abs_x"`
	AbsY       float64 `json:"abs_y"`
	YCrossings int     `json:"y_crossings"`
}

// WalkerStats is one walker's full record for one run.
type WalkerStats struct {
	ID         int           `json:"id"`
	Name       string        `json:"name"`
	Kind       string        `json:"kind"`
	Escaped    bool          `json:"escaped"`
	EscapeTick uint64        `json:"escape_tick,omitempty"`
	YCrossings int           `json:"y_crossings"`
	FinalPos   geom.Point    `json:"final_pos"`
	FinalDist  float64       `json:"final_dist"`
	Steps      []StepMetrics `json:"steps,omitempty"`
}

type track struct {
	name    string
	kind    string
	prev    geom.Point
	escaped bool
	escTick uint64
	// crossings starts at -1 so the first departure from the origin is
	// not counted as a crossing.
	crossings int
	steps     []StepMetrics
}

// Collector accumulates metrics for one run. Feed it the engine's initial
// state, then every snapshot in order.
type Collector struct {
	tracks []*track
}

// NewCollector primes the collector with the pre-run walker state.
func NewCollector(initial engine.Snapshot) *Collector {
	c := &Collector{}
	for _, ws := range initial.Walkers {
		tr := &track{
			name:      ws.Name,
			kind:      ws.Kind.String(),
			prev:      ws.Pos,
			crossings: -1,
		}
		if d := ws.Pos.Norm(); d > EscapeRadius {
			tr.escaped = true
		}
		c.tracks = append(c.tracks, tr)
	}
	return c
}

// ObserveTick folds one snapshot into the run's metrics. Snapshots must
// arrive in tick order with the same walker roster throughout.
func (c *Collector) ObserveTick(snap engine.Snapshot) {
	for i, ws := range snap.Walkers {
		if i >= len(c.tracks) {
			return
		}
		tr := c.tracks[i]
		pos := ws.Pos

		if pos.X*tr.prev.X < 0 || (tr.prev.X == 0 && pos.X != 0) {
			tr.crossings++
		}
		dist := pos.Norm()
		if !tr.escaped && dist > EscapeRadius {
			tr.escaped = true
			tr.escTick = snap.Tick
		}
		tr.steps = append(tr.steps, StepMetrics{
			Tick:       snap.Tick,
			X:          pos.X,
			Y:          pos.Y,
			DistOrigin: dist,
			AbsX:       abs(pos.X),
			AbsY:       abs(pos.Y),
			YCrossings: max(0, tr.crossings),
		})
		tr.prev = pos
	}
}

// Results returns the per-walker records accumulated so far.
func (c *Collector) Results() []WalkerStats {
	out := make([]WalkerStats, len(c.tracks))
	for i, tr := range c.tracks {
		out[i] = WalkerStats{
			ID:         i,
			Name:       tr.name,
			Kind:       tr.kind,
			Escaped:    tr.escaped,
			EscapeTick: tr.escTick,
			YCrossings: max(0, tr.crossings),
			FinalPos:   tr.prev,
			FinalDist:  tr.prev.Norm(),
			Steps:      tr.steps,
		}
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
