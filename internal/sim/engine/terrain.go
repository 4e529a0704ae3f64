package engine

import (
	"fmt"

	"walkabout.dev/internal/geom"
)

// TerrainKind is the effect class of a terrain zone.
type TerrainKind int

const (
	Water TerrainKind = iota
	Sand
	Grass
)

var terrainNames = [...]string{"water", "sand", "grass"}

func (k TerrainKind) String() string {
	if k < 0 || int(k) >= len(terrainNames) {
		return fmt.Sprintf("TerrainKind(%d)", int(k))
	}
	return terrainNames[k]
}

// ParseTerrainKind maps the wire/config spelling to a TerrainKind.
func ParseTerrainKind(s string) (TerrainKind, error) {
	for i, name := range terrainNames {
		if s == name {
			return TerrainKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown terrain kind %q", s)
}

// Zone is a rectangular terrain region with an associated movement effect.
type Zone struct {
	Kind TerrainKind
	Rect geom.Rect
}

// Gate teleports a walker whose trajectory crosses Entrance to Exit.
type Gate struct {
	Entrance geom.Rect
	Exit     geom.Point
}

// Terrain is the immutable zone/obstacle/gate layout for one run. Built
// once by NewTerrain, owned by the Engine, never mutated afterwards.
type Terrain struct {
	zones     []Zone // sorted by kind priority, then declaration order
	obstacles []geom.Rect
	gates     []Gate
}

// NewTerrain validates the layout and builds the lookup structure. Zones
// must not overlap each other; obstacles and gate entrances form a second
// group that must not overlap each other (either group may overlap the
// other). Gate exits must not sit inside an obstacle or a Water zone.
// Violations return a *ConfigError naming the offenders.
func NewTerrain(zones []Zone, obstacles []geom.Rect, gates []Gate) (*Terrain, error) {
	for i, z := range zones {
		if !z.Rect.Valid() {
			return nil, configErrorf("zone %d (%s): rectangle %s has no area", i, z.Kind, z.Rect)
		}
	}
	for i := range zones {
		for j := i + 1; j < len(zones); j++ {
			if zones[i].Rect.Overlaps(zones[j].Rect) {
				return nil, configErrorf("zone %d (%s %s) overlaps zone %d (%s %s)",
					i, zones[i].Kind, zones[i].Rect, j, zones[j].Kind, zones[j].Rect)
			}
		}
	}

	solids := make([]geom.Rect, 0, len(obstacles)+len(gates))
	for i, r := range obstacles {
		if !r.Valid() {
			return nil, configErrorf("obstacle %d: rectangle %s has no area", i, r)
		}
		solids = append(solids, r)
	}
	for i, g := range gates {
		if !g.Entrance.Valid() {
			return nil, configErrorf("gate %d: entrance %s has no area", i, g.Entrance)
		}
		solids = append(solids, g.Entrance)
	}
	for i := range solids {
		for j := i + 1; j < len(solids); j++ {
			if solids[i].Overlaps(solids[j]) {
				return nil, configErrorf("obstacle/gate rectangles %s and %s overlap", solids[i], solids[j])
			}
		}
	}
	for i, g := range gates {
		for _, r := range obstacles {
			if r.Contains(g.Exit) {
				return nil, configErrorf("gate %d: exit %s lies inside obstacle %s", i, g.Exit, r)
			}
		}
		for _, z := range zones {
			if z.Kind == Water && z.Rect.Contains(g.Exit) {
				return nil, configErrorf("gate %d: exit %s lies inside water zone %s", i, g.Exit, z.Rect)
			}
		}
	}

	t := &Terrain{
		obstacles: append([]geom.Rect(nil), obstacles...),
		gates:     append([]Gate(nil), gates...),
	}
	// Priority order for boundary points shared by two zones: water wins
	// over sand, sand over grass, earlier declaration within a kind.
	for _, kind := range [...]TerrainKind{Water, Sand, Grass} {
		for _, z := range zones {
			if z.Kind == kind {
				t.zones = append(t.zones, z)
			}
		}
	}
	return t, nil
}

// ZoneAt resolves the zone containing p. The no-overlap invariant means at
// most one zone can contain an interior point; boundary points resolve by
// the priority order established at construction.
func (t *Terrain) ZoneAt(p geom.Point) (TerrainKind, bool) {
	for _, z := range t.zones {
		if z.Rect.Contains(p) {
			return z.Kind, true
		}
	}
	return 0, false
}

// MultiplierAt returns the speed multiplier conferred by standing at p:
// 2.0 on grass, 0.5 on sand, 1.0 anywhere else.
func (t *Terrain) MultiplierAt(p geom.Point) float64 {
	kind, ok := t.ZoneAt(p)
	if !ok {
		return 1.0
	}
	switch kind {
	case Grass:
		return 2.0
	case Sand:
		return 0.5
	default:
		return 1.0
	}
}

// Blocked reports whether the trajectory a→b touches any obstacle.
func (t *Terrain) Blocked(a, b geom.Point) bool {
	for _, r := range t.obstacles {
		if r.SegmentIntersects(a, b) {
			return true
		}
	}
	return false
}

// GateExit returns the exit of the first gate whose entrance the
// trajectory a→b crosses.
func (t *Terrain) GateExit(a, b geom.Point) (geom.Point, bool) {
	for _, g := range t.gates {
		if g.Entrance.SegmentIntersects(a, b) {
			return g.Exit, true
		}
	}
	return geom.Point{}, false
}

// Zones returns the zones in priority order. The slice is a copy.
func (t *Terrain) Zones() []Zone {
	return append([]Zone(nil), t.zones...)
}

// Obstacles returns the obstacle rectangles. The slice is a copy.
func (t *Terrain) Obstacles() []geom.Rect {
	return append([]geom.Rect(nil), t.obstacles...)
}

// Gates returns the gates. The slice is a copy.
func (t *Terrain) Gates() []Gate {
	return append([]Gate(nil), t.gates...)
}
