// Package scenario loads and validates the YAML description of a run:
// walker population, terrain layout, interaction mode, tick budget. The
// loader owns spelling and shape; the engine re-checks every invariant it
// depends on when the scenario is turned into an engine.Config.
package scenario

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"walkabout.dev/internal/geom"
	"walkabout.dev/internal/sim/engine"
)

type Scenario struct {
	Name        string        `yaml:"name"`
	Seed        int64         `yaml:"seed"`
	Ticks       int           `yaml:"ticks"`
	Runs        int           `yaml:"runs"`
	TickRateHz  int           `yaml:"tick_rate_hz"`
	Interaction string        `yaml:"interaction"`
	Walkers     []WalkerGroup `yaml:"walkers"`
	Terrain     TerrainSpec   `yaml:"terrain"`
	Obstacles   []RectSpec    `yaml:"obstacles,omitempty"`
	Gates       []GateSpec    `yaml:"gates,omitempty"`
}

// WalkerGroup declares Count identical walkers. Start defaults to the
// origin; omitted counts mean one walker.
type WalkerGroup struct {
	Kind      string    `yaml:"kind"`
	Count     int       `yaml:"count"`
	BaseSpeed float64   `yaml:"base_speed"`
	Start     []float64 `yaml:"start,flow"`
}

type TerrainSpec struct {
	Water []RectSpec `yaml:"water,omitempty"`
	Sand  []RectSpec `yaml:"sand,omitempty"`
	Grass []RectSpec `yaml:"grass,omitempty"`
}

// RectSpec is a [min, max] corner pair, each a [x, y] list.
type RectSpec struct {
	Min []float64 `yaml:"min,flow"`
	Max []float64 `yaml:"max,flow"`
}

type GateSpec struct {
	Entrance RectSpec  `yaml:"entrance"`
	Exit     []float64 `yaml:"exit,flow"`
}

// Load reads, defaults, and validates a scenario file.
func Load(path string) (Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	return Parse(b)
}

// Parse defaults and validates raw scenario YAML. Run records embed the
// source YAML, so replay goes through the same path as Load.
func Parse(b []byte) (Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return sc, fmt.Errorf("scenario: %w", err)
	}
	sc.applyDefaults()
	if err := sc.Validate(); err != nil {
		return sc, fmt.Errorf("scenario: %w", err)
	}
	return sc, nil
}

func (s *Scenario) applyDefaults() {
	if strings.TrimSpace(s.Name) == "" {
		s.Name = "scenario"
	}
	if s.Runs <= 0 {
		s.Runs = 1
	}
	if s.TickRateHz <= 0 {
		s.TickRateHz = 10
	}
	if strings.TrimSpace(s.Interaction) == "" {
		s.Interaction = "none"
	}
	for i := range s.Walkers {
		if s.Walkers[i].Count <= 0 {
			s.Walkers[i].Count = 1
		}
		if s.Walkers[i].BaseSpeed <= 0 {
			s.Walkers[i].BaseSpeed = 1.0
		}
	}
}

// Validate checks shape and the handful of layout rules the engine cannot
// express (it never sees the file): coordinates come in pairs, rectangles
// have area, the origin is not inside water (the Water reset would trap
// every reset walker), and no walker starts inside an obstacle.
func (s Scenario) Validate() error {
	if s.Ticks < 0 {
		return fmt.Errorf("ticks must be >= 0, got %d", s.Ticks)
	}
	if _, err := engine.ParseInteractionMode(s.Interaction); err != nil {
		return err
	}
	for i, g := range s.Walkers {
		if _, err := engine.ParseWalkerKind(g.Kind); err != nil {
			return fmt.Errorf("walkers[%d]: %w", i, err)
		}
		if len(g.Start) != 0 && len(g.Start) != 2 {
			return fmt.Errorf("walkers[%d]: start must be [x, y]", i)
		}
	}
	for where, rects := range map[string][]RectSpec{
		"terrain.water": s.Terrain.Water,
		"terrain.sand":  s.Terrain.Sand,
		"terrain.grass": s.Terrain.Grass,
		"obstacles":     s.Obstacles,
	} {
		for i, r := range rects {
			if _, err := r.rect(); err != nil {
				return fmt.Errorf("%s[%d]: %w", where, i, err)
			}
		}
	}
	for i, g := range s.Gates {
		if _, err := g.Entrance.rect(); err != nil {
			return fmt.Errorf("gates[%d].entrance: %w", i, err)
		}
		if len(g.Exit) != 2 {
			return fmt.Errorf("gates[%d]: exit must be [x, y]", i)
		}
	}
	for i, r := range s.Terrain.Water {
		rect, _ := r.rect()
		if rect.Contains(geom.Origin) {
			return fmt.Errorf("terrain.water[%d]: %s contains the origin", i, rect)
		}
	}
	cfg, err := s.EngineConfig()
	if err != nil {
		return err
	}
	// Dry-build the terrain so overlap mistakes surface at load time with
	// the file still on screen, not at engine construction.
	if _, err := engine.NewTerrain(cfg.Zones, cfg.Obstacles, cfg.Gates); err != nil {
		return err
	}
	for i, ws := range cfg.Walkers {
		for _, r := range cfg.Obstacles {
			if r.Contains(ws.Start) {
				return fmt.Errorf("walker %d starts inside obstacle %s", i, r)
			}
		}
	}
	return nil
}

// EngineConfig expands the scenario into the parsed in-memory form the
// engine consumes.
func (s Scenario) EngineConfig() (engine.Config, error) {
	var cfg engine.Config

	mode, err := engine.ParseInteractionMode(s.Interaction)
	if err != nil {
		return cfg, err
	}
	cfg.Mode = mode

	addZones := func(kind engine.TerrainKind, rects []RectSpec) error {
		for i, r := range rects {
			rect, err := r.rect()
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", kind, i, err)
			}
			cfg.Zones = append(cfg.Zones, engine.Zone{Kind: kind, Rect: rect})
		}
		return nil
	}
	if err := addZones(engine.Water, s.Terrain.Water); err != nil {
		return cfg, err
	}
	if err := addZones(engine.Sand, s.Terrain.Sand); err != nil {
		return cfg, err
	}
	if err := addZones(engine.Grass, s.Terrain.Grass); err != nil {
		return cfg, err
	}

	for i, r := range s.Obstacles {
		rect, err := r.rect()
		if err != nil {
			return cfg, fmt.Errorf("obstacles[%d]: %w", i, err)
		}
		cfg.Obstacles = append(cfg.Obstacles, rect)
	}
	for i, g := range s.Gates {
		rect, err := g.Entrance.rect()
		if err != nil {
			return cfg, fmt.Errorf("gates[%d]: %w", i, err)
		}
		if len(g.Exit) != 2 {
			return cfg, fmt.Errorf("gates[%d]: exit must be [x, y]", i)
		}
		cfg.Gates = append(cfg.Gates, engine.Gate{
			Entrance: rect,
			Exit:     geom.Pt(g.Exit[0], g.Exit[1]),
		})
	}

	for i, g := range s.Walkers {
		kind, err := engine.ParseWalkerKind(g.Kind)
		if err != nil {
			return cfg, fmt.Errorf("walkers[%d]: %w", i, err)
		}
		start := geom.Origin
		if len(g.Start) == 2 {
			start = geom.Pt(g.Start[0], g.Start[1])
		} else if len(g.Start) != 0 {
			return cfg, fmt.Errorf("walkers[%d]: start must be [x, y]", i)
		}
		for n := 0; n < g.Count; n++ {
			cfg.Walkers = append(cfg.Walkers, engine.WalkerSpec{
				Kind:      kind,
				BaseSpeed: g.BaseSpeed,
				Start:     start,
			})
		}
	}
	return cfg, nil
}

func (r RectSpec) rect() (geom.Rect, error) {
	if len(r.Min) != 2 || len(r.Max) != 2 {
		return geom.Rect{}, fmt.Errorf("min and max must each be [x, y]")
	}
	rect := geom.Rect{Min: geom.Pt(r.Min[0], r.Min[1]), Max: geom.Pt(r.Max[0], r.Max[1])}
	if !rect.Valid() {
		return geom.Rect{}, fmt.Errorf("rectangle %s has no area", rect)
	}
	return rect, nil
}
