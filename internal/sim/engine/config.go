package engine

import (
	"fmt"

	"walkabout.dev/internal/geom"
)

// InteractionMode selects the pairwise walker interaction, if any.
type InteractionMode int

const (
	InteractionNone InteractionMode = iota
	InteractionAttract
	InteractionRepel
)

var interactionNames = [...]string{"none", "attract", "repel"}

func (m InteractionMode) String() string {
	if m < 0 || int(m) >= len(interactionNames) {
		return fmt.Sprintf("InteractionMode(%d)", int(m))
	}
	return interactionNames[m]
}

// ParseInteractionMode maps the wire/config spelling to an InteractionMode.
func ParseInteractionMode(s string) (InteractionMode, error) {
	for i, name := range interactionNames {
		if s == name {
			return InteractionMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown interaction mode %q", s)
}

// WalkerSpec describes one walker to create at engine construction.
type WalkerSpec struct {
	Kind      WalkerKind
	BaseSpeed float64
	Start     geom.Point
}

// Config is the parsed, in-memory description of one run. Producing it
// from a scenario file is the loader's job; the engine re-validates every
// invariant it depends on regardless of where the Config came from.
type Config struct {
	Zones     []Zone
	Obstacles []geom.Rect
	Gates     []Gate
	Walkers   []WalkerSpec
	Mode      InteractionMode
}

func (c *Config) validate() error {
	if c.Mode < InteractionNone || c.Mode > InteractionRepel {
		return configErrorf("invalid interaction mode %d", int(c.Mode))
	}
	for i, ws := range c.Walkers {
		if ws.Kind < Plain || ws.Kind > Memory {
			return configErrorf("walker %d: invalid kind %d", i, int(ws.Kind))
		}
		if ws.BaseSpeed <= 0 {
			return configErrorf("walker %d: base speed %g must be positive", i, ws.BaseSpeed)
		}
		for _, r := range c.Obstacles {
			if r.Contains(ws.Start) {
				return configErrorf("walker %d: start %s lies inside obstacle %s", i, ws.Start, r)
			}
		}
	}
	return nil
}
