package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walkabout.dev/internal/geom"
	"walkabout.dev/internal/sim/engine"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const sampleYAML = `
name: meadow
seed: 42
ticks: 200
interaction: attract
walkers:
  - kind: plain
    count: 2
    base_speed: 1.0
  - kind: memory
    start: [3, -3]
terrain:
  water: [{min: [4, 4], max: [8, 8]}]
  sand:  [{min: [-6, -6], max: [-2, -2]}]
  grass: [{min: [2, -8], max: [7, -3]}]
obstacles:
  - {min: [10, -1], max: [12, 1]}
gates:
  - entrance: {min: [-12, 4], max: [-10, 6]}
    exit: [0, -10]
`

func TestLoadSample(t *testing.T) {
	sc, err := Load(writeScenario(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "meadow", sc.Name)
	assert.Equal(t, int64(42), sc.Seed)
	assert.Equal(t, 200, sc.Ticks)
	assert.Equal(t, 1, sc.Runs, "runs defaults to 1")
	assert.Equal(t, 10, sc.TickRateHz, "tick rate defaults to 10")

	cfg, err := sc.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, engine.InteractionAttract, cfg.Mode)
	require.Len(t, cfg.Walkers, 3, "count expands groups")
	assert.Equal(t, engine.Plain, cfg.Walkers[0].Kind)
	assert.Equal(t, geom.Origin, cfg.Walkers[0].Start)
	assert.Equal(t, engine.Memory, cfg.Walkers[2].Kind)
	assert.Equal(t, geom.Pt(3, -3), cfg.Walkers[2].Start)
	require.Len(t, cfg.Zones, 3)
	require.Len(t, cfg.Gates, 1)
	assert.Equal(t, geom.Pt(0, -10), cfg.Gates[0].Exit)

	// The expanded config must satisfy the engine too.
	_, err = engine.New(cfg, engine.NewRand(sc.Seed))
	require.NoError(t, err)
}

func TestLoadDefaults(t *testing.T) {
	sc, err := Load(writeScenario(t, "walkers: [{kind: plain}]\n"))
	require.NoError(t, err)
	assert.Equal(t, "scenario", sc.Name)
	assert.Equal(t, "none", sc.Interaction)
	assert.Equal(t, 1, sc.Walkers[0].Count)
	assert.Equal(t, 1.0, sc.Walkers[0].BaseSpeed)
}

func TestLoadRejectsBadScenarios(t *testing.T) {
	for _, tc := range []struct {
		name, yaml, fragment string
	}{
		{
			"unknown walker kind",
			"walkers: [{kind: sprinting}]\n",
			"unknown walker kind",
		},
		{
			"unknown interaction",
			"interaction: gravity\nwalkers: [{kind: plain}]\n",
			"unknown interaction mode",
		},
		{
			"negative ticks",
			"ticks: -5\nwalkers: [{kind: plain}]\n",
			"ticks",
		},
		{
			"odd start",
			"walkers: [{kind: plain, start: [1]}]\n",
			"start must be [x, y]",
		},
		{
			"degenerate rect",
			"terrain:\n  sand: [{min: [2, 2], max: [2, 5]}]\n",
			"no area",
		},
		{
			"water over origin",
			"terrain:\n  water: [{min: [-1, -1], max: [1, 1]}]\n",
			"contains the origin",
		},
		{
			"overlapping zones",
			"terrain:\n  sand: [{min: [0, 0], max: [4, 4]}]\n  grass: [{min: [2, 2], max: [6, 6]}]\n",
			"overlaps",
		},
		{
			"walker inside obstacle",
			"walkers: [{kind: plain, start: [5, 5]}]\nobstacles: [{min: [4, 4], max: [6, 6]}]\n",
			"inside obstacle",
		},
		{
			"gate exit missing",
			"gates: [{entrance: {min: [0, 0], max: [1, 1]}}]\n",
			"exit must be [x, y]",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeScenario(t, tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.fragment)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
