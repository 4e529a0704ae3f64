package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walkabout.dev/internal/persistence/indexdb"
	"walkabout.dev/internal/persistence/record"
	"walkabout.dev/internal/persistence/runlog"
	"walkabout.dev/internal/sim/engine"
	"walkabout.dev/internal/sim/scenario"
)

const batchYAML = `
name: drift
seed: 1000
ticks: 40
runs: 3
walkers:
  - kind: plain
    count: 2
    base_speed: 1.0
  - kind: memory
    base_speed: 1.0
terrain:
  grass: [{min: [2, 2], max: [6, 6]}]
`

const wedgeYAML = `
name: boxed
seed: 5
ticks: 10
runs: 1
walkers:
  - kind: plain
    base_speed: 1.0
obstacles:
  - min: [0.5, -1.5]
    max: [1.5, 1.5]
  - min: [-1.5, -1.5]
    max: [-0.5, 1.5]
  - min: [-0.5, 0.5]
    max: [0.5, 1.5]
  - min: [-0.5, -1.5]
    max: [0.5, -0.5]
`

func loadYAML(t *testing.T, src string) scenario.Scenario {
	t.Helper()
	sc, err := scenario.Parse([]byte(src))
	require.NoError(t, err)
	return sc
}

func TestRunSeedsAndWorkerIndependence(t *testing.T) {
	sc := loadYAML(t, batchYAML)

	serial, err := Run(sc, nil, Options{Workers: 1})
	require.NoError(t, err)
	parallel, err := Run(sc, nil, Options{Workers: 3})
	require.NoError(t, err)

	require.Len(t, serial.Outcomes, 3)
	require.Len(t, parallel.Outcomes, 3)

	for i, oc := range serial.Outcomes {
		assert.Equal(t, sc.Seed+int64(i), oc.Seed)
		assert.Equal(t, uint64(40), oc.Ticks)
		assert.False(t, oc.Wedged)
		assert.Equal(t, oc.Digest, parallel.Outcomes[i].Digest,
			"run %d digest must not depend on worker count", i)
	}

	assert.Equal(t, 3, serial.Summary.Runs)
	// Two kind groups expand to three walkers with distinct names.
	assert.Len(t, serial.Summary.Walkers, 3)
}

func TestRunPersistsArtifacts(t *testing.T) {
	dir := t.TempDir()
	sc := loadYAML(t, batchYAML)
	sc.Runs = 2

	idx, err := indexdb.OpenSQLite(filepath.Join(dir, "index.db"))
	require.NoError(t, err)

	res, err := Run(sc, []byte(batchYAML), Options{DataDir: dir, Index: idx})
	require.NoError(t, err)
	require.NoError(t, idx.Close())
	require.Len(t, res.Outcomes, 2)

	for _, oc := range res.Outcomes {
		_, statErr := os.Stat(oc.RecordPath)
		require.NoError(t, statErr)

		meta, ticks, err := runlog.Read(oc.LogPath)
		require.NoError(t, err)
		assert.Equal(t, oc.RunID, meta.RunID)
		assert.Equal(t, oc.Seed, meta.Seed)
		require.Len(t, ticks, 40)
		assert.Equal(t, oc.Digest, ticks[len(ticks)-1].Digest)

		rec, err := record.Read(oc.RecordPath)
		require.NoError(t, err)
		assert.Equal(t, "drift", rec.Meta.Scenario)
		assert.Equal(t, []byte(batchYAML), rec.ScenarioYAML)
		assert.Equal(t, oc.Digest, rec.FinalDigest)
		require.Len(t, rec.Stats, 3)
		assert.NotEmpty(t, rec.Stats[0].Steps)
	}

	idx, err = indexdb.OpenSQLite(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	defer idx.Close()
	runs, err := idx.ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunCapturesWedgeWithoutFailing(t *testing.T) {
	sc := loadYAML(t, wedgeYAML)

	res, err := Run(sc, nil, Options{})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)

	oc := res.Outcomes[0]
	assert.True(t, oc.Wedged)
	assert.Equal(t, 0, oc.WedgeWalker)
	assert.Equal(t, uint64(0), oc.Ticks)
	assert.NotEmpty(t, oc.Digest)
}

func TestRunTrimSteps(t *testing.T) {
	sc := loadYAML(t, batchYAML)
	sc.Runs = 1

	res, err := Run(sc, nil, Options{TrimSteps: true})
	require.NoError(t, err)

	// Summary still has per-step series even though outcomes are trimmed.
	require.Len(t, res.Outcomes, 1)
	for _, ws := range res.Outcomes[0].Stats {
		assert.Empty(t, ws.Steps)
	}
	require.NotEmpty(t, res.Summary.Walkers)
	assert.Len(t, res.Summary.Walkers[0].MeanDistOrigin, 40)
}

// A recorded run must re-simulate tick for tick from its embedded scenario
// and seed. This is the contract cmd/replay enforces.
func TestRecordedRunReplaysToSameDigests(t *testing.T) {
	dir := t.TempDir()
	sc := loadYAML(t, batchYAML)
	sc.Runs = 1

	res, err := Run(sc, []byte(batchYAML), Options{DataDir: dir})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	oc := res.Outcomes[0]

	rec, err := record.Read(oc.RecordPath)
	require.NoError(t, err)
	_, ticks, err := runlog.Read(oc.LogPath)
	require.NoError(t, err)
	require.Len(t, ticks, int(rec.Header.Tick))

	replayed, err := scenario.Parse(rec.ScenarioYAML)
	require.NoError(t, err)
	cfg, err := replayed.EngineConfig()
	require.NoError(t, err)
	eng, err := engine.New(cfg, engine.NewRand(rec.Meta.Seed))
	require.NoError(t, err)

	for i, want := range ticks {
		require.NoError(t, eng.Step())
		assert.Equal(t, want.Digest, eng.Digest(), "tick %d", i+1)
	}
	assert.Equal(t, rec.FinalDigest, eng.Digest())
}
