// Package batch drives repeated runs of one scenario: run i uses seed
// base+i, so a batch is reproducible as a whole and each run is
// reproducible alone. Outcomes keep scenario order regardless of worker
// scheduling.
package batch

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"walkabout.dev/internal/persistence/indexdb"
	"walkabout.dev/internal/persistence/record"
	"walkabout.dev/internal/persistence/runlog"
	"walkabout.dev/internal/protocol"
	"walkabout.dev/internal/sim/engine"
	"walkabout.dev/internal/sim/scenario"
	"walkabout.dev/internal/stats"
)

// Options control persistence and parallelism for a batch.
type Options struct {
	// DataDir is the root for run artifacts (tick logs and records land in
	// DataDir/runs). Empty disables file output.
	DataDir string

	// Workers bounds concurrently simulating runs. Zero or negative means 1.
	Workers int

	// TrimSteps drops the per-step metric series from outcomes and records.
	// The batch summary is always computed before trimming.
	TrimSteps bool

	// Index receives finished runs. Optional, caller-owned.
	Index *indexdb.SQLiteIndex

	Logger *log.Logger
}

// RunOutcome is the result of one run of the batch.
type RunOutcome struct {
	RunID       string              `json:"run_id"`
	Seed        int64               `json:"seed"`
	Ticks       uint64              `json:"ticks"`
	Wedged      bool                `json:"wedged"`
	WedgeWalker int                 `json:"wedge_walker,omitempty"`
	Digest      string              `json:"digest"`
	Stats       []stats.WalkerStats `json:"stats,omitempty"`
	RecordPath  string              `json:"record_path,omitempty"`
	LogPath     string              `json:"log_path,omitempty"`
}

// Result is the whole batch: one outcome per run plus the cross-run
// summary.
type Result struct {
	Scenario string        `json:"scenario"`
	Outcomes []RunOutcome  `json:"outcomes"`
	Summary  stats.Summary `json:"summary"`
}

// Run executes sc.Runs runs. srcYAML is the scenario source embedded into
// record files for replay; it may be nil when the scenario was built in
// memory.
func Run(sc scenario.Scenario, srcYAML []byte, opts Options) (Result, error) {
	res := Result{Scenario: sc.Name}

	cfg, err := sc.EngineConfig()
	if err != nil {
		return res, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > sc.Runs {
		workers = sc.Runs
	}

	outcomes := make([]RunOutcome, sc.Runs)
	errs := make([]error, sc.Runs)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i], errs[i] = runOne(sc, cfg, srcYAML, i, opts)
			}
		}()
	}
	for i := 0; i < sc.Runs; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return res, fmt.Errorf("run %d: %w", i, err)
		}
	}

	perRun := make([][]stats.WalkerStats, len(outcomes))
	for i := range outcomes {
		perRun[i] = outcomes[i].Stats
	}
	res.Summary = stats.Summarize(perRun)

	if opts.TrimSteps {
		for i := range outcomes {
			for j := range outcomes[i].Stats {
				outcomes[i].Stats[j].Steps = nil
			}
		}
	}
	res.Outcomes = outcomes
	return res, nil
}

func runOne(sc scenario.Scenario, cfg engine.Config, srcYAML []byte, runIdx int, opts Options) (RunOutcome, error) {
	seed := sc.Seed + int64(runIdx)
	eng, err := engine.New(cfg, engine.NewRand(seed))
	if err != nil {
		return RunOutcome{}, err
	}

	oc := RunOutcome{
		RunID: uuid.NewString(),
		Seed:  seed,
	}
	meta := MetaFor(sc, eng, oc.RunID, seed)

	var lw *runlog.Writer
	runsDir := ""
	if opts.DataDir != "" {
		runsDir = filepath.Join(opts.DataDir, "runs")
		lw, err = runlog.Create(runsDir, meta)
		if err != nil {
			return oc, err
		}
		oc.LogPath = runlog.Path(runsDir, oc.RunID)
	}

	col := stats.NewCollector(eng.InitialState())
	eng.SetSnapshotFunc(func(snap engine.Snapshot, digest string) {
		col.ObserveTick(snap)
		oc.Ticks = snap.Tick
		if lw != nil {
			_ = lw.WriteTick(TickRecord(snap, digest))
		}
	})

	runErr := eng.Run(sc.Ticks)
	if lw != nil {
		if err := lw.Close(); err != nil {
			return oc, err
		}
	}
	if runErr != nil {
		var wedge *engine.WedgeError
		if !errors.As(runErr, &wedge) {
			return oc, runErr
		}
		oc.Wedged = true
		oc.WedgeWalker = wedge.WalkerID
	}

	oc.Digest = eng.Digest()
	oc.Stats = col.Results()

	if runsDir != "" {
		rec := record.RecordV1{
			Header:       record.Header{Version: 1, RunID: oc.RunID, Tick: oc.Ticks},
			Meta:         meta,
			ScenarioYAML: srcYAML,
			Final:        FinalPoints(eng),
			Stats:        oc.Stats,
			FinalDigest:  oc.Digest,
			Wedged:       oc.Wedged,
			WedgeWalker:  oc.WedgeWalker,
		}
		if opts.TrimSteps {
			rec.Stats = trimSteps(rec.Stats)
		}
		oc.RecordPath = record.Path(runsDir, oc.RunID)
		if err := record.Write(oc.RecordPath, rec); err != nil {
			return oc, err
		}
		if opts.Index != nil {
			opts.Index.RecordRun(oc.RecordPath, rec)
		}
	}

	if opts.Logger != nil {
		opts.Logger.Printf("run %d/%d id=%s seed=%d ticks=%d wedged=%v",
			runIdx+1, sc.Runs, oc.RunID, seed, oc.Ticks, oc.Wedged)
	}
	return oc, nil
}

// MetaFor builds the run header sent to tick logs and records. seed is
// the effective per-run seed, not the scenario base.
func MetaFor(sc scenario.Scenario, eng *engine.Engine, runID string, seed int64) protocol.RunMeta {
	meta := protocol.RunMeta{
		Version:     1,
		RunID:       runID,
		Scenario:    sc.Name,
		Seed:        seed,
		Ticks:       sc.Ticks,
		Interaction: eng.Mode().String(),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	for _, w := range eng.Walkers() {
		meta.Walkers = append(meta.Walkers, protocol.WalkerMeta{
			ID:        w.ID(),
			Name:      w.Name(),
			Kind:      w.Kind().String(),
			BaseSpeed: w.BaseSpeed(),
		})
	}
	return meta
}

// TickRecord converts an engine snapshot to its wire form.
func TickRecord(snap engine.Snapshot, digest string) protocol.TickRecord {
	rec := protocol.TickRecord{
		Tick:    snap.Tick,
		Walkers: make([]protocol.WalkerPoint, len(snap.Walkers)),
		Digest:  digest,
	}
	for i, w := range snap.Walkers {
		rec.Walkers[i] = protocol.WalkerPoint{ID: w.ID, X: w.Pos.X, Y: w.Pos.Y, Mult: w.Mult}
	}
	return rec
}

// FinalPoints reads the committed end-of-run walker positions.
func FinalPoints(eng *engine.Engine) []protocol.WalkerPoint {
	walkers := eng.Walkers()
	out := make([]protocol.WalkerPoint, len(walkers))
	for i, w := range walkers {
		out[i] = protocol.WalkerPoint{ID: w.ID(), X: w.Pos().X, Y: w.Pos().Y, Mult: w.SpeedMult()}
	}
	return out
}

func trimSteps(rows []stats.WalkerStats) []stats.WalkerStats {
	out := append([]stats.WalkerStats(nil), rows...)
	for i := range out {
		out[i].Steps = nil
	}
	return out
}
