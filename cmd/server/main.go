package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"walkabout.dev/internal/httpapi"
	"walkabout.dev/internal/persistence/indexdb"
	"walkabout.dev/internal/persistence/record"
	"walkabout.dev/internal/persistence/runlog"
	"walkabout.dev/internal/sim/batch"
	"walkabout.dev/internal/sim/engine"
	"walkabout.dev/internal/sim/scenario"
	"walkabout.dev/internal/stats"
	"walkabout.dev/internal/transport/observer"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		scenarioPath = flag.String("scenario", "./configs/scenario.yaml", "scenario path")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		seed         = flag.Int64("seed", 0, "override scenario seed (0 = keep scenario value)")
		tickRate     = flag.Int("tick_rate", 0, "override scenario tick rate hz (0 = keep scenario value)")
		disableDB    = flag.Bool("disable_db", false, "disable run indexing")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	sc, err := scenario.Load(*scenarioPath)
	if err != nil {
		logger.Fatalf("load scenario: %v", err)
	}
	srcYAML, err := os.ReadFile(*scenarioPath)
	if err != nil {
		logger.Fatalf("read scenario: %v", err)
	}
	if *seed != 0 {
		sc.Seed = *seed
	}
	if *tickRate > 0 {
		sc.TickRateHz = *tickRate
	}

	cfg, err := sc.EngineConfig()
	if err != nil {
		logger.Fatalf("scenario: %v", err)
	}
	if len(cfg.Walkers) == 0 {
		logger.Fatalf("scenario %q has no walkers, nothing to run live", sc.Name)
	}
	eng, err := engine.New(cfg, engine.NewRand(sc.Seed))
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}

	runID := uuid.NewString()
	runsDir := filepath.Join(*dataDir, "runs")

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer func() { _ = idx.Close() }()
	}

	meta := batch.MetaFor(sc, eng, runID, sc.Seed)
	tickLog, err := runlog.Create(runsDir, meta)
	if err != nil {
		logger.Fatalf("tick log: %v", err)
	}

	col := stats.NewCollector(eng.InitialState())
	obs := observer.NewServer(
		observer.RunInfoFor(sc.Name, runID, sc.Seed, sc.Ticks, sc.TickRateHz, eng),
		eng.InitialState(), logger)

	// The engine belongs to the sim goroutine once it starts. HTTP
	// handlers read these instead.
	var stateName atomic.Value
	stateName.Store(eng.State().String())
	var committed atomic.Uint64

	eng.SetSnapshotFunc(func(snap engine.Snapshot, digest string) {
		col.ObserveTick(snap)
		committed.Store(snap.Tick)
		stateName.Store(engine.StateRunning.String())
		obs.Publish(snap, digest)
		if err := tickLog.WriteTick(batch.TickRecord(snap, digest)); err != nil {
			logger.Printf("tick log: %v", err)
		}
	})

	statusFor := func() httpapi.Status {
		st := httpapi.Status{
			Scenario:   sc.Name,
			RunID:      runID,
			State:      stateName.Load().(string),
			Tick:       committed.Load(),
			Ticks:      sc.Ticks,
			TickRateHz: sc.TickRateHz,
			Observers:  obs.SessionCount(),
		}
		if idx != nil {
			st.Index = idx.Stats()
		}
		return st
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger.Printf("scenario %q: %d walkers, %d ticks at %d Hz, seed %d",
		sc.Name, len(meta.Walkers), sc.Ticks, sc.TickRateHz, sc.Seed)
	logger.Printf("run %s starting", runID)

	simDone := make(chan struct{})
	go func() {
		defer close(simDone)
		wedged, wedgeWalker := runSim(ctx, eng, sc.Ticks, sc.TickRateHz, logger)
		_ = eng.Complete()
		stateName.Store(eng.State().String())
		if err := tickLog.Close(); err != nil {
			logger.Printf("tick log close: %v", err)
		}

		rec := record.RecordV1{
			Header:       record.Header{Version: 1, RunID: runID, Tick: committed.Load()},
			Meta:         meta,
			ScenarioYAML: srcYAML,
			Final:        batch.FinalPoints(eng),
			Stats:        col.Results(),
			FinalDigest:  eng.Digest(),
			Wedged:       wedged,
			WedgeWalker:  wedgeWalker,
		}
		path := record.Path(runsDir, runID)
		if err := record.Write(path, rec); err != nil {
			logger.Printf("write record: %v", err)
			return
		}
		if fi, err := os.Stat(path); err == nil {
			logger.Printf("record written to %s (%s)", path, humanize.Bytes(uint64(fi.Size())))
		}
		if idx != nil {
			idx.RecordRun(path, rec)
		}
		logger.Printf("run %s done: ticks=%d wedged=%v digest=%s",
			runID, rec.Header.Tick, wedged, rec.FinalDigest)
	}()

	api := httpapi.NewServer(idx, statusFor, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		st := statusFor()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP walkabout_run_tick Last committed tick.\n")
		fmt.Fprintf(rw, "# TYPE walkabout_run_tick gauge\n")
		fmt.Fprintf(rw, "walkabout_run_tick{run=%q} %d\n", runID, st.Tick)

		fmt.Fprintf(rw, "# HELP walkabout_run_walkers Walkers in the run.\n")
		fmt.Fprintf(rw, "# TYPE walkabout_run_walkers gauge\n")
		fmt.Fprintf(rw, "walkabout_run_walkers{run=%q} %d\n", runID, len(meta.Walkers))

		fmt.Fprintf(rw, "# HELP walkabout_observer_sessions Connected observer sessions.\n")
		fmt.Fprintf(rw, "# TYPE walkabout_observer_sessions gauge\n")
		fmt.Fprintf(rw, "walkabout_observer_sessions{run=%q} %d\n", runID, st.Observers)

		if idx != nil {
			fmt.Fprintf(rw, "# HELP walkabout_index_queue_depth Index write queue depth.\n")
			fmt.Fprintf(rw, "# TYPE walkabout_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "walkabout_index_queue_depth{run=%q} %d\n", runID, st.Index.QueueDepth)

			fmt.Fprintf(rw, "# HELP walkabout_index_dropped_total Runs dropped by the index queue.\n")
			fmt.Fprintf(rw, "# TYPE walkabout_index_dropped_total counter\n")
			fmt.Fprintf(rw, "walkabout_index_dropped_total{run=%q} %d\n", runID, st.Index.DropRunTotal)
		}
	})
	mux.HandleFunc("/observer/v1/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/observer/v1/ws", obs.WSHandler())
	mux.Handle("/api/v1/", api.Router())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		<-simDone
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-simDone
}

// runSim paces the engine at hz steps per second until ticks have
// committed, the run wedges, or ctx is cancelled. Partial runs still get
// a record; the committed tick count marks how far they got.
func runSim(ctx context.Context, eng *engine.Engine, ticks, hz int, logger *log.Logger) (wedged bool, wedgeWalker int) {
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()
	for done := 0; done < ticks; {
		select {
		case <-ctx.Done():
			logger.Printf("shutdown requested at tick %d", eng.CurrentTick())
			return false, 0
		case <-ticker.C:
			if err := eng.Step(); err != nil {
				var wedge *engine.WedgeError
				if errors.As(err, &wedge) {
					logger.Printf("run wedged: %v", err)
					return true, wedge.WalkerID
				}
				logger.Printf("step: %v", err)
				return false, 0
			}
			done++
		}
	}
	return false, 0
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
