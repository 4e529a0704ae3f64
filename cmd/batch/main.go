package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"

	"walkabout.dev/internal/persistence/indexdb"
	"walkabout.dev/internal/sim/batch"
	"walkabout.dev/internal/sim/scenario"
)

func main() {
	var (
		scenarioPath = flag.String("scenario", "./configs/scenario.yaml", "scenario path")
		dataDir      = flag.String("data", "./data", "runtime data directory (empty = no artifacts)")
		runs         = flag.Int("runs", 0, "override scenario run count (0 = keep scenario value)")
		seed         = flag.Int64("seed", 0, "override scenario base seed (0 = keep scenario value)")
		workers      = flag.Int("workers", runtime.NumCPU(), "concurrent runs")
		trimSteps    = flag.Bool("trim_steps", false, "drop per-step series from outcomes and records")
		summaryOut   = flag.String("summary", "", "summary JSON path (default: <data>/runs/summary-<scenario>.json)")
		disableDB    = flag.Bool("disable_db", false, "disable run indexing")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[batch] ", log.LstdFlags|log.Lmicroseconds)

	sc, err := scenario.Load(*scenarioPath)
	if err != nil {
		logger.Fatalf("load scenario: %v", err)
	}
	srcYAML, err := os.ReadFile(*scenarioPath)
	if err != nil {
		logger.Fatalf("read scenario: %v", err)
	}
	if *runs > 0 {
		sc.Runs = *runs
	}
	if *seed != 0 {
		sc.Seed = *seed
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB && *dataDir != "" {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
	}

	logger.Printf("scenario %q: %d runs, %d ticks each, base seed %d, %d workers",
		sc.Name, sc.Runs, sc.Ticks, sc.Seed, *workers)

	started := time.Now()
	res, err := batch.Run(sc, srcYAML, batch.Options{
		DataDir:   *dataDir,
		Workers:   *workers,
		TrimSteps: *trimSteps,
		Index:     idx,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatalf("batch: %v", err)
	}
	elapsed := time.Since(started).Round(time.Millisecond)

	wedged := 0
	var totalTicks int64
	var artifactBytes uint64
	for _, oc := range res.Outcomes {
		if oc.Wedged {
			wedged++
		}
		totalTicks += int64(oc.Ticks)
		for _, p := range []string{oc.RecordPath, oc.LogPath} {
			if p == "" {
				continue
			}
			if fi, err := os.Stat(p); err == nil {
				artifactBytes += uint64(fi.Size())
			}
		}
	}

	logger.Printf("%s runs, %s ticks in %s, %s of artifacts",
		humanize.Comma(int64(len(res.Outcomes))), humanize.Comma(totalTicks),
		elapsed, humanize.Bytes(artifactBytes))
	if wedged > 0 {
		logger.Printf("%d of %d runs wedged", wedged, len(res.Outcomes))
	}
	for _, w := range res.Summary.Walkers {
		finalDist := 0.0
		if n := len(w.MeanDistOrigin); n > 0 {
			finalDist = w.MeanDistOrigin[n-1]
		}
		logger.Printf("  %-14s %-6s escapes %d/%d  avg escape tick %.1f  avg y-crossings %.2f  mean final dist %.3f",
			w.Name, w.Kind, w.Escapes, w.Runs, w.AvgEscapeTick, w.AvgYCrossings, finalDist)
	}

	out := *summaryOut
	if out == "" && *dataDir != "" {
		out = filepath.Join(*dataDir, "runs", fmt.Sprintf("summary-%s.json", sc.Name))
	}
	if out != "" {
		writeSummary(out, res, logger)
	}

	if idx != nil {
		if err := idx.Close(); err != nil {
			logger.Printf("close index: %v", err)
		}
	}
}

func writeSummary(path string, res batch.Result, logger *log.Logger) {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		logger.Fatalf("marshal summary: %v", err)
	}
	b = append(b, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Printf("write summary: %v", err)
		return
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		logger.Printf("write summary: %v", err)
		return
	}
	logger.Printf("summary written to %s (%s)", path, humanize.Bytes(uint64(len(b))))
}
