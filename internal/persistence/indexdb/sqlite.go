// Package indexdb maintains a queryable sqlite index over finished runs.
// Record files remain the source of truth; the index can always be
// rebuilt from them, so writes are fire-and-forget.
package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"walkabout.dev/internal/persistence/record"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRunTotal atomic.Uint64
}

type req struct {
	run  runRow
	rows []statsRow
}

type runRow struct {
	RunID       string
	Scenario    string
	Seed        int64
	Ticks       uint64
	Walkers     int
	Interaction string
	Wedged      bool
	FinalDigest string
	RecordPath  string
	CreatedAt   string
}

type statsRow struct {
	WalkerID   int
	Name       string
	Kind       string
	Escaped    bool
	EscapeTick uint64
	YCrossings int
	FinalX     float64
	FinalY     float64
	FinalDist  float64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 1024),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			scenario TEXT NOT NULL,
			seed INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			walkers INTEGER NOT NULL,
			interaction TEXT NOT NULL,
			wedged INTEGER NOT NULL,
			final_digest TEXT NOT NULL,
			record_path TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_scenario_created ON runs(scenario, created_at);`,
		`CREATE TABLE IF NOT EXISTS walker_stats (
			run_id TEXT NOT NULL,
			walker_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			escaped INTEGER NOT NULL,
			escape_tick INTEGER NOT NULL,
			y_crossings INTEGER NOT NULL,
			final_x REAL NOT NULL,
			final_y REAL NOT NULL,
			final_dist REAL NOT NULL,
			PRIMARY KEY (run_id, walker_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_walker_stats_name ON walker_stats(name, run_id);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordRun indexes a finished run and its per-walker stats. Drops the
// write if the indexer has fallen behind; record files remain the source
// of truth.
func (s *SQLiteIndex) RecordRun(path string, rec record.RecordV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := req{
		run: runRow{
			RunID:       rec.Meta.RunID,
			Scenario:    rec.Meta.Scenario,
			Seed:        rec.Meta.Seed,
			Ticks:       rec.Header.Tick,
			Walkers:     len(rec.Meta.Walkers),
			Interaction: rec.Meta.Interaction,
			Wedged:      rec.Wedged,
			FinalDigest: rec.FinalDigest,
			RecordPath:  path,
			CreatedAt:   rec.Meta.CreatedAt,
		},
	}
	if r.run.CreatedAt == "" {
		r.run.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	for _, ws := range rec.Stats {
		r.rows = append(r.rows, statsRow{
			WalkerID:   ws.ID,
			Name:       ws.Name,
			Kind:       ws.Kind,
			Escaped:    ws.Escaped,
			EscapeTick: ws.EscapeTick,
			YCrossings: ws.YCrossings,
			FinalX:     ws.FinalPos.X,
			FinalY:     ws.FinalPos.Y,
			FinalDist:  ws.FinalDist,
		})
	}
	select {
	case s.ch <- r:
	default:
		s.dropRunTotal.Add(1)
	}
}

// QueueStats reports indexer backpressure for the status endpoint.
type QueueStats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropRunTotal  uint64 `json:"drop_run_total"`
}

func (s *SQLiteIndex) Stats() QueueStats {
	if s == nil {
		return QueueStats{}
	}
	return QueueStats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropRunTotal:  s.dropRunTotal.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,scenario,seed,ticks,walkers,interaction,wedged,final_digest,record_path,created_at) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertStats, _ := s.db.Prepare(`INSERT OR REPLACE INTO walker_stats(run_id,walker_id,name,kind,escaped,escape_tick,y_crossings,final_x,final_y,final_dist) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertRun != nil {
			_ = insertRun.Close()
		}
		if insertStats != nil {
			_ = insertStats.Close()
		}
	}()

	for r := range s.ch {
		if insertRun == nil || insertStats == nil {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		ok := true
		if _, err := tx.Stmt(insertRun).Exec(
			r.run.RunID,
			r.run.Scenario,
			r.run.Seed,
			int64(r.run.Ticks),
			r.run.Walkers,
			r.run.Interaction,
			boolInt(r.run.Wedged),
			r.run.FinalDigest,
			r.run.RecordPath,
			r.run.CreatedAt,
		); err != nil {
			ok = false
		}
		for _, ws := range r.rows {
			if !ok {
				break
			}
			if _, err := tx.Stmt(insertStats).Exec(
				r.run.RunID,
				ws.WalkerID,
				ws.Name,
				ws.Kind,
				boolInt(ws.Escaped),
				int64(ws.EscapeTick),
				ws.YCrossings,
				ws.FinalX,
				ws.FinalY,
				ws.FinalDist,
			); err != nil {
				ok = false
			}
		}
		if ok {
			_ = tx.Commit()
		} else {
			_ = tx.Rollback()
		}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
