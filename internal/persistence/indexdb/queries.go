package indexdb

// RunSummary is one row of the runs table.
type RunSummary struct {
	RunID       string `json:"run_id"`
	Scenario    string `json:"scenario"`
	Seed        int64  `json:"seed"`
	Ticks       uint64 `json:"ticks"`
	Walkers     int    `json:"walkers"`
	Interaction string `json:"interaction"`
	Wedged      bool   `json:"wedged"`
	FinalDigest string `json:"final_digest"`
	RecordPath  string `json:"record_path"`
	CreatedAt   string `json:"created_at"`
}

// WalkerRow is one row of the walker_stats table.
type WalkerRow struct {
	WalkerID   int     `json:"walker_id"`
	Name       string  `json:"name"`
	Kind       string  `json:"kind"`
	Escaped    bool    `json:"escaped"`
	EscapeTick uint64  `json:"escape_tick"`
	YCrossings int     `json:"y_crossings"`
	FinalX     float64 `json:"final_x"`
	FinalY     float64 `json:"final_y"`
	FinalDist  float64 `json:"final_dist"`
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteIndex) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT run_id,scenario,seed,ticks,walkers,interaction,wedged,final_digest,record_path,created_at
		FROM runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r      RunSummary
			wedged int
		)
		if err := rows.Scan(&r.RunID, &r.Scenario, &r.Seed, &r.Ticks, &r.Walkers, &r.Interaction, &wedged, &r.FinalDigest, &r.RecordPath, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Wedged = wedged != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun looks up one run. Returns sql.ErrNoRows (wrapped by database/sql)
// when the run is not indexed.
func (s *SQLiteIndex) GetRun(runID string) (RunSummary, error) {
	var (
		r      RunSummary
		wedged int
	)
	row := s.db.QueryRow(`
		SELECT run_id,scenario,seed,ticks,walkers,interaction,wedged,final_digest,record_path,created_at
		FROM runs WHERE run_id=?`, runID)
	if err := row.Scan(&r.RunID, &r.Scenario, &r.Seed, &r.Ticks, &r.Walkers, &r.Interaction, &wedged, &r.FinalDigest, &r.RecordPath, &r.CreatedAt); err != nil {
		return RunSummary{}, err
	}
	r.Wedged = wedged != 0
	return r, nil
}

// RunStats returns the per-walker stats rows for one run, walker order.
func (s *SQLiteIndex) RunStats(runID string) ([]WalkerRow, error) {
	rows, err := s.db.Query(`
		SELECT walker_id,name,kind,escaped,escape_tick,y_crossings,final_x,final_y,final_dist
		FROM walker_stats WHERE run_id=? ORDER BY walker_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WalkerRow
	for rows.Next() {
		var (
			w       WalkerRow
			escaped int
		)
		if err := rows.Scan(&w.WalkerID, &w.Name, &w.Kind, &escaped, &w.EscapeTick, &w.YCrossings, &w.FinalX, &w.FinalY, &w.FinalDist); err != nil {
			return nil, err
		}
		w.Escaped = escaped != 0
		out = append(out, w)
	}
	return out, rows.Err()
}
