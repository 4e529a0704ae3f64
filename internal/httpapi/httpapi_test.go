package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walkabout.dev/internal/geom"
	"walkabout.dev/internal/persistence/indexdb"
	"walkabout.dev/internal/persistence/record"
	"walkabout.dev/internal/protocol"
	"walkabout.dev/internal/stats"
)

func seededIndex(t *testing.T) *indexdb.SQLiteIndex {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := indexdb.OpenSQLite(path)
	require.NoError(t, err)
	idx.RecordRun("/data/runs/run-r1.wrec", record.RecordV1{
		Header: record.Header{Version: 1, RunID: "r1", Tick: 200},
		Meta: protocol.RunMeta{
			RunID: "r1", Scenario: "meadow", Seed: 9, Ticks: 200, Interaction: "repel",
			Walkers:   []protocol.WalkerMeta{{ID: 0, Name: "memory-1", Kind: "memory", BaseSpeed: 1}},
			CreatedAt: "2026-08-26T09:00:00Z",
		},
		Stats: []stats.WalkerStats{
			{ID: 0, Name: "memory-1", Kind: "memory", Escaped: true, EscapeTick: 55, YCrossings: 2, FinalPos: geom.Pt(8, -9), FinalDist: 12.041594578792296},
		},
		FinalDigest: "cafe",
	})
	require.NoError(t, idx.Close())

	idx, err = indexdb.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func apiServer(t *testing.T) *httptest.Server {
	t.Helper()
	idx := seededIndex(t)
	status := func() Status {
		return Status{
			Scenario:   "meadow",
			RunID:      "live",
			State:      "running",
			Tick:       42,
			Ticks:      200,
			TickRateHz: 10,
			Observers:  1,
			Index:      idx.Stats(),
		}
	}
	srv := NewServer(idx, status, log.New(os.Stdout, "[api] ", log.LstdFlags))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestStatus(t *testing.T) {
	ts := apiServer(t)

	var got Status
	code := getJSON(t, ts.URL+"/api/v1/status", &got)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "running", got.State)
	assert.Equal(t, uint64(42), got.Tick)
	assert.Equal(t, 10, got.TickRateHz)
}

func TestListRuns(t *testing.T) {
	ts := apiServer(t)

	var got struct {
		Runs []indexdb.RunSummary `json:"runs"`
	}
	code := getJSON(t, ts.URL+"/api/v1/runs", &got)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, got.Runs, 1)
	assert.Equal(t, "r1", got.Runs[0].RunID)
	assert.Equal(t, "meadow", got.Runs[0].Scenario)

	var bad map[string]string
	code = getJSON(t, ts.URL+"/api/v1/runs?limit=zero", &bad)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, protocol.ErrBadRequest, bad["code"])
}

func TestIndexDisabled(t *testing.T) {
	srv := NewServer(nil, func() Status { return Status{State: "running"} }, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	var got Status
	code := getJSON(t, ts.URL+"/api/v1/status", &got)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "running", got.State)

	var body map[string]string
	code = getJSON(t, ts.URL+"/api/v1/runs", &body)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, protocol.ErrIndexDisabled, body["code"])

	code = getJSON(t, ts.URL+"/api/v1/runs/r1", &body)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestGetRunAndStats(t *testing.T) {
	ts := apiServer(t)

	var run indexdb.RunSummary
	code := getJSON(t, ts.URL+"/api/v1/runs/r1", &run)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(9), run.Seed)
	assert.Equal(t, "cafe", run.FinalDigest)

	var payload struct {
		Run     indexdb.RunSummary  `json:"run"`
		Walkers []indexdb.WalkerRow `json:"walkers"`
	}
	code = getJSON(t, ts.URL+"/api/v1/runs/r1/stats", &payload)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, payload.Walkers, 1)
	assert.Equal(t, "memory-1", payload.Walkers[0].Name)
	assert.True(t, payload.Walkers[0].Escaped)
	assert.Equal(t, uint64(55), payload.Walkers[0].EscapeTick)

	var missing map[string]string
	code = getJSON(t, ts.URL+"/api/v1/runs/ghost/stats", &missing)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, protocol.ErrRunNotFound, missing["code"])
}
