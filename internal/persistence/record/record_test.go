package record

import (
	"testing"

	"walkabout.dev/internal/geom"
	"walkabout.dev/internal/protocol"
	"walkabout.dev/internal/stats"
)

func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir, "abc123")

	rec := RecordV1{
		Header: Header{Version: 1, RunID: "abc123", Tick: 250},
		Meta: protocol.RunMeta{
			Version:     1,
			RunID:       "abc123",
			Scenario:    "meadow",
			Seed:        7,
			Ticks:       250,
			Interaction: "repel",
			Walkers: []protocol.WalkerMeta{
				{ID: 0, Name: "memory-1", Kind: "memory", BaseSpeed: 1.5},
			},
		},
		ScenarioYAML: []byte("name: meadow\nseed: 7\n"),
		Final:        []protocol.WalkerPoint{{ID: 0, X: 4.5, Y: -3, Mult: 0.5}},
		Stats: []stats.WalkerStats{
			{
				ID: 0, Name: "memory-1", Kind: "memory",
				Escaped: true, EscapeTick: 101, YCrossings: 4,
				FinalPos: geom.Pt(4.5, -3), FinalDist: 5.408326913195984,
				Steps: []stats.StepMetrics{
					{Tick: 1, X: 1.5, DistOrigin: 1.5, AbsX: 1.5},
				},
			},
		},
		FinalDigest: "deadbeef",
	}

	if err := Write(path, rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Version != 1 || h.RunID != "abc123" || h.Tick != 250 {
		t.Fatalf("header mismatch: %+v", h)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Meta.Scenario != "meadow" || got.Meta.Seed != 7 {
		t.Fatalf("meta mismatch: %+v", got.Meta)
	}
	if string(got.ScenarioYAML) != "name: meadow\nseed: 7\n" {
		t.Fatalf("scenario yaml mismatch: %q", got.ScenarioYAML)
	}
	if len(got.Stats) != 1 || got.Stats[0].EscapeTick != 101 || len(got.Stats[0].Steps) != 1 {
		t.Fatalf("stats mismatch: %+v", got.Stats)
	}
	if got.Final[0].X != 4.5 || got.FinalDigest != "deadbeef" {
		t.Fatalf("final state mismatch: %+v", got)
	}
	if got.Wedged {
		t.Fatalf("unexpected wedge flag")
	}
}
