// Package record writes and reads run record files: everything needed to
// inspect or re-simulate a finished run. A record is a zstd stream holding
// one JSON header line followed by the gob-encoded RecordV1.
package record

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"walkabout.dev/internal/protocol"
	"walkabout.dev/internal/stats"
)

type Header struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Tick    uint64 `json:"tick"`
}

type RecordV1 struct {
	Header Header `json:"header"`

	Meta protocol.RunMeta `json:"meta"`

	// Source YAML of the scenario, so replay rebuilds the exact engine
	// configuration through the normal load path.
	ScenarioYAML []byte `json:"scenario_yaml"`

	Final []protocol.WalkerPoint `json:"final"`
	Stats []stats.WalkerStats    `json:"stats"`

	FinalDigest string `json:"final_digest"`

	// Wedged marks a run aborted because WedgeWalker could not find a
	// legal move. Header.Tick is then the last committed tick.
	Wedged      bool `json:"wedged,omitempty"`
	WedgeWalker int  `json:"wedge_walker,omitempty"`
}

// Path returns the record location for a run under baseDir.
func Path(baseDir, runID string) string {
	return filepath.Join(baseDir, fmt.Sprintf("run-%s.wrec", runID))
}

func Write(path string, rec RecordV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(rec.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&rec); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func Read(path string) (RecordV1, error) {
	var rec RecordV1
	f, err := os.Open(path)
	if err != nil {
		return rec, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return rec, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Read header line (ignore it for now, gob also contains header).
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&rec); err != nil {
		return rec, fmt.Errorf("gob decode: %w", err)
	}
	return rec, nil
}

// ReadHeader decodes only the JSON header line, without the gob body.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}
