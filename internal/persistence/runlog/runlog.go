// Package runlog writes and reads per-run tick logs: one zstd-compressed
// JSONL file per run, a RunMeta header line followed by one TickRecord
// line per tick.
package runlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"walkabout.dev/internal/protocol"
)

// Path returns the tick log location for a run under baseDir.
func Path(baseDir, runID string) string {
	return filepath.Join(baseDir, fmt.Sprintf("ticks-%s.jsonl.zst", runID))
}

type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// Create opens a fresh tick log for the run described by meta and writes
// the header line. The caller must Close to flush the zstd frame.
func Create(baseDir string, meta protocol.RunMeta) (*Writer, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(Path(baseDir, meta.RunID), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w := &Writer{
		f:   f,
		enc: enc,
		w:   bufio.NewWriterSize(enc, 128*1024),
	}
	if err := w.writeLine(meta); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) WriteTick(rec protocol.TickRecord) error {
	return w.writeLine(rec)
}

func (w *Writer) writeLine(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		return fmt.Errorf("runlog: writer closed")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

// Read loads a complete tick log.
func Read(path string) (protocol.RunMeta, []protocol.TickRecord, error) {
	var meta protocol.RunMeta

	f, err := os.Open(path)
	if err != nil {
		return meta, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return meta, nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return meta, nil, err
		}
		return meta, nil, fmt.Errorf("runlog: %s: missing header line", filepath.Base(path))
	}
	if err := json.Unmarshal(sc.Bytes(), &meta); err != nil {
		return meta, nil, fmt.Errorf("runlog: header: %w", err)
	}

	var ticks []protocol.TickRecord
	for sc.Scan() {
		var rec protocol.TickRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return meta, nil, fmt.Errorf("runlog: tick line %d: %w", len(ticks)+1, err)
		}
		ticks = append(ticks, rec)
	}
	if err := sc.Err(); err != nil {
		return meta, nil, err
	}
	return meta, ticks, nil
}
