package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
)

// stateDigest is a canonical sha256 over the observable engine state.
// Replays compare it tick by tick to prove a re-simulation tracked the
// recorded run exactly.
func (e *Engine) stateDigest() string {
	h := sha256.New()
	digestWriteU64(h, e.tick)
	digestWriteU64(h, uint64(len(e.walkers)))
	for _, w := range e.walkers {
		digestWriteU64(h, uint64(w.id))
		digestWriteF64(h, w.pos.X)
		digestWriteF64(h, w.pos.Y)
		digestWriteF64(h, w.mult)
		digestWriteU64(h, uint64(w.VisitedCount()))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hash.Hash, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteF64(h hash.Hash, v float64) {
	digestWriteU64(h, math.Float64bits(v))
}
