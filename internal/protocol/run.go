package protocol

// WalkerMeta identifies one walker in a run's roster.
type WalkerMeta struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	BaseSpeed float64 `json:"base_speed"`
}

// RunMeta describes one recorded run. It is the first line of the tick log
// and the header of the run record file.
type RunMeta struct {
	Version     int          `json:"version"`
	RunID       string       `json:"run_id"`
	Scenario    string       `json:"scenario"`
	Seed        int64        `json:"seed"`
	Ticks       int          `json:"ticks"`
	Interaction string       `json:"interaction"`
	Walkers     []WalkerMeta `json:"walkers"`
	CreatedAt   string       `json:"created_at"`
}

// WalkerPoint is one walker's state inside a tick record.
type WalkerPoint struct {
	ID   int     `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Mult float64 `json:"mult"`
}

// TickRecord is one line of the tick log: the committed state of every
// walker after the tick, plus the engine state digest at that tick.
type TickRecord struct {
	Tick    uint64        `json:"tick"`
	Walkers []WalkerPoint `json:"walkers"`
	Digest  string        `json:"digest"`
}
