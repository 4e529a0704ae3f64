package observerproto

// Version is the observer stream protocol version (separate from the run
// record wire version).
const Version = "0.2"

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change settings mid-stream.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Send every Nth tick. 1 streams everything.
	EveryTicks int `json:"every_ticks"`
}

// Server -> Client. Sent every EveryTicks ticks, and always for the final
// tick of a run.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Walkers []WalkerState `json:"walkers"`
	Digest  string        `json:"digest"`
}

type WalkerState struct {
	ID   int     `json:"id"`
	Name string  `json:"name"`
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Mult float64 `json:"mult"`
}

// HTTP response for GET /observer/v1/bootstrap. Carries everything a viewer
// needs to draw the field before the first TICK arrives.
type BootstrapResponse struct {
	ProtocolVersion string    `json:"protocol_version"`
	Scenario        string    `json:"scenario"`
	RunID           string    `json:"run_id"`
	Tick            uint64    `json:"tick"`
	Params          RunParams `json:"params"`

	Zones     []ZoneInfo `json:"zones"`
	Obstacles []RectInfo `json:"obstacles"`
	Gates     []GateInfo `json:"gates"`

	Walkers []WalkerState `json:"walkers"`
}

type RunParams struct {
	Seed        int64  `json:"seed"`
	Ticks       int    `json:"ticks"`
	TickRateHz  int    `json:"tick_rate_hz"`
	Interaction string `json:"interaction"`
}

type RectInfo struct {
	Min [2]float64 `json:"min"`
	Max [2]float64 `json:"max"`
}

type ZoneInfo struct {
	Kind string     `json:"kind"`
	Min  [2]float64 `json:"min"`
	Max  [2]float64 `json:"max"`
}

type GateInfo struct {
	Entrance RectInfo   `json:"entrance"`
	Exit     [2]float64 `json:"exit"`
}
