package engine

import "fmt"

// ConfigError rejects an invalid simulation setup at construction time.
// It is never produced after New returns: every later failure is either a
// StateError or a wedged-walker error from Run.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "config: " + e.Reason }

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// State is the engine lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
)

var stateNames = [...]string{"idle", "running", "completed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// StateError reports an operation invoked in the wrong lifecycle state,
// such as running an engine twice. Programmer error, surfaced immediately.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: engine is %s", e.Op, e.State)
}

// WedgeError aborts a run when a walker exhausts its blocked-move retries
// against the obstacle layout.
type WedgeError struct {
	WalkerID int
	Name     string
	Attempts int
}

func (e *WedgeError) Error() string {
	return fmt.Sprintf("walker %d (%s) wedged after %d blocked moves", e.WalkerID, e.Name, e.Attempts)
}
