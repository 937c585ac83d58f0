package process

import "time"

// State represents where a controller is in its run lifecycle.
type State string

// Controller states.
const (
	StateCreated   State = "created"   // Never started
	StateStarted   State = "started"   // Child running
	StateExited    State = "exited"    // Child terminated, output delivered
	StateFinalized State = "finalized" // Exit code verified and logged
)

// StateChangeCallback is called after every state transition.
// Used for reactions outside the audit trail (progress output, readiness).
type StateChangeCallback func(runID string, oldState, newState State)

// Info is a point-in-time view of a controller.
type Info struct {
	RunID        string
	State        State
	PID          int
	StartedAt    time.Time
	ExitCode     int
	RestartCount int
}
