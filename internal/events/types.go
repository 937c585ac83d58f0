package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeProcessStarted uint32 = iota + 1
	TypeProcessExited
	TypeProcessFinalized
	TypeOutputLine
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ProcessStartedEvent is published after a child process was spawned.
type ProcessStartedEvent struct {
	RunID     string    `json:"run_id"`
	Path      string    `json:"path"`
	Arguments string    `json:"arguments,omitempty"`
	PID       int       `json:"pid"`
	Restart   bool      `json:"restart"`
	Timestamp time.Time `json:"timestamp"`
}

// Type returns the event type identifier for ProcessStartedEvent.
func (e ProcessStartedEvent) Type() uint32 { return TypeProcessStarted }

// ProcessExitedEvent is published once the child has terminated and all
// per-line output has been delivered.
type ProcessExitedEvent struct {
	RunID     string        `json:"run_id"`
	Path      string        `json:"path"`
	PID       int           `json:"pid"`
	ExitCode  int           `json:"exit_code"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Type returns the event type identifier for ProcessExitedEvent.
func (e ProcessExitedEvent) Type() uint32 { return TypeProcessExited }

// ProcessFinalizedEvent carries the exit policy verdict of a run.
type ProcessFinalizedEvent struct {
	RunID     string    `json:"run_id"`
	Path      string    `json:"path"`
	ExitCode  int       `json:"exit_code"`
	Valid     bool      `json:"valid"`
	Timestamp time.Time `json:"timestamp"`
}

// Type returns the event type identifier for ProcessFinalizedEvent.
func (e ProcessFinalizedEvent) Type() uint32 { return TypeProcessFinalized }

// Outcome is "valid" or "invalid".
func (e ProcessFinalizedEvent) Outcome() string {
	if e.Valid {
		return "valid"
	}
	return "invalid"
}

// OutputLineEvent is one line read from a redirected stream.
type OutputLineEvent struct {
	RunID  string `json:"run_id"`
	Stream string `json:"stream"`
	Text   string `json:"text"`
}

// Type returns the event type identifier for OutputLineEvent.
func (e OutputLineEvent) Type() uint32 { return TypeOutputLine }
