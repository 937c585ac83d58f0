package process

import (
	"errors"
	"os"
)

// Configuration and lifecycle errors.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrNoSink           = errors.New("logging enabled but no sink configured")
	ErrAlreadyRunning   = errors.New("process already running")
	ErrNotStarted       = errors.New("process not started")
	ErrNotExited        = errors.New("process has not exited")
	ErrAlreadyFinalized = errors.New("process already finalized")
	ErrClosed           = errors.New("controller closed")
)

// ExitCodeError reports an exit code outside the run's exit policy.
type ExitCodeError struct {
	PID          int
	ProcessState *os.ProcessState
	Path         string
	Arguments    string
	ExitCode     int
	ValidCodes   []int
}

func (e *ExitCodeError) Error() string {
	return formatExitMessage(messageExitedInvalid, e.Path, e.Arguments, e.ExitCode)
}
