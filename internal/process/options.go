package process

import (
	"io"

	"github.com/smazurov/proclaunch/internal/events"
	"github.com/smazurov/proclaunch/internal/logging"
)

// Options configures a Controller. The zero value is usable.
type Options struct {
	// Logger receives diagnostics (spawn, pid, exit). It is separate from the
	// router's sink, which carries the audit trail. If nil, uses the
	// "process" module logger.
	Logger logging.Logger

	// Bus receives lifecycle and output events (optional).
	Bus *events.Bus

	// OnStateChange is called on every state transition (optional). The
	// Exited call happens before State reports Exited, so calls for one
	// controller arrive in order.
	OnStateChange StateChangeCallback

	// Stdout and Stderr receive streams that are not redirected. If nil,
	// the child inherits the parent's stdout and stderr.
	Stdout io.Writer
	Stderr io.Writer
}
