package process

import (
	"fmt"
	"reflect"
	"strings"
	"unsafe"

	"github.com/smazurov/proclaunch/internal/logging"
)

// Stream identifies one of the child's output streams.
type Stream int

// Output streams.
const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Behavior selects how a stream reaches the logging sink.
type Behavior int

// Logging behaviors.
const (
	BehaviorDisabled Behavior = iota
	BehaviorPerLine
	BehaviorDrainAfterExit
)

func (b Behavior) String() string {
	switch b {
	case BehaviorDisabled:
		return "disabled"
	case BehaviorPerLine:
		return "per-line"
	case BehaviorDrainAfterExit:
		return "drain-after-exit"
	default:
		return fmt.Sprintf("Behavior(%d)", int(b))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Behavior) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.ReplaceAll(string(text), "_", "-")) {
	case "", "disabled", "none":
		*b = BehaviorDisabled
	case "per-line", "perline", "line":
		*b = BehaviorPerLine
	case "drain-after-exit", "drain", "after-exit":
		*b = BehaviorDrainAfterExit
	default:
		return fmt.Errorf("%w: unknown logging behavior %q", ErrInvalidConfig, text)
	}
	return nil
}

// StreamLogging configures the logging consumer for one stream.
type StreamLogging struct {
	Behavior Behavior
	Level    logging.Level
}

// Enabled reports whether the stream is logged at all.
func (l StreamLogging) Enabled() bool {
	return l.Behavior != BehaviorDisabled
}

// Mode is the derived consumption strategy for a stream.
type Mode int

// Stream modes.
const (
	ModeDisabled Mode = iota
	ModePerLine
	ModeDrainAfterExit
)

func (m Mode) String() string {
	switch m {
	case ModePerLine:
		return "per-line"
	case ModeDrainAfterExit:
		return "drain-after-exit"
	default:
		return "disabled"
	}
}

// Line is one unit of output delivered to handlers. The final delivery of
// each stream has EOF set and no text.
type Line struct {
	Stream Stream
	Text   string
	EOF    bool
}

// OutputHandler receives output lines from the child process.
// Calls for one stream never overlap; calls for stdout and stderr may.
type OutputHandler interface {
	HandleOutput(line Line)
}

// OutputHandlerFunc adapts a function to OutputHandler. Two values are the
// same handler when they hold the same closure; separate closures built
// from one function literal are different handlers.
type OutputHandlerFunc func(line Line)

// HandleOutput calls f(line).
func (f OutputHandlerFunc) HandleOutput(line Line) {
	f(line)
}

// sameHandler compares handlers by identity. Funcs compare by closure,
// other comparable values with ==.
func sameHandler(a, b OutputHandler) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() || va.Type() != vb.Type() {
		return false
	}
	if va.Kind() == reflect.Func {
		return closureOf(a) == closureOf(b)
	}
	if !va.Type().Comparable() {
		return false
	}
	return a == b
}

// closureOf returns the closure record a func handler points to. Func
// values are stored directly in the interface data word.
func closureOf(h OutputHandler) unsafe.Pointer {
	if f, ok := h.(OutputHandlerFunc); ok {
		return *(*unsafe.Pointer)(unsafe.Pointer(&f))
	}
	return (*[2]unsafe.Pointer)(unsafe.Pointer(&h))[1]
}

// Route is the frozen consumer chain for one stream.
type Route struct {
	Stream Stream
	Mode   Mode
	Level  logging.Level

	// logLines is set when the logging consumer sees each line.
	logLines bool
	// drainLog is set when the whole stream is logged once after exit.
	drainLog bool
	sink     logging.Sink
	handlers []OutputHandler
}

// Redirected reports whether the stream is captured instead of inherited.
func (r Route) Redirected() bool {
	return r.Mode != ModeDisabled
}

// Handlers returns the number of user handlers on the route.
func (r Route) Handlers() int {
	return len(r.handlers)
}

// LogsLines reports whether each line goes to the sink as it arrives.
func (r Route) LogsLines() bool { return r.logLines }

// LogsAfterExit reports whether the stream is logged as one message at
// finalization.
func (r Route) LogsAfterExit() bool { return r.drainLog }

// deliver passes one line down the chain: logging consumer first, then
// user handlers in registration order. EOF never reaches the sink.
func (r Route) deliver(line Line) {
	if r.logLines && !line.EOF {
		r.sink.Log(r.Level, line.Text)
	}
	for _, h := range r.handlers {
		h.HandleOutput(line)
	}
}

func (r Route) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", r.Stream, r.Mode)
	if r.logLines {
		fmt.Fprintf(&sb, ", log each line at %s", r.Level)
	}
	if r.drainLog {
		fmt.Fprintf(&sb, ", log after exit at %s", r.Level)
	}
	if n := len(r.handlers); n > 0 {
		fmt.Fprintf(&sb, ", %d handler(s)", n)
	}
	return sb.String()
}
