package process

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/smazurov/proclaunch/internal/logging"
)

// ExitLogging sets the levels for the exit code message.
type ExitLogging struct {
	Enabled bool
	Valid   logging.Level
	Invalid logging.Level
}

// Router decides how each output stream reaches the logging sink and the
// user handlers. A controller reads it once, on its first Start; changes
// after that have no effect on that controller.
type Router struct {
	mu       sync.Mutex
	sink     logging.Sink
	streams  [2]StreamLogging
	exit     ExitLogging
	handlers [2][]OutputHandler
}

// NewRouter returns a router that logs nothing and has no handlers.
func NewRouter() *Router {
	return &Router{
		exit: ExitLogging{Valid: logging.LevelInformation, Invalid: logging.LevelError},
	}
}

// NewLoggingRouter returns NewRouter().LogTo(sink).
func NewLoggingRouter(sink logging.Sink) *Router {
	return NewRouter().LogTo(sink)
}

// LogTo sets sink and the default logging: stdout per line at
// Information, stderr per line at Error, and the exit code message at
// Information or Error depending on the verdict.
func (r *Router) LogTo(sink logging.Sink) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = normalizeSink(sink)
	r.streams[Stdout] = StreamLogging{Behavior: BehaviorPerLine, Level: logging.LevelInformation}
	r.streams[Stderr] = StreamLogging{Behavior: BehaviorPerLine, Level: logging.LevelError}
	r.exit = ExitLogging{Enabled: true, Valid: logging.LevelInformation, Invalid: logging.LevelError}
	return r
}

// SetSink sets the logging sink. A nil pointer or func held in the
// interface counts as no sink.
func (r *Router) SetSink(sink logging.Sink) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = normalizeSink(sink)
	return r
}

func normalizeSink(sink logging.Sink) logging.Sink {
	if sink == nil {
		return nil
	}
	switch v := reflect.ValueOf(sink); v.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		if v.IsNil() {
			return nil
		}
	}
	return sink
}

// SetStreamLogging configures the logging consumer for one stream.
func (r *Router) SetStreamLogging(s Stream, l StreamLogging) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[s] = l
	return r
}

// SetExitLogging configures the exit code message.
func (r *Router) SetExitLogging(l ExitLogging) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exit = l
	return r
}

// AddOutputReceivedHandler appends a stdout handler.
func (r *Router) AddOutputReceivedHandler(h OutputHandler) *Router {
	return r.addHandler(Stdout, h)
}

// RemoveOutputReceivedHandler removes the first registration of h from
// stdout. Removing a handler that was never added does nothing.
func (r *Router) RemoveOutputReceivedHandler(h OutputHandler) *Router {
	return r.removeHandler(Stdout, h)
}

// AddErrorReceivedHandler appends a stderr handler.
func (r *Router) AddErrorReceivedHandler(h OutputHandler) *Router {
	return r.addHandler(Stderr, h)
}

// RemoveErrorReceivedHandler removes the first registration of h from
// stderr. Removing a handler that was never added does nothing.
func (r *Router) RemoveErrorReceivedHandler(h OutputHandler) *Router {
	return r.removeHandler(Stderr, h)
}

func (r *Router) addHandler(s Stream, h OutputHandler) *Router {
	if h == nil {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[s] = append(r.handlers[s], h)
	return r
}

func (r *Router) removeHandler(s Stream, h OutputHandler) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.handlers[s]
	for i, existing := range list {
		if sameHandler(existing, h) {
			r.handlers[s] = slices.Delete(slices.Clone(list), i, i+1)
			break
		}
	}
	return r
}

// LoggingEnabled reports whether anything would be sent to the sink.
func (r *Router) LoggingEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loggingEnabled()
}

func (r *Router) loggingEnabled() bool {
	return r.exit.Enabled || r.streams[Stdout].Enabled() || r.streams[Stderr].Enabled()
}

// validate rejects logging without a sink.
func (r *Router) validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loggingEnabled() && r.sink == nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrNoSink)
	}
	for _, l := range r.streams {
		if l.Behavior < BehaviorDisabled || l.Behavior > BehaviorDrainAfterExit {
			return fmt.Errorf("%w: unknown logging behavior %d", ErrInvalidConfig, int(l.Behavior))
		}
	}
	return nil
}

// Route derives the consumer chain for s from the current settings.
func (r *Router) Route(s Stream) Route {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.streams[s]
	route := Route{
		Stream:   s,
		Level:    l.Level,
		sink:     r.sink,
		handlers: slices.Clone(r.handlers[s]),
	}
	switch l.Behavior {
	case BehaviorPerLine:
		route.logLines = true
	case BehaviorDrainAfterExit:
		route.drainLog = true
	}

	switch {
	case route.logLines || len(route.handlers) > 0:
		route.Mode = ModePerLine
	case route.drainLog:
		route.Mode = ModeDrainAfterExit
	default:
		route.Mode = ModeDisabled
	}
	return route
}

// exitLogging returns the sink and exit message settings.
func (r *Router) exitLogging() (logging.Sink, ExitLogging) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sink, r.exit
}
