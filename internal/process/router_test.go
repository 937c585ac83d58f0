package process

import (
	"errors"
	"reflect"
	"testing"

	"github.com/smazurov/proclaunch/internal/logging"
)

func TestExitPolicy(t *testing.T) {
	if _, err := NewExitPolicy(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("empty policy error = %v, want ErrInvalidConfig", err)
	}

	p, err := NewExitPolicy(0, 2, 0)
	if err != nil {
		t.Fatalf("NewExitPolicy failed: %v", err)
	}
	if got := p.Codes(); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("Codes() = %v, want [0 2]", got)
	}

	var unverified *ExitPolicy
	for code := -1; code <= 256; code++ {
		if !unverified.Valid(code) {
			t.Fatalf("nil policy rejected %d", code)
		}
		want := code == 0 || code == 2
		if got := p.Valid(code); got != want {
			t.Fatalf("Valid(%d) = %v, want %v", code, got, want)
		}
	}
	if unverified.Codes() != nil {
		t.Error("nil policy should report no codes")
	}
	if p.String() != "{0, 2}" || unverified.String() != "any" {
		t.Errorf("String() = %q / %q", p.String(), unverified.String())
	}
}

func TestExitMessages(t *testing.T) {
	tests := []struct {
		kind messageKind
		path string
		args string
		code int
		want string
	}{
		{messageExited, "/bin/tool", "", 0, `Process "/bin/tool" exited with code 0`},
		{messageExited, "/bin/tool", "-x y", 1, `Process "/bin/tool -x y" exited with code 1`},
		{messageExitedInvalid, "tool", "", 3, `Process "tool" exited with invalid code 3.`},
		{messageExitedInvalid, "tool", "a", -1, `Process "tool a" exited with invalid code -1.`},
	}
	for _, tt := range tests {
		if got := formatExitMessage(tt.kind, tt.path, tt.args, tt.code); got != tt.want {
			t.Errorf("formatExitMessage = %q, want %q", got, tt.want)
		}
	}
}

func TestRouteDerivation(t *testing.T) {
	sink := logging.SinkFunc(func(logging.Level, string) {})
	h := OutputHandlerFunc(func(Line) {})

	tests := []struct {
		name     string
		logging  StreamLogging
		handlers int
		want     Mode
		lines    bool
		drain    bool
	}{
		{"nothing", StreamLogging{}, 0, ModeDisabled, false, false},
		{"per-line logging", StreamLogging{Behavior: BehaviorPerLine}, 0, ModePerLine, true, false},
		{"drain logging", StreamLogging{Behavior: BehaviorDrainAfterExit}, 0, ModeDrainAfterExit, false, true},
		{"handler only", StreamLogging{}, 1, ModePerLine, false, false},
		{"drain with handler", StreamLogging{Behavior: BehaviorDrainAfterExit}, 1, ModePerLine, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter().SetSink(sink).SetStreamLogging(Stderr, tt.logging)
			for range tt.handlers {
				r.AddErrorReceivedHandler(h)
			}
			route := r.Route(Stderr)
			if route.Mode != tt.want || route.LogsLines() != tt.lines || route.LogsAfterExit() != tt.drain {
				t.Errorf("route = %s", route)
			}
			if route.Redirected() != (tt.want != ModeDisabled) {
				t.Errorf("Redirected() = %v for mode %s", route.Redirected(), route.Mode)
			}
			if other := r.Route(Stdout); other.Redirected() {
				t.Errorf("stdout should stay inherited, got %s", other)
			}
		})
	}
}

type namedHandler struct{ name string }

func (*namedHandler) HandleOutput(Line) {}

func TestRemoveHandlerByIdentity(t *testing.T) {
	a, b := &namedHandler{"a"}, &namedHandler{"a"}
	r := NewRouter().
		AddOutputReceivedHandler(a).
		AddOutputReceivedHandler(b).
		AddOutputReceivedHandler(a)

	r.RemoveOutputReceivedHandler(a)
	route := r.Route(Stdout)
	if route.Handlers() != 2 || route.handlers[0] != OutputHandler(b) || route.handlers[1] != OutputHandler(a) {
		t.Errorf("handlers after removal = %v", route.handlers)
	}

	// Never added: no-op.
	r.RemoveOutputReceivedHandler(&namedHandler{"c"})
	r.RemoveErrorReceivedHandler(a)
	if r.Route(Stdout).Handlers() != 2 || r.Route(Stderr).Handlers() != 0 {
		t.Error("removing an unknown handler changed the router")
	}
}

func TestRemoveClosureFromSameLiteral(t *testing.T) {
	calls := make([]int, 3)
	handlers := make([]OutputHandlerFunc, len(calls))
	r := NewRouter()
	for i := range handlers {
		handlers[i] = func(Line) { calls[i]++ }
		r.AddOutputReceivedHandler(handlers[i])
	}

	r.RemoveOutputReceivedHandler(handlers[2])
	r.Route(Stdout).deliver(Line{Stream: Stdout, Text: "x"})
	if !reflect.DeepEqual(calls, []int{1, 1, 0}) {
		t.Errorf("calls per handler = %v, want [1 1 0]", calls)
	}

	r.RemoveOutputReceivedHandler(handlers[0])
	r.Route(Stdout).deliver(Line{Stream: Stdout, Text: "y"})
	if !reflect.DeepEqual(calls, []int{1, 2, 0}) {
		t.Errorf("calls per handler = %v, want [1 2 0]", calls)
	}
}

func TestRemoveFromEmptyRouterIsNoop(t *testing.T) {
	r := NewRouter()
	r.RemoveOutputReceivedHandler(OutputHandlerFunc(func(Line) {}))
	r.RemoveErrorReceivedHandler(nil)
	if r.Route(Stdout).Redirected() || r.Route(Stderr).Redirected() {
		t.Error("empty router should not redirect")
	}
}

func TestRouteSnapshotIsIndependent(t *testing.T) {
	r := NewRouter().AddOutputReceivedHandler(&namedHandler{"a"})
	route := r.Route(Stdout)
	r.AddOutputReceivedHandler(&namedHandler{"b"})
	if route.Handlers() != 1 {
		t.Errorf("snapshot saw later handler: %d", route.Handlers())
	}
}

func TestBehaviorUnmarshal(t *testing.T) {
	tests := map[string]Behavior{
		"disabled":         BehaviorDisabled,
		"per-line":         BehaviorPerLine,
		"per_line":         BehaviorPerLine,
		"drain-after-exit": BehaviorDrainAfterExit,
		"drain":            BehaviorDrainAfterExit,
	}
	for text, want := range tests {
		var b Behavior
		if err := b.UnmarshalText([]byte(text)); err != nil || b != want {
			t.Errorf("UnmarshalText(%q) = %v, %v; want %v", text, b, err, want)
		}
	}
	var b Behavior
	if err := b.UnmarshalText([]byte("sometimes")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("UnmarshalText(sometimes) error = %v", err)
	}
}
