package process

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/smazurov/proclaunch/internal/launch"
	"github.com/smazurov/proclaunch/internal/logging"
)

func TestRunSucceedsWithDefaults(t *testing.T) {
	cfg := scriptConfig(t, "exit 0")

	code, err := Run(cfg, DefaultExitPolicy(), nil, Overrides{})
	if err != nil || code != 0 {
		t.Fatalf("Run = %d, %v; want 0, nil", code, err)
	}
}

func TestRunRejectsInvalidExitCode(t *testing.T) {
	cfg := scriptConfig(t, "exit 3")

	code, err := Run(cfg, DefaultExitPolicy(), nil, Overrides{})
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	var exitErr *ExitCodeError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Run error = %v, want *ExitCodeError", err)
	}
	if want := fmt.Sprintf(`Process "%s" exited with invalid code 3.`, cfg.Path); exitErr.Error() != want {
		t.Errorf("message = %q, want %q", exitErr.Error(), want)
	}
	if !reflect.DeepEqual(exitErr.ValidCodes, []int{0}) || exitErr.PID == 0 || exitErr.ProcessState == nil {
		t.Errorf("error = %+v", exitErr)
	}
}

func TestRunLogsInvalidExitAtInvalidLevel(t *testing.T) {
	cfg := scriptConfig(t, "exit 4")
	sink := &recordingSink{}

	_, err := Run(cfg, DefaultExitPolicy(), NewLoggingRouter(sink), Overrides{Arguments: "--flag"})
	if err == nil {
		t.Fatal("expected exit code violation")
	}

	want := fmt.Sprintf(`Process "%s --flag" exited with code 4`, cfg.Path)
	if got := sink.at(logging.LevelError); !reflect.DeepEqual(got, []string{want}) {
		t.Errorf("error entries = %q, want %q", got, want)
	}
	if want := fmt.Sprintf(`Process "%s --flag" exited with invalid code 4.`, cfg.Path); err.Error() != want {
		t.Errorf("error message = %q, want %q", err.Error(), want)
	}
}

func TestRunWithoutPolicyAcceptsAnyCode(t *testing.T) {
	cfg := scriptConfig(t, "exit 9")
	code, err := Run(cfg, nil, nil, Overrides{})
	if err != nil || code != 9 {
		t.Fatalf("Run = %d, %v; want 9, nil", code, err)
	}
}

func TestRemovedHandlerReceivesNothing(t *testing.T) {
	cfg := shConfig(t, `echo one; echo two >&2`)
	calls := 0
	h := OutputHandlerFunc(func(Line) { calls++ })

	router := NewRouter().
		AddOutputReceivedHandler(h).
		RemoveOutputReceivedHandler(h).
		AddErrorReceivedHandler(h).
		RemoveErrorReceivedHandler(h)

	if _, err := RunWithOptions(context.Background(), cfg, nil, router, Overrides{}, testOptions()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("removed handler called %d times", calls)
	}
}

func TestRunContextCancelled(t *testing.T) {
	cfg := shConfig(t, `sleep 0.2`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := RunContext(ctx, cfg, nil, nil, Overrides{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunContext error = %v, want context.Canceled", err)
	}
}

func TestOverridesReplaceArgumentList(t *testing.T) {
	skipWithoutShell(t)
	cfg, err := launch.New().Path("/bin/sh").ArgumentList("-c", "exit 1").Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	got := Overrides{Arguments: `-c "exit 0"`}.Apply(cfg)
	if got.ArgumentList != nil || got.Arguments != `-c "exit 0"` {
		t.Errorf("apply = %+v", got)
	}
	if cfg.ArgumentList == nil {
		t.Error("apply mutated the original config")
	}

	if code, err := Run(cfg, DefaultExitPolicy(), nil, Overrides{Arguments: `-c "exit 0"`}); err != nil || code != 0 {
		t.Errorf("Run with overrides = %d, %v", code, err)
	}
}

func TestBuilderRun(t *testing.T) {
	skipWithoutShell(t)
	sink := &recordingSink{}
	rec := &lineRecorder{}

	code, err := NewBuilder("/bin/sh").
		Launch(func(b *launch.Builder) { b.ArgumentList("-c", `echo "$GREETING"; exit 2`) }).
		Environment("GREETING", "hi").
		ValidExitCodes(0, 2).
		LogTo(sink).
		OnOutput(rec).
		Options(*testOptions()).
		Run()
	if err != nil || code != 2 {
		t.Fatalf("Run = %d, %v; want 2, nil", code, err)
	}
	if got := rec.texts(); !reflect.DeepEqual(got, []string{"hi"}) {
		t.Errorf("handler lines = %q", got)
	}
}

func TestBuilderErrors(t *testing.T) {
	if _, err := NewBuilder("x").ValidExitCodes().Run(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("empty exit codes = %v, want ErrInvalidConfig", err)
	}
	if _, err := NewBuilder("x").Environment("", "v").Run(); !errors.Is(err, launch.ErrInvalidArgument) {
		t.Errorf("empty env name = %v, want launch.ErrInvalidArgument", err)
	}
}

func TestRunAgainReusesController(t *testing.T) {
	cfg := shConfig(t, `echo tick`)
	rec := &lineRecorder{}
	c := newTestController(t, cfg, DefaultExitPolicy(), NewRouter().AddOutputReceivedHandler(rec))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for range 3 {
		if _, err := RunAgain(ctx, c); err != nil {
			t.Fatalf("RunAgain failed: %v", err)
		}
	}
	if got := len(rec.texts()); got != 3 {
		t.Errorf("lines = %d, want 3", got)
	}
}
