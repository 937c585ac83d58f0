package process

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/proclaunch/internal/events"
	"github.com/smazurov/proclaunch/internal/launch"
	"github.com/smazurov/proclaunch/internal/logging"
)

func TestPerLineLoggingKeepsStreamOrder(t *testing.T) {
	cfg := shConfig(t, `echo A; echo B; echo C >&2; echo D >&2`)
	sink := &recordingSink{}
	c := newTestController(t, cfg, DefaultExitPolicy(), NewLoggingRouter(sink))

	if code, err := runToCompletion(t, c); err != nil || code != 0 {
		t.Fatalf("run = %d, %v", code, err)
	}

	info := sink.at(logging.LevelInformation)
	if len(info) != 3 || info[0] != "A" || info[1] != "B" {
		t.Fatalf("information entries = %q, want [A B <exit>]", info)
	}
	if got := sink.at(logging.LevelError); !reflect.DeepEqual(got, []string{"C", "D"}) {
		t.Errorf("error entries = %q, want [C D]", got)
	}

	all := sink.all()
	last := all[len(all)-1]
	want := formatExitMessage(messageExited, cfg.Path, cfg.CommandLine(), 0)
	if last.level != logging.LevelInformation || last.message != want {
		t.Errorf("last entry = %+v, want exit message %q", last, want)
	}
}

func TestDrainAfterExitLogsOnce(t *testing.T) {
	cfg := shConfig(t, `printf 'line1\nline2'`)
	sink := &recordingSink{}
	router := NewRouter().
		SetSink(sink).
		SetStreamLogging(Stdout, StreamLogging{Behavior: BehaviorDrainAfterExit, Level: logging.LevelInformation}).
		SetStreamLogging(Stderr, StreamLogging{Behavior: BehaviorDrainAfterExit, Level: logging.LevelError}).
		SetExitLogging(ExitLogging{Enabled: true, Valid: logging.LevelInformation, Invalid: logging.LevelError})
	c := newTestController(t, cfg, DefaultExitPolicy(), router)

	if route := c.Routes()[Stdout]; route.Mode != ModeDrainAfterExit {
		t.Fatalf("stdout mode = %s, want drain-after-exit", route.Mode)
	}
	if _, err := runToCompletion(t, c); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got := sink.all()
	if len(got) != 2 {
		t.Fatalf("entries = %+v, want drained text and exit message", got)
	}
	if got[0] != (entry{logging.LevelInformation, "line1\nline2"}) {
		t.Errorf("drained entry = %+v", got[0])
	}
	if !strings.Contains(got[1].message, "exited with code 0") {
		t.Errorf("exit entry = %+v", got[1])
	}
}

func TestDrainLoggingWithHandlerOnSameStream(t *testing.T) {
	cfg := shConfig(t, `echo one; echo two`)
	sink := &recordingSink{}
	rec := &lineRecorder{}
	router := NewRouter().
		SetSink(sink).
		SetStreamLogging(Stdout, StreamLogging{Behavior: BehaviorDrainAfterExit, Level: logging.LevelDebug}).
		AddOutputReceivedHandler(rec)
	c := newTestController(t, cfg, nil, router)

	route := c.Routes()[Stdout]
	if route.Mode != ModePerLine || !route.LogsAfterExit() || route.LogsLines() {
		t.Fatalf("route = %s, want per-line delivery with drained logging", route)
	}
	if _, err := runToCompletion(t, c); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got := rec.texts(); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Errorf("handler lines = %q", got)
	}
	if got := sink.at(logging.LevelDebug); !reflect.DeepEqual(got, []string{"one\ntwo"}) {
		t.Errorf("drained log = %q", got)
	}
}

func TestEmptyDrainIsNotLogged(t *testing.T) {
	cfg := shConfig(t, `true`)
	sink := &recordingSink{}
	router := NewRouter().
		SetSink(sink).
		SetStreamLogging(Stdout, StreamLogging{Behavior: BehaviorDrainAfterExit, Level: logging.LevelInformation})
	c := newTestController(t, cfg, nil, router)

	if _, err := runToCompletion(t, c); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := sink.all(); len(got) != 0 {
		t.Errorf("entries = %+v, want none", got)
	}
}

func TestLoggingConsumerRunsBeforeHandlers(t *testing.T) {
	cfg := shConfig(t, `echo x`)
	var order []string
	sink := logging.SinkFunc(func(_ logging.Level, msg string) {
		if msg == "x" {
			order = append(order, "sink")
		}
	})
	router := NewLoggingRouter(sink).
		AddOutputReceivedHandler(OutputHandlerFunc(func(l Line) {
			if !l.EOF {
				order = append(order, "first")
			}
		})).
		AddOutputReceivedHandler(OutputHandlerFunc(func(l Line) {
			if !l.EOF {
				order = append(order, "second")
			}
		}))
	c := newTestController(t, cfg, nil, router)

	if _, err := runToCompletion(t, c); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if want := []string{"sink", "first", "second"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %q, want %q", order, want)
	}
}

func TestEOFReachesHandlersOnlyOnce(t *testing.T) {
	cfg := shConfig(t, `echo out; echo err >&2`)
	sink := &recordingSink{}
	out, errs := &lineRecorder{}, &lineRecorder{}
	router := NewLoggingRouter(sink).
		AddOutputReceivedHandler(out).
		AddErrorReceivedHandler(errs)
	router.SetExitLogging(ExitLogging{})
	c := newTestController(t, cfg, nil, router)

	if _, err := runToCompletion(t, c); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if out.eofs() != 1 || errs.eofs() != 1 {
		t.Errorf("EOF deliveries stdout=%d stderr=%d, want 1 each", out.eofs(), errs.eofs())
	}
	for _, e := range sink.all() {
		if e.message == "" {
			t.Errorf("sink received an empty message: %+v", sink.all())
		}
	}
	if got := len(sink.all()); got != 2 {
		t.Errorf("sink entries = %d, want 2", got)
	}
}

func TestStartTwiceDoesNotDuplicateSubscriptions(t *testing.T) {
	cfg := shConfig(t, `echo hello`)
	sink := &recordingSink{}
	rec := &lineRecorder{}
	router := NewLoggingRouter(sink).AddOutputReceivedHandler(rec)
	c := newTestController(t, cfg, DefaultExitPolicy(), router)

	for range 2 {
		if code, err := runToCompletion(t, c); err != nil || code != 0 {
			t.Fatalf("run = %d, %v", code, err)
		}
	}

	if got := rec.texts(); !reflect.DeepEqual(got, []string{"hello", "hello"}) {
		t.Errorf("handler lines = %q, want one per run", got)
	}
	if got := len(sink.at(logging.LevelInformation)); got != 4 {
		t.Errorf("information entries = %d, want 4 (line + exit per run)", got)
	}
	if info := c.Info(); info.RestartCount != 1 || info.State != StateFinalized {
		t.Errorf("info = %+v", info)
	}
}

func TestRouterChangesAfterStartAreIgnored(t *testing.T) {
	cfg := shConfig(t, `echo hi`)
	first, late := &lineRecorder{}, &lineRecorder{}
	router := NewRouter().AddOutputReceivedHandler(first)
	c := newTestController(t, cfg, nil, router)

	if _, err := runToCompletion(t, c); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	router.AddOutputReceivedHandler(late)
	if err := c.Restart(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	waitExited(t, c, 5*time.Second)

	if got := len(first.texts()); got != 2 {
		t.Errorf("first handler lines = %d, want 2", got)
	}
	if got := len(late.texts()); got != 0 {
		t.Errorf("late handler lines = %d, want 0", got)
	}
}

func TestWaitContextCancelLeavesChildRunning(t *testing.T) {
	cfg := shConfig(t, `sleep 0.3; echo done`)
	rec := &lineRecorder{}
	c := newTestController(t, cfg, DefaultExitPolicy(), NewRouter().AddOutputReceivedHandler(rec))

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.WaitContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitContext error = %v, want deadline exceeded", err)
	}
	if c.State() != StateStarted {
		t.Fatalf("state after cancelled wait = %s, want started", c.State())
	}

	if code := waitExited(t, c, 5*time.Second); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if got := rec.texts(); !reflect.DeepEqual(got, []string{"done"}) {
		t.Errorf("handler lines = %q, want [done]", got)
	}
}

func TestLifecycleErrors(t *testing.T) {
	cfg := shConfig(t, `sleep 0.2`)
	c := newTestController(t, cfg, nil, nil)

	if _, err := c.Finalize(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Finalize before Start = %v, want ErrNotStarted", err)
	}
	if _, err := c.Wait(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Wait before Start = %v, want ErrNotStarted", err)
	}
	if err := c.Restart(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Restart before Start = %v, want ErrNotStarted", err)
	}

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
	if _, err := c.Finalize(); !errors.Is(err, ErrNotExited) {
		t.Errorf("Finalize while running = %v, want ErrNotExited", err)
	}

	waitExited(t, c, 5*time.Second)
	if _, err := c.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if _, err := c.Finalize(); !errors.Is(err, ErrAlreadyFinalized) {
		t.Errorf("second Finalize = %v, want ErrAlreadyFinalized", err)
	}

	_ = c.Close()
	if err := c.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close = %v, want ErrClosed", err)
	}
}

func TestSpawnErrorIsReturnedUnmodified(t *testing.T) {
	skipWithoutShell(t)
	cfg := launch.Config{Path: "/nonexistent/command/that/does/not/exist"}
	c := newTestController(t, cfg, nil, nil)

	err := c.Start()
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Start error = %v, want fs.ErrNotExist", err)
	}
	var pathErr *fs.PathError
	if !errors.As(err, &pathErr) {
		t.Errorf("Start error %T is not *fs.PathError", err)
	}
	if c.State() != StateCreated {
		t.Errorf("state = %s, want created", c.State())
	}
}

func TestNoSinkIsConfigError(t *testing.T) {
	router := NewRouter().SetStreamLogging(Stdout, StreamLogging{Behavior: BehaviorPerLine})
	_, err := NewController(launch.Config{Path: "true"}, nil, router, testOptions())
	if !errors.Is(err, ErrNoSink) || !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("NewController error = %v, want ErrNoSink", err)
	}
	if !strings.Contains(err.Error(), "logging enabled but no sink configured") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestTypedNilSinkIsConfigError(t *testing.T) {
	var sink *recordingSink
	for name, router := range map[string]*Router{
		"LogTo":   NewLoggingRouter(sink),
		"SetSink": NewRouter().SetSink(sink).SetStreamLogging(Stderr, StreamLogging{Behavior: BehaviorPerLine}),
		"func":    NewLoggingRouter(logging.SinkFunc(nil)),
	} {
		if _, err := NewController(launch.Config{Path: "true"}, nil, router, testOptions()); !errors.Is(err, ErrNoSink) {
			t.Errorf("%s: NewController error = %v, want ErrNoSink", name, err)
		}
	}
}

func TestMissingPathIsConfigError(t *testing.T) {
	_, err := NewController(launch.Config{}, nil, nil, testOptions())
	if !errors.Is(err, launch.ErrInvalidArgument) {
		t.Fatalf("NewController error = %v, want launch.ErrInvalidArgument", err)
	}
}

func TestNonRedirectedStreamIsInherited(t *testing.T) {
	cfg := shConfig(t, `echo visible`)
	var stdout bytes.Buffer
	opts := testOptions()
	opts.Stdout = &stdout
	c, err := NewController(cfg, nil, nil, opts)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	defer c.Close()

	if _, err := runToCompletion(t, c); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := stdout.String(); got != "visible\n" {
		t.Errorf("inherited stdout = %q", got)
	}
}

func TestStreamEncoding(t *testing.T) {
	skipWithoutShell(t)
	cfg, err := launch.New().
		Path("/bin/sh").
		ArgumentList("-c", `printf 'caf\351\n'`).
		StdoutEncoding("iso-8859-1").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	rec := &lineRecorder{}
	c := newTestController(t, cfg, nil, NewRouter().AddOutputReceivedHandler(rec))

	if _, err := runToCompletion(t, c); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := rec.texts(); !reflect.DeepEqual(got, []string{"café"}) {
		t.Errorf("decoded lines = %q", got)
	}
}

func TestStateChangesAndEvents(t *testing.T) {
	cfg := shConfig(t, `echo evt; exit 2`)
	bus := events.New()

	started := make(chan events.ProcessStartedEvent, 1)
	finalized := make(chan events.ProcessFinalizedEvent, 1)
	lines := make(chan events.OutputLineEvent, 4)
	defer bus.Subscribe(func(e events.ProcessStartedEvent) { started <- e })()
	defer bus.Subscribe(func(e events.ProcessFinalizedEvent) { finalized <- e })()
	defer bus.Subscribe(func(e events.OutputLineEvent) { lines <- e })()

	var transitions []State
	opts := testOptions()
	opts.Bus = bus
	opts.OnStateChange = func(_ string, _, newState State) {
		transitions = append(transitions, newState)
	}
	policy, _ := NewExitPolicy(0)
	c, err := NewController(cfg, policy, NewRouter().AddOutputReceivedHandler(&lineRecorder{}), opts)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	defer c.Close()

	if _, err := runToCompletion(t, c); err == nil {
		t.Fatal("expected exit code violation")
	}

	want := []State{StateStarted, StateExited, StateFinalized}
	if !reflect.DeepEqual(transitions, want) {
		t.Errorf("transitions = %v, want %v", transitions, want)
	}

	select {
	case e := <-started:
		if e.PID != c.PID() || e.RunID == "" {
			t.Errorf("started event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no started event")
	}
	select {
	case e := <-lines:
		if e.Text != "evt" || e.Stream != "stdout" {
			t.Errorf("line event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no output line event")
	}
	select {
	case e := <-finalized:
		if e.Valid || e.ExitCode != 2 {
			t.Errorf("finalized event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no finalized event")
	}
}

func TestExitedIsAnnouncedBeforeNextStart(t *testing.T) {
	cfg := shConfig(t, `exit 0`)

	type transition struct {
		runID string
		state State
	}
	var (
		mu  sync.Mutex
		got []transition
	)
	opts := testOptions()
	opts.OnStateChange = func(runID string, _, newState State) {
		if newState == StateExited {
			// Give a fast Start the chance to overtake the callback.
			time.Sleep(5 * time.Millisecond)
		}
		mu.Lock()
		got = append(got, transition{runID, newState})
		mu.Unlock()
	}
	c, err := NewController(cfg, nil, nil, opts)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	defer c.Close()

	const runs = 5
	deadline := time.Now().Add(5 * time.Second)
	for range runs {
		if err := c.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		for c.State() == StateStarted {
			if time.Now().After(deadline) {
				t.Fatal("timeout waiting for process to exit")
			}
			time.Sleep(time.Millisecond)
		}
	}
	waitExited(t, c, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2*runs {
		t.Fatalf("transitions = %v, want %d", got, 2*runs)
	}
	for i := 0; i < len(got); i += 2 {
		start, exit := got[i], got[i+1]
		if start.state != StateStarted || exit.state != StateExited || start.runID != exit.runID {
			t.Fatalf("transitions %d-%d = %v, %v; want Started then Exited of one run", i, i+1, start, exit)
		}
	}
}

func TestCloseAfterExit(t *testing.T) {
	cfg := shConfig(t, `exit 0`)
	c, err := NewController(cfg, nil, nil, testOptions())
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	if _, err := runToCompletion(t, c); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close = %v, want nil", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if code, ok := c.ExitCode(); !ok || code != 0 {
		t.Errorf("ExitCode after Close = %d, %v", code, ok)
	}
}

func TestCloseWhileRunningLeavesChild(t *testing.T) {
	cfg := shConfig(t, `sleep 0.1; exit 3`)
	c, err := NewController(cfg, nil, nil, testOptions())
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close = %v, want nil", err)
	}
	if code := waitExited(t, c, 5*time.Second); code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
}

func TestLongLineDoesNotBlockChild(t *testing.T) {
	cfg := shConfig(t, `head -c 2000000 /dev/zero | tr '\0' 'a'; echo; echo after`)
	rec := &lineRecorder{}
	c := newTestController(t, cfg, nil, NewRouter().AddOutputReceivedHandler(rec))

	if code, err := runToCompletion(t, c); err != nil || code != 0 {
		t.Fatalf("run = %d, %v", code, err)
	}
	if rec.eofs() != 1 {
		t.Errorf("EOF deliveries = %d, want 1", rec.eofs())
	}
}
