package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/proclaunch/internal/events"
	"github.com/smazurov/proclaunch/internal/launch"
	"github.com/smazurov/proclaunch/internal/logging"
)

// maxLineSize bounds a single output line. Longer lines end delivery for
// that stream; the rest of the stream is discarded.
const maxLineSize = 1024 * 1024

// Controller owns one child process handle. It can run the same launch
// configuration several times in sequence; the router is read once, on the
// first Start, so handlers are never subscribed twice.
type Controller struct {
	cfg    launch.Config
	policy *ExitPolicy
	router *Router
	opts   Options
	logger logging.Logger

	mu         sync.Mutex
	state      State
	subscribed bool
	chain      chain
	run        *run
	restarts   int
	closed     bool
}

// chain is the router snapshot taken on first Start.
type chain struct {
	routes [2]Route
	sink   logging.Sink
	exit   ExitLogging
}

// run is one spawn of the child.
type run struct {
	id        string
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	captures  [2]*capture
	started   chan struct{} // closed once Started is announced
	done      chan struct{} // closed once Exited
	exitCode  int
	waitErr   error
}

// capture is the parent side of one redirected stream.
type capture struct {
	route  Route
	reader *io.PipeReader // per-line only
	writer *io.PipeWriter
	buf    *bytes.Buffer // text logged after exit
}

// NewController validates the configuration and returns a controller in
// the Created state. A nil router logs nothing; a nil policy verifies
// nothing.
func NewController(cfg launch.Config, policy *ExitPolicy, router *Router, opts *Options) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if router == nil {
		router = NewRouter()
	}
	if err := router.validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:    cfg.Clone(),
		policy: policy,
		router: router,
		state:  StateCreated,
	}
	if opts != nil {
		c.opts = *opts
	}
	c.logger = c.opts.Logger
	if c.logger == nil {
		c.logger = logging.GetLogger("process")
	}
	return c, nil
}

// Config returns a copy of the launch configuration.
func (c *Controller) Config() launch.Config {
	return c.cfg.Clone()
}

// Policy returns the exit policy; nil means unverified.
func (c *Controller) Policy() *ExitPolicy {
	return c.policy
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PID returns the pid of the latest run, or 0 before the first Start.
func (c *Controller) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return 0
	}
	return c.run.pid
}

// ExitCode returns the exit code of the latest run. ok is false while no
// run has exited.
func (c *Controller) ExitCode() (code int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil || c.state == StateStarted {
		return 0, false
	}
	return c.run.exitCode, true
}

// Info returns a snapshot of the controller.
func (c *Controller) Info() *Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := &Info{State: c.state, RestartCount: c.restarts}
	if r := c.run; r != nil {
		info.RunID = r.id
		info.PID = r.pid
		info.StartedAt = r.startedAt
		if c.state != StateStarted {
			info.ExitCode = r.exitCode
		}
	}
	return info
}

// Routes returns the consumer chains in effect. Before the first Start
// they are derived from the router's current settings.
func (c *Controller) Routes() [2]Route {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribed {
		return c.chain.routes
	}
	return [2]Route{c.router.Route(Stdout), c.router.Route(Stderr)}
}

// Start spawns the child. The first call freezes the router's consumer
// chain; later calls, allowed once the previous run has exited, reuse it.
// Spawn failures are returned as produced by os/exec.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateStarted {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	if !c.subscribed {
		if err := c.router.validate(); err != nil {
			c.mu.Unlock()
			return err
		}
		sink, exit := c.router.exitLogging()
		c.chain = chain{
			routes: [2]Route{c.router.Route(Stdout), c.router.Route(Stderr)},
			sink:   sink,
			exit:   exit,
		}
		c.subscribed = true
	}

	r, err := c.spawn()
	if err != nil {
		c.mu.Unlock()
		c.logger.Error("Failed to start process", "path", c.cfg.Path, "error", err)
		return err
	}

	restart := c.run != nil
	if restart {
		c.restarts++
	}
	oldState := c.state
	c.state = StateStarted
	c.run = r
	go c.supervise(r)
	c.mu.Unlock()

	c.logger.Info("Process started", "run_id", r.id, "pid", r.pid, "path", c.cfg.Path, "args", c.cfg.CommandLine())
	c.publish(events.ProcessStartedEvent{
		RunID:     r.id,
		Path:      c.cfg.Path,
		Arguments: c.cfg.CommandLine(),
		PID:       r.pid,
		Restart:   restart,
		Timestamp: r.startedAt,
	})
	c.notify(r.id, oldState, StateStarted)
	close(r.started)
	return nil
}

// Restart starts the child again after the previous run has exited.
func (c *Controller) Restart() error {
	switch c.State() {
	case StateCreated:
		return ErrNotStarted
	case StateStarted:
		return ErrAlreadyRunning
	}
	return c.Start()
}

// spawn builds and starts the OS process with the frozen routes wired in.
// Must be called with c.mu held.
func (c *Controller) spawn() (*run, error) {
	cmd, err := c.cfg.Command()
	if err != nil {
		return nil, err
	}

	r := &run{
		id:      uuid.NewString(),
		cmd:     cmd,
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
	var stdout, stderr io.Writer
	stdout, r.captures[Stdout] = c.wire(c.chain.routes[Stdout])
	stderr, r.captures[Stderr] = c.wire(c.chain.routes[Stderr])
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		for _, cp := range r.captures {
			cp.close()
		}
		return nil, err
	}

	r.pid = cmd.Process.Pid
	r.startedAt = time.Now()
	return r, nil
}

// wire returns the writer the child writes a stream into, plus the capture
// that consumes it (nil when the stream is inherited).
func (c *Controller) wire(route Route) (io.Writer, *capture) {
	switch route.Mode {
	case ModeDisabled:
		return c.inherited(route.Stream), nil
	case ModeDrainAfterExit:
		cp := &capture{route: route, buf: &bytes.Buffer{}}
		return cp.buf, cp
	}

	pr, pw := io.Pipe()
	cp := &capture{route: route, reader: pr, writer: pw}
	if route.drainLog {
		cp.buf = &bytes.Buffer{}
		return io.MultiWriter(pw, cp.buf), cp
	}
	return pw, cp
}

func (c *Controller) inherited(s Stream) io.Writer {
	if s == Stderr {
		if c.opts.Stderr != nil {
			return c.opts.Stderr
		}
		return os.Stderr
	}
	if c.opts.Stdout != nil {
		return c.opts.Stdout
	}
	return os.Stdout
}

func (cp *capture) close() {
	if cp == nil || cp.writer == nil {
		return
	}
	_ = cp.writer.Close()
	_ = cp.reader.Close()
}

// supervise reaps the child, waits for every per-line pump to finish, then
// marks the run Exited. It runs whether or not anyone is waiting. The
// Exited event and callback fire before State reports Exited.
func (c *Controller) supervise(r *run) {
	var wg sync.WaitGroup
	for _, cp := range r.captures {
		if cp == nil || cp.reader == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.pump(r, cp)
		}()
	}

	err := r.cmd.Wait()
	for _, cp := range r.captures {
		if cp != nil && cp.writer != nil {
			_ = cp.writer.Close()
		}
	}
	wg.Wait()

	exitCode := exitCodeFromError(err)
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		c.logger.Error("Process exited with error", "run_id", r.id, "error", err)
	} else {
		err = nil
	}

	c.mu.Lock()
	r.exitCode = exitCode
	r.waitErr = err
	c.mu.Unlock()

	// Announce Exited only after Started, and before the state lets the
	// next Start in.
	<-r.started
	duration := time.Since(r.startedAt)
	c.logger.Info("Process exited", "run_id", r.id, "pid", r.pid, "exit_code", exitCode, "duration", duration)
	c.publish(events.ProcessExitedEvent{
		RunID:     r.id,
		Path:      c.cfg.Path,
		PID:       r.pid,
		ExitCode:  exitCode,
		Duration:  duration,
		Timestamp: time.Now(),
	})
	c.notify(r.id, StateStarted, StateExited)

	c.mu.Lock()
	c.state = StateExited
	c.mu.Unlock()
	close(r.done)
}

// pump delivers one redirected stream line by line, then the EOF marker.
func (c *Controller) pump(r *run, cp *capture) {
	defer cp.reader.Close()

	src, err := launch.DecodeReader(cp.reader, c.encoding(cp.route.Stream))
	if err != nil {
		src = cp.reader
	}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		text := strings.TrimSuffix(scanner.Text(), "\r")
		cp.route.deliver(Line{Stream: cp.route.Stream, Text: text})
		c.publish(events.OutputLineEvent{RunID: r.id, Stream: cp.route.Stream.String(), Text: text})
	}
	if err := scanner.Err(); err != nil {
		c.logger.Warn("Error reading output", "run_id", r.id, "stream", cp.route.Stream.String(), "error", err)
		// Keep the child's writes flowing until it closes the stream.
		_, _ = io.Copy(io.Discard, cp.reader)
	}

	cp.route.deliver(Line{Stream: cp.route.Stream, EOF: true})
}

func (c *Controller) encoding(s Stream) string {
	if s == Stderr {
		return c.cfg.StderrEncoding
	}
	return c.cfg.StdoutEncoding
}

// Wait blocks until the current run has exited and returns its exit code.
// The error is non-nil only if reaping the child failed.
func (c *Controller) Wait() (int, error) {
	return c.WaitContext(context.Background())
}

// WaitContext is Wait with cancellation. Cancelling stops the wait only:
// the child keeps running and is still reaped in the background.
func (c *Controller) WaitContext(ctx context.Context) (int, error) {
	c.mu.Lock()
	r := c.run
	c.mu.Unlock()
	if r == nil {
		return -1, ErrNotStarted
	}

	select {
	case <-r.done:
		return r.exitCode, r.waitErr
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Finalize logs drained output and the exit code of the current run, then
// checks it against the exit policy. A violation is returned as
// *ExitCodeError along with the exit code.
func (c *Controller) Finalize() (int, error) {
	c.mu.Lock()
	r := c.run
	switch {
	case r == nil:
		c.mu.Unlock()
		return -1, ErrNotStarted
	case c.state == StateStarted:
		c.mu.Unlock()
		return -1, ErrNotExited
	case c.state == StateFinalized:
		c.mu.Unlock()
		return r.exitCode, ErrAlreadyFinalized
	}
	c.state = StateFinalized
	ch := c.chain
	c.mu.Unlock()

	for _, cp := range r.captures {
		if cp == nil || cp.buf == nil || cp.buf.Len() == 0 {
			continue
		}
		text, err := launch.DecodeString(cp.buf.Bytes(), c.encoding(cp.route.Stream))
		if err != nil {
			c.logger.Warn("Failed to decode output", "run_id", r.id, "stream", cp.route.Stream.String(), "error", err)
			text = cp.buf.String()
		}
		if text = strings.TrimRight(text, "\r\n"); text != "" {
			ch.sink.Log(cp.route.Level, text)
		}
	}

	valid := c.policy.Valid(r.exitCode)
	if ch.exit.Enabled && ch.sink != nil {
		level := ch.exit.Valid
		if !valid {
			level = ch.exit.Invalid
		}
		ch.sink.Log(level, formatExitMessage(messageExited, c.cfg.Path, c.cfg.CommandLine(), r.exitCode))
	}

	c.publish(events.ProcessFinalizedEvent{
		RunID:     r.id,
		Path:      c.cfg.Path,
		ExitCode:  r.exitCode,
		Valid:     valid,
		Timestamp: time.Now(),
	})
	c.notify(r.id, StateExited, StateFinalized)

	if !valid {
		return r.exitCode, &ExitCodeError{
			PID:          r.pid,
			ProcessState: r.cmd.ProcessState,
			Path:         c.cfg.Path,
			Arguments:    c.cfg.CommandLine(),
			ExitCode:     r.exitCode,
			ValidCodes:   c.policy.Codes(),
		}
	}
	return r.exitCode, nil
}

// Close refuses further Starts and releases the OS handle of a run that
// has exited. A child that is still running is left alone; it is reaped in
// the background, which releases its handle.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.run != nil && c.state != StateStarted {
		return c.run.cmd.Process.Release()
	}
	return nil
}

func (c *Controller) publish(ev events.Event) {
	if c.opts.Bus != nil {
		c.opts.Bus.Publish(ev)
	}
}

func (c *Controller) notify(runID string, oldState, newState State) {
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(runID, oldState, newState)
	}
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
