package process

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/proclaunch/internal/launch"
	"github.com/smazurov/proclaunch/internal/logging"
)

type entry struct {
	level   logging.Level
	message string
}

// recordingSink captures every Log call.
type recordingSink struct {
	mu      sync.Mutex
	entries []entry
}

func (s *recordingSink) Log(level logging.Level, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry{level, message})
}

func (s *recordingSink) all() []entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entry(nil), s.entries...)
}

// at returns the messages logged at level, in order.
func (s *recordingSink) at(level logging.Level) []string {
	var out []string
	for _, e := range s.all() {
		if e.level == level {
			out = append(out, e.message)
		}
	}
	return out
}

// lineRecorder is an OutputHandler that keeps every delivery.
type lineRecorder struct {
	mu    sync.Mutex
	lines []Line
}

func (r *lineRecorder) HandleOutput(line Line) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *lineRecorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, l := range r.lines {
		if !l.EOF {
			out = append(out, l.Text)
		}
	}
	return out
}

func (r *lineRecorder) eofs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.lines {
		if l.EOF {
			n++
		}
	}
	return n
}

func testOptions() *Options {
	return &Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

// shConfig returns a config running script through /bin/sh -c.
func shConfig(t *testing.T, script string) launch.Config {
	t.Helper()
	skipWithoutShell(t)
	cfg, err := launch.New().Path("/bin/sh").ArgumentList("-c", script).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return cfg
}

// scriptConfig writes an executable script and returns a config running it
// with no arguments.
func scriptConfig(t *testing.T, body string) launch.Config {
	t.Helper()
	skipWithoutShell(t)
	path := filepath.Join(t.TempDir(), "script.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	cfg, err := launch.New().Path(path).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return cfg
}

func newTestController(t *testing.T, cfg launch.Config, policy *ExitPolicy, router *Router) *Controller {
	t.Helper()
	c, err := NewController(cfg, policy, router, testOptions())
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// runToCompletion starts c and waits with a timeout, then finalizes.
func runToCompletion(t *testing.T, c *Controller) (int, error) {
	t.Helper()
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitExited(t, c, 5*time.Second)
	return c.Finalize()
}

func waitExited(t *testing.T, c *Controller, timeout time.Duration) int {
	t.Helper()
	done := make(chan int, 1)
	go func() {
		code, _ := c.Wait()
		done <- code
	}()
	select {
	case code := <-done:
		return code
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
		return -1
	}
}
