package cmd

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/smazurov/proclaunch/internal/config"
	"github.com/smazurov/proclaunch/internal/launch"
	"github.com/smazurov/proclaunch/internal/metrics"
	"github.com/smazurov/proclaunch/internal/process"
)

// controllerFactory builds a controller for a profile.
type controllerFactory func(*config.Profile) (*process.Controller, error)

// runLoop owns the current controller and reruns it on request, one run
// at a time. It never restarts a child on its own.
// A reloaded profile replaces the controller before the next run.
type runLoop struct {
	build  controllerFactory
	logger *slog.Logger

	mu      sync.RWMutex
	current *process.Controller
	pending *config.Profile
	wake    chan struct{}
}

func newRunLoop(build controllerFactory, logger *slog.Logger) *runLoop {
	return &runLoop{
		build:  build,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// load builds the first controller.
func (l *runLoop) load(p *config.Profile) error {
	c, err := l.build(p)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.current = c
	l.mu.Unlock()
	return nil
}

func (l *runLoop) controller() *process.Controller {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Info describes the current controller.
func (l *runLoop) Info() *process.Info         { return l.controller().Info() }
func (l *runLoop) Config() launch.Config       { return l.controller().Config() }
func (l *runLoop) Policy() *process.ExitPolicy { return l.controller().Policy() }
func (l *runLoop) Routes() [2]process.Route    { return l.controller().Routes() }

// RequestRun schedules another run. It fails while a child is alive.
func (l *runLoop) RequestRun() error {
	if l.controller().State() == process.StateStarted {
		return process.ErrAlreadyRunning
	}
	l.poke()
	return nil
}

// Reload schedules a run with a new profile. Only the latest pending
// profile is kept.
func (l *runLoop) Reload(p *config.Profile) {
	l.mu.Lock()
	l.pending = p
	l.mu.Unlock()
	l.poke()
}

func (l *runLoop) poke() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// swap replaces the controller with one built from the pending profile.
func (l *runLoop) swap() error {
	l.mu.Lock()
	p := l.pending
	l.pending = nil
	l.mu.Unlock()
	if p == nil {
		return nil
	}

	c, err := l.build(p)
	if err != nil {
		return err
	}

	l.mu.Lock()
	old := l.current
	l.current = c
	l.mu.Unlock()

	if old != nil {
		_ = old.Close()
		if oldPath := old.Config().Path; oldPath != c.Config().Path {
			metrics.DeleteProcessMetrics(oldPath)
		}
	}
	l.logger.Info("Profile reloaded", "path", c.Config().Path, "arguments", c.Config().CommandLine())
	return nil
}

// Run executes the current controller once. With keepAlive it then waits
// for run requests or reloads until ctx is done, returning the result of
// the last run.
func (l *runLoop) Run(ctx context.Context, keepAlive bool) (int, error) {
	code, err := process.RunAgain(ctx, l.controller())
	if !keepAlive || ctx.Err() != nil {
		return code, err
	}
	l.report(code, err)

	for {
		select {
		case <-ctx.Done():
			return code, err
		case <-l.wake:
			if swapErr := l.swap(); swapErr != nil {
				l.logger.Error("Reloaded profile rejected, keeping previous", "error", swapErr)
				continue
			}
			code, err = process.RunAgain(ctx, l.controller())
			if ctx.Err() != nil {
				return code, err
			}
			l.report(code, err)
		}
	}
}

func (l *runLoop) report(code int, err error) {
	var exitErr *process.ExitCodeError
	switch {
	case err == nil:
		l.logger.Info("Run finished", "exit_code", code)
	case errors.As(err, &exitErr):
		l.logger.Warn("Run finished with invalid exit code", "exit_code", code, "valid_codes", exitErr.ValidCodes)
	default:
		l.logger.Error("Run failed", "error", err)
	}
}
