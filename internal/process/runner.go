package process

import (
	"context"

	"github.com/smazurov/proclaunch/internal/launch"
)

// Overrides replace launch settings for a single run. Empty fields keep
// the configured value.
type Overrides struct {
	Path      string
	Arguments string
}

// Apply returns a copy of cfg with the overrides in place. An argument
// override replaces an argument list too.
func (o Overrides) Apply(cfg launch.Config) launch.Config {
	cfg = cfg.Clone()
	if o.Path != "" {
		cfg.Path = o.Path
	}
	if o.Arguments != "" {
		cfg.Arguments = o.Arguments
		cfg.ArgumentList = nil
	}
	return cfg
}

// Run starts the configured process, waits for it and finalizes it. It
// returns the exit code, or an *ExitCodeError when the policy rejects it.
func Run(cfg launch.Config, policy *ExitPolicy, router *Router, overrides Overrides) (int, error) {
	return RunContext(context.Background(), cfg, policy, router, overrides)
}

// RunContext is Run with a cancellable wait. Cancellation returns
// ctx.Err() and leaves the child running.
func RunContext(ctx context.Context, cfg launch.Config, policy *ExitPolicy, router *Router, overrides Overrides) (int, error) {
	return RunWithOptions(ctx, cfg, policy, router, overrides, nil)
}

// RunWithOptions is RunContext with controller options.
func RunWithOptions(ctx context.Context, cfg launch.Config, policy *ExitPolicy, router *Router, overrides Overrides, opts *Options) (int, error) {
	c, err := NewController(overrides.Apply(cfg), policy, router, opts)
	if err != nil {
		return -1, err
	}
	defer c.Close()

	return runController(ctx, c)
}

// runController performs Start, Wait and Finalize on c.
func runController(ctx context.Context, c *Controller) (int, error) {
	if err := c.Start(); err != nil {
		return -1, err
	}
	if code, err := c.WaitContext(ctx); err != nil {
		return code, err
	}
	return c.Finalize()
}

// RunAgain restarts an existing controller and runs it to completion,
// reusing its consumer chain.
func RunAgain(ctx context.Context, c *Controller) (int, error) {
	return runController(ctx, c)
}
