package process

import (
	"context"

	"github.com/smazurov/proclaunch/internal/launch"
	"github.com/smazurov/proclaunch/internal/logging"
)

// Builder combines launch settings, exit policy and output routing in one
// chain ending in Run. Launch setters are reached through Launch.
//
//	code, err := process.NewBuilder("make").
//		Launch(func(b *launch.Builder) { b.Arguments("test") }).
//		LogTo(logging.NewSlogSink(logger)).
//		ValidExitCodes(0, 2).
//		Run()
type Builder struct {
	launch *launch.Builder
	policy *ExitPolicy
	router *Router
	opts   Options
	err    error
}

// NewBuilder returns a builder for path with the default exit policy {0}
// and no logging.
func NewBuilder(path string) *Builder {
	return &Builder{
		launch: launch.New().Path(path),
		policy: DefaultExitPolicy(),
		router: NewRouter(),
	}
}

// FromConfig returns a builder seeded with a copy of cfg.
func FromConfig(cfg launch.Config) *Builder {
	return &Builder{
		launch: launch.From(cfg),
		policy: DefaultExitPolicy(),
		router: NewRouter(),
	}
}

// Launch applies launch settings.
func (b *Builder) Launch(fn func(*launch.Builder)) *Builder {
	fn(b.launch)
	return b
}

// Arguments sets the argument string.
func (b *Builder) Arguments(args string) *Builder {
	b.launch.Arguments(args)
	return b
}

// Environment sets one child environment variable.
func (b *Builder) Environment(name, value string) *Builder {
	b.launch.SetEnvironmentVariable(name, value)
	return b
}

// ValidExitCodes replaces the exit policy.
func (b *Builder) ValidExitCodes(codes ...int) *Builder {
	p, err := NewExitPolicy(codes...)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	b.policy = p
	return b
}

// SkipExitCodeCheck disables exit code verification.
func (b *Builder) SkipExitCodeCheck() *Builder {
	b.policy = nil
	return b
}

// LogTo enables the default logging on sink. See Router.LogTo.
func (b *Builder) LogTo(sink logging.Sink) *Builder {
	b.router.LogTo(sink)
	return b
}

// Router exposes the router for fine-grained settings.
func (b *Builder) Router(fn func(*Router)) *Builder {
	fn(b.router)
	return b
}

// UseRouter replaces the router.
func (b *Builder) UseRouter(r *Router) *Builder {
	b.router = r
	return b
}

// OnOutput adds a stdout handler.
func (b *Builder) OnOutput(h OutputHandler) *Builder {
	b.router.AddOutputReceivedHandler(h)
	return b
}

// OnError adds a stderr handler.
func (b *Builder) OnError(h OutputHandler) *Builder {
	b.router.AddErrorReceivedHandler(h)
	return b
}

// Options sets controller options.
func (b *Builder) Options(opts Options) *Builder {
	b.opts = opts
	return b
}

// Controller builds a controller without starting it.
func (b *Builder) Controller() (*Controller, error) {
	if b.err != nil {
		return nil, b.err
	}
	cfg, err := b.launch.Build()
	if err != nil {
		return nil, err
	}
	opts := b.opts
	return NewController(cfg, b.policy, b.router, &opts)
}

// Run runs the process to completion.
func (b *Builder) Run() (int, error) {
	return b.RunContext(context.Background())
}

// RunContext runs the process with a cancellable wait.
func (b *Builder) RunContext(ctx context.Context) (int, error) {
	c, err := b.Controller()
	if err != nil {
		return -1, err
	}
	defer c.Close()
	return runController(ctx, c)
}
