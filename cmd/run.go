package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/proclaunch/internal/api"
	"github.com/smazurov/proclaunch/internal/config"
	"github.com/smazurov/proclaunch/internal/events"
	"github.com/smazurov/proclaunch/internal/logging"
	"github.com/smazurov/proclaunch/internal/metrics"
	"github.com/smazurov/proclaunch/internal/metrics/collectors"
	"github.com/smazurov/proclaunch/internal/metrics/exporters"
	"github.com/smazurov/proclaunch/internal/process"
	"github.com/smazurov/proclaunch/internal/systemd"
)

// RunOptions for the run command - flat structure with toml mapping.
// Precedence is flags, then PROCLAUNCH_* environment, then the config file.
type RunOptions struct {
	Config string `flag:"config"`

	Profile string `toml:"run.profile" env:"PROFILE"`
	Path    string `toml:"run.path" env:"RUN_PATH"`
	Args    string `toml:"run.args" env:"RUN_ARGS"`

	Watch      bool          `toml:"run.watch" env:"WATCH"`
	WatchPaths []string      `toml:"run.watch_paths" env:"WATCH_PATHS"`
	Debounce   time.Duration `toml:"run.debounce" env:"DEBOUNCE"`
	TailLines  int           `toml:"run.tail_lines" env:"TAIL_LINES"`

	APIAddr     string `flag:"api-addr" toml:"api.addr" env:"API_ADDR"`
	APIUsername string `flag:"api-username" toml:"api.username" env:"API_USERNAME"`
	APIPassword string `flag:"api-password" toml:"api.password" env:"API_PASSWORD"`
	APIOrigin   string `flag:"api-cors-origin" toml:"api.cors_origin" env:"API_CORS_ORIGIN"`

	MetricsFile string `toml:"metrics.textfile" env:"METRICS_TEXTFILE"`

	LogLevel  string `flag:"log-level" env:"LOG_LEVEL"`
	LogFormat string `flag:"log-format" env:"LOG_FORMAT"`
}

// ExitStatusError carries the status the binary should exit with.
type ExitStatusError struct {
	Code int
	Err  error
}

func (e *ExitStatusError) Error() string { return e.Err.Error() }
func (e *ExitStatusError) Unwrap() error { return e.Err }

// CreateRunCmd returns the run command.
func CreateRunCmd() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [--profile FILE | -- PATH [ARGS...]]",
		Short: "Launch a process, route its output and verify its exit code",
		Long: `Starts the process described by a profile (or given after --), routes
stdout and stderr to the log and checks the exit code against the
profile's valid codes.

With --watch or --api-addr proclaunch stays up after the run: it runs again
when the profile changes or when a run is requested over HTTP.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadConfig(opts, cmd); err != nil {
				return err
			}
			return runProcess(cmd.Context(), opts, args, cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Config, "config", "c", "proclaunch.toml", "Path to configuration file")
	f.StringVarP(&opts.Profile, "profile", "p", "", "Launch profile (TOML)")
	f.StringVar(&opts.Path, "path", "", "Override the executable path")
	f.StringVar(&opts.Args, "args", "", "Override the argument string")
	f.BoolVarP(&opts.Watch, "watch", "w", false, "Run again when the profile or a watched path changes")
	f.StringSliceVar(&opts.WatchPaths, "watch-paths", nil, "Extra files that trigger a rerun")
	f.DurationVar(&opts.Debounce, "debounce", 500*time.Millisecond, "Quiet period before a change triggers a rerun")
	f.IntVar(&opts.TailLines, "tail-lines", 20, "Child log lines to print when a run fails")
	f.StringVar(&opts.APIAddr, "api-addr", "", "Serve the status API on this address")
	f.StringVar(&opts.APIUsername, "api-username", "", "Basic auth username for the status API")
	f.StringVar(&opts.APIPassword, "api-password", "", "Basic auth password for the status API")
	f.StringVar(&opts.APIOrigin, "api-cors-origin", "", "Origin allowed to call the status API from a browser (\"*\" for any)")
	f.StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	f.StringVar(&opts.LogLevel, "log-level", "", "Global logging level (trace, debug, info, warn, error)")
	f.StringVar(&opts.LogFormat, "log-format", "", "Logging format (text, json)")
	return cmd
}

// resolveProfile loads a profile file, or builds one from a command line.
func resolveProfile(path string, args []string) (*config.Profile, error) {
	switch {
	case path != "" && len(args) > 0:
		return nil, fmt.Errorf("%w: use either --profile or a command, not both", config.ErrInvalidProfile)
	case path != "":
		return config.LoadProfile(path)
	case len(args) > 0:
		p := config.DefaultProfile()
		p.Command.Path = args[0]
		if len(args) > 1 {
			p.Command.ArgumentList = args[1:]
		}
		return &p, p.Validate()
	default:
		return nil, fmt.Errorf("%w: a profile or a command is required", config.ErrInvalidProfile)
	}
}

func runProcess(ctx context.Context, opts *RunOptions, args []string, stderr io.Writer) error {
	if opts.Watch && opts.Profile == "" {
		return errors.New("--watch requires --profile")
	}

	logCfg := config.LoadLoggingConfig(opts.Config)
	if opts.LogLevel != "" {
		logCfg.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		logCfg.Format = opts.LogFormat
	}
	logging.Initialize(logCfg)
	logger := logging.GetLogger("main")

	profile, err := resolveProfile(opts.Profile, args)
	if err != nil {
		return err
	}

	bus := events.New()
	collector := collectors.NewProcessCollector(bus)
	if startErr := collector.Start(ctx); startErr != nil {
		logger.Warn("Failed to start process collector", "error", startErr)
	}
	defer collector.Stop()

	notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
	notifier.StartWatchdog(ctx)
	defer notifier.Stopping()

	overrides := process.Overrides{Path: opts.Path, Arguments: opts.Args}
	sink := logging.NewSlogSink(logging.GetLogger("child"))
	build := func(p *config.Profile) (*process.Controller, error) {
		cfg, cfgErr := p.LaunchConfig()
		if cfgErr != nil {
			return nil, cfgErr
		}
		policy, policyErr := p.ExitPolicy()
		if policyErr != nil {
			return nil, policyErr
		}
		return process.NewController(overrides.Apply(cfg), policy, p.Router(sink), &process.Options{
			Bus: bus,
			OnStateChange: func(runID string, _, newState process.State) {
				notifier.Status("%s: %s", runID, newState)
			},
		})
	}

	loop := newRunLoop(build, logging.GetLogger("runloop"))
	if err := loop.load(profile); err != nil {
		return err
	}

	if opts.Watch {
		watcher := config.NewWatcher(opts.Profile, config.LoadProfile, logging.GetLogger("config"),
			config.WithDebounce[*config.Profile](opts.Debounce),
			config.WithExtraPaths[*config.Profile](opts.WatchPaths...),
			config.WithErrorHandler[*config.Profile](func(err error) {
				logger.Error("Profile reload failed, keeping previous", "error", err)
			}),
		)
		watcher.OnReload(loop.Reload)
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("failed to watch profile: %w", err)
		}
		defer watcher.Stop()
	}

	if opts.APIAddr != "" {
		server := api.NewServer(&api.Options{
			AuthUsername:      opts.APIUsername,
			AuthPassword:      opts.APIPassword,
			Process:           loop,
			EventBus:          bus,
			RequestRun:        loop.RequestRun,
			PrometheusHandler: exporters.HTTPHandler(),
			CORSOrigin:        opts.APIOrigin,
		})
		go func() {
			if err := server.Start(opts.APIAddr); err != nil {
				logger.Error("API server failed", "error", err)
			}
		}()
		defer server.Stop()
	}

	notifier.Ready()
	code, runErr := loop.Run(ctx, opts.Watch || opts.APIAddr != "")

	if opts.MetricsFile != "" {
		if err := exporters.WriteTextfile(opts.MetricsFile); err != nil {
			logger.Warn("Failed to write metrics file", "path", opts.MetricsFile, "error", err)
		}
	}

	if runErr == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(runErr, ctx.Err()) {
		logger.Info("Interrupted, child left running", "pid", loop.Info().PID)
		return &ExitStatusError{Code: 130, Err: runErr}
	}

	printFailure(stderr, loop.Config().Path, opts.TailLines)
	var exitErr *process.ExitCodeError
	if errors.As(runErr, &exitErr) {
		return &ExitStatusError{Code: exitStatus(code), Err: runErr}
	}
	return &ExitStatusError{Code: 1, Err: runErr}
}

// exitStatus maps a rejected child exit code onto a failing status.
func exitStatus(code int) int {
	if code <= 0 || code > 255 {
		return 1
	}
	return code
}

// printFailure writes the run summary and the last child log lines.
func printFailure(w io.Writer, path string, tail int) {
	if s := metrics.GetRunSummary(path); s != nil {
		fmt.Fprintf(w, "%s: %d run(s), last exit code %d after %s\n", path, s.Starts, s.ExitCode, s.Duration.Round(time.Millisecond))
	}

	buffer := logging.GetBuffer()
	if buffer == nil || tail <= 0 {
		return
	}
	var lines []string
	for _, entry := range buffer.ReadAll() {
		if entry.Module == "child" {
			lines = append(lines, logging.FormatLogLine(entry))
		}
	}
	if len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, "last %d line(s) of output:\n", len(lines))
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
