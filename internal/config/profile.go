package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/proclaunch/internal/launch"
	"github.com/smazurov/proclaunch/internal/logging"
	"github.com/smazurov/proclaunch/internal/process"
)

// ErrInvalidProfile is returned for profiles that cannot be launched.
var ErrInvalidProfile = errors.New("invalid profile")

// Profile is a launch description stored as TOML.
type Profile struct {
	Command     CommandSection    `toml:"command"`
	Environment map[string]string `toml:"environment"`
	Unset       []string          `toml:"unset"`
	Exit        ExitSection       `toml:"exit"`
	Output      OutputSection     `toml:"output"`
}

// CommandSection holds the [command] table.
type CommandSection struct {
	Path             string             `toml:"path"`
	Args             string             `toml:"args"`
	ArgumentList     []string           `toml:"argument_list"`
	WorkingDirectory string             `toml:"working_directory"`
	UseShellExecute  bool               `toml:"use_shell_execute"`
	CreateNoWindow   bool               `toml:"create_no_window"`
	WindowStyle      launch.WindowStyle `toml:"window_style"`
	ErrorDialog      bool               `toml:"error_dialog"`
	LoadUserProfile  bool               `toml:"load_user_profile"`
	Domain           string             `toml:"domain"`
	UserName         string             `toml:"user_name"`
	Password         string             `toml:"password"`
	StdoutEncoding   string             `toml:"stdout_encoding"`
	StderrEncoding   string             `toml:"stderr_encoding"`
}

// ExitSection holds the [exit] table. Without valid_codes only 0 is
// accepted; verify = false accepts every code.
type ExitSection struct {
	ValidCodes []int `toml:"valid_codes"`
	Verify     bool  `toml:"verify"`
}

// OutputSection holds the [output] table.
type OutputSection struct {
	Stdout         logging.Level    `toml:"stdout"`
	StdoutBehavior process.Behavior `toml:"stdout_behavior"`
	Stderr         logging.Level    `toml:"stderr"`
	StderrBehavior process.Behavior `toml:"stderr_behavior"`
	LogExit        bool             `toml:"log_exit"`
	ExitValid      logging.Level    `toml:"exit_valid"`
	ExitInvalid    logging.Level    `toml:"exit_invalid"`
}

// DefaultProfile returns the values used for keys a profile leaves out.
func DefaultProfile() Profile {
	return Profile{
		Exit: ExitSection{Verify: true},
		Output: OutputSection{
			Stdout:         logging.LevelInformation,
			StdoutBehavior: process.BehaviorPerLine,
			Stderr:         logging.LevelError,
			StderrBehavior: process.BehaviorPerLine,
			LogExit:        true,
			ExitValid:      logging.LevelInformation,
			ExitInvalid:    logging.LevelError,
		},
	}
}

// LoadProfile reads and validates a profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes a profile from TOML.
func ParseProfile(data []byte) (*Profile, error) {
	p := DefaultProfile()
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the settings that do not depend on the host.
func (p *Profile) Validate() error {
	if p.Command.Path == "" {
		return fmt.Errorf("%w: command.path is required", ErrInvalidProfile)
	}
	if p.Command.Args != "" && len(p.Command.ArgumentList) > 0 {
		return fmt.Errorf("%w: command.args and command.argument_list are mutually exclusive", ErrInvalidProfile)
	}
	if p.Exit.Verify && p.Exit.ValidCodes != nil && len(p.Exit.ValidCodes) == 0 {
		return fmt.Errorf("%w: exit.valid_codes must not be empty", ErrInvalidProfile)
	}
	return nil
}

// LaunchBuilder returns a launch builder with the [command] and
// [environment] settings applied.
func (p *Profile) LaunchBuilder() *launch.Builder {
	c := p.Command
	b := launch.New().
		Path(c.Path).
		WorkingDirectory(c.WorkingDirectory).
		UseShellExecute(c.UseShellExecute).
		CreateNoWindow(c.CreateNoWindow).
		WindowStyle(c.WindowStyle).
		ErrorDialog(c.ErrorDialog).
		LoadUserProfile(c.LoadUserProfile).
		Domain(c.Domain).
		UserName(c.UserName).
		Password(c.Password).
		StdoutEncoding(c.StdoutEncoding).
		StderrEncoding(c.StderrEncoding)
	if c.Args != "" {
		b.Arguments(c.Args)
	}
	if len(c.ArgumentList) > 0 {
		b.ArgumentList(c.ArgumentList...)
	}

	names := make([]string, 0, len(p.Environment))
	for name := range p.Environment {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.SetEnvironmentVariable(name, p.Environment[name])
	}
	for _, name := range p.Unset {
		b.RemoveEnvironmentVariable(name)
	}
	return b
}

// LaunchConfig builds the launch configuration.
func (p *Profile) LaunchConfig() (launch.Config, error) {
	return p.LaunchBuilder().Build()
}

// ExitPolicy builds the exit policy; nil when verification is off.
func (p *Profile) ExitPolicy() (*process.ExitPolicy, error) {
	if !p.Exit.Verify {
		return nil, nil
	}
	if p.Exit.ValidCodes == nil {
		return process.DefaultExitPolicy(), nil
	}
	return process.NewExitPolicy(p.Exit.ValidCodes...)
}

// Router builds the output router logging to sink.
func (p *Profile) Router(sink logging.Sink) *process.Router {
	o := p.Output
	return process.NewRouter().
		SetSink(sink).
		SetStreamLogging(process.Stdout, process.StreamLogging{Behavior: o.StdoutBehavior, Level: o.Stdout}).
		SetStreamLogging(process.Stderr, process.StreamLogging{Behavior: o.StderrBehavior, Level: o.Stderr}).
		SetExitLogging(process.ExitLogging{Enabled: o.LogExit, Valid: o.ExitValid, Invalid: o.ExitInvalid})
}

// Builder returns a process builder for the whole profile.
func (p *Profile) Builder(sink logging.Sink) (*process.Builder, error) {
	cfg, err := p.LaunchConfig()
	if err != nil {
		return nil, err
	}
	policy, err := p.ExitPolicy()
	if err != nil {
		return nil, err
	}

	b := process.FromConfig(cfg)
	if policy == nil {
		b.SkipExitCodeCheck()
	} else {
		b.ValidExitCodes(policy.Codes()...)
	}
	return b.UseRouter(p.Router(sink)), nil
}
