package launch

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrInvalidArgument is returned for empty or malformed launch settings.
var ErrInvalidArgument = errors.New("invalid argument")

// WindowStyle controls how the child's main window is shown.
type WindowStyle int

// Window styles. Only Hidden has an effect, and only on Windows.
const (
	WindowNormal WindowStyle = iota
	WindowHidden
	WindowMinimized
	WindowMaximized
)

func (s WindowStyle) String() string {
	switch s {
	case WindowNormal:
		return "normal"
	case WindowHidden:
		return "hidden"
	case WindowMinimized:
		return "minimized"
	case WindowMaximized:
		return "maximized"
	default:
		return fmt.Sprintf("WindowStyle(%d)", int(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *WindowStyle) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "normal":
		*s = WindowNormal
	case "hidden":
		*s = WindowHidden
	case "minimized":
		*s = WindowMinimized
	case "maximized":
		*s = WindowMaximized
	default:
		return fmt.Errorf("%w: unknown window style %q", ErrInvalidArgument, text)
	}
	return nil
}

// Config is a snapshot of everything needed to spawn one child process.
// Obtain one from Builder.Build; copies made with Clone never share
// mutable state.
type Config struct {
	Path             string
	Arguments        string
	ArgumentList     []string
	WorkingDirectory string

	// CreateNoWindow and WindowStyle are honored on Windows only.
	CreateNoWindow bool
	WindowStyle    WindowStyle

	// UseShellExecute runs the command line through the platform shell
	// (/bin/sh -c, or %ComSpec% /C on Windows).
	UseShellExecute bool

	// ErrorDialog and LoadUserProfile are Windows shell concepts with no
	// exec equivalent. They are recorded and otherwise ignored.
	ErrorDialog     bool
	LoadUserProfile bool

	// UserName selects the child's uid/gid on Unix. Domain and Password
	// are not supported on any platform; spawning with them set fails.
	Domain   string
	UserName string
	Password string

	// Stream encodings by WHATWG/IANA name. Empty means UTF-8 passthrough.
	StdoutEncoding string
	StderrEncoding string

	// env is nil until a variable is set or removed; from then on it holds
	// the complete child environment keyed by envKey.
	env map[string]envVar
}

// Clone returns a deep copy. The environment is only copied if it was ever
// materialized, so cloning never enumerates the inherited environment.
func (c Config) Clone() Config {
	out := c
	out.ArgumentList = slices.Clone(c.ArgumentList)
	if c.env != nil {
		out.env = maps.Clone(c.env)
	}
	return out
}

// EnvironmentOverridden reports whether the child gets an explicit
// environment rather than inheriting the parent's.
func (c Config) EnvironmentOverridden() bool {
	return c.env != nil
}

// Environment returns the explicit child environment, or nil when the
// parent environment is inherited unchanged.
func (c Config) Environment() map[string]string {
	if c.env == nil {
		return nil
	}
	out := make(map[string]string, len(c.env))
	for _, v := range c.env {
		out[v.name] = v.value
	}
	return out
}

// LookupEnvironment returns an explicitly set variable.
func (c Config) LookupEnvironment(name string) (string, bool) {
	v, ok := c.env[envKey(name)]
	return v.value, ok
}

// CommandLine returns the argument string as it appears in log messages.
func (c Config) CommandLine() string {
	if len(c.ArgumentList) > 0 {
		return joinArguments(c.ArgumentList)
	}
	return strings.TrimSpace(c.Arguments)
}

// Validate checks the invariants that must hold before spawning.
func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: executable path is required", ErrInvalidArgument)
	}
	if c.Arguments != "" && len(c.ArgumentList) > 0 {
		return fmt.Errorf("%w: arguments and argument list are mutually exclusive", ErrInvalidArgument)
	}
	for _, name := range []string{c.StdoutEncoding, c.StderrEncoding} {
		if _, err := lookupEncoding(name); err != nil {
			return err
		}
	}
	return nil
}
