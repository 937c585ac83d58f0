package launch

import (
	"fmt"
)

// Builder accumulates launch settings through chained setters.
//
// The first invalid value is recorded and every later setter becomes a
// no-op; the error is reported by Err and Build. Setters called after the
// snapshot has been handed to a controller do not affect that controller.
type Builder struct {
	cfg Config
	err error
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{}
}

// From returns a builder seeded with a copy of prototype.
func From(prototype Config) *Builder {
	return &Builder{cfg: prototype.Clone()}
}

func (b *Builder) set(fn func(*Config)) *Builder {
	if b.err == nil {
		fn(&b.cfg)
	}
	return b
}

func (b *Builder) fail(format string, args ...any) *Builder {
	if b.err == nil {
		b.err = fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
	}
	return b
}

// Path sets the executable path or name (resolved via PATH).
func (b *Builder) Path(path string) *Builder {
	return b.set(func(c *Config) { c.Path = path })
}

// Arguments sets the argument string. It is split with shell-like quoting
// rules at spawn time.
func (b *Builder) Arguments(args string) *Builder {
	return b.set(func(c *Config) { c.Arguments = args })
}

// ArgumentList replaces the argument vector.
func (b *Builder) ArgumentList(args ...string) *Builder {
	return b.set(func(c *Config) { c.ArgumentList = append([]string(nil), args...) })
}

// AddArgument appends one argument to the argument vector.
func (b *Builder) AddArgument(arg string) *Builder {
	return b.set(func(c *Config) { c.ArgumentList = append(c.ArgumentList, arg) })
}

// WorkingDirectory sets the child's working directory.
func (b *Builder) WorkingDirectory(dir string) *Builder {
	return b.set(func(c *Config) { c.WorkingDirectory = dir })
}

// SetEnvironmentVariable sets one variable in the child environment. The
// first call copies the inherited environment.
func (b *Builder) SetEnvironmentVariable(name, value string) *Builder {
	if name == "" {
		return b.fail("environment variable name must not be empty")
	}
	return b.set(func(c *Config) {
		c.materializeEnv()
		c.env[envKey(name)] = envVar{name: name, value: value}
	})
}

// RemoveEnvironmentVariable drops a variable from the child environment.
func (b *Builder) RemoveEnvironmentVariable(name string) *Builder {
	if name == "" {
		return b.fail("environment variable name must not be empty")
	}
	return b.set(func(c *Config) {
		c.materializeEnv()
		delete(c.env, envKey(name))
	})
}

// CreateNoWindow starts console programs without a console window (Windows).
func (b *Builder) CreateNoWindow(v bool) *Builder {
	return b.set(func(c *Config) { c.CreateNoWindow = v })
}

// UseShellExecute runs the command line through the platform shell.
func (b *Builder) UseShellExecute(v bool) *Builder {
	return b.set(func(c *Config) { c.UseShellExecute = v })
}

// ErrorDialog is recorded for compatibility; it has no effect.
func (b *Builder) ErrorDialog(v bool) *Builder {
	return b.set(func(c *Config) { c.ErrorDialog = v })
}

// LoadUserProfile is recorded for compatibility; it has no effect.
func (b *Builder) LoadUserProfile(v bool) *Builder {
	return b.set(func(c *Config) { c.LoadUserProfile = v })
}

// WindowStyle sets the initial window state (Windows, Hidden only).
func (b *Builder) WindowStyle(style WindowStyle) *Builder {
	if style < WindowNormal || style > WindowMaximized {
		return b.fail("unknown window style %d", int(style))
	}
	return b.set(func(c *Config) { c.WindowStyle = style })
}

// Domain sets the credential domain.
func (b *Builder) Domain(domain string) *Builder {
	return b.set(func(c *Config) { c.Domain = domain })
}

// UserName sets the account the child runs as.
func (b *Builder) UserName(name string) *Builder {
	return b.set(func(c *Config) { c.UserName = name })
}

// Password sets the credential password.
func (b *Builder) Password(password string) *Builder {
	return b.set(func(c *Config) { c.Password = password })
}

// StdoutEncoding sets the character encoding of the child's stdout.
func (b *Builder) StdoutEncoding(name string) *Builder {
	if _, err := lookupEncoding(name); err != nil {
		return b.fail("stdout encoding %q is not supported", name)
	}
	return b.set(func(c *Config) { c.StdoutEncoding = name })
}

// StderrEncoding sets the character encoding of the child's stderr.
func (b *Builder) StderrEncoding(name string) *Builder {
	if _, err := lookupEncoding(name); err != nil {
		return b.fail("stderr encoding %q is not supported", name)
	}
	return b.set(func(c *Config) { c.StderrEncoding = name })
}

// Err returns the first configuration error, if any.
func (b *Builder) Err() error {
	return b.err
}

// Build returns an independent snapshot of the accumulated settings.
func (b *Builder) Build() (Config, error) {
	if b.err != nil {
		return Config{}, b.err
	}
	if b.cfg.Arguments != "" && len(b.cfg.ArgumentList) > 0 {
		return Config{}, fmt.Errorf("%w: arguments and argument list are mutually exclusive", ErrInvalidArgument)
	}
	return b.cfg.Clone(), nil
}
