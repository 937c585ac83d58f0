package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level is the severity attached to messages sent to a Sink.
type Level int

// Sink levels, lowest to highest.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInformation
	LevelWarning
	LevelError
	LevelCritical
)

// slog has no trace or critical levels; these sit one step outside the
// built-in range so handlers still order them correctly.
const (
	slogLevelTrace    = slog.LevelDebug - 4
	slogLevelCritical = slog.LevelError + 4
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInformation:
		return "information"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelCritical:
		return "critical"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Slog maps the level onto the slog scale.
func (l Level) Slog() slog.Level {
	switch l {
	case LevelTrace:
		return slogLevelTrace
	case LevelDebug:
		return slog.LevelDebug
	case LevelInformation:
		return slog.LevelInfo
	case LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelCritical:
		return slogLevelCritical
	default:
		return slog.LevelInfo
	}
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l >= LevelTrace && l <= LevelCritical
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid log level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel accepts the level names plus the short forms used in config
// files (info, warn, crit, fatal).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info", "information":
		return LevelInformation, nil
	case "warn", "warning":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "crit", "critical", "fatal":
		return LevelCritical, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// slogLevelName renders the extra levels by name instead of "DEBUG-4".
func slogLevelName(level slog.Level) string {
	switch {
	case level <= slogLevelTrace:
		return "TRACE"
	case level >= slogLevelCritical:
		return "CRITICAL"
	default:
		return level.String()
	}
}
