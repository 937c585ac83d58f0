package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

const defaultBufferSize = 500

// Logger is a duck-typed interface satisfied by *slog.Logger.
// Use this interface instead of *slog.Logger to decouple from the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var (
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	globalLevelVar  = &slog.LevelVar{}
	isInitialized   bool
	mutex           sync.RWMutex
	logBuffer                 = NewRingBuffer(defaultBufferSize)
	output          io.Writer = os.Stderr
)

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// Initialize sets up the logging system.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true

	logBuffer = NewRingBuffer(defaultBufferSize)

	globalLevel := parseLevel(config.Level)
	if globalLevel == nil {
		defaultLevel := slog.LevelInfo
		globalLevel = &defaultLevel
	}
	globalLevelVar.Set(*globalLevel)

	// Loggers handed out before Initialize keep their pointer; swap level and handler chain.
	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(module, *globalLevel))
		moduleLoggers[module] = slog.New(createHandler(config.Format, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// SetOutput redirects the console handler. Loggers created afterwards use w.
func SetOutput(w io.Writer) {
	mutex.Lock()
	defer mutex.Unlock()
	output = w
}

// GetBuffer returns the ring buffer holding recent log entries.
func GetBuffer() *RingBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, exists := moduleLoggers[module]; exists {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if isInitialized {
		base := slog.LevelInfo
		if parsed := parseLevel(globalConfig.Level); parsed != nil {
			base = *parsed
		}
		levelVar.Set(moduleLevel(module, base))
		format = globalConfig.Format
	} else {
		levelVar.Set(slog.LevelInfo)
	}

	logger := slog.New(createHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

// moduleLevel resolves the per-module override (must hold lock).
func moduleLevel(module string, fallback slog.Level) slog.Level {
	if levelStr, exists := globalConfig.Modules[module]; exists {
		if parsed := parseLevel(levelStr); parsed != nil {
			return *parsed
		}
	}
	return fallback
}

// createHandler builds the handler chain: console, journal (when available)
// and the history ring buffer (must hold lock).
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(slogLevelName(lvl))
				}
			}
			return a
		},
	}

	var consoleHandler slog.Handler
	if format == "json" {
		consoleHandler = slog.NewJSONHandler(output, opts)
	} else {
		consoleHandler = slog.NewTextHandler(output, opts)
	}

	handlers := []slog.Handler{}
	if output != os.Stderr || isStderrAvailable() {
		handlers = append(handlers, consoleHandler)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(logBuffer, level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// isStderrAvailable checks if stderr is connected to a terminal, pipe, socket, or file.
func isStderrAvailable() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	// /dev/null is a ModeDevice without ModeCharDevice semantics we care about
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

// parseLevel converts a config level name to slog.Level, nil when unknown.
func parseLevel(level string) *slog.Level {
	parsed, err := ParseLevel(level)
	if err != nil {
		return nil
	}
	l := parsed.Slog()
	return &l
}
