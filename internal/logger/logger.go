// Package logger provides process-wide logging for the specfrag CLI.
// It wraps a zap logger behind a small printf-style API. When verbose mode
// is enabled via the --verbose flag, debug messages are printed to stderr
// to help users understand the research pipeline.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Config selects the logger level and encoding.
type Config struct {
	// Level is one of debug, info, warn, error. Empty means warn.
	Level string

	// Format is console or json. Empty selects console when stderr is a
	// terminal and json otherwise.
	Format string
}

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	config            = Config{Level: "warn"}
	level             = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	base              = build()
	sugar             = base.WithOptions(zap.AddCallerSkip(1)).Sugar()
)

// Init applies a configuration. It may be called again to reconfigure.
func Init(c Config) error {
	lvl, err := parseLevel(c.Level)
	if err != nil {
		return err
	}
	if c.Format != "" && c.Format != "console" && c.Format != "json" {
		return fmt.Errorf("unknown log format %q", c.Format)
	}

	mu.Lock()
	defer mu.Unlock()
	config = c
	if !verbose {
		level.SetLevel(lvl)
	}
	rebuild()
	return nil
}

// SetVerbose enables or disables verbose logging.
// Verbose mode lowers the level to debug; disabling restores the configured level.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	if v {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	lvl, err := parseLevel(config.Level)
	if err != nil {
		lvl = zapcore.WarnLevel
	}
	level.SetLevel(lvl)
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

// Named returns a structured logger for a component.
func Named(component string) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.Named(component)
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

// Debug logs a debug message. Shown only in verbose mode or at debug level.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	sugar.Debugf(format, args...)
}

// Info logs an informational message.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	sugar.Infof(format, args...)
}

// Warn logs a warning message.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	sugar.Warnf(format, args...)
}

// Error logs an error message.
func Error(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	sugar.Errorf(format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// rebuild must be called with mu held.
func rebuild() {
	base = build()
	sugar = base.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func build() *zap.Logger {
	var encoder zapcore.Encoder
	if useConsole() {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(output)), level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

func useConsole() bool {
	switch config.Format {
	case "console":
		return true
	case "json":
		return false
	}
	f, ok := output.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func parseLevel(s string) (zapcore.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zapcore.WarnLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zapcore.WarnLevel, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}
