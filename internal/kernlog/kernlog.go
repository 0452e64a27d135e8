// Package kernlog provides the kernel's structured logger: plain
// "[ISO-UTC] [LEVEL] message" lines written to stderr and to a per-run
// log file.
//
// Grounded on internal/engine/engine.go's LogManager — a mutex-guarded
// map of open *os.File handles keyed by name, closed once at shutdown.
// Generalized from one file per concern to one rotating kernel log plus
// per-ticket-attempt JSONL logs (see internal/pathkey.AttemptLogPath,
// written directly by internal/harness rather than through this type).
// No logging library appears anywhere in the retrieval pack (every example
// repo logs via plain fmt.Fprintf/log calls), so this stays on the
// standard library rather than reaching for an external one.
package kernlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// nowFunc is replaced in tests for deterministic timestamps.
var nowFunc = time.Now

// Logger writes leveled lines to stderr and an optional run log file.
type Logger struct {
	mu       sync.Mutex
	sinks    []io.Writer
	file     *os.File
	minLevel Level
}

// New creates a Logger writing to stderr and, if runLogPath is non-empty,
// appending to a run log file created (with parents) at that path.
func New(runLogPath string, minLevel Level) (*Logger, error) {
	l := &Logger{sinks: []io.Writer{os.Stderr}, minLevel: minLevel}
	if runLogPath == "" {
		return l, nil
	}
	if err := os.MkdirAll(dirOf(runLogPath), 0o755); err != nil {
		return nil, fmt.Errorf("kernlog: creating log dir: %w", err)
	}
	f, err := os.OpenFile(runLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("kernlog: opening run log %s: %w", runLogPath, err)
	}
	l.file = f
	l.sinks = append(l.sinks, f)
	return l, nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// Close closes the run log file, if one is open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.minLevel {
		return
	}
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("[%s] [%s] %s\n", nowFunc().UTC().Format(time.RFC3339), level, msg)
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.sinks {
		_, _ = io.WriteString(w, line)
	}
}

func (l *Logger) Debugf(format string, args ...any) { l.log(Debug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(Info, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(Warn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(Error, format, args...) }

// With returns a derived Logger that prefixes every message with a
// "component: " tag, without opening a new file handle.
func (l *Logger) With(component string) *Component {
	return &Component{logger: l, prefix: component + ": "}
}

// Component is a Logger bound to a fixed message prefix, e.g. the
// merge queue or a single ticket's harness attempt.
type Component struct {
	logger *Logger
	prefix string
}

func (c *Component) Debugf(format string, args ...any) {
	c.logger.log(Debug, c.prefix+format, args...)
}
func (c *Component) Infof(format string, args ...any) {
	c.logger.log(Info, c.prefix+format, args...)
}
func (c *Component) Warnf(format string, args ...any) {
	c.logger.log(Warn, c.prefix+format, args...)
}
func (c *Component) Errorf(format string, args ...any) {
	c.logger.log(Error, c.prefix+format, args...)
}
