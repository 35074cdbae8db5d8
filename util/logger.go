// Package util holds the small helpers every streamsock layer shares:
// the levelled logger, the read-buffer pool and address checks.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// sink is the destination shared by a Logger and everything derived
// from it with With.
type sink struct {
	mu         sync.Mutex
	w          io.Writer
	timestamps bool
}

// Logger writes "[TAG] message" lines.  Errors always print; other
// levels print when the verbosity allows.
type Logger struct {
	level  LogLevel
	prefix string
	out    *sink
}

// NewLogger returns a Logger writing to stderr at the given verbosity
// (0 quiet, 1 normal, 2 verbose, 3 debug).  Debug turns timestamps on.
func NewLogger(verbosity int) *Logger {
	return &Logger{
		level: LogLevel(verbosity),
		out:   &sink{w: os.Stderr, timestamps: verbosity >= int(LogDebug)},
	}
}

// With returns a Logger that tags every line with prefix, after any
// prefix l already has.
func (l *Logger) With(prefix string) *Logger {
	if l.prefix != "" {
		prefix = l.prefix + " " + prefix
	}
	return &Logger{level: l.level, prefix: prefix, out: l.out}
}

// SetOutput redirects l and every Logger derived from it.
func (l *Logger) SetOutput(w io.Writer) {
	l.out.mu.Lock()
	l.out.w = w
	l.out.mu.Unlock()
}

func (l *Logger) Level() LogLevel { return l.level }

func (l *Logger) Error(format string, args ...any)   { l.logf(LogQuiet, "ERR", format, args) }
func (l *Logger) Warn(format string, args ...any)    { l.logf(LogNormal, "WRN", format, args) }
func (l *Logger) Info(format string, args ...any)    { l.logf(LogNormal, "INF", format, args) }
func (l *Logger) Verbose(format string, args ...any) { l.logf(LogVerbose, "VRB", format, args) }
func (l *Logger) Debug(format string, args ...any)   { l.logf(LogDebug, "DBG", format, args) }

func (l *Logger) logf(at LogLevel, tag, format string, args []any) {
	if l.level < at {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		msg = l.prefix + " " + msg
	}

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if l.out.timestamps {
		fmt.Fprintf(l.out.w, "%s [%s] %s\n", time.Now().Format("15:04:05.000"), tag, msg)
		return
	}
	fmt.Fprintf(l.out.w, "[%s] %s\n", tag, msg)
}
