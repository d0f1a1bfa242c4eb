// Package logs implements a small leveled-logging backend, in the shape of
// the subsystem loggers used throughout the daemon. It predates and is
// independent of the standard library's slog; packages obtain a Logger from
// logger.Get rather than constructing one directly.
package logs

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Level is a logging severity.
type Level uint32

// Severity levels, lowest to highest.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

var levelStrings = map[Level]string{
	LevelTrace:    "TRC",
	LevelDebug:    "DBG",
	LevelInfo:     "INF",
	LevelWarn:     "WRN",
	LevelError:    "ERR",
	LevelCritical: "CRT",
	LevelOff:      "OFF",
}

// LevelFromString parses a level name, defaulting to LevelInfo on failure.
func LevelFromString(s string) (Level, bool) {
	switch s {
	case "trace":
		return LevelTrace, true
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	case "critical":
		return LevelCritical, true
	case "off":
		return LevelOff, true
	}
	return LevelInfo, false
}

// BackendWriter pairs an io.Writer with the minimum level it accepts.
type BackendWriter struct {
	w        io.Writer
	minLevel Level
}

// NewAllLevelsBackendWriter accepts every level.
func NewAllLevelsBackendWriter(w io.Writer) *BackendWriter {
	return &BackendWriter{w: w, minLevel: LevelTrace}
}

// NewErrorBackendWriter accepts LevelError and above only.
func NewErrorBackendWriter(w io.Writer) *BackendWriter {
	return &BackendWriter{w: w, minLevel: LevelError}
}

// Backend multiplexes subsystem loggers onto a shared set of writers.
type Backend struct {
	mtx     sync.Mutex
	writers []*BackendWriter
	closed  bool
}

// NewBackend creates a Backend writing to the given writers.
func NewBackend(writers []*BackendWriter) *Backend {
	return &Backend{writers: writers}
}

// Logger returns a subsystem-tagged Logger bound to this backend.
func (b *Backend) Logger(subsystem string) Logger {
	return Logger{backend: b, tag: subsystem, level: &levelBox{level: LevelInfo}}
}

// Close stops accepting writes. Safe to call multiple times.
func (b *Backend) Close() error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.closed = true
	return nil
}

func (b *Backend) write(level Level, line string) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.closed {
		return
	}
	for _, bw := range b.writers {
		if level >= bw.minLevel {
			fmt.Fprint(bw.w, line)
		}
	}
}

type levelBox struct {
	mtx   sync.RWMutex
	level Level
}

func (l *levelBox) get() Level {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	return l.level
}

func (l *levelBox) set(level Level) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.level = level
}

// Logger is a subsystem-tagged front end onto a shared Backend.
type Logger struct {
	backend *Backend
	tag     string
	level   *levelBox
}

// Backend returns the logger's backend, for shutdown sequencing.
func (l Logger) Backend() *Backend { return l.backend }

// Level returns the logger's current minimum level.
func (l Logger) Level() Level { return l.level.get() }

// SetLevel changes the logger's minimum level.
func (l Logger) SetLevel(level Level) { l.level.set(level) }

func (l Logger) log(level Level, format string, args []interface{}) {
	if level < l.level.get() {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	line := fmt.Sprintf("%s [%s] %s %s\n", time.Now().Format("2006-01-02 15:04:05.000"), levelStrings[level], l.tag, msg)
	l.backend.write(level, line)
}

// Tracef logs at LevelTrace.
func (l Logger) Tracef(format string, args ...interface{}) { l.log(LevelTrace, format, args) }

// Debugf logs at LevelDebug.
func (l Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, format, args) }

// Infof logs at LevelInfo.
func (l Logger) Infof(format string, args ...interface{}) { l.log(LevelInfo, format, args) }

// Warnf logs at LevelWarn.
func (l Logger) Warnf(format string, args ...interface{}) { l.log(LevelWarn, format, args) }

// Errorf logs at LevelError.
func (l Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, format, args) }

// Criticalf logs at LevelCritical.
func (l Logger) Criticalf(format string, args ...interface{}) { l.log(LevelCritical, format, args) }
