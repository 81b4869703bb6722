// Package logx prints severity-gated, name-prefixed log lines:
//
//	[core] base period set to: 10000 ms
//
// A nil *Logger discards everything, so callers never need to guard.
package logx

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"sensornode-go/types"
	"sensornode-go/x/fmtx"
)

// Output is the default sink for new loggers (stdout on host, a UART on MCU).
var Output io.Writer = os.Stdout

// one writer shared by every logger so lines never interleave
var outMu sync.Mutex

type Logger struct {
	name string
	sev  atomic.Uint32
	out  io.Writer
}

func New(name string, sev types.Severity) *Logger {
	l := &Logger{name: name}
	l.sev.Store(uint32(sev))
	return l
}

// NewTo is New with an explicit sink.
func NewTo(w io.Writer, name string, sev types.Severity) *Logger {
	l := New(name, sev)
	l.out = w
	return l
}

func (l *Logger) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

func (l *Logger) SetSeverity(s types.Severity) {
	if l != nil {
		l.sev.Store(uint32(s))
	}
}

func (l *Logger) Severity() types.Severity {
	if l == nil {
		return types.SevNone
	}
	return types.Severity(l.sev.Load())
}

// Enabled reports whether a line at s would be printed.
func (l *Logger) Enabled(s types.Severity) bool {
	return l != nil && s != types.SevNone && s <= l.Severity()
}

func (l *Logger) Errorf(format string, args ...any) { l.logf(types.SevError, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(types.SevInfo, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.logf(types.SevDebug, format, args...) }

// Printf ignores severity. Used for command replies and boot banners.
func (l *Logger) Printf(format string, args ...any) {
	if l != nil {
		l.write(format, args...)
	}
}

func (l *Logger) logf(s types.Severity, format string, args ...any) {
	if !l.Enabled(s) {
		return
	}
	l.write(format, args...)
}

func (l *Logger) write(format string, args ...any) {
	w := l.out
	if w == nil {
		w = Output
	}
	outMu.Lock()
	io.WriteString(w, "["+l.name+"] ")
	fmtx.Fprintf(w, format, args...)
	io.WriteString(w, "\n")
	outMu.Unlock()
}
