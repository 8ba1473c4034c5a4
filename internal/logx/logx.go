// Package logx is a small structured logger used across elixir's
// components. It follows the call shape of the teacher's own logging
// package (key/value pairs after a message, leveled output):
//
//	logx.Info("collecting blobs done", "tag", tag, "newBlobs", n)
package logx

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelCrit
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelCrit:
		return "CRIT"
	default:
		return "????"
	}
}

var levelColor = map[Level]*color.Color{
	LevelDebug: color.New(color.FgHiBlack),
	LevelInfo:  color.New(color.FgGreen),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed),
	LevelCrit:  color.New(color.FgHiRed, color.Bold),
}

// Logger writes leveled, structured, key/value log lines to an output
// stream. It is safe for concurrent use by the update pipeline's
// partitioned workers.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	color    bool
	minLevel Level
	ctx      []interface{}
}

var std = New(os.Stderr)

// New wraps w as the destination stream, auto-detecting whether it is a
// color-capable terminal the way the teacher's cmd/rpcdaemon binaries do
// via mattn/go-isatty + mattn/go-colorable.
func New(w io.Writer) *Logger {
	useColor := false
	out := w
	if f, ok := w.(*os.File); ok {
		if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
			useColor = true
			out = colorable.NewColorable(f)
		}
	}
	return &Logger{out: out, color: useColor, minLevel: LevelDebug}
}

// With returns a child logger carrying ctx as a prefix to every record,
// e.g. a per-Query correlation id.
func (l *Logger) With(ctx ...interface{}) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	merged := make([]interface{}, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return &Logger{out: l.out, color: l.color, minLevel: l.minLevel, ctx: merged}
}

func (l *Logger) SetMinLevel(lvl Level) { l.minLevel = lvl }

func (l *Logger) log(lvl Level, msg string, kv []interface{}) {
	if lvl < l.minLevel {
		return
	}
	call := stack.Caller(2)

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	lvlStr := lvl.String()
	if l.color {
		lvlStr = levelColor[lvl].Sprint(lvlStr)
	}
	fmt.Fprintf(l.out, "%s [%s] %s", ts, lvlStr, msg)

	all := make([]interface{}, 0, len(l.ctx)+len(kv))
	all = append(all, l.ctx...)
	all = append(all, kv...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(l.out, " %v=%v", all[i], all[i+1])
	}
	fmt.Fprintf(l.out, " caller=%s\n", call)
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(LevelDebug, msg, kv) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.log(LevelInfo, msg, kv) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.log(LevelWarn, msg, kv) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(LevelError, msg, kv) }
func (l *Logger) Crit(msg string, kv ...interface{})  { l.log(LevelCrit, msg, kv) }

// Package-level convenience functions mirror the teacher's top-level
// log.Info/log.Error/... calls used throughout eth/stagedsync and cmd/.
func Debug(msg string, kv ...interface{}) { std.log(LevelDebug, msg, kv) }
func Info(msg string, kv ...interface{})  { std.log(LevelInfo, msg, kv) }
func Warn(msg string, kv ...interface{})  { std.log(LevelWarn, msg, kv) }
func Error(msg string, kv ...interface{}) { std.log(LevelError, msg, kv) }
func Crit(msg string, kv ...interface{})  { std.log(LevelCrit, msg, kv) }

func SetOutput(w io.Writer) { std = New(w) }

// With returns a child of the package-level default logger carrying ctx
// as a prefix to every record it writes.
func With(ctx ...interface{}) *Logger { return std.With(ctx...) }
