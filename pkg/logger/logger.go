package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options controls where and how log lines are written.
type Options struct {
	Level string // debug, info, warn, error
	File  string // empty means stderr
	JSON  bool
}

var (
	mu   sync.RWMutex
	base = newLogger(os.Stderr, zerolog.InfoLevel, false)
	out  io.Closer
)

func newLogger(w io.Writer, level zerolog.Level, json bool) zerolog.Logger {
	if !json {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: w != os.Stderr}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Init replaces the process logger. Call it once from main before any component logs.
func Init(opts Options) error {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	var w io.Writer = os.Stderr
	var closer io.Closer
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return err
		}
		w, closer = f, f
	}

	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		_ = out.Close()
	}
	base = newLogger(w, level, opts.JSON || opts.File != "")
	out = closer
	return nil
}

// SetOutput points the logger at w. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

// Close flushes and closes the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		_ = out.Close()
		out = nil
	}
}

func event(level zerolog.Level, component, msg string, fields map[string]any) {
	mu.RLock()
	l := base
	mu.RUnlock()

	e := l.WithLevel(level)
	if e == nil {
		return
	}
	if component != "" {
		e = e.Str("component", component)
	}
	if len(fields) > 0 {
		e = e.Fields(fields)
	}
	e.Msg(msg)
}

func DebugCF(component, msg string, fields map[string]any) {
	event(zerolog.DebugLevel, component, msg, fields)
}

func InfoCF(component, msg string, fields map[string]any) {
	event(zerolog.InfoLevel, component, msg, fields)
}

func WarnCF(component, msg string, fields map[string]any) {
	event(zerolog.WarnLevel, component, msg, fields)
}

func ErrorCF(component, msg string, fields map[string]any) {
	event(zerolog.ErrorLevel, component, msg, fields)
}

func InfoC(component, msg string) {
	event(zerolog.InfoLevel, component, msg, nil)
}

func DebugC(component, msg string) {
	event(zerolog.DebugLevel, component, msg, nil)
}
