// Package logging adapts log/slog to the hub's two-method log sink.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger is the log capability. Log is the default form, Error the error
// severity form.
type Logger interface {
	Log(args ...any)
	Error(args ...any)
}

// New returns a Logger backed by l, or by slog.Default when l is nil.
//
// Non-attribute arguments are joined into the record message; slog.Attr
// arguments are attached as attributes.
func New(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{logger: l}
}

type slogLogger struct {
	logger *slog.Logger
}

func (s *slogLogger) Log(args ...any) {
	s.emit(slog.LevelInfo, args)
}

func (s *slogLogger) Error(args ...any) {
	s.emit(slog.LevelError, args)
}

func (s *slogLogger) emit(level slog.Level, args []any) {
	ctx := context.Background()
	if !s.logger.Enabled(ctx, level) {
		return
	}
	msg, attrs := split(args)
	s.logger.LogAttrs(ctx, level, msg, attrs...)
}

func split(args []any) (string, []slog.Attr) {
	var parts []string
	var attrs []slog.Attr
	for _, arg := range args {
		switch a := arg.(type) {
		case slog.Attr:
			attrs = append(attrs, a)
		case error:
			parts = append(parts, a.Error())
		default:
			parts = append(parts, fmt.Sprint(a))
		}
	}
	return strings.Join(parts, " "), attrs
}

// Func adapts a pair of functions to Logger. A nil field is a no-op.
type Func struct {
	LogFn   func(args ...any)
	ErrorFn func(args ...any)
}

func (f Func) Log(args ...any) {
	if f.LogFn != nil {
		f.LogFn(args...)
	}
}

func (f Func) Error(args ...any) {
	if f.ErrorFn != nil {
		f.ErrorFn(args...)
	}
}

// Discard drops everything.
var Discard Logger = Func{}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else is
// info.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// NewHandler builds a json or text slog handler.
func NewHandler(format, level string, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
