// Package mlog defines the logging interface used throughout the rollup
// sequencer and its standard-library-only GoLogger implementation.
package mlog

import (
	"log"
	"strings"
)

// Logger is the common interface for log implementations across the
// sequencer, state store, loader, bundler, and delegation service.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)
	Infoln(args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)
	Errorln(args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)
	Warnln(args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)
	Debugln(args ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Fatalln(args ...any)

	WithFields(fields ...any) Logger

	Sync() error
}

// Level represents the severity of a log line.
type Level int8

const (
	FatalLevel Level = iota
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

// ParseLevel takes a string level and returns a Level constant.
func ParseLevel(lvl string) (Level, error) {
	switch strings.ToLower(lvl) {
	case "fatal":
		return FatalLevel, nil
	case "error":
		return ErrorLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "info":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	}

	return InfoLevel, &unknownLevelError{lvl: lvl}
}

type unknownLevelError struct{ lvl string }

func (e *unknownLevelError) Error() string {
	return "mlog: not a valid level: " + e.lvl
}

// GoLogger is a minimal standard-library (log package) implementation,
// used in tests; the zero-value fallback elsewhere is NoneLogger.
type GoLogger struct {
	fields []any
	Level  Level
}

func (l *GoLogger) enabled(level Level) bool { return l.Level >= level }

func (l *GoLogger) Info(args ...any)  { l.print(InfoLevel, args...) }
func (l *GoLogger) Infoln(args ...any) { l.print(InfoLevel, args...) }
func (l *GoLogger) Infof(format string, args ...any) { l.printf(InfoLevel, format, args...) }

func (l *GoLogger) Error(args ...any)  { l.print(ErrorLevel, args...) }
func (l *GoLogger) Errorln(args ...any) { l.print(ErrorLevel, args...) }
func (l *GoLogger) Errorf(format string, args ...any) { l.printf(ErrorLevel, format, args...) }

func (l *GoLogger) Warn(args ...any)  { l.print(WarnLevel, args...) }
func (l *GoLogger) Warnln(args ...any) { l.print(WarnLevel, args...) }
func (l *GoLogger) Warnf(format string, args ...any) { l.printf(WarnLevel, format, args...) }

func (l *GoLogger) Debug(args ...any)  { l.print(DebugLevel, args...) }
func (l *GoLogger) Debugln(args ...any) { l.print(DebugLevel, args...) }
func (l *GoLogger) Debugf(format string, args ...any) { l.printf(DebugLevel, format, args...) }

func (l *GoLogger) Fatal(args ...any)  { l.print(FatalLevel, args...); log.Fatal() }
func (l *GoLogger) Fatalln(args ...any) { l.print(FatalLevel, args...); log.Fatal() }
func (l *GoLogger) Fatalf(format string, args ...any) {
	l.printf(FatalLevel, format, args...)
	log.Fatal()
}

func (l *GoLogger) print(level Level, args ...any) {
	if !l.enabled(level) {
		return
	}

	all := append(append([]any{}, l.fields...), args...)
	log.Print(all...)
}

func (l *GoLogger) printf(level Level, format string, args ...any) {
	if !l.enabled(level) {
		return
	}

	log.Printf(format, args...)
}

// WithFields implements Logger interface function.
//
//nolint:ireturn
func (l *GoLogger) WithFields(fields ...any) Logger {
	return &GoLogger{
		fields: append(append([]any{}, l.fields...), fields...),
		Level:  l.Level,
	}
}

// Sync implements Logger interface function.
func (l *GoLogger) Sync() error { return nil }

// NoneLogger discards everything; used as the context zero-value.
type NoneLogger struct{}

func (l *NoneLogger) Info(args ...any)                    {}
func (l *NoneLogger) Infof(format string, args ...any)    {}
func (l *NoneLogger) Infoln(args ...any)                  {}
func (l *NoneLogger) Error(args ...any)                   {}
func (l *NoneLogger) Errorf(format string, args ...any)   {}
func (l *NoneLogger) Errorln(args ...any)                 {}
func (l *NoneLogger) Warn(args ...any)                    {}
func (l *NoneLogger) Warnf(format string, args ...any)    {}
func (l *NoneLogger) Warnln(args ...any)                  {}
func (l *NoneLogger) Debug(args ...any)                   {}
func (l *NoneLogger) Debugf(format string, args ...any)   {}
func (l *NoneLogger) Debugln(args ...any)                 {}
func (l *NoneLogger) Fatal(args ...any)                   {}
func (l *NoneLogger) Fatalf(format string, args ...any)   {}
func (l *NoneLogger) Fatalln(args ...any)                 {}
func (l *NoneLogger) Sync() error                         { return nil }

//nolint:ireturn
func (l *NoneLogger) WithFields(fields ...any) Logger { return l }
