// Package log provides a thin wrapper around rs/zerolog with levels, two
// outputs (stdout/stderr or a file) and the Infow/Debugw style of structured
// key-value logging used across the codebase.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// The available log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelFatal = "fatal"
)

var (
	log zerolog.Logger
	// logLevel is the current level, as set by Init.
	logLevel string
	// panicOnInvalidChars indicates whether to panic when a log message
	// contains invalid UTF-8 characters. Set via the environment variable
	// LOG_PANIC_ON_INVALIDCHARS, only meant for testing and debugging.
	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"
)

// Logger returns the current logger.
func Logger() *zerolog.Logger { return &log }

// Level returns the current log level string, as set by Init.
func Level() string { return logLevel }

type invalidCharChecker struct{}

func (invalidCharChecker) Write(p []byte) (int, error) {
	if !utf8.Valid(p) {
		panic(fmt.Sprintf("log message with invalid chars: %q", string(p)))
	}
	return len(p), nil
}

// logTestWriter is the sink used when Init is called with logTestWriterName
// as output, for use in tests and benchmarks.
var logTestWriter io.Writer = io.Discard

const logTestWriterName = "logtest"

// Init initializes the logger with the given level and output. The output can
// be "stdout", "stderr" or a file path. If errorOutput is not nil, messages
// with level error or above are duplicated to it.
func Init(level, output string, errorOutput io.Writer) {
	var out io.Writer
	switch output {
	case "stdout":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339Nano}
	case "stderr":
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339Nano}
	case logTestWriterName:
		out = logTestWriter
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			panic(fmt.Sprintf("cannot open log output %q: %v", output, err))
		}
		out = f
	}
	if errorOutput != nil {
		out = zerolog.MultiLevelWriter(out, errorLevelWriter{errorOutput})
	}
	if panicOnInvalidChars {
		out = zerolog.MultiLevelWriter(out, invalidCharChecker{})
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log = zerolog.New(out).With().Timestamp().Logger()

	logLevel = level
	switch level {
	case LogLevelDebug:
		log = log.Level(zerolog.DebugLevel)
	case LogLevelInfo:
		log = log.Level(zerolog.InfoLevel)
	case LogLevelWarn:
		log = log.Level(zerolog.WarnLevel)
	case LogLevelError:
		log = log.Level(zerolog.ErrorLevel)
	case LogLevelFatal:
		log = log.Level(zerolog.FatalLevel)
	default:
		panic(fmt.Sprintf("invalid log level: %q", level))
	}
	log.Info().Msgf("logger construction succeeded at level %s with output %s", level, output)
}

// errorLevelWriter forwards only error-or-above messages to its writer.
type errorLevelWriter struct{ w io.Writer }

func (lw errorLevelWriter) Write(p []byte) (int, error) { return lw.w.Write(p) }

func (lw errorLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.ErrorLevel {
		return len(p), nil
	}
	return lw.w.Write(p)
}

func init() {
	// The default logger, until Init is called, prints to stderr at debug
	// level. Mainly useful for tests that never call Init.
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339Nano}).
		With().Timestamp().Logger()
	logLevel = LogLevelDebug
}

func argsToString(args ...any) string {
	sb := new(strings.Builder)
	for i, arg := range args {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(sb, "%v", arg)
	}
	return sb.String()
}

// Debug sends a debug level log message.
func Debug(args ...any) { log.Debug().Msg(argsToString(args...)) }

// Info sends an info level log message.
func Info(args ...any) { log.Info().Msg(argsToString(args...)) }

// Warn sends a warn level log message.
func Warn(args ...any) { log.Warn().Msg(argsToString(args...)) }

// Error sends an error level log message.
func Error(args ...any) { log.Error().Msg(argsToString(args...)) }

// Fatal sends a fatal level log message and exits the program.
func Fatal(args ...any) { log.Fatal().Msg(argsToString(args...)) }

// Debugf sends a formatted debug level log message.
func Debugf(template string, args ...any) { log.Debug().Msgf(template, args...) }

// Infof sends a formatted info level log message.
func Infof(template string, args ...any) { log.Info().Msgf(template, args...) }

// Warnf sends a formatted warn level log message.
func Warnf(template string, args ...any) { log.Warn().Msgf(template, args...) }

// Errorf sends a formatted error level log message.
func Errorf(template string, args ...any) { log.Error().Msgf(template, args...) }

// Fatalf sends a formatted fatal level log message and exits the program.
func Fatalf(template string, args ...any) { log.Fatal().Msgf(template, args...) }

func withFields(ev *zerolog.Event, keyvalues ...any) *zerolog.Event {
	if len(keyvalues)%2 != 0 {
		keyvalues = append(keyvalues, "MISSING")
	}
	for i := 0; i < len(keyvalues); i += 2 {
		key, ok := keyvalues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvalues[i])
		}
		switch v := keyvalues[i+1].(type) {
		case error:
			ev = ev.Str(key, v.Error())
		case fmt.Stringer:
			ev = ev.Str(key, v.String())
		default:
			ev = ev.Interface(key, v)
		}
	}
	return ev
}

// Debugw sends a debug level log message with key-value pairs.
func Debugw(msg string, keyvalues ...any) { withFields(log.Debug(), keyvalues...).Msg(msg) }

// Infow sends an info level log message with key-value pairs.
func Infow(msg string, keyvalues ...any) { withFields(log.Info(), keyvalues...).Msg(msg) }

// Warnw sends a warn level log message with key-value pairs.
func Warnw(msg string, keyvalues ...any) { withFields(log.Warn(), keyvalues...).Msg(msg) }

// Errorw sends an error level log message with key-value pairs.
func Errorw(err error, msg string) {
	if err == nil {
		log.Error().Msg(msg)
		return
	}
	log.Error().Str("error", err.Error()).Msg(msg)
}
