package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options describes where and how the global logger writes.
type Options struct {
	File          string    // JSON log file, appended to
	Console       io.Writer // optional second sink, usually os.Stderr
	HumanReadable bool      // console sink uses zerolog's console writer
	Level         string    // debug, info, warn, error
}

var (
	globalLogger = zerolog.Nop()
	logFile      *os.File
	sink         io.Writer = io.Discard
	mu           sync.RWMutex
)

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	return Configure(Options{File: logPath})
}

// Configure replaces the global logger according to opts.
func Configure(opts Options) error {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	var writers []io.Writer
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		logFile = f
		writers = append(writers, f)
	}
	if opts.Console != nil {
		if opts.HumanReadable {
			console := zerolog.NewConsoleWriter()
			console.Out = opts.Console
			console.TimeFormat = time.TimeOnly
			writers = append(writers, console)
		} else {
			writers = append(writers, opts.Console)
		}
	}

	switch len(writers) {
	case 0:
		sink = io.Discard
	case 1:
		sink = writers[0]
	default:
		sink = zerolog.MultiLevelWriter(writers...)
	}
	globalLogger = zerolog.New(sink).Level(level).With().Timestamp().Logger()
	return nil
}

// SetLevel changes the minimum level of the global logger.
func SetLevel(level string) error {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	mu.Lock()
	globalLogger = globalLogger.Level(parsed)
	mu.Unlock()
	return nil
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = zerolog.Nop()
	sink = io.Discard
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// Logger returns a copy of the global zerolog logger.
func Logger() zerolog.Logger {
	return current()
}

// WithScenario returns a logger that tags every line with scenario and worker.
func WithScenario(name string, worker int) zerolog.Logger {
	l := current()
	return l.With().Str("scenario", name).Int("worker", worker).Logger()
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	l := current()
	l.Info().Msgf(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	l := current()
	l.Debug().Msgf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	l := current()
	l.Error().Msgf(format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	l := current()
	l.Warn().Msgf(format, v...)
}

const bannerRule = "****************************************************************************************"

// Banner logs msg framed by rules, used for scenario start and end markers.
func Banner(msg string) {
	l := current()
	l.Info().Msg(bannerRule)
	l.Info().Msg("$$$$$$$$$$$$$$$$$$$$$                 " + msg + "       $$$$$$$$$$$$$$$$$$$$$$$$$")
	l.Info().Msg(bannerRule)
}

// GetWriter returns the underlying writer for use by drivers.
func GetWriter() io.Writer {
	mu.RLock()
	defer mu.RUnlock()

	return sink
}
