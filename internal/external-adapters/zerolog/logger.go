// Package zerolog implements the domain Logger on top of zerolog.
package zerolog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ochairo/pybuild/internal/domain/interfaces"
)

// Logger adapts a zerolog.Logger to interfaces.Logger
type Logger struct {
	logger zerolog.Logger
}

var _ interfaces.Logger = (*Logger)(nil)

// LevelFor maps a -v count to a level: 0 warn, 1 info, 2 debug, more is trace
func LevelFor(verbosity int) zerolog.Level {
	switch verbosity {
	case 0:
		return zerolog.WarnLevel
	case 1:
		return zerolog.InfoLevel
	case 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// New creates a logger writing JSON lines to w
func New(w io.Writer, verbosity int) *Logger {
	return &Logger{
		logger: zerolog.New(w).Level(LevelFor(verbosity)).With().Timestamp().Logger(),
	}
}

// NewConsole creates a human-readable logger on stderr
func NewConsole(verbosity int) *Logger {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}
	l := New(consoleWriter, verbosity)

	// Add caller information for debug and trace levels
	if verbosity >= 2 {
		l.logger = l.logger.With().Caller().Logger()
	}
	return l
}

// Debug logs debug-level messages
func (l *Logger) Debug(msg string, fields ...interfaces.Field) {
	emit(l.logger.Debug(), msg, fields)
}

// Info logs informational messages
func (l *Logger) Info(msg string, fields ...interfaces.Field) {
	emit(l.logger.Info(), msg, fields)
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, fields ...interfaces.Field) {
	emit(l.logger.Warn(), msg, fields)
}

// Error logs error messages
func (l *Logger) Error(msg string, fields ...interfaces.Field) {
	emit(l.logger.Error(), msg, fields)
}

func emit(e *zerolog.Event, msg string, fields []interfaces.Field) {
	for _, f := range fields {
		switch v := f.Value.(type) {
		case error:
			e = e.AnErr(f.Key, v)
		case string:
			e = e.Str(f.Key, v)
		case int:
			e = e.Int(f.Key, v)
		case []string:
			e = e.Strs(f.Key, v)
		case time.Duration:
			e = e.Dur(f.Key, v)
		default:
			e = e.Interface(f.Key, v)
		}
	}
	e.Msg(msg)
}
