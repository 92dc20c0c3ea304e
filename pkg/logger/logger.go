package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger
type Logger struct {
	zerolog.Logger
}

// New creates a new logger instance
func New(serviceName string, environment string) *Logger {
	var output io.Writer = os.Stdout

	if environment == "development" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	return &Logger{Logger: logger}
}

// NewWithWriter creates a JSON logger writing to w. Used by tests that assert on log output.
func NewWithWriter(serviceName string, w io.Writer) *Logger {
	return &Logger{
		Logger: zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger(),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithRequestID returns a logger with the request ID attached
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("request_id", requestID).Logger(),
	}
}

// WithCorrelationID returns a logger with the correlation ID attached
func (l *Logger) WithCorrelationID(correlationID string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("correlation_id", correlationID).Logger(),
	}
}

// WithCountry returns a logger tagged with the country partition being served
func (l *Logger) WithCountry(country string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("country", country).Logger(),
	}
}

// WithTraceID returns a logger with the upstream trace ID attached
func (l *Logger) WithTraceID(traceID string) *Logger {
	if traceID == "" {
		return l
	}
	return &Logger{
		Logger: l.Logger.With().Str("trace_id", traceID).Logger(),
	}
}

// WithComponent returns a logger with the component name attached
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("component", component).Logger(),
	}
}

// WithError returns a logger with the error attached
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.Logger.With().Err(err).Logger(),
	}
}
