package observability

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var loggerMu sync.Mutex

// InitLogger configures the process-wide structured logger. A nil out means stdout.
// The console command passes a file so log lines do not tear the terminal UI.
func InitLogger(level string, pretty bool, out io.Writer) zerolog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if out == nil {
		out = os.Stdout
	}
	zerolog.SetGlobalLevel(ParseLevel(level))

	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// ParseLevel maps a LOG_LEVEL value to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Component derives a child logger tagged with a component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// WithTurnID tags a logger with the correlation id of one pipeline run.
func WithTurnID(logger zerolog.Logger, turnID string) zerolog.Logger {
	if turnID == "" {
		turnID = NewCorrelationID()
	}
	return logger.With().Str("turn_id", turnID).Logger()
}

func NewCorrelationID() string {
	return uuid.NewString()
}
