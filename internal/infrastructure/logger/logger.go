package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the verbosity and encoding of the process-wide logger.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// New builds the root zerolog logger. JSON is the default so log
// shippers get structured events; console format is for local runs.
// Every event carries the service name so the switch's logs stay
// attributable once aggregated.
func New(cfg Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "txnzero").
		Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
