package observability

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes zerolog with sane defaults. If logPath is non-empty,
// logs are written to that file (append mode) instead of stdout. If opening
// the file fails, logs fall back to stdout, and an error is printed to stderr.
func InitLogger(logPath string, level string) {
	InitLoggerWithOTel(logPath, level, false)
}

// InitLoggerWithOTel is InitLogger plus optional OTel log forwarding: when
// forwardOTel is true every record is additionally emitted, via OTelWriter,
// to the global OpenTelemetry LoggerProvider. InitOTel installs only trace
// and metric providers, not a LoggerProvider, so these records are exported
// only if a LoggerProvider has been installed elsewhere. Kept separate from
// InitLogger so callers that never configure OTel don't pay for the bridge.
func InitLoggerWithOTel(logPath string, level string, forwardOTel bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var w io.Writer = os.Stdout
	if logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			// When a log file is configured, write only to the file to avoid
			// interfering with interactive UIs (e.g., TUI) that use stdout.
			w = f
		} else {
			// best-effort; continue with stdout
			_, _ = fmt.Fprintf(os.Stderr, "failed to open log file %q: %v\n", logPath, err)
		}
	}
	if forwardOTel {
		w = io.MultiWriter(w, NewOTelWriter("aviation-rag"))
	}
	log.Logger = log.Output(w).With().Timestamp().Logger()
	// Parse level
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl := zerolog.InfoLevel
	if level != "" {
		if l, err := zerolog.ParseLevel(level); err == nil {
			lvl = l
		}
	}
	zerolog.SetGlobalLevel(lvl)
	// Redirect the standard library logger so ALL logs are captured.
	stdlog.SetFlags(0)
	stdlog.SetOutput(log.Logger)
}
