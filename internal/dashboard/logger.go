package dashboard

import (
	"io"
	"os"

	"github.com/phuslu/log"
)

// PhusluLogger implements Logger on top of a leveled phuslu/log logger.
type PhusluLogger struct {
	logger *log.Logger
}

// NewPhusluLogger creates a logger writing to w at the given level name
// ("debug", "info", "warn", "error"). Terminals get colored console output.
func NewPhusluLogger(level string, w io.Writer) *PhusluLogger {
	var writer log.Writer = &log.IOWriter{Writer: w}
	if f, ok := w.(*os.File); ok && log.IsTerminal(f.Fd()) {
		writer = &log.ConsoleWriter{Writer: w, ColorOutput: true}
	}
	return &PhusluLogger{
		logger: &log.Logger{
			Level:  log.ParseLevel(level),
			Writer: writer,
		},
	}
}

// Printf logs at info level.
func (l *PhusluLogger) Printf(format string, v ...interface{}) {
	l.logger.Info().Msgf(format, v...)
}

// Logger returns the structured logger for call sites that attach fields.
func (l *PhusluLogger) Logger() *log.Logger {
	return l.logger
}
