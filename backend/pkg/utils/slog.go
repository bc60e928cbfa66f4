package utils

import (
	"bytes"
	"log/slog"
	"time"
)

// ErrAttr returns a slog attribute for an error under the "error" key.
func ErrAttr(err error) slog.Attr {
	return slog.Any("error", err)
}

// SlogReplacer formats time and duration attributes as plain strings.
func SlogReplacer(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindTime:
		return slog.String(a.Key, a.Value.Time().Format(time.DateTime))
	case slog.KindDuration:
		return slog.String(a.Key, a.Value.Duration().String())
	default:
		return a
	}
}

// LogOnError runs fn and logs its error, if any. Meant for deferred Close calls.
func LogOnError(l *slog.Logger, fn func() error, msg string) {
	if err := fn(); err != nil {
		l.Error(msg, ErrAttr(err))
	}
}

// LogWriter adapts a slog.Logger to an io.Writer, one log record per write.
type LogWriter struct {
	logger *slog.Logger
}

// NewSlogWriter creates a writer that logs every non-empty write at info level.
func NewSlogWriter(l *slog.Logger) *LogWriter {
	return &LogWriter{logger: l}
}

func (w *LogWriter) Write(p []byte) (int, error) {
	msg := string(bytes.TrimRight(p, "\n"))
	if msg != "" {
		w.logger.Info(msg)
	}

	return len(p), nil
}
