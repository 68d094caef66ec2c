package observe

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
)

// LogLevel represents a logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel parses a string log level. Unknown levels mean info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Slog returns the equivalent slog level.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// slogLogger implements Logger on a slog JSON handler.
type slogLogger struct {
	log *slog.Logger
}

// NewLogger creates a JSON logger on stderr with the given level.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a JSON logger writing one line per record to w.
// Fields named in RedactedFields are replaced with "[REDACTED]".
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLogLevel(level).Slog(),
		ReplaceAttr: redact,
	})
	return &slogLogger{log: slog.New(h)}
}

// FromSlog adapts an existing slog.Logger. No redaction is added.
func FromSlog(l *slog.Logger) Logger {
	if l == nil {
		return &noopLogger{}
	}
	return &slogLogger{log: l}
}

// Slog returns the slog.Logger behind l, or a logger that discards
// everything when l is not slog-backed.
func Slog(l Logger) *slog.Logger {
	if s, ok := l.(*slogLogger); ok {
		return s.log
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if isRedactedField(a.Key) {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}

// WithModule returns a logger with module context attached.
func (l *slogLogger) WithModule(meta ModuleMeta) Logger {
	attrs := []any{
		slog.String("module.id", meta.Identity()),
		slog.String("module.name", meta.Name),
	}
	if meta.Version != "" {
		attrs = append(attrs, slog.String("module.version", meta.Version))
	}
	if meta.Key != "" {
		attrs = append(attrs, slog.String("cache.key", meta.Key))
	}
	return &slogLogger{log: l.log.With(attrs...)}
}

func (l *slogLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelInfo, msg, fields)
}

func (l *slogLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelWarn, msg, fields)
}

func (l *slogLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelError, msg, fields)
}

func (l *slogLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, slog.LevelDebug, msg, fields)
}

func (l *slogLogger) emit(ctx context.Context, level slog.Level, msg string, fields []Field) {
	if !l.log.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	l.log.LogAttrs(ctx, level, msg, attrs...)
}

// isRedactedField returns true if the field should be redacted.
func isRedactedField(key string) bool {
	return slices.Contains(RedactedFields, key)
}

var _ Logger = (*slogLogger)(nil)
