package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/gookit/slog"
	"github.com/gookit/slog/handler"
)

// Logger is the minimal logging surface used across the service.
type Logger interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Fields are structured key/value pairs attached to a log line.
type Fields map[string]any

// Log is the process-wide logger. It works at info level before InitFromEnv.
var Log Logger = NewLogger("info")

// InitFromEnv reads the level from envKey, defaulting to info.
func InitFromEnv(envKey string) {
	Init(os.Getenv(envKey))
}

// Init replaces the global logger with one at the given level.
func Init(level string) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	Log = NewLogger(level)
}

// NewLogger builds a gookit/slog logger writing JSON lines to the console.
func NewLogger(level string) Logger {
	logLevel := slog.LevelByName(level)

	var levels slog.Levels
	for _, lv := range slog.AllLevels {
		if lv <= logLevel {
			levels = append(levels, lv)
		}
	}

	h := handler.NewConsoleHandler(levels)
	formatter := slog.NewJSONFormatter(func(f *slog.JSONFormatter) {
		f.Fields = []string{
			slog.FieldKeyDatetime,
			slog.FieldKeyLevel,
			slog.FieldKeyMessage,
		}
		f.Aliases = slog.StringMap{
			slog.FieldKeyDatetime: "datetime",
			slog.FieldKeyLevel:    "level",
			slog.FieldKeyMessage:  "message",
		}
		f.TimeFormat = "2006-01-02T15:04:05"
	})
	h.SetFormatter(formatter)

	return slog.NewWithHandlers(h)
}

// InfoWithFields logs msg at info level with structured fields.
func InfoWithFields(msg string, fields Fields) {
	if lg, ok := Log.(*slog.Logger); ok {
		lg.WithFields(slog.M(fields)).Info(msg)
		return
	}
	Log.Info(msg)
}

// WarnWithFields logs msg at warn level with structured fields.
func WarnWithFields(msg string, fields Fields) {
	if lg, ok := Log.(*slog.Logger); ok {
		lg.WithFields(slog.M(fields)).Warn(msg)
		return
	}
	Log.Warn(msg)
}

// ErrorWithFields logs msg at error level with structured fields.
func ErrorWithFields(msg string, fields Fields) {
	if lg, ok := Log.(*slog.Logger); ok {
		lg.WithFields(slog.M(fields)).Error(msg)
		return
	}
	Log.Error(msg)
}

const maxDetailLines = 5

// SafeError logs an error as flat primitive fields. Library errors can be
// large or self-referential, so only the type, message and the first lines of
// the verbose form are kept.
func SafeError(msg string, err error, extra Fields) {
	fields := Fields{}
	for k, v := range extra {
		fields[k] = v
	}

	if err == nil {
		fields["error_name"] = "UnknownError"
		fields["error_message"] = "No message available"
		ErrorWithFields(msg, fields)
		return
	}

	fields["error_name"] = fmt.Sprintf("%T", err)
	fields["error_message"] = err.Error()

	detail := strings.Split(fmt.Sprintf("%+v", err), "\n")
	if len(detail) > maxDetailLines {
		detail = detail[:maxDetailLines]
	}
	fields["error_detail"] = strings.Join(detail, "\n")

	ErrorWithFields(msg, fields)
}
