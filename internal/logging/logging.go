package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/veertuinc/glimpse/internal/config"
)

func New() *slog.Logger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter builds the logger from LOG_LEVEL, writing records to w.
func NewWithWriter(w io.Writer) *slog.Logger {
	logLevel := os.Getenv("LOG_LEVEL")
	var options *slog.HandlerOptions
	if logLevel == "dev" {
		handler := &ContextHandler{Handler: slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: true,
		})}
		return slog.New(handler)
	} else if strings.ToUpper(logLevel) == "DEBUG" {
		options = &slog.HandlerOptions{Level: slog.LevelDebug}
	} else if strings.ToUpper(logLevel) == "ERROR" {
		options = &slog.HandlerOptions{Level: slog.LevelError}
	} else {
		options = &slog.HandlerOptions{Level: slog.LevelInfo}
	}
	handler := &ContextHandler{Handler: slog.NewJSONHandler(w, options)}
	return slog.New(handler)
}

func IsDebugEnabled() bool {
	logLevel := os.Getenv("LOG_LEVEL")
	return logLevel == "dev" || strings.ToUpper(logLevel) == "DEBUG"
}

type ctxKey string

const (
	slogFields ctxKey = "slog_fields"
)

type ContextHandler struct {
	slog.Handler
}

// Handle adds contextual attributes to the Record before calling the underlying
// handler
func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(slogFields).([]slog.Attr); ok {
		for _, v := range attrs {
			r.AddAttrs(v)
		}
	}

	return h.Handler.Handle(ctx, r)
}

func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// AppendCtx adds an slog attribute to the provided context so that it will be
// included in any Record created with such context
func AppendCtx(parent context.Context, attr slog.Attr) context.Context {
	if parent == nil {
		panic("parent context required")
	}

	if v, ok := parent.Value(slogFields).([]slog.Attr); ok {
		// copy so sibling contexts don't share a backing array
		next := make([]slog.Attr, 0, len(v)+1)
		next = append(next, v...)
		next = append(next, attr)
		return context.WithValue(parent, slogFields, next)
	}

	v := []slog.Attr{}
	v = append(v, attr)
	return context.WithValue(parent, slogFields, v)
}

func GetLoggerFromContext(ctx context.Context) (*slog.Logger, error) {
	logger, ok := ctx.Value(config.ContextKey("logger")).(*slog.Logger)
	if !ok {
		return nil, errors.New("GetLoggerFromContext failed")
	}
	return logger, nil
}
