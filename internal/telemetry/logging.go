package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger writes JSON logs to stdout, stamping trace_id and span_id from the
// active span.
func NewLogger(level slog.Level) *slog.Logger {
	return NewLoggerTo(os.Stdout, level)
}

func NewLoggerTo(w io.Writer, level slog.Level) *slog.Logger {
	baseHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(&traceHandler{baseHandler: baseHandler})
}

// ParseLevel maps LOG_LEVEL values to slog levels, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// traceHandler puts trace_id and span_id at the top level of every record
// logged inside a span. Attributes and groups added through With and
// WithGroup are replayed in order after them.
type traceHandler struct {
	baseHandler slog.Handler
	steps       []handlerStep
}

// handlerStep is either a group name or a batch of attributes.
type handlerStep struct {
	group string
	attrs []slog.Attr
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.baseHandler.Enabled(ctx, level)
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	handler := h.baseHandler
	if traceID, spanID := TraceIDs(ctx); traceID != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("trace_id", traceID),
			slog.String("span_id", spanID),
		})
	}
	for _, step := range h.steps {
		if step.group != "" {
			handler = handler.WithGroup(step.group)
			continue
		}
		handler = handler.WithAttrs(step.attrs)
	}
	return handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.with(handlerStep{attrs: attrs})
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(handlerStep{group: name})
}

func (h *traceHandler) with(step handlerStep) *traceHandler {
	steps := make([]handlerStep, len(h.steps), len(h.steps)+1)
	copy(steps, h.steps)
	return &traceHandler{baseHandler: h.baseHandler, steps: append(steps, step)}
}
