package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ServiceName is attached to every log record.
const ServiceName = "pacelab"

// ParseLevel maps a config level name to a slog level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger writing to w in the given format ("json" or "text").
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(&ComponentHandler{Handler: handler}).With("service", ServiceName)
}

// ComponentHandler prefixes messages with [component] when a component attribute is set
type ComponentHandler struct {
	slog.Handler
	component string
}

// WithGroup implements slog.Handler
func (h *ComponentHandler) WithGroup(name string) slog.Handler {
	return &ComponentHandler{
		Handler:   h.Handler.WithGroup(name),
		component: h.component,
	}
}

// WithAttrs implements slog.Handler
func (h *ComponentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	comp := h.component
	for _, a := range attrs {
		if a.Key == "component" {
			comp = a.Value.String()
		}
	}
	return &ComponentHandler{
		Handler:   h.Handler.WithAttrs(attrs),
		component: comp,
	}
}

// Handle implements slog.Handler
func (h *ComponentHandler) Handle(ctx context.Context, r slog.Record) error {
	comp := h.component
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			comp = a.Value.String()
			return false
		}
		return true
	})

	if comp != "" {
		out := slog.NewRecord(r.Time, r.Level, fmt.Sprintf("[%s] %s", comp, r.Message), r.PC)
		r.Attrs(func(a slog.Attr) bool {
			out.AddAttrs(a)
			return true
		})
		r = out
	}

	return h.Handler.Handle(ctx, r)
}

// Discard returns a logger that drops everything. Used by tests and library callers
// that do not supply a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
